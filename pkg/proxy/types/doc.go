// Package types defines the JSON envelope returned by the fortune endpoint.
//
// Every response, success or failure, has the same top-level shape:
//
//	{"success": true, "data": {...}, "attempts": 1}
//	{"success": false, "error": "timeout", "message": "...", "retryable": true}
//
// Clients branch on success first and on retryable second: a retryable
// failure means no result was produced yet and the same request may be
// sent again; a non-retryable failure means the request was rejected.
package types
