// Package handlers contains the HTTP handler for the fortune endpoint.
//
// POST accepts a JSON birth request and answers with the envelope from
// package types. The optional query parameter mode=sync|stream overrides
// the configured upstream transport for one request. OPTIONS answers 200
// with an empty body; any other method answers 405.
package handlers
