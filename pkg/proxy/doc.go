// Package proxy turns one inbound birth-data submission into one envelope.
//
// A Forwarder drives each request through a small state machine:
//
//	Received → Validating → Forwarding → Succeeded
//	                ↘            ↘
//	                  Failed       Failed
//
// Validation failures never reach the upstream. Forwarding runs the
// workflow client under the retry controller and then normalizes the
// result. Each request owns its Call; nothing mutable is shared between
// concurrent requests.
//
// The outbound work is detached from the inbound request's cancellation:
// a browser closing its tab does not abort a workflow run that is already
// being paid for. The per-attempt deadline is the only cancellation.
package proxy
