// Package remote defines the boundary to the game backend service.
//
// Client is the facade the sync engine talks to. Every method issues exactly
// one network call, blocks until it resolves, and reports failures as *Error
// carrying a status code and message. Callers never invoke a Client from the
// owning loop directly; backend components dispatch through loop.Submit so the
// loop never blocks.
//
// # Failure taxonomy
//
//   - Connectivity: StatusNoConnection, or any error that is not an *Error.
//     Short backoff, always retryable.
//   - Server failure: status >= 500. Retryable.
//   - Rejection: 200 <= status < 500. Final, never retried.
//
// HTTPClient is the production implementation: JSON over HTTP with basic
// credentials.
package remote
