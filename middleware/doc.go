// Package middleware authenticates HTTP requests with bearer access tokens.
//
// [Guard] runs the per-request state machine: extract the bearer token,
// reject it if revoked, verify it, then attach the [econtact.Identity] to
// the request context. Role checks are left to the handlers.
//
// Handlers read the identity with [IdentityFromContext] and never
// re-derive it from headers.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine.Validate).
//   - Access Redis.
//   - Retry or refresh; a rejected request is answered once.
package middleware
