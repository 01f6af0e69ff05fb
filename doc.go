// Package econtact is the session and token core of the E-Contact school
// platform: it issues JWT access and refresh tokens, keeps a Redis denylist
// of revoked tokens, and validates bearer tokens for protected routes.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Token lifecycle
//
// Login returns a [TokenPair]. Access and refresh tokens are signed with
// different keys and carry a "typ" claim, so neither verifies as the other.
// Refresh consumes the presented refresh token with SET NX before issuing a
// new pair; presenting it again fails with [ErrRefreshTokenInvalid]. Logout
// and Revoke insert tokens into the denylist until their own expiry.
//
// # Revocation outages
//
// When Redis cannot answer a denylist lookup the engine follows the
// configured policy. fail_open accepts the token and counts the event;
// fail_closed rejects the request with [ErrInfrastructure].
//
// # Boundaries
//
// The HTTP surface lives in httpapi and middleware, the consumer side in
// client. Flow orchestration, throttling and connection helpers live under
// internal/ and are not exported.
package econtact
