// Package client is the consumer side of the token lifecycle.
//
// A Client keeps the access token in memory and the refresh token in a
// Keeper, attaches the bearer to every API call through Transport, and
// renews an expired access token transparently. Concurrent requests that
// hit 401 during the same window share one call to /refresh-token: the
// first becomes the initiator, the others queue on the Coordinator and
// retry with whatever token that single refresh produced.
//
// Login, refresh and logout requests are never retried and never start a
// refresh. A request is retried at most once; a second 401 is returned to
// the caller as is.
package client
