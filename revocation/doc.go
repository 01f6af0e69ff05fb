// Package revocation keeps the Redis denylist of tokens that were logged out
// or consumed before their natural expiry.
//
// # Key layout
//
//	<prefix><sha256-hex(token)>  ->  "1"   (TTL = remaining token lifetime)
//
// Tokens are hashed so the denylist never holds a replayable credential.
// Entries expire with the token they describe, so the keyspace stays bounded
// by the number of live tokens.
//
// # Outage policy
//
// A [Policy] decides what a lookup does when Redis is unreachable. FailOpen
// (the default) treats the token as not revoked and logs the event;
// FailClosed surfaces [ErrUnavailable]. Insertions are always best effort.
package revocation
