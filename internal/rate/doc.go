// Package rate throttles password guessing at the login endpoint.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key layout
// under the configured prefix:
//   - lu:<digest(username)>  failed logins per username
//   - li:<ip>                failed logins per client IP
//
// Once a counter reaches MaxLoginAttempts further logins for that key are
// refused until the window expires.
package rate
