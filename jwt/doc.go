// Package jwt issues and verifies the access/refresh token pair. The two
// token kinds are signed with distinct keys and tagged with a "typ" claim;
// verification reports failure by value rather than by error so callers
// cannot confuse a parse failure with an infrastructure fault.
package jwt
