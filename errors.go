package econtact

import (
	"errors"
	"net/http"
)

var (
	// ErrAuthRequired is returned when a protected call carries no usable
	// bearer credential.
	ErrAuthRequired = errors.New("authentication required")
	// ErrTokenRevoked is returned for cryptographically valid access tokens
	// found on the denylist.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenInvalidOrExpired covers every access-token verification failure.
	ErrTokenInvalidOrExpired = errors.New("token invalid or expired")
	ErrRefreshTokenMissing   = errors.New("refresh token missing")
	// ErrRefreshTokenInvalid covers bad signature, expiry, reuse of a
	// consumed token, and refresh for a user that no longer exists.
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
	// ErrUpstreamTimeout is produced client side when the server did not
	// answer in time. It never triggers a refresh.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrInfrastructure reports a backing store failure surfaced under a
	// fail-closed policy.
	ErrInfrastructure     = errors.New("infrastructure error")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginRateLimited   = errors.New("login rate limited")
	ErrUserNotFound       = errors.New("user not found")
	ErrBadRequest         = errors.New("bad request")
	ErrEngineNotReady     = errors.New("engine not initialized")
)

// ErrorCode is the machine-readable "error" field of an error response body.
type ErrorCode string

const (
	CodeAuthRequired          ErrorCode = "AuthRequired"
	CodeTokenRevoked          ErrorCode = "TokenRevoked"
	CodeTokenInvalidOrExpired ErrorCode = "TokenInvalidOrExpired"
	CodeRefreshTokenMissing   ErrorCode = "RefreshTokenMissing"
	CodeRefreshTokenInvalid   ErrorCode = "RefreshTokenInvalid"
	CodeUpstreamTimeout       ErrorCode = "UpstreamTimeout"
	CodeInfrastructure        ErrorCode = "InfrastructureError"
	CodeInvalidCredentials    ErrorCode = "InvalidCredentials"
	CodeLoginRateLimited      ErrorCode = "LoginRateLimited"
	CodeBadRequest            ErrorCode = "BadRequest"
	CodeInternal              ErrorCode = "InternalError"
)

type errorMapping struct {
	err    error
	code   ErrorCode
	status int
}

var errorMappings = []errorMapping{
	{ErrAuthRequired, CodeAuthRequired, http.StatusUnauthorized},
	{ErrTokenRevoked, CodeTokenRevoked, http.StatusUnauthorized},
	{ErrTokenInvalidOrExpired, CodeTokenInvalidOrExpired, http.StatusUnauthorized},
	{ErrRefreshTokenMissing, CodeRefreshTokenMissing, http.StatusUnauthorized},
	{ErrRefreshTokenInvalid, CodeRefreshTokenInvalid, http.StatusUnauthorized},
	{ErrUpstreamTimeout, CodeUpstreamTimeout, http.StatusGatewayTimeout},
	{ErrInfrastructure, CodeInfrastructure, http.StatusInternalServerError},
	{ErrInvalidCredentials, CodeInvalidCredentials, http.StatusUnauthorized},
	{ErrLoginRateLimited, CodeLoginRateLimited, http.StatusTooManyRequests},
	{ErrBadRequest, CodeBadRequest, http.StatusBadRequest},
}

// CodeOf maps err onto the wire taxonomy. Unknown errors map to
// CodeInternal.
func CodeOf(err error) ErrorCode {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return CodeInternal
}

// HTTPStatus returns the response status used for err.
func HTTPStatus(err error) int {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// ErrorForCode is the inverse of CodeOf. It returns nil for unknown codes.
func ErrorForCode(code ErrorCode) error {
	for _, m := range errorMappings {
		if m.code == code {
			return m.err
		}
	}
	return nil
}
