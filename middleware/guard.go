package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	econtact "github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001"
)

// Validator is the subset of *econtact.Engine the guard needs.
type Validator interface {
	Validate(ctx context.Context, accessToken string) (*econtact.Identity, error)
}

type identityContextKey struct{}

// IdentityFromContext returns the identity attached by Guard.
func IdentityFromContext(ctx context.Context) (*econtact.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*econtact.Identity)
	return id, ok && id != nil
}

// WithIdentity attaches id to ctx. Guard calls it after a successful
// validation; tests use it to build authenticated requests directly.
func WithIdentity(ctx context.Context, id *econtact.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// Option configures Guard.
type Option func(*guardOptions)

type guardOptions struct {
	logger *zap.Logger
}

// WithLogger logs infrastructure failures. Authentication rejections are
// not logged.
func WithLogger(logger *zap.Logger) Option {
	return func(o *guardOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Guard authenticates every request with the bearer token in the
// Authorization header. Rejections are terminal: the response is written
// once with the error body and next is not called.
func Guard(v Validator, opts ...Option) func(http.Handler) http.Handler {
	o := guardOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				WriteError(w, econtact.ErrEngineNotReady)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, econtact.ErrAuthRequired)
				return
			}

			id, err := v.Validate(r.Context(), token)
			if err != nil {
				if errors.Is(err, econtact.ErrInfrastructure) {
					o.logger.Error("token validation unavailable",
						zap.String("path", r.URL.Path),
						zap.Error(err))
				}
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func BearerToken(value string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

// WriteError writes err as the JSON error body with the matching status.
func WriteError(w http.ResponseWriter, err error) {
	code := econtact.CodeOf(err)
	msg := err.Error()
	if code == econtact.CodeInternal || code == econtact.CodeInfrastructure {
		msg = "internal error"
	}
	writeJSON(w, econtact.HTTPStatus(err), econtact.ErrorResponse{Error: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
