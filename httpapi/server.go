package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	econtact "github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/middleware"
)

const maxBodyBytes = 64 << 10

// Engine is the subset of *econtact.Engine the handlers call.
type Engine interface {
	Login(ctx context.Context, username, password string) (econtact.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (econtact.TokenPair, error)
	Validate(ctx context.Context, accessToken string) (*econtact.Identity, error)
	Logout(ctx context.Context, accessToken, refreshToken string)
}

type Options struct {
	Logger *zap.Logger
	// TrustProxy takes the client IP from the first X-Forwarded-For entry.
	TrustProxy bool
	// Metrics is served at GET /metrics when set.
	Metrics http.Handler
	// Ready backs GET /healthz. Nil means always healthy.
	Ready func(ctx context.Context) error
}

type Server struct {
	engine   Engine
	mux      *http.ServeMux
	guard    func(http.Handler) http.Handler
	validate *validator.Validate
	logger   *zap.Logger
	opts     Options
}

func NewServer(engine Engine, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine:   engine,
		mux:      http.NewServeMux(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.Named("http"),
		opts:     opts,
	}
	s.guard = middleware.Guard(engine, middleware.WithLogger(s.logger))

	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("POST /refresh-token", s.handleRefresh)
	s.mux.HandleFunc("POST /logout", s.handleLogout)
	s.mux.Handle("GET /me", s.guard(http.HandlerFunc(s.handleMe)))
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if opts.Metrics != nil {
		s.mux.Handle("GET /metrics", opts.Metrics)
	}
	return s
}

// Mount registers a protected route. The handler runs only for requests
// with a valid, unrevoked access token.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.mux.Handle(pattern, s.guard(h))
}

// Handler returns the root handler with request logging and client
// metadata attached.
func (s *Server) Handler() http.Handler {
	return s.withRequestContext(s.logRequests(s.mux))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req econtact.LoginRequest
	if err := s.decode(w, r, &req, false); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		middleware.WriteError(w, fmt.Errorf("%w: %s", econtact.ErrBadRequest, describeValidation(err)))
		return
	}

	pair, err := s.engine.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.logFailure(r, err)
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req econtact.RefreshRequest
	if err := s.decode(w, r, &req, true); err != nil {
		middleware.WriteError(w, err)
		return
	}

	pair, err := s.engine.Refresh(r.Context(), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		s.logFailure(r, err)
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// handleLogout accepts any combination of bearer access token and body
// refresh token, including neither, and always answers 204.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req econtact.LogoutRequest
	if err := s.decode(w, r, &req, true); err != nil {
		middleware.WriteError(w, err)
		return
	}
	access, _ := middleware.BearerToken(r.Header.Get("Authorization"))

	s.engine.Logout(r.Context(), access, strings.TrimSpace(req.RefreshToken))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, econtact.ErrAuthRequired)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body into dst. With allowEmpty an absent body leaves
// dst at its zero value.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return fmt.Errorf("%w: malformed JSON body", econtact.ErrBadRequest)
	}
	return nil
}

func (s *Server) logFailure(r *http.Request, err error) {
	if econtact.HTTPStatus(err) >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field())+" "+fe.Tag())
	}
	return strings.Join(fields, ", ")
}

func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := econtact.WithClientIP(r.Context(), s.clientIP(r))
		ctx = econtact.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) clientIP(r *http.Request) string {
	if s.opts.TrustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
