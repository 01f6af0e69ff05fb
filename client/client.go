package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	econtact "github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001"
)

const (
	loginPath   = "/login"
	refreshPath = "/refresh-token"
	logoutPath  = "/logout"

	defaultRequestTimeout = 30 * time.Second
	defaultRefreshTimeout = 10 * time.Second
)

// State is the session state seen by the client.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
)

func (s State) String() string {
	if s == StateAuthenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// APIError is a non-2xx response decoded from the server's error body.
// errors.Is matches it against the econtact sentinels.
type APIError struct {
	Status  int
	Code    econtact.ErrorCode
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return econtact.ErrorForCode(e.Code)
}

type Option func(*Client)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithKeeper sets where the refresh token is persisted. The default keeps
// it in memory only.
func WithKeeper(k Keeper) Option {
	return func(c *Client) { c.keeper = k }
}

// WithBaseTransport sets the round tripper underneath the refresh logic.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.base = rt }
}

func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.requestTimeout = d }
}

// WithRefreshTimeout bounds the shared refresh call. It runs detached from
// the initiating request's cancellation.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) { c.refreshTimeout = d }
}

// WithSessionExpiredHook registers fn to run once per failed refresh cycle,
// after the credentials were cleared.
func WithSessionExpiredHook(fn func(error)) Option {
	return func(c *Client) { c.onExpired = fn }
}

// Client talks to the E-Contact API on behalf of one user session.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	// bare sends /refresh-token without the refresh transport.
	bare  *http.Client
	vault *Vault
	coord *Coordinator

	keeper         Keeper
	base           http.RoundTripper
	logger         *zap.Logger
	requestTimeout time.Duration
	refreshTimeout time.Duration
	onExpired      func(error)
}

// New returns a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}

	c := &Client{
		baseURL:        u,
		coord:          NewCoordinator(),
		logger:         zap.NewNop(),
		requestTimeout: defaultRequestTimeout,
		refreshTimeout: defaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.base == nil {
		c.base = http.DefaultTransport
	}
	c.vault = NewVault(c.keeper)

	c.bare = &http.Client{Transport: c.base}
	c.http = &http.Client{
		Timeout: c.requestTimeout,
		Transport: &Transport{
			Base:        c.base,
			Credentials: c.vault,
			Coordinator: c.coord,
			Refresh:     c.refresh,
			Exempt:      c.exempt,
			Logger:      c.logger.Named("transport"),
		},
	}
	return c, nil
}

// Credentials exposes the client's credential store.
func (c *Client) Credentials() CredentialStore { return c.vault }

func (c *Client) Coordinator() *Coordinator { return c.coord }

func (c *Client) BaseURL() string { return c.baseURL.String() }

func (c *Client) State() State {
	if c.vault.Get().AccessToken != "" {
		return StateAuthenticated
	}
	return StateUnauthenticated
}

// Login exchanges username and password for a token pair and stores it.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var pair econtact.TokenPair
	err := c.postJSON(ctx, c.http, loginPath, "", econtact.LoginRequest{Username: username, Password: password}, &pair)
	if err != nil {
		return err
	}
	if err := c.vault.Set(ctx, Credentials{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}); err != nil {
		c.logger.Warn("persist credentials failed", zap.Error(err))
	}
	return nil
}

// Logout revokes the session server side and clears local credentials.
// Local state is cleared even when the server cannot be reached.
func (c *Client) Logout(ctx context.Context) error {
	creds := c.vault.Get()
	var body any
	if creds.RefreshToken != "" {
		body = econtact.LogoutRequest{RefreshToken: creds.RefreshToken}
	}
	err := c.postJSON(ctx, c.http, logoutPath, creds.AccessToken, body, nil)
	if clearErr := c.vault.Clear(ctx); clearErr != nil {
		c.logger.Warn("clear credentials failed", zap.Error(clearErr))
	}
	return err
}

// Bootstrap restores a session at process start. A stored refresh token is
// exchanged once; on any failure every credential is cleared. Failures are
// logged, not returned.
func (c *Client) Bootstrap(ctx context.Context) State {
	token, err := c.vault.Restore(ctx)
	if err != nil {
		c.logger.Warn("restore credentials failed", zap.Error(err))
		c.clear(ctx)
		return StateUnauthenticated
	}
	if token == "" {
		return StateUnauthenticated
	}

	if _, _, err := c.coord.Refresh(ctx, c.refresh); err != nil {
		c.logger.Info("session restore failed", zap.Error(err))
		return StateUnauthenticated
	}
	return StateAuthenticated
}

// NewRequest builds a request for path relative to the base URL. A non-nil
// body is encoded as JSON.
func (c *Client) NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Do sends req through the refresh transport. The response is returned
// whatever its status.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	return resp, classifyTimeout(err)
}

// GetJSON fetches path and decodes a 2xx body into out. Other statuses are
// returned as *APIError.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	req, err := c.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

// Me returns the identity bound to the current access token.
func (c *Client) Me(ctx context.Context) (econtact.Identity, error) {
	var id econtact.Identity
	err := c.GetJSON(ctx, "/me", &id)
	return id, err
}

// refresh is the RefreshFunc handed to the coordinator.
func (c *Client) refresh(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
	defer cancel()

	current := c.vault.Get().RefreshToken
	if current == "" {
		return "", c.expire(ctx, econtact.ErrRefreshTokenMissing)
	}

	var pair econtact.TokenPair
	err := c.postJSON(ctx, c.bare, refreshPath, "", econtact.RefreshRequest{RefreshToken: current}, &pair)
	if err != nil {
		return "", c.expire(ctx, classifyTimeout(err))
	}
	if pair.AccessToken == "" {
		return "", c.expire(ctx, fmt.Errorf("%w: response carried no access token", econtact.ErrRefreshTokenInvalid))
	}

	// The refresh token is optional in the response; without one the
	// current token stays in use.
	next := Credentials{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
	if next.RefreshToken == "" {
		next.RefreshToken = current
	}
	if err := c.vault.Set(ctx, next); err != nil {
		c.logger.Warn("persist refreshed credentials failed", zap.Error(err))
	}
	return pair.AccessToken, nil
}

func (c *Client) expire(ctx context.Context, cause error) error {
	c.clear(ctx)
	if c.onExpired != nil {
		c.onExpired(cause)
	}
	return cause
}

func (c *Client) clear(ctx context.Context) {
	if err := c.vault.Clear(ctx); err != nil {
		c.logger.Warn("clear credentials failed", zap.Error(err))
	}
}

func (c *Client) postJSON(ctx context.Context, hc *http.Client, path, bearer string, in, out any) error {
	req, err := c.NewRequest(ctx, http.MethodPost, path, in)
	if err != nil {
		return err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return classifyTimeout(err)
	}
	return decodeResponse(resp, out)
}

func (c *Client) exempt(req *http.Request) bool {
	switch strings.TrimPrefix(req.URL.Path, c.baseURL.Path) {
	case loginPath, refreshPath, logoutPath:
		return true
	}
	return false
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL.String() + path
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		var body econtact.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
			apiErr.Code = body.Error
			apiErr.Message = body.Message
		}
		if apiErr.Code == "" {
			apiErr.Code = econtact.CodeInternal
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
