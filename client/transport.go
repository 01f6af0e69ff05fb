package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"go.uber.org/zap"

	econtact "github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001"
)

// Outcome classifies a round trip for the refresh protocol.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomeAuthExpired is a 401 from the server.
	OutcomeAuthExpired
	// OutcomeFailure is any other error status or a transport error.
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAuthExpired:
		return "auth_expired"
	default:
		return "failure"
	}
}

// Classify maps a round trip result onto an Outcome.
func Classify(resp *http.Response, err error) Outcome {
	switch {
	case err != nil || resp == nil:
		return OutcomeFailure
	case resp.StatusCode == http.StatusUnauthorized:
		return OutcomeAuthExpired
	case resp.StatusCode >= http.StatusBadRequest:
		return OutcomeFailure
	default:
		return OutcomeSuccess
	}
}

type retriedKey struct{}

func withRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

func isRetried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}

// Transport attaches the current access token to outgoing requests and
// runs the refresh protocol on 401.
type Transport struct {
	Base        http.RoundTripper
	Credentials CredentialStore
	Coordinator *Coordinator
	Refresh     RefreshFunc
	// Exempt reports whether a request belongs to the session endpoints
	// themselves. Such requests pass through untouched.
	Exempt func(*http.Request) bool
	Logger *zap.Logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Exempt != nil && t.Exempt(req) {
		resp, err := t.base().RoundTrip(req)
		return resp, classifyTimeout(err)
	}

	// The generation is read before the token so that a cycle finishing
	// in between is never mistaken for one still to come.
	seen := t.Coordinator.Generation()
	used := t.Credentials.Get().AccessToken
	resp, err := t.send(req, used)
	if Classify(resp, err) != OutcomeAuthExpired {
		return resp, err
	}
	if isRetried(req.Context()) || !replayable(req) {
		return resp, nil
	}

	// Another request already rotated the pair after this one was sent.
	if current := t.Credentials.Get().AccessToken; current != "" && current != used {
		discard(resp)
		return t.sendRetry(req.Clone(withRetried(req.Context())), current)
	}

	token, initiator, refreshErr := t.Coordinator.RefreshAfter(req.Context(), seen, t.Refresh)
	if refreshErr != nil {
		t.logger().Debug("refresh failed",
			zap.Bool("initiator", initiator),
			zap.String("path", req.URL.Path),
			zap.Error(refreshErr),
		)
		if initiator {
			return resp, nil
		}
		discard(resp)
		return nil, refreshErr
	}

	discard(resp)
	retry := req.Clone(withRetried(req.Context()))
	return t.sendRetry(retry, token)
}

func (t *Transport) sendRetry(req *http.Request, token string) (*http.Response, error) {
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		req.Body = body
	}
	return t.send(req, token)
}

// send clones req with token as bearer. An empty token sends no
// Authorization header.
func (t *Transport) send(req *http.Request, token string) (*http.Response, error) {
	out := req.Clone(req.Context())
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	} else {
		out.Header.Del("Authorization")
	}
	resp, err := t.base().RoundTrip(out)
	return resp, classifyTimeout(err)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) logger() *zap.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return zap.NewNop()
}

// replayable reports whether req can be sent a second time.
func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// classifyTimeout tags deadline and network timeouts with
// econtact.ErrUpstreamTimeout.
func classifyTimeout(err error) error {
	if err == nil || errors.Is(err, econtact.ErrUpstreamTimeout) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", econtact.ErrUpstreamTimeout, err)
	}
	return err
}
