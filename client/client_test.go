package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	econtact "github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001"
)

// fakeAPI accepts exactly one access token at a time on /data.
type fakeAPI struct {
	t *testing.T

	mu            sync.Mutex
	valid         string
	next          econtact.TokenPair
	refreshStatus int
	release       chan struct{}
	onData        func(token string)
	lastLogout    http.Header
	lastLogoutRT  string

	refreshCalls atomic.Int32
	dataCalls    atomic.Int32

	srv *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	f := &fakeAPI{
		t:    t,
		next: econtact.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", f.login)
	mux.HandleFunc("POST /refresh-token", f.refresh)
	mux.HandleFunc("POST /logout", f.logout)
	mux.HandleFunc("/data", f.data)
	mux.HandleFunc("GET /always-401", func(w http.ResponseWriter, r *http.Request) {
		f.dataCalls.Add(1)
		writeError(w, http.StatusUnauthorized, econtact.CodeTokenInvalidOrExpired)
	})
	mux.HandleFunc("GET /slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) setValid(token string) {
	f.mu.Lock()
	f.valid = token
	f.mu.Unlock()
}

func (f *fakeAPI) rejectRefresh() {
	f.mu.Lock()
	f.refreshStatus = http.StatusUnauthorized
	f.mu.Unlock()
}

func (f *fakeAPI) setNext(pair econtact.TokenPair) {
	f.mu.Lock()
	f.next = pair
	f.mu.Unlock()
}

func (f *fakeAPI) setOnData(fn func(token string)) {
	f.mu.Lock()
	f.onData = fn
	f.mu.Unlock()
}

func (f *fakeAPI) gate() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.release = make(chan struct{})
	return f.release
}

func (f *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var req econtact.LoginRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Password != "pw" {
		writeError(w, http.StatusUnauthorized, econtact.CodeInvalidCredentials)
		return
	}
	pair := econtact.TokenPair{AccessToken: "access-0", RefreshToken: "refresh-0"}
	f.setValid(pair.AccessToken)
	writeBody(w, http.StatusOK, pair)
}

func (f *fakeAPI) refresh(w http.ResponseWriter, r *http.Request) {
	f.refreshCalls.Add(1)
	f.mu.Lock()
	release := f.release
	f.mu.Unlock()
	if release != nil {
		<-release
	}

	var req econtact.RefreshRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshStatus != 0 || req.RefreshToken == "" {
		writeError(w, http.StatusUnauthorized, econtact.CodeRefreshTokenInvalid)
		return
	}
	f.valid = f.next.AccessToken
	writeBody(w, http.StatusOK, f.next)
}

func (f *fakeAPI) logout(w http.ResponseWriter, r *http.Request) {
	var req econtact.LogoutRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	f.lastLogout = r.Header.Clone()
	f.lastLogoutRT = req.RefreshToken
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeAPI) data(w http.ResponseWriter, r *http.Request) {
	f.dataCalls.Add(1)
	token := ""
	if h := r.Header.Get("Authorization"); len(h) > len("Bearer ") {
		token = h[len("Bearer "):]
	}
	f.mu.Lock()
	hook := f.onData
	f.mu.Unlock()
	if hook != nil {
		hook(token)
	}

	f.mu.Lock()
	ok := token != "" && token == f.valid
	f.mu.Unlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, econtact.CodeTokenInvalidOrExpired)
		return
	}
	body, _ := io.ReadAll(r.Body)
	writeBody(w, http.StatusOK, map[string]string{"token": token, "echo": string(body)})
}

func writeError(w http.ResponseWriter, status int, code econtact.ErrorCode) {
	writeBody(w, status, econtact.ErrorResponse{Error: code, Message: string(code)})
}

func writeBody(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, f *fakeAPI, opts ...Option) *Client {
	t.Helper()
	c, err := New(f.srv.URL, opts...)
	require.NoError(t, err)
	return c
}

// seed stores a pair the server no longer accepts.
func seed(t *testing.T, c *Client) {
	t.Helper()
	require.NoError(t, c.Credentials().Set(context.Background(), Credentials{AccessToken: "access-0", RefreshToken: "refresh-0"}))
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f)
	seed(t, c)
	release := f.gate()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	tokens := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var out map[string]string
			errs[i] = c.GetJSON(context.Background(), "/data", &out)
			tokens[i] = out["token"]
		}(i)
	}

	require.Eventually(t, func() bool {
		return f.refreshCalls.Load() == 1 && c.Coordinator().pending() == n-1
	}, 5*time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.NoError(t, errs[i])
		assert.Equal(t, "access-1", tokens[i])
	}
	assert.EqualValues(t, 1, f.refreshCalls.Load())
	assert.EqualValues(t, 1, c.Coordinator().Cycles())
	assert.False(t, c.Coordinator().Refreshing())
	assert.Equal(t, Credentials{AccessToken: "access-1", RefreshToken: "refresh-1"}, c.Credentials().Get())
}

func TestRefreshFailureRejectsEveryWaiter(t *testing.T) {
	f := newFakeAPI(t)
	f.rejectRefresh()

	var expired atomic.Int32
	keeper := NewMemoryKeeper()
	c := newTestClient(t, f,
		WithKeeper(keeper),
		WithSessionExpiredHook(func(err error) {
			expired.Add(1)
			assert.ErrorIs(t, err, econtact.ErrRefreshTokenInvalid)
		}),
	)
	seed(t, c)
	release := f.gate()

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.GetJSON(context.Background(), "/data", nil)
		}(i)
	}
	require.Eventually(t, func() bool {
		return f.refreshCalls.Load() == 1 && c.Coordinator().pending() == n-1
	}, 5*time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	var original, rejected int
	for _, err := range errs {
		switch {
		case errors.Is(err, econtact.ErrTokenInvalidOrExpired):
			original++
		case errors.Is(err, econtact.ErrRefreshTokenInvalid):
			rejected++
		default:
			t.Errorf("unexpected error %v", err)
		}
	}
	assert.Equal(t, 1, original, "initiator sees its own 401")
	assert.Equal(t, n-1, rejected)
	assert.EqualValues(t, 1, f.refreshCalls.Load())
	assert.EqualValues(t, 1, expired.Load())
	assert.True(t, c.Credentials().Get().Empty())
	assert.Equal(t, StateUnauthenticated, c.State())

	stored, err := keeper.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestSessionEndpointsBypassRefresh(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f)

	err := c.Login(context.Background(), "teacher1", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.ErrorIs(t, err, econtact.ErrInvalidCredentials)

	f.rejectRefresh()
	req, err := c.NewRequest(context.Background(), http.MethodPost, "/refresh-token", econtact.RefreshRequest{RefreshToken: "x"})
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.EqualValues(t, 1, f.refreshCalls.Load(), "only the explicit call")
	assert.Zero(t, c.Coordinator().Cycles())
}

func TestRequestRetriedAtMostOnce(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f)
	seed(t, c)

	err := c.GetJSON(context.Background(), "/always-401", nil)
	assert.ErrorIs(t, err, econtact.ErrTokenInvalidOrExpired)
	assert.EqualValues(t, 2, f.dataCalls.Load())
	assert.EqualValues(t, 1, f.refreshCalls.Load())
	assert.Equal(t, "access-1", c.Credentials().Get().AccessToken)
}

func TestRetryReplaysRequestBody(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f)
	seed(t, c)

	req, err := c.NewRequest(context.Background(), http.MethodPost, "/data", map[string]string{"note": "field trip"})
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, decodeResponse(resp, &out))
	assert.JSONEq(t, `{"note":"field trip"}`, out["echo"])
	assert.EqualValues(t, 1, f.refreshCalls.Load())
}

func TestStaleUnauthorizedRetriesWithoutRefresh(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f)
	seed(t, c)
	f.setValid("access-9")

	// Simulate a refresh finishing elsewhere while this request is in flight.
	f.setOnData(func(token string) {
		if token == "access-0" {
			_ = c.Credentials().Set(context.Background(), Credentials{AccessToken: "access-9", RefreshToken: "refresh-9"})
		}
	})

	var out map[string]string
	require.NoError(t, c.GetJSON(context.Background(), "/data", &out))
	assert.Equal(t, "access-9", out["token"])
	assert.Zero(t, f.refreshCalls.Load())
}

func TestRefreshWithoutNewRefreshTokenKeepsCurrent(t *testing.T) {
	f := newFakeAPI(t)
	f.setNext(econtact.TokenPair{AccessToken: "access-1"})
	keeper := NewMemoryKeeper()
	c := newTestClient(t, f, WithKeeper(keeper))
	seed(t, c)

	var out map[string]string
	require.NoError(t, c.GetJSON(context.Background(), "/data", &out))
	assert.Equal(t, "access-1", out["token"])
	assert.Equal(t, Credentials{AccessToken: "access-1", RefreshToken: "refresh-0"}, c.Credentials().Get())

	stored, err := keeper.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refresh-0", stored)
}

// pausingStore hands out a snapshot taken before it blocks, so the caller
// acts on credentials that were current only when it looked.
type pausingStore struct {
	CredentialStore

	calls   atomic.Int32
	pauseAt int32
	paused  chan struct{}
	resume  chan struct{}
}

func (s *pausingStore) Get() Credentials {
	creds := s.CredentialStore.Get()
	if s.calls.Add(1) == s.pauseAt {
		close(s.paused)
		<-s.resume
	}
	return creds
}

func TestLateUnauthorizedJoinsFinishedCycle(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f)
	seed(t, c)
	release := f.gate()

	// The first request starts a refresh and holds it open on the server.
	first := make(chan error, 1)
	go func() {
		first <- c.GetJSON(context.Background(), "/data", nil)
	}()
	require.Eventually(t, func() bool {
		return f.refreshCalls.Load() == 1 && c.Coordinator().Refreshing()
	}, 5*time.Second, 5*time.Millisecond)

	// The second request reads its credentials after its own 401, but only
	// reaches the coordinator once the first cycle is over.
	store := &pausingStore{
		CredentialStore: c.Credentials(),
		pauseAt:         2,
		paused:          make(chan struct{}),
		resume:          make(chan struct{}),
	}
	hc := &http.Client{Transport: &Transport{
		Credentials: store,
		Coordinator: c.Coordinator(),
		Refresh:     c.refresh,
		Exempt:      c.exempt,
	}}
	type result struct {
		status int
		err    error
	}
	second := make(chan result, 1)
	go func() {
		resp, err := hc.Get(f.srv.URL + "/data")
		if err != nil {
			second <- result{err: err}
			return
		}
		_ = resp.Body.Close()
		second <- result{status: resp.StatusCode}
	}()

	<-store.paused
	close(release)
	require.NoError(t, <-first)
	close(store.resume)

	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusOK, res.status)
	assert.EqualValues(t, 1, f.refreshCalls.Load())
	assert.EqualValues(t, 1, c.Coordinator().Cycles())
	assert.EqualValues(t, 1, c.Coordinator().Generation())
}

func TestTimeoutNeverStartsRefresh(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f, WithRequestTimeout(50*time.Millisecond))
	seed(t, c)

	err := c.GetJSON(context.Background(), "/slow", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, econtact.ErrUpstreamTimeout)
	assert.Zero(t, f.refreshCalls.Load())
	assert.Equal(t, "access-0", c.Credentials().Get().AccessToken)
}

func TestLoginAndLogout(t *testing.T) {
	f := newFakeAPI(t)
	keeper := NewMemoryKeeper()
	c := newTestClient(t, f, WithKeeper(keeper))

	require.NoError(t, c.Login(context.Background(), "teacher1", "pw"))
	assert.Equal(t, StateAuthenticated, c.State())
	require.NoError(t, c.GetJSON(context.Background(), "/data", nil))

	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, StateUnauthenticated, c.State())
	assert.True(t, c.Credentials().Get().Empty())

	f.mu.Lock()
	assert.Equal(t, "Bearer access-0", f.lastLogout.Get("Authorization"))
	assert.Equal(t, "refresh-0", f.lastLogoutRT)
	f.mu.Unlock()

	stored, err := keeper.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()

	t.Run("restores session", func(t *testing.T) {
		f := newFakeAPI(t)
		keeper := NewMemoryKeeper()
		require.NoError(t, keeper.Save(ctx, "refresh-0"))
		c := newTestClient(t, f, WithKeeper(keeper))

		assert.Equal(t, StateAuthenticated, c.Bootstrap(ctx))
		assert.Equal(t, Credentials{AccessToken: "access-1", RefreshToken: "refresh-1"}, c.Credentials().Get())
		stored, _ := keeper.Load(ctx)
		assert.Equal(t, "refresh-1", stored)
		assert.EqualValues(t, 1, f.refreshCalls.Load())
	})

	t.Run("clears rejected token", func(t *testing.T) {
		f := newFakeAPI(t)
		f.rejectRefresh()
		keeper := NewMemoryKeeper()
		require.NoError(t, keeper.Save(ctx, "refresh-0"))
		c := newTestClient(t, f, WithKeeper(keeper))

		assert.Equal(t, StateUnauthenticated, c.Bootstrap(ctx))
		assert.True(t, c.Credentials().Get().Empty())
		stored, _ := keeper.Load(ctx)
		assert.Empty(t, stored)
	})

	t.Run("nothing stored", func(t *testing.T) {
		f := newFakeAPI(t)
		c := newTestClient(t, f)

		assert.Equal(t, StateUnauthenticated, c.Bootstrap(ctx))
		assert.Zero(t, f.refreshCalls.Load())
	})
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)
	_, err = New("://nope")
	assert.Error(t, err)
}

func TestAPIErrorUnwrap(t *testing.T) {
	err := error(&APIError{Status: 401, Code: econtact.CodeTokenRevoked, Message: "token revoked"})
	assert.ErrorIs(t, err, econtact.ErrTokenRevoked)
	assert.Equal(t, "401 TokenRevoked: token revoked", err.Error())

	unknown := &APIError{Status: 500, Code: econtact.CodeInternal}
	assert.Nil(t, unknown.Unwrap())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, Classify(&http.Response{StatusCode: 204}, nil))
	assert.Equal(t, OutcomeAuthExpired, Classify(&http.Response{StatusCode: 401}, nil))
	assert.Equal(t, OutcomeFailure, Classify(&http.Response{StatusCode: 403}, nil))
	assert.Equal(t, OutcomeFailure, Classify(nil, errors.New("dial")))
}

func TestCoordinatorWaiterCancellation(t *testing.T) {
	coord := NewCoordinator()
	started := make(chan struct{})
	finish := make(chan struct{})

	go func() {
		_, initiator, _ := coord.Refresh(context.Background(), func(context.Context) (string, error) {
			close(started)
			<-finish
			return "tok", nil
		})
		assert.True(t, initiator)
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, initiator, err := coord.Refresh(ctx, func(context.Context) (string, error) {
		t.Fatal("waiter must not run refresh")
		return "", nil
	})
	assert.False(t, initiator)
	assert.ErrorIs(t, err, context.Canceled)

	close(finish)
	require.Eventually(t, func() bool { return !coord.Refreshing() }, time.Second, time.Millisecond)

	token, initiator, err := coord.Refresh(context.Background(), func(context.Context) (string, error) {
		return "next", nil
	})
	require.NoError(t, err)
	assert.True(t, initiator)
	assert.Equal(t, "next", token)
	assert.EqualValues(t, 2, coord.Cycles())
}

func TestCoordinatorSettledGenerationSkipsCycle(t *testing.T) {
	coord := NewCoordinator()
	seen := coord.Generation()

	failure := errors.New("rejected")
	_, _, err := coord.Refresh(context.Background(), func(context.Context) (string, error) {
		return "", failure
	})
	require.ErrorIs(t, err, failure)

	_, initiator, err := coord.RefreshAfter(context.Background(), seen, func(context.Context) (string, error) {
		t.Fatal("a finished cycle must not be repeated")
		return "", nil
	})
	assert.False(t, initiator)
	assert.ErrorIs(t, err, failure)

	token, initiator, err := coord.RefreshAfter(context.Background(), coord.Generation(), func(context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.True(t, initiator)
	assert.Equal(t, "fresh", token)
	assert.EqualValues(t, 2, coord.Generation())
	assert.EqualValues(t, 2, coord.Cycles())
}
