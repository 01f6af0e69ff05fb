package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	econtact "github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001"
)

const configTemplate = `
log:
  level: error
redis:
  in_memory: true
database:
  dialect: sqlite
  datasource: %s
auth:
  jwt:
    access_key: cli-access-key-000000000000000000000000
    refresh_key: cli-refresh-key-00000000000000000000000
  password:
    memory: 8192
    time: 1
    parallelism: 1
  audit:
    enabled: false
client:
  base_url: %s
  credentials_file: %s
  passphrase: cli test passphrase
`

type cliEnv struct {
	t    *testing.T
	dir  string
	path string
}

func newCLIEnv(t *testing.T) *cliEnv {
	dir := t.TempDir()
	env := &cliEnv{t: t, dir: dir, path: filepath.Join(dir, "econtact.yaml")}
	env.writeConfig("http://127.0.0.1:1")
	return env
}

func (e *cliEnv) writeConfig(baseURL string) {
	body := fmt.Sprintf(configTemplate,
		filepath.Join(e.dir, "users.db"),
		baseURL,
		filepath.Join(e.dir, "credentials"),
	)
	require.NoError(e.t, os.WriteFile(e.path, []byte(body), 0o600))
}

func (e *cliEnv) run(args ...string) (string, error) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", e.path}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// serve starts the API in-process on the configured backend and points the
// client section at it.
func (e *cliEnv) serve() {
	rt := &runtime{configPath: e.path}
	require.NoError(e.t, rt.prepare(nil, nil))
	b, err := rt.openBackend(context.Background())
	require.NoError(e.t, err)

	serve := NewServeCommand(rt)
	srv, closeMetrics, err := serve.newHTTPServer(b)
	require.NoError(e.t, err)
	serve.logSecurityReport(b)
	ts := httptest.NewServer(srv.Handler)
	e.t.Cleanup(func() {
		ts.Close()
		assert.NoError(e.t, closeMetrics())
		assert.NoError(e.t, b.Close())
	})
	e.writeConfig(ts.URL)
}

func TestUserCommands(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("user", "add", "-u", "Teacher1", "-p", "correct-horse-battery", "-r", "teacher")
	require.NoError(t, err)
	assert.Contains(t, out, "created teacher1")

	_, err = env.run("user", "add", "-u", "teacher1", "-p", "correct-horse-battery")
	assert.Error(t, err, "duplicate username")

	_, err = env.run("user", "add", "-u", "x", "-p", "correct-horse-battery", "-r", "janitor")
	assert.Error(t, err)

	out, err = env.run("user", "disable", "teacher1")
	require.NoError(t, err)
	assert.Contains(t, out, "teacher1 disabled")

	_, err = env.run("user", "enable", "nobody")
	assert.Error(t, err)
}

func TestClientSessionCommands(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run("user", "add", "-u", "parent1", "-p", "correct-horse-battery", "-r", "parent")
	require.NoError(t, err)
	env.serve()

	out, err := env.run("status")
	require.NoError(t, err)
	assert.Equal(t, "unauthenticated\n", out)

	_, err = env.run("login", "-u", "parent1", "-p", "wrong-password")
	assert.ErrorIs(t, err, econtact.ErrInvalidCredentials)

	out, err = env.run("login", "-u", "parent1", "-p", "correct-horse-battery")
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as parent1")

	raw, err := os.ReadFile(filepath.Join(env.dir, "credentials"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "eyJ", "refresh token is stored encrypted")

	// Each invocation restores the session through one refresh.
	out, err = env.run("status")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "authenticated as "), out)
	assert.Contains(t, out, "(parent)")

	out, err = env.run("get", "/me")
	require.NoError(t, err)
	assert.Contains(t, out, "200 OK")
	assert.Contains(t, out, `"role":"parent"`)

	out, err = env.run("logout")
	require.NoError(t, err)
	assert.Contains(t, out, "logged out")

	out, err = env.run("status")
	require.NoError(t, err)
	assert.Equal(t, "unauthenticated\n", out)
}

func TestTokenCommands(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run("user", "add", "-u", "admin1", "-p", "correct-horse-battery", "-r", "admin")
	require.NoError(t, err)

	rt := &runtime{configPath: env.path}
	require.NoError(t, rt.prepare(nil, nil))
	b, err := rt.openBackend(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	pair, err := b.engine.Login(context.Background(), "admin1", "correct-horse-battery")
	require.NoError(t, err)

	out, err := env.run("token", "revoke", pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "revoked\n", out)
	_, err = b.engine.Validate(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, econtact.ErrTokenRevoked)

	_, err = env.run("token", "unrevoke", pair.AccessToken)
	require.NoError(t, err)
	_, err = b.engine.Validate(context.Background(), pair.AccessToken)
	assert.NoError(t, err)

	_, err = env.run("token", "revoke", "not-a-token")
	assert.ErrorIs(t, err, econtact.ErrTokenInvalidOrExpired)
}

func TestHealthzThroughServeWiring(t *testing.T) {
	env := newCLIEnv(t)
	env.serve()

	rt := &runtime{configPath: env.path}
	require.NoError(t, rt.prepare(nil, nil))
	resp, err := http.Get(rt.cfg.Client.BaseURL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	metrics, err := http.Get(rt.cfg.Client.BaseURL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
}

func TestLoadtestCommand(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run("loadtest", "--sessions", "3", "--concurrency", "2", "--ops", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "validate: ops=20 failures=0")
	assert.Contains(t, out, "refresh: ops=20 failures=0")
}

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(1), percentile(samples, 0))
	assert.Equal(t, time.Duration(5), percentile(samples, 50))
	assert.Equal(t, time.Duration(10), percentile(samples, 100))
	assert.Zero(t, percentile(nil, 50))
}
