package client

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	econtact "github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/httpapi"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/users"
)

// liveServer runs the real HTTP API over an in-memory Redis and directory.
func liveServer(t *testing.T) (*httptest.Server, *econtact.Engine) {
	t.Helper()
	cfg := econtact.DefaultConfig()
	cfg.JWT.AccessKey = "client-access-key-00000000000000000000"
	cfg.JWT.RefreshKey = "client-refresh-key-0000000000000000000"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	dir := users.NewMemoryDirectory()
	engine, err := econtact.New().WithConfig(cfg).WithRedis(rdb).WithUserProvider(dir).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	hash, err := engine.HashPassword("correct-horse-battery")
	require.NoError(t, err)
	_, err = dir.CreateUser(context.Background(), users.NewUser{Username: "parent1", PasswordHash: hash, Role: econtact.RoleParent})
	require.NoError(t, err)

	srv := httptest.NewServer(httpapi.NewServer(engine, httpapi.Options{}).Handler())
	t.Cleanup(srv.Close)
	return srv, engine
}

func TestLiveSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	srv, engine := liveServer(t)

	var expired int
	c, err := New(srv.URL, WithSessionExpiredHook(func(error) { expired++ }))
	require.NoError(t, err)

	require.NoError(t, c.Login(ctx, "parent1", "correct-horse-battery"))
	id, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, econtact.RoleParent, id.Role)

	// A revoked access token is renewed transparently.
	before := c.Credentials().Get()
	require.NoError(t, engine.Revoke(ctx, before.AccessToken))
	_, err = c.Me(ctx)
	require.NoError(t, err)
	after := c.Credentials().Get()
	assert.NotEqual(t, before.AccessToken, after.AccessToken)
	assert.NotEqual(t, before.RefreshToken, after.RefreshToken)
	assert.EqualValues(t, 1, c.Coordinator().Cycles())

	// The consumed refresh token cannot be replayed.
	_, err = engine.Refresh(ctx, before.RefreshToken)
	assert.ErrorIs(t, err, econtact.ErrRefreshTokenInvalid)

	require.NoError(t, c.Logout(ctx))
	_, err = engine.Validate(ctx, after.AccessToken)
	assert.ErrorIs(t, err, econtact.ErrTokenRevoked)

	_, err = c.Me(ctx)
	assert.ErrorIs(t, err, econtact.ErrAuthRequired)
	assert.Equal(t, 1, expired)
}

func TestLiveBootstrapFromFile(t *testing.T) {
	ctx := context.Background()
	srv, _ := liveServer(t)
	path := filepath.Join(t.TempDir(), "credentials")

	keeper, err := NewFileKeeper(path, "device passphrase")
	require.NoError(t, err)
	first, err := New(srv.URL, WithKeeper(keeper))
	require.NoError(t, err)
	require.NoError(t, first.Login(ctx, "parent1", "correct-horse-battery"))

	reopened, err := NewFileKeeper(path, "device passphrase")
	require.NoError(t, err)
	second, err := New(srv.URL, WithKeeper(reopened))
	require.NoError(t, err)
	require.Equal(t, StateAuthenticated, second.Bootstrap(ctx))

	_, err = second.Me(ctx)
	require.NoError(t, err)

	// The first process still holds the refresh token the second one consumed.
	third, err := New(srv.URL)
	require.NoError(t, err)
	require.NoError(t, third.Credentials().Set(ctx, Credentials{RefreshToken: first.Credentials().Get().RefreshToken}))
	_, _, err = third.Coordinator().Refresh(ctx, third.refresh)
	assert.ErrorIs(t, err, econtact.ErrRefreshTokenInvalid)
}
