// Package redisx constructs the Redis client shared by the denylist and
// login throttling.
package redisx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// Config describes the Redis connection. With InMemory set an embedded
// server is started and Addr is ignored; revocations then live only as
// long as the process.
type Config struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	InMemory    bool          `mapstructure:"in_memory"`
}

func (c Config) options() *redis.Options {
	return &redis.Options{
		Addr:        c.Addr,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: c.DialTimeout,
		ReadTimeout: c.ReadTimeout,
	}
}

var (
	inMemoryMu     sync.Mutex
	inMemoryServer *miniredis.Miniredis
)

// NewClient returns a client for cfg. It does not contact the server; use
// Ping for a readiness check.
func NewClient(cfg Config) (*redis.Client, error) {
	opts := cfg.options()
	if cfg.InMemory {
		addr, err := ensureInMemoryAddr()
		if err != nil {
			return nil, err
		}
		opts.Addr = addr
	}
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis addr required")
	}
	return redis.NewClient(opts), nil
}

// Ping reports whether the server answers within ctx.
func Ping(ctx context.Context, client redis.UniversalClient) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func ensureInMemoryAddr() (string, error) {
	inMemoryMu.Lock()
	defer inMemoryMu.Unlock()

	if inMemoryServer != nil {
		return inMemoryServer.Addr(), nil
	}
	server, err := miniredis.Run()
	if err != nil {
		return "", err
	}
	inMemoryServer = server
	return server.Addr(), nil
}
