package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultPrefix namespaces revocation keys inside a shared Redis.
const DefaultPrefix = "ec:revoked:"

// ErrUnavailable is returned by lookups under FailClosed when Redis cannot
// answer.
var ErrUnavailable = errors.New("revocation store unavailable")

// Policy selects lookup behavior during a store outage.
type Policy int

const (
	// FailOpen treats unreachable-store lookups as "not revoked".
	FailOpen Policy = iota
	// FailClosed reports unreachable-store lookups as ErrUnavailable.
	FailClosed
)

func (p Policy) String() string {
	if p == FailClosed {
		return "fail_closed"
	}
	return "fail_open"
}

// ParsePolicy accepts "fail_open" or "fail_closed". Empty means FailOpen.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "fail_open", "open":
		return FailOpen, nil
	case "fail_closed", "closed":
		return FailClosed, nil
	default:
		return FailOpen, fmt.Errorf("unknown revocation policy %q", s)
	}
}

// Options configures a Store.
type Options struct {
	Prefix string
	Policy Policy
	Logger *zap.Logger
	// OnFailOpen is called whenever a lookup error is swallowed.
	OnFailOpen func()
	// OnAddFailure is called whenever an insertion error is swallowed.
	OnAddFailure func()
}

// Store is a Redis-backed token denylist. It is safe for concurrent use.
type Store struct {
	redis        redis.UniversalClient
	prefix       string
	policy       Policy
	logger       *zap.Logger
	onFailOpen   func()
	onAddFailure func()
	now          func() time.Time
}

// New creates a Store on top of client.
func New(client redis.UniversalClient, opts Options) *Store {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Store{
		redis:        client,
		prefix:       opts.Prefix,
		policy:       opts.Policy,
		logger:       opts.Logger.Named("revocation"),
		onFailOpen:   opts.OnFailOpen,
		onAddFailure: opts.OnAddFailure,
		now:          time.Now,
	}
}

// Policy reports the configured outage policy.
func (s *Store) Policy() Policy { return s.policy }

// Add denylists token until exp. Tokens that are already expired are not
// stored. Redis errors are logged and swallowed so logout always completes.
func (s *Store) Add(ctx context.Context, token string, exp time.Time) {
	ttl := exp.Sub(s.now())
	if token == "" || ttl <= 0 {
		return
	}
	if err := s.redis.Set(ctx, s.key(token), "1", ttl).Err(); err != nil {
		s.logger.Warn("revocation insert failed",
			zap.String("key", s.key(token)),
			zap.Duration("ttl", ttl),
			zap.Error(err),
		)
		if s.onAddFailure != nil {
			s.onAddFailure()
		}
	}
}

// IsRevoked reports whether token is on the denylist.
func (s *Store) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(token)).Result()
	if err != nil {
		return false, s.lookupFailure("lookup", err)
	}
	return n > 0, nil
}

// Remove lifts a revocation. Removing an absent entry is not an error.
func (s *Store) Remove(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Consume atomically denylists token and reports whether this call was the
// first to do so. It backs single-use refresh tokens: of several concurrent
// exchanges of the same token exactly one observes true.
//
// An already expired token is reported as not consumable.
func (s *Store) Consume(ctx context.Context, token string, exp time.Time) (bool, error) {
	ttl := exp.Sub(s.now())
	if token == "" || ttl <= 0 {
		return false, nil
	}
	ok, err := s.redis.SetNX(ctx, s.key(token), "1", ttl).Result()
	if err != nil {
		if ferr := s.lookupFailure("consume", err); ferr != nil {
			return false, ferr
		}
		return true, nil
	}
	return ok, nil
}

// lookupFailure applies the outage policy. It returns nil under FailOpen.
func (s *Store) lookupFailure(op string, err error) error {
	if s.policy == FailClosed {
		s.logger.Error("revocation store unavailable", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.logger.Warn("revocation store unavailable, failing open", zap.String("op", op), zap.Error(err))
	if s.onFailOpen != nil {
		s.onFailOpen()
	}
	return nil
}

func (s *Store) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return s.prefix + hex.EncodeToString(sum[:])
}
