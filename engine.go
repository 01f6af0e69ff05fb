package econtact

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/internal/flows"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/internal/rate"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/jwt"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/password"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/revocation"
)

// Engine owns the server side of the token lifecycle: issuing pairs at
// login, rotating them at refresh, validating access tokens and revoking
// them at logout. It is safe for concurrent use.
type Engine struct {
	config      Config
	issuer      *jwt.Issuer
	revocations *revocation.Store
	limiter     *rate.Limiter
	passwords   *password.Argon2
	users       UserProvider
	audit       *auditQueue
	metrics     *Metrics
	logger      *zap.Logger
	flows       flows.Deps
	now         func() time.Time
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports events discarded because the audit buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// RevocationPolicy reports how lookups behave while Redis is unreachable.
func (e *Engine) RevocationPolicy() revocation.Policy {
	return e.revocations.Policy()
}

// HashPassword hashes a new account password with the engine's argon2id
// parameters.
func (e *Engine) HashPassword(plain string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	return e.passwords.Hash(plain)
}

func (e *Engine) findUserByUsername(ctx context.Context, username string) (flows.Account, error) {
	rec, err := e.users.GetUserByUsername(ctx, username)
	if err != nil {
		return flows.Account{}, err
	}
	return toAccount(rec), nil
}

func (e *Engine) findUserByID(ctx context.Context, userID string) (flows.Account, error) {
	rec, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return flows.Account{}, err
	}
	return toAccount(rec), nil
}

func toAccount(rec UserRecord) flows.Account {
	return flows.Account{
		UserID:       rec.UserID,
		Username:     rec.Username,
		PasswordHash: rec.PasswordHash,
		Role:         string(rec.Role),
		Active:       rec.Active,
	}
}

func toTokenPair(p jwt.Pair) TokenPair {
	return TokenPair{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}
