package econtact

import (
	"context"
	"fmt"

	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/internal/flows"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/jwt"
)

// Logout denylists the given access token and, if non-empty, the refresh
// token, each for its remaining lifetime. It always succeeds: undecodable
// tokens are ignored and store failures are logged.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) {
	if e == nil {
		return
	}

	res := flows.RunLogout(ctx, accessToken, refreshToken, e.flows.Logout)
	e.metrics.Inc(MetricLogout)
	if res.AccessRevoked {
		e.metrics.Inc(MetricTokenRevoked)
	}
	if res.RefreshRevoked {
		e.metrics.Inc(MetricTokenRevoked)
	}
	e.emitAudit(ctx, AuditLogout, true, res.UserID, "", "", func() map[string]string {
		return map[string]string{
			"access_revoked":  fmt.Sprint(res.AccessRevoked),
			"refresh_revoked": fmt.Sprint(res.RefreshRevoked),
		}
	})
}

// Revoke denylists a single token of either kind until its expiry. It is
// the administrative counterpart of Logout and reports tokens whose expiry
// cannot be read.
func (e *Engine) Revoke(ctx context.Context, token string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	exp, ok := jwt.DecodeUnverified(token)
	if !ok {
		return fmt.Errorf("%w: expiry unreadable", ErrTokenInvalidOrExpired)
	}
	e.revocations.Add(ctx, token, flows.CapExpiry(exp.At, e.now(), e.config.JWT.RefreshTTL))
	e.metrics.Inc(MetricTokenRevoked)
	e.emitAudit(ctx, AuditTokenRevoked, true, "", "", "", nil)
	return nil
}

// Unrevoke lifts a revocation, making a still-valid token usable again.
func (e *Engine) Unrevoke(ctx context.Context, token string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.revocations.Remove(ctx, token); err != nil {
		return fmt.Errorf("%w: %v", ErrInfrastructure, err)
	}
	e.emitAudit(ctx, AuditTokenUnrevoked, true, "", "", "", nil)
	return nil
}
