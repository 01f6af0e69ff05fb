package econtact

import (
	"context"
	"fmt"

	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/internal/flows"
)

// Refresh exchanges a refresh token for a new pair. The presented refresh
// token is consumed: presenting it again yields ErrRefreshTokenInvalid.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	res := flows.RunRefresh(ctx, refreshToken, e.flows.Refresh)
	if res.Failure == flows.RefreshFailureNone {
		e.metrics.Inc(MetricRefreshSuccess)
		e.emitAudit(ctx, AuditRefreshSuccess, true, res.UserID, res.TokenID, "", nil)
		return toTokenPair(res.Pair), nil
	}

	e.metrics.Inc(MetricRefreshFailure)
	switch res.Failure {
	case flows.RefreshFailureMissing:
		return TokenPair{}, ErrRefreshTokenMissing
	case flows.RefreshFailureInvalid:
		e.emitAudit(ctx, AuditRefreshFailure, false, "", "", "invalid_token", nil)
		return TokenPair{}, ErrRefreshTokenInvalid
	case flows.RefreshFailureReuse:
		e.metrics.Inc(MetricRefreshReuseDetected)
		e.emitAudit(ctx, AuditRefreshReuse, false, res.UserID, res.TokenID, "reuse", nil)
		return TokenPair{}, ErrRefreshTokenInvalid
	case flows.RefreshFailureAccount:
		e.emitAudit(ctx, AuditRefreshFailure, false, res.UserID, res.TokenID, "account_unavailable", nil)
		return TokenPair{}, ErrRefreshTokenInvalid
	case flows.RefreshFailureStore:
		e.metrics.Inc(MetricRevocationStoreError)
		e.emitAudit(ctx, AuditRefreshFailure, false, res.UserID, res.TokenID, "store_unavailable", nil)
		return TokenPair{}, fmt.Errorf("%w: %v", ErrInfrastructure, res.Err)
	default:
		e.emitAudit(ctx, AuditRefreshFailure, false, res.UserID, res.TokenID, "internal", nil)
		return TokenPair{}, fmt.Errorf("%w: %v", ErrInfrastructure, res.Err)
	}
}
