package econtact

import (
	"context"
	"fmt"

	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/internal/flows"
)

// Validate authenticates an access token. The denylist is checked before
// the signature, so a logged-out token fails with ErrTokenRevoked even
// though it would still verify.
//
// Errors: ErrAuthRequired (empty token), ErrTokenRevoked,
// ErrTokenInvalidOrExpired, and ErrInfrastructure when the denylist is
// unreachable under the fail-closed policy.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*Identity, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	res := flows.RunValidate(ctx, accessToken, e.flows.Validate)
	e.metrics.Observe(MetricValidateLatency, res.Elapsed)

	switch res.Failure {
	case flows.ValidateFailureNone:
	case flows.ValidateFailureMissing:
		e.metrics.Inc(MetricValidateFailure)
		return nil, ErrAuthRequired
	case flows.ValidateFailureRevoked:
		e.metrics.Inc(MetricRevokedTokenRejected)
		return nil, ErrTokenRevoked
	case flows.ValidateFailureStore:
		e.metrics.Inc(MetricRevocationStoreError)
		return nil, fmt.Errorf("%w: %v", ErrInfrastructure, res.Err)
	default:
		e.metrics.Inc(MetricValidateFailure)
		return nil, ErrTokenInvalidOrExpired
	}

	c := res.Claims
	id := &Identity{
		UserID:  c.UserID(),
		Role:    Role(c.Role),
		TokenID: c.ID,
	}
	if c.IssuedAt != nil {
		id.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id, nil
}
