package econtact

import (
	"context"
	"fmt"

	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/internal/flows"
)

// Login verifies username and password and issues a fresh token pair.
//
// Unknown users, wrong passwords and inactive accounts all yield
// ErrInvalidCredentials. Repeated failures yield ErrLoginRateLimited when
// throttling is enabled.
func (e *Engine) Login(ctx context.Context, username, password string) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	res := flows.RunLogin(ctx, username, password, e.flows.Login)
	if res.Failure == flows.LoginFailureNone {
		e.metrics.Inc(MetricLoginSuccess)
		e.emitAudit(ctx, AuditLoginSuccess, true, res.UserID, "", "", nil)
		return toTokenPair(res.Pair), nil
	}

	err, reason := loginError(res)
	if res.Failure == flows.LoginFailureRateLimited {
		e.metrics.Inc(MetricLoginRateLimited)
	} else {
		e.metrics.Inc(MetricLoginFailure)
	}
	e.emitAudit(ctx, AuditLoginFailure, false, res.UserID, "", reason, func() map[string]string {
		return map[string]string{"username": username}
	})
	return TokenPair{}, err
}

func loginError(res flows.LoginResult) (error, string) {
	switch res.Failure {
	case flows.LoginFailureInvalidInput:
		return fmt.Errorf("%w: username and password are required", ErrBadRequest), "invalid_input"
	case flows.LoginFailureRateLimited:
		return ErrLoginRateLimited, "rate_limited"
	case flows.LoginFailureUnknownUser:
		return ErrInvalidCredentials, "unknown_user"
	case flows.LoginFailureBadPassword:
		return ErrInvalidCredentials, "bad_password"
	case flows.LoginFailureInactive:
		return ErrInvalidCredentials, "inactive_account"
	case flows.LoginFailureIssue:
		return fmt.Errorf("%w: issue tokens: %v", ErrInfrastructure, res.Err), "issue_failed"
	default:
		return fmt.Errorf("%w: user lookup: %v", ErrInfrastructure, res.Err), "provider_unavailable"
	}
}
