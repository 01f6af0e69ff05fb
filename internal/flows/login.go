package flows

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/jwt"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureInvalidInput
	LoginFailureRateLimited
	LoginFailureUnknownUser
	LoginFailureBadPassword
	LoginFailureInactive
	LoginFailureProvider
	LoginFailureIssue
)

// LoginResult carries the issued pair or the failure classification.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	UserID  string
	Pair    jwt.Pair
}

// LoginLimiter throttles repeated login failures. A nil limiter disables
// throttling.
type LoginLimiter interface {
	CheckLogin(ctx context.Context, username, ip string) error
	IncrementLogin(ctx context.Context, username, ip string) error
	ResetLogin(ctx context.Context, username, ip string) error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	ClientIP       func(context.Context) string
	Limiter        LoginLimiter
	IsRateLimited  func(error) bool
	FindUser       func(ctx context.Context, username string) (Account, error)
	IsUserNotFound func(error) bool
	VerifyPassword func(password, hash string) (bool, error)
	// BurnPassword spends the same hashing cost as a real verification so
	// unknown usernames are not distinguishable by timing.
	BurnPassword func(password string)
	Issuer       TokenIssuer
	Logger       *zap.Logger
}

// RunLogin authenticates username/password and issues a token pair.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) LoginResult {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{Failure: LoginFailureInvalidInput}
	}
	ip := deps.ClientIP(ctx)

	if deps.Limiter != nil {
		if err := deps.Limiter.CheckLogin(ctx, username, ip); err != nil {
			if deps.IsRateLimited(err) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err}
			}
			deps.Logger.Warn("login throttle unavailable", zap.Error(err))
		}
	}

	account, err := deps.FindUser(ctx, username)
	if err != nil {
		if deps.IsUserNotFound(err) {
			if deps.BurnPassword != nil {
				deps.BurnPassword(password)
			}
			recordLoginFailure(ctx, deps, username, ip)
			return LoginResult{Failure: LoginFailureUnknownUser, Err: err}
		}
		return LoginResult{Failure: LoginFailureProvider, Err: err}
	}

	ok, err := deps.VerifyPassword(password, account.PasswordHash)
	if err != nil || !ok {
		recordLoginFailure(ctx, deps, username, ip)
		return LoginResult{Failure: LoginFailureBadPassword, Err: err, UserID: account.UserID}
	}
	if !account.Active {
		return LoginResult{Failure: LoginFailureInactive, UserID: account.UserID}
	}

	pair, err := deps.Issuer.Issue(jwt.Payload{UserID: account.UserID, Role: account.Role})
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, UserID: account.UserID}
	}

	if deps.Limiter != nil {
		if err := deps.Limiter.ResetLogin(ctx, username, ip); err != nil {
			deps.Logger.Warn("login throttle reset failed", zap.Error(err))
		}
	}

	return LoginResult{UserID: account.UserID, Pair: pair}
}

func recordLoginFailure(ctx context.Context, deps LoginDeps, username, ip string) {
	if deps.Limiter == nil {
		return
	}
	if err := deps.Limiter.IncrementLogin(ctx, username, ip); err != nil && !deps.IsRateLimited(err) {
		deps.Logger.Warn("login throttle increment failed", zap.Error(err))
	}
}
