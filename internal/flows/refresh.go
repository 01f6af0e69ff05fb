package flows

import (
	"context"

	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/jwt"
)

// RefreshFailureKind classifies refresh failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureMissing
	RefreshFailureInvalid
	// RefreshFailureReuse means the token verified but was already consumed
	// or revoked.
	RefreshFailureReuse
	RefreshFailureStore
	RefreshFailureAccount
	RefreshFailureProvider
	RefreshFailureIssue
)

// RefreshResult carries either the rotated pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	UserID  string
	TokenID string
	Pair    jwt.Pair
}

// RefreshDeps captures refresh dependencies.
type RefreshDeps struct {
	Issuer         TokenIssuer
	Denylist       Denylist
	FindUserByID   func(ctx context.Context, userID string) (Account, error)
	IsUserNotFound func(error) bool
}

// RunRefresh exchanges a refresh token for a new pair. The presented token
// is consumed before anything is issued, so each refresh token can be
// exchanged at most once. The account is looked up first: a token is only
// spent once it is known to be redeemable.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	if refreshToken == "" {
		return RefreshResult{Failure: RefreshFailureMissing}
	}

	claims, ok := deps.Issuer.VerifyRefresh(refreshToken)
	if !ok {
		return RefreshResult{Failure: RefreshFailureInvalid}
	}
	result := RefreshResult{UserID: claims.UserID(), TokenID: claims.ID}

	account, err := deps.FindUserByID(ctx, claims.UserID())
	if err != nil {
		result.Err = err
		if deps.IsUserNotFound(err) {
			result.Failure = RefreshFailureAccount
		} else {
			result.Failure = RefreshFailureProvider
		}
		return result
	}
	if !account.Active {
		result.Failure = RefreshFailureAccount
		return result
	}

	first, err := deps.Denylist.Consume(ctx, refreshToken, claims.ExpiresAt.Time)
	if err != nil {
		result.Failure = RefreshFailureStore
		result.Err = err
		return result
	}
	if !first {
		result.Failure = RefreshFailureReuse
		return result
	}

	pair, err := deps.Issuer.Issue(jwt.Payload{UserID: account.UserID, Role: account.Role})
	if err != nil {
		result.Failure = RefreshFailureIssue
		result.Err = err
		return result
	}
	result.Pair = pair
	return result
}
