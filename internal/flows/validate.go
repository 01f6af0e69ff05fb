package flows

import (
	"context"
	"time"

	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/jwt"
)

// ValidateFailureKind classifies access token validation failures.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureMissing
	ValidateFailureRevoked
	ValidateFailureStore
	ValidateFailureInvalid
)

// ValidateResult returns the verified claims or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.Claims
	Elapsed time.Duration
}

// ValidateDeps captures validation dependencies.
type ValidateDeps struct {
	Issuer   TokenIssuer
	Denylist Denylist
	Now      func() time.Time
}

// RunValidate checks an access token against the denylist and then its
// signature and expiry. The denylist is consulted first, so a revoked token
// is reported as revoked even while still cryptographically valid.
func RunValidate(ctx context.Context, accessToken string, deps ValidateDeps) ValidateResult {
	start := deps.Now()
	result := runValidate(ctx, accessToken, deps)
	result.Elapsed = deps.Now().Sub(start)
	return result
}

func runValidate(ctx context.Context, accessToken string, deps ValidateDeps) ValidateResult {
	if accessToken == "" {
		return ValidateResult{Failure: ValidateFailureMissing}
	}

	revoked, err := deps.Denylist.IsRevoked(ctx, accessToken)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureStore, Err: err}
	}
	if revoked {
		return ValidateResult{Failure: ValidateFailureRevoked}
	}

	claims, ok := deps.Issuer.VerifyAccess(accessToken)
	if !ok {
		return ValidateResult{Failure: ValidateFailureInvalid}
	}
	return ValidateResult{Claims: claims}
}
