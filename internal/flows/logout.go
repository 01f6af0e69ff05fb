package flows

import (
	"context"
	"time"
)

// LogoutResult reports what was submitted to the denylist. Logout never
// fails; tokens that cannot be decoded are skipped.
type LogoutResult struct {
	AccessRevoked  bool
	RefreshRevoked bool
	UserID         string
}

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	Denylist     Denylist
	DecodeExpiry func(token string) (time.Time, bool)
	Issuer       TokenIssuer
	// MaxTTL bounds how long an entry may stay on the denylist. Expiries
	// are read unverified, so they are capped at the longest lifetime the
	// issuer hands out.
	MaxTTL time.Duration
	Now    func() time.Time
}

// RunLogout denylists the presented access token and, when given, the
// refresh token, each until its own expiry.
func RunLogout(ctx context.Context, accessToken, refreshToken string, deps LogoutDeps) LogoutResult {
	var result LogoutResult

	if accessToken != "" {
		if claims, ok := deps.Issuer.VerifyAccess(accessToken); ok {
			result.UserID = claims.UserID()
		}
		result.AccessRevoked = revoke(ctx, accessToken, deps)
	}
	if refreshToken != "" {
		if result.UserID == "" {
			if claims, ok := deps.Issuer.VerifyRefresh(refreshToken); ok {
				result.UserID = claims.UserID()
			}
		}
		result.RefreshRevoked = revoke(ctx, refreshToken, deps)
	}

	return result
}

func revoke(ctx context.Context, token string, deps LogoutDeps) bool {
	exp, ok := deps.DecodeExpiry(token)
	if !ok {
		return false
	}
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	deps.Denylist.Add(ctx, token, CapExpiry(exp, now(), deps.MaxTTL))
	return true
}

// CapExpiry returns exp, pulled back to now+maxTTL when it lies further
// out. A non-positive maxTTL leaves exp unchanged.
func CapExpiry(exp, now time.Time, maxTTL time.Duration) time.Time {
	if maxTTL <= 0 {
		return exp
	}
	if limit := now.Add(maxTTL); exp.After(limit) {
		return limit
	}
	return exp
}
