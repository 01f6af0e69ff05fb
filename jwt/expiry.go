package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Expiry is the only thing DecodeUnverified can tell about a token. It
// carries no subject or role, so it cannot stand in for a
// verified identity.
type Expiry struct {
	At time.Time
}

// Remaining returns the lifetime left at now, never negative.
func (e Expiry) Remaining(now time.Time) time.Duration {
	if d := e.At.Sub(now); d > 0 {
		return d
	}
	return 0
}

// DecodeUnverified reads the exp claim without checking the signature. It is
// used to size revocation TTLs for tokens presented at logout.
func DecodeUnverified(token string) (Expiry, bool) {
	if token == "" {
		return Expiry{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Expiry{}, false
	}
	if claims.ExpiresAt == nil {
		return Expiry{}, false
	}
	return Expiry{At: claims.ExpiresAt.Time}, true
}
