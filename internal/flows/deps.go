package flows

import (
	"context"
	"time"

	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/jwt"
)

// Deps groups flow dependency sets. The engine builds this once and
// delegates request methods to the matching flow.
type Deps struct {
	Login    LoginDeps
	Refresh  RefreshDeps
	Validate ValidateDeps
	Logout   LogoutDeps
}

// TokenIssuer is the subset of *jwt.Issuer the flows use.
type TokenIssuer interface {
	Issue(p jwt.Payload) (jwt.Pair, error)
	VerifyAccess(token string) (*jwt.Claims, bool)
	VerifyRefresh(token string) (*jwt.Claims, bool)
}

// Denylist is the subset of *revocation.Store the flows use.
type Denylist interface {
	Add(ctx context.Context, token string, exp time.Time)
	IsRevoked(ctx context.Context, token string) (bool, error)
	Consume(ctx context.Context, token string, exp time.Time) (bool, error)
}

// Account is the flow-local view of a user record.
type Account struct {
	UserID       string
	Username     string
	PasswordHash string
	Role         string
	Active       bool
}
