package econtact

import (
	"context"
	"time"
)

// Role is the coarse school role carried in access tokens. Authorization
// decisions based on it belong to the consuming handlers.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleParent, RoleStudent:
		return true
	}
	return false
}

// UserRecord is what the engine needs to know about an account.
type UserRecord struct {
	UserID       string
	Username     string
	PasswordHash string
	Role         Role
	Active       bool
}

// UserProvider looks up accounts. Implementations return ErrUserNotFound
// (possibly wrapped) for unknown users.
type UserProvider interface {
	GetUserByUsername(ctx context.Context, username string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
}

// Identity is the verified principal attached to an authenticated request.
type Identity struct {
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	TokenID   string    `json:"token_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenPair is returned by login and refresh. The JSON shape is the wire
// format of both endpoints.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	AccessExpiresAt  time.Time `json:"access_expires_at,omitempty"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitempty"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=1024"`
}

// RefreshRequest is the body of POST /refresh-token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest is the optional body of POST /logout.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   ErrorCode `json:"error"`
	Message string    `json:"message"`
}
