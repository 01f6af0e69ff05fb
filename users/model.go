package users

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	econtact "github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001"
)

// User is the persisted account row.
type User struct {
	ID           string `gorm:"type:varchar(36);primaryKey"`
	Username     string `gorm:"type:varchar(128);uniqueIndex;not null"`
	PasswordHash string `gorm:"type:varchar(255);not null"`
	Role         string `gorm:"type:varchar(16);not null"`
	Active       bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (User) TableName() string {
	return "users"
}

func (u *User) toRecord() econtact.UserRecord {
	return econtact.UserRecord{
		UserID:       u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         econtact.Role(u.Role),
		Active:       u.Active,
	}
}

// NewUser describes an account to create. PasswordHash must already be an
// argon2id PHC string.
type NewUser struct {
	Username     string
	PasswordHash string
	Role         econtact.Role
}

func (n NewUser) build() (*User, error) {
	username := normalize(n.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username required", econtact.ErrBadRequest)
	}
	if !n.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", econtact.ErrBadRequest, n.Role)
	}
	if !strings.HasPrefix(n.PasswordHash, "$argon2id$") {
		return nil, fmt.Errorf("%w: password hash must be argon2id", econtact.ErrBadRequest)
	}
	return &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: n.PasswordHash,
		Role:         string(n.Role),
		Active:       true,
	}, nil
}

func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
