package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	econtact "github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001"
)

// ErrDuplicateUsername is returned by CreateUser when the username is taken.
var ErrDuplicateUsername = errors.New("username already exists")

// Config selects the SQL backend.
type Config struct {
	// Dialect is "sqlite" or "postgres". Empty means sqlite.
	Dialect    string `mapstructure:"dialect"`
	Datasource string `mapstructure:"datasource"`
}

// NewDialector maps cfg onto a gorm dialector.
func NewDialector(cfg Config) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Dialect)) {
	case "", "sqlite", "sqlite3":
		return sqlite.Open(cfg.Datasource), nil
	case "postgres", "postgresql":
		return postgres.Open(cfg.Datasource), nil
	default:
		return nil, fmt.Errorf("unsupported database dialect %q", cfg.Dialect)
	}
}

// Open connects to the configured database.
func Open(cfg Config) (*gorm.DB, error) {
	if strings.TrimSpace(cfg.Datasource) == "" {
		return nil, errors.New("database datasource required")
	}
	dialector, err := NewDialector(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
	})
}

// GormDirectory stores accounts in SQL through gorm.
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

// Migrate creates or updates the users table.
func (d *GormDirectory) Migrate(ctx context.Context) error {
	return d.db.WithContext(ctx).AutoMigrate(&User{})
}

func (d *GormDirectory) CreateUser(ctx context.Context, n NewUser) (econtact.UserRecord, error) {
	u, err := n.build()
	if err != nil {
		return econtact.UserRecord{}, err
	}
	if err := d.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return econtact.UserRecord{}, fmt.Errorf("%w: %s", ErrDuplicateUsername, u.Username)
		}
		return econtact.UserRecord{}, err
	}
	return u.toRecord(), nil
}

// SetActive enables or disables an account. Disabled accounts can neither
// log in nor refresh.
func (d *GormDirectory) SetActive(ctx context.Context, username string, active bool) error {
	res := d.db.WithContext(ctx).
		Model(&User{}).
		Where("username = ?", normalize(username)).
		Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return econtact.ErrUserNotFound
	}
	return nil
}

func (d *GormDirectory) GetUserByUsername(ctx context.Context, username string) (econtact.UserRecord, error) {
	var u User
	err := d.db.WithContext(ctx).Where("username = ?", normalize(username)).Take(&u).Error
	return d.result(&u, err)
}

func (d *GormDirectory) GetUserByID(ctx context.Context, userID string) (econtact.UserRecord, error) {
	var u User
	err := d.db.WithContext(ctx).Where("id = ?", userID).Take(&u).Error
	return d.result(&u, err)
}

func (d *GormDirectory) result(u *User, err error) (econtact.UserRecord, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return econtact.UserRecord{}, econtact.ErrUserNotFound
		}
		return econtact.UserRecord{}, err
	}
	return u.toRecord(), nil
}
