package econtact

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/revocation"
)

// MaxRefreshTTL caps how long a refresh token may live.
const MaxRefreshTTL = 90 * 24 * time.Hour

// Config is the engine configuration. Field tags let it be decoded by viper
// as the "auth" section of the application config.
type Config struct {
	JWT        JWTConfig        `mapstructure:"jwt"`
	Revocation RevocationConfig `mapstructure:"revocation"`
	Password   PasswordConfig   `mapstructure:"password"`
	Security   SecurityConfig   `mapstructure:"security"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig describes both token kinds. AccessKey and RefreshKey must
// differ: for hs256 they are the HMAC secrets, for ed25519 PEM encoded
// private keys.
type JWTConfig struct {
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	SigningMethod string        `mapstructure:"signing_method"`
	AccessKey     string        `mapstructure:"access_key"`
	RefreshKey    string        `mapstructure:"refresh_key"`
	Issuer        string        `mapstructure:"issuer"`
	Audience      string        `mapstructure:"audience"`
	Leeway        time.Duration `mapstructure:"leeway"`
	MaxFutureIAT  time.Duration `mapstructure:"max_future_iat"`
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationConfig selects the denylist key prefix and its outage policy
// ("fail_open" or "fail_closed").
type RevocationConfig struct {
	Prefix string `mapstructure:"prefix"`
	Policy string `mapstructure:"policy"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters. Memory is in KiB.
type PasswordConfig struct {
	Memory      uint32 `mapstructure:"memory"`
	Time        uint32 `mapstructure:"time"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

/*
====================================
SECURITY CONFIG
====================================
*/

type SecurityConfig struct {
	ProductionMode        bool          `mapstructure:"production_mode"`
	EnableLoginThrottle   bool          `mapstructure:"enable_login_throttle"`
	EnableIPThrottle      bool          `mapstructure:"enable_ip_throttle"`
	MaxLoginAttempts      int           `mapstructure:"max_login_attempts"`
	LoginCooldownDuration time.Duration `mapstructure:"login_cooldown"`
}

type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
	DropIfFull bool `mapstructure:"drop_if_full"`
}

type MetricsConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	EnableLatencyHistograms bool `mapstructure:"enable_latency_histograms"`
}

// DefaultConfig returns a development-ready configuration without keys.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     60 * time.Minute,
			RefreshTTL:    30 * 24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "econtact",
			Audience:      "econtact-api",
			Leeway:        30 * time.Second,
			MaxFutureIAT:  10 * time.Minute,
		},
		Revocation: RevocationConfig{
			Prefix: revocation.DefaultPrefix,
			Policy: revocation.FailOpen.String(),
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Security: SecurityConfig{
			EnableLoginThrottle:   true,
			EnableIPThrottle:      true,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// Validate rejects configurations the engine cannot run with. In production
// mode it additionally rejects weak key and hashing parameters.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be longer than AccessTTL")
	}
	if c.JWT.RefreshTTL > MaxRefreshTTL {
		return fmt.Errorf("JWT RefreshTTL must be <= %s", MaxRefreshTTL)
	}
	if c.JWT.SigningMethod != "hs256" && c.JWT.SigningMethod != "ed25519" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.AccessKey == "" || c.JWT.RefreshKey == "" {
		return errors.New("JWT AccessKey and RefreshKey are required")
	}
	if c.JWT.AccessKey == c.JWT.RefreshKey {
		return errors.New("JWT AccessKey and RefreshKey must differ")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.MaxFutureIAT < 0 {
		return errors.New("JWT MaxFutureIAT must be >= 0")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}

	// Revocation
	if _, err := revocation.ParsePolicy(c.Revocation.Policy); err != nil {
		return err
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security MaxLoginAttempts must be > 0")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("Security LoginCooldownDuration must be > 0")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if c.JWT.SigningMethod == "hs256" && (len(c.JWT.AccessKey) < 32 || len(c.JWT.RefreshKey) < 32) {
			return errors.New("production mode requires HS256 keys of at least 256 bits")
		}
		if c.Password.Memory < 64*1024 {
			return errors.New("production mode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("production mode requires Password Time >= 2")
		}
	}

	return nil
}
