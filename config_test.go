package econtact

import (
	"strings"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessKey = "access-key-access-key-access-key-0001"
	cfg.JWT.RefreshKey = "refresh-key-refresh-key-refresh-key-0001"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{"defaults with keys", func(c *Config) {}, true},
		{"leeway too large", func(c *Config) { c.JWT.Leeway = 3 * time.Minute }, false},
		{"blank audience", func(c *Config) { c.JWT.Audience = "   " }, false},
		{"unknown signing method", func(c *Config) { c.JWT.SigningMethod = "rs256" }, false},
		{"shared keys", func(c *Config) { c.JWT.RefreshKey = c.JWT.AccessKey }, false},
		{"missing refresh key", func(c *Config) { c.JWT.RefreshKey = "" }, false},
		{"refresh shorter than access", func(c *Config) { c.JWT.RefreshTTL = c.JWT.AccessTTL }, false},
		{"refresh ttl unbounded", func(c *Config) { c.JWT.RefreshTTL = 365 * 24 * time.Hour }, false},
		{"fail closed policy", func(c *Config) { c.Revocation.Policy = "fail_closed" }, true},
		{"unknown policy", func(c *Config) { c.Revocation.Policy = "maybe" }, false},
		{"throttle without attempts", func(c *Config) { c.Security.MaxLoginAttempts = 0 }, false},
		{"throttle disabled", func(c *Config) {
			c.Security.EnableLoginThrottle = false
			c.Security.MaxLoginAttempts = 0
		}, true},
		{"audit without buffer", func(c *Config) { c.Audit.BufferSize = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestConfigValidateProductionRejectsWeakHS256Key(t *testing.T) {
	cfg := validTestConfig()
	cfg.Security.ProductionMode = true
	cfg.Password.Memory = 64 * 1024
	cfg.Password.Time = 3
	cfg.JWT.AccessKey = "weak-key"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "256 bits") {
		t.Fatalf("expected weak HS256 key rejection, got %v", err)
	}
}

func TestConfigValidateProductionRejectsWeakArgon2(t *testing.T) {
	cfg := validTestConfig()
	cfg.Security.ProductionMode = true
	cfg.Password.Memory = 32 * 1024

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "Memory") {
		t.Fatalf("expected weak argon2 rejection, got %v", err)
	}
}
