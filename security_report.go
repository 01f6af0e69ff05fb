package econtact

import (
	"time"

	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/revocation"
)

// SecurityReport summarizes the security-relevant settings an engine runs
// with. Operators log it at startup.
type SecurityReport struct {
	ProductionMode   bool
	SigningAlgorithm string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	RevocationPolicy string
	LoginThrottle    bool
	IPThrottle       bool
	MaxLoginAttempts int
	AuditEnabled     bool
	MetricsEnabled   bool
	Argon2           PasswordConfigReport
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config
	return SecurityReport{
		ProductionMode:   cfg.Security.ProductionMode,
		SigningAlgorithm: cfg.JWT.SigningMethod,
		AccessTTL:        cfg.JWT.AccessTTL,
		RefreshTTL:       cfg.JWT.RefreshTTL,
		RevocationPolicy: e.RevocationPolicy().String(),
		LoginThrottle:    cfg.Security.EnableLoginThrottle,
		IPThrottle:       cfg.Security.EnableLoginThrottle && cfg.Security.EnableIPThrottle,
		MaxLoginAttempts: cfg.Security.MaxLoginAttempts,
		AuditEnabled:     cfg.Audit.Enabled,
		MetricsEnabled:   cfg.Metrics.Enabled,
		Argon2: PasswordConfigReport{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		},
	}
}

// Warnings lists settings that are acceptable for development but weaken
// a production deployment.
func (r SecurityReport) Warnings() []string {
	var out []string
	if !r.ProductionMode {
		out = append(out, "production mode is off")
	}
	if r.RevocationPolicy == revocation.FailOpen.String() {
		out = append(out, "revocation checks fail open while redis is unavailable")
	}
	if !r.LoginThrottle {
		out = append(out, "login throttling is disabled")
	}
	if !r.AuditEnabled {
		out = append(out, "audit trail is disabled")
	}
	if r.Argon2.Memory < 64*1024 {
		out = append(out, "argon2 memory is below 64 MiB")
	}
	return out
}
