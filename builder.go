package econtact

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/internal/flows"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/internal/rate"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/jwt"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/password"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/revocation"
)

// Builder assembles an Engine. A Builder can be used once.
type Builder struct {
	config       Config
	redis        redis.UniversalClient
	userProvider UserProvider
	auditSink    AuditSink
	logger       *zap.Logger
	built        bool
}

// New returns a Builder preloaded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the client backing the denylist and login throttling.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithAuditSink sets where audit events go. It only takes effect when
// Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	issuer, err := jwt.NewIssuer(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		Access:        jwt.KeyConfig{PrivateKey: []byte(cfg.JWT.AccessKey)},
		Refresh:       jwt.KeyConfig{PrivateKey: []byte(cfg.JWT.RefreshKey)},
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("password: %w", err)
	}

	policy, err := revocation.ParsePolicy(cfg.Revocation.Policy)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:    cfg,
		issuer:    issuer,
		passwords: hasher,
		users:     b.userProvider,
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger.Named("engine"),
		now:       time.Now,
	}
	e.revocations = revocation.New(b.redis, revocation.Options{
		Prefix:       cfg.Revocation.Prefix,
		Policy:       policy,
		Logger:       logger,
		OnFailOpen:   func() { e.metrics.Inc(MetricRevocationFailOpen) },
		OnAddFailure: func() { e.metrics.Inc(MetricRevocationStoreError) },
	})
	if cfg.Security.EnableLoginThrottle {
		e.limiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:      cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
		})
	}
	e.audit = newAuditQueue(cfg.Audit, b.auditSink, logger.Named("audit"))
	e.flows = e.buildFlowDeps()

	b.built = true
	return e, nil
}

func (e *Engine) buildFlowDeps() flows.Deps {
	var limiter flows.LoginLimiter
	if e.limiter != nil {
		limiter = e.limiter
	}
	return flows.Deps{
		Login: flows.LoginDeps{
			ClientIP:       clientIPFromContext,
			Limiter:        limiter,
			IsRateLimited:  isRateLimited,
			FindUser:       e.findUserByUsername,
			IsUserNotFound: isUserNotFound,
			VerifyPassword: e.passwords.Verify,
			BurnPassword:   e.passwords.Burn,
			Issuer:         e.issuer,
			Logger:         e.logger,
		},
		Refresh: flows.RefreshDeps{
			Issuer:         e.issuer,
			Denylist:       e.revocations,
			FindUserByID:   e.findUserByID,
			IsUserNotFound: isUserNotFound,
		},
		Validate: flows.ValidateDeps{
			Issuer:   e.issuer,
			Denylist: e.revocations,
			Now:      e.now,
		},
		Logout: flows.LogoutDeps{
			Denylist:     e.revocations,
			DecodeExpiry: decodeExpiry,
			Issuer:       e.issuer,
			MaxTTL:       e.config.JWT.RefreshTTL,
			Now:          e.now,
		},
	}
}

func decodeExpiry(token string) (time.Time, bool) {
	exp, ok := jwt.DecodeUnverified(token)
	return exp.At, ok
}

func isRateLimited(err error) bool {
	return errors.Is(err, rate.ErrRateLimited)
}

func isUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}
