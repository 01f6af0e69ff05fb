package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	econtact "github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/client"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/internal/appconfig"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/internal/logging"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/internal/redisx"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/users"
)

// runtime carries state shared by every subcommand.
type runtime struct {
	configPath string
	cfg        appconfig.Config
	logger     *zap.Logger
}

func (r *runtime) prepare(*cobra.Command, []string) error {
	cfg, err := appconfig.Load(r.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	r.cfg = cfg
	r.logger = logger
	return nil
}

func (r *runtime) sync() {
	if r.logger != nil {
		_ = r.logger.Sync()
	}
}

// backend is everything the server side needs, opened from config.
type backend struct {
	redis     *redis.Client
	directory *users.GormDirectory
	engine    *econtact.Engine
	closers   []func() error
}

func (b *backend) Close() error {
	var err error
	for i := len(b.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, b.closers[i]())
	}
	return err
}

// openDirectory connects to the user database and applies migrations.
func (r *runtime) openDirectory(ctx context.Context) (*users.GormDirectory, func() error, error) {
	db, err := users.Open(r.cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	dir := users.NewGormDirectory(db)
	if err := dir.Migrate(ctx); err != nil {
		return nil, nil, multierr.Append(fmt.Errorf("migrate users: %w", err), sqlDB.Close())
	}
	return dir, sqlDB.Close, nil
}

func (r *runtime) openBackend(ctx context.Context) (_ *backend, err error) {
	b := &backend{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, b.Close())
		}
	}()

	dir, closeDB, err := r.openDirectory(ctx)
	if err != nil {
		return nil, err
	}
	b.directory = dir
	b.closers = append(b.closers, closeDB)

	rdb, err := redisx.NewClient(r.cfg.Redis)
	if err != nil {
		return nil, err
	}
	b.redis = rdb
	b.closers = append(b.closers, rdb.Close)

	var sink econtact.AuditSink
	if r.cfg.Auth.Audit.Enabled {
		sink = econtact.NewZapSink(r.logger)
	}
	engine, err := econtact.New().
		WithConfig(r.cfg.Auth).
		WithRedis(rdb).
		WithUserProvider(dir).
		WithAuditSink(sink).
		WithLogger(r.logger).
		Build()
	if err != nil {
		return nil, err
	}
	b.engine = engine
	b.closers = append(b.closers, func() error {
		engine.Close()
		return nil
	})
	return b, nil
}

// newClient builds an API client whose refresh token lives in the
// encrypted credentials file.
func (r *runtime) newClient() (*client.Client, error) {
	cc := r.cfg.Client
	keeper, err := client.NewFileKeeper(cc.CredentialsFile, cc.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w (set client.passphrase or %s_CLIENT_PASSPHRASE)", err, appconfig.EnvPrefix)
	}
	return client.New(cc.BaseURL,
		client.WithKeeper(keeper),
		client.WithLogger(r.logger.Named("client")),
		client.WithRequestTimeout(cc.RequestTimeout),
		client.WithRefreshTimeout(cc.RefreshTimeout),
	)
}
