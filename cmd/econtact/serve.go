package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/httpapi"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/internal/redisx"
	otelexport "github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/metrics/export/otel"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/metrics/export/prometheus"
)

type ServeCommand struct {
	runtime *runtime
}

func NewServeCommand(rt *runtime) *ServeCommand {
	return &ServeCommand{runtime: rt}
}

func (c *ServeCommand) Command() *cobra.Command {
	return &cobra.Command{
		Use:           "serve",
		Short:         "Run the HTTP API",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          c.RunE,
	}
}

func (c *ServeCommand) RunE(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := c.runtime.openBackend(ctx)
	if err != nil {
		return err
	}
	srv, closeMetrics, err := c.newHTTPServer(b)
	if err != nil {
		return multierr.Append(err, b.Close())
	}
	c.logSecurityReport(b)

	err = c.run(ctx, srv)
	return multierr.Combine(err, closeMetrics(), b.Close())
}

// newHTTPServer wires the API handler and both metrics exporters. The OTel
// exporter registers on the global meter provider, which is a no-op unless
// the host installs one.
func (c *ServeCommand) newHTTPServer(b *backend) (*http.Server, func() error, error) {
	cfg := c.runtime.cfg
	exporter, err := otelexport.New(otel.Meter("econtact"), b.engine)
	if err != nil {
		return nil, nil, err
	}

	api := httpapi.NewServer(b.engine, httpapi.Options{
		Logger:     c.runtime.logger,
		TrustProxy: cfg.Server.TrustProxy,
		Metrics:    prometheus.New(b.engine).Handler(),
		Ready: func(ctx context.Context) error {
			return redisx.Ping(ctx, b.redis)
		},
	})

	return &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}, exporter.Close, nil
}

func (c *ServeCommand) run(ctx context.Context, srv *http.Server) error {
	logger := c.runtime.logger
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := c.runtime.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), timeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (c *ServeCommand) logSecurityReport(b *backend) {
	report := b.engine.SecurityReport()
	c.runtime.logger.Info("security settings",
		zap.Bool("production_mode", report.ProductionMode),
		zap.String("signing_algorithm", report.SigningAlgorithm),
		zap.Duration("access_ttl", report.AccessTTL),
		zap.Duration("refresh_ttl", report.RefreshTTL),
		zap.String("revocation_policy", report.RevocationPolicy),
		zap.Bool("login_throttle", report.LoginThrottle),
		zap.Bool("audit", report.AuditEnabled),
	)
	for _, w := range report.Warnings() {
		c.runtime.logger.Warn("security warning", zap.String("detail", w))
	}
}
