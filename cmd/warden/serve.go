// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/cleanup"
	"github.com/holomush/warden/internal/config"
	"github.com/holomush/warden/internal/httpapi"
	"github.com/holomush/warden/internal/logging"
	"github.com/holomush/warden/internal/mail"
	"github.com/holomush/warden/internal/observability"
)

const serviceName = "warden"

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account API",
		Long: `Start the HTTP account API together with the mail dispatcher, the
expired token cleanup worker and the metrics/health server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	addConfigFlags(cmd.Flags(),
		"http-addr", "metrics-addr", "log-format", "log-level",
		"store", "database-url", "auto-migrate", "mail-driver",
	)
	return cmd
}

// runServeWithDeps runs the service until a shutdown signal, ctx
// cancellation, or a server failure. If deps is nil, default
// implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate configuration").Wrap(err)
	}

	logger, err := logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	})
	if err != nil {
		return oops.With("operation", "set up logging").Wrap(err)
	}

	logger.Info("starting warden",
		"http_addr", cfg.HTTP.Addr,
		"store", cfg.Database.Driver,
		"mail_driver", cfg.Mail.Driver,
	)

	if cfg.Database.Driver == config.StorePostgres && cfg.Database.AutoMigrate {
		if err := autoMigrate(cfg.Database.URL, deps.MigratorFactory, logger); err != nil {
			return err
		}
	}

	backend, err := deps.BackendFactory(ctx, cfg.Database)
	if err != nil {
		return oops.With("operation", "open store").Wrap(err)
	}
	defer backend.close()
	logger.Info("store ready", "driver", cfg.Database.Driver)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, backend.Ping)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	svc, tokens, dispatcher, err := buildService(ctx, cfg, backend, deps, metrics, logger)
	if err != nil {
		stopObservability(obsServer, logger)
		return err
	}

	worker, err := cleanup.NewWorker(tokens, cfg.Token.CleanupInterval, metrics, logger)
	if err != nil {
		stopDispatcher(dispatcher, logger)
		stopObservability(obsServer, logger)
		return oops.With("operation", "create cleanup worker").Wrap(err)
	}
	workerCtx, stopWorker := context.WithCancel(ctx)
	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		worker.Run(workerCtx)
	}()

	listener, err := deps.ListenerFactory("tcp", cfg.HTTP.Addr)
	if err != nil {
		stopWorker()
		workers.Wait()
		stopDispatcher(dispatcher, logger)
		stopObservability(obsServer, logger)
		return oops.Code("LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	httpServer := &http.Server{
		Handler: httpapi.NewRouter(httpapi.RouterConfig{
			Service:        svc,
			Logger:         logger,
			Observer:       metrics,
			RequestTimeout: cfg.HTTP.RequestTimeout,
			MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	sigChan, stopSignals := deps.SignalNotifier()
	defer stopSignals()

	cmd.Println("Warden started")
	logger.Info("warden ready", "http_addr", listener.Addr().String())

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errChan:
		runErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping HTTP server", "error", err)
	}
	stopWorker()
	workers.Wait()
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.Warn("mail dispatcher did not drain before shutdown deadline", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}

// buildService assembles the auth service and its mail pipeline. The
// returned dispatcher is started.
func buildService(
	ctx context.Context,
	cfg *config.Config,
	backend *Backend,
	deps *ServeDeps,
	metrics *observability.Metrics,
	logger *slog.Logger,
) (*auth.Service, *auth.TokenStore, *mail.Dispatcher, error) {
	accounts, err := auth.NewAccountStore(backend.Accounts, auth.NewArgon2idHasher(),
		auth.WithLockoutPolicy(cfg.LockoutPolicy()),
		auth.WithAccountTimeout(cfg.Database.Timeout),
	)
	if err != nil {
		return nil, nil, nil, oops.With("operation", "create account store").Wrap(err)
	}
	tokens, err := auth.NewTokenStore(backend.Tokens,
		auth.WithTokenTTL(cfg.Token.TTL),
		auth.WithTokenTimeout(cfg.Database.Timeout),
	)
	if err != nil {
		return nil, nil, nil, oops.With("operation", "create token store").Wrap(err)
	}
	sessions, err := auth.NewSessionIssuer(auth.SessionConfig{
		Secret:   []byte(cfg.Session.Secret),
		Issuer:   cfg.Session.Issuer,
		Audience: cfg.Session.Audience,
		Lifetime: cfg.Session.Lifetime,
	})
	if err != nil {
		return nil, nil, nil, oops.With("operation", "create session issuer").Wrap(err)
	}

	sender, err := deps.SenderFactory(ctx, cfg.Mail.Config, logger)
	if err != nil {
		return nil, nil, nil, oops.With("operation", "create mail sender").Wrap(err)
	}
	renderer, err := mail.NewRenderer(cfg.Mail.BaseURL, cfg.Mail.ProductName, cfg.Token.TTL)
	if err != nil {
		return nil, nil, nil, oops.With("operation", "create mail renderer").Wrap(err)
	}
	dispatcher, err := mail.NewDispatcher(sender, cfg.Mail.Dispatcher, metrics, logger)
	if err != nil {
		return nil, nil, nil, oops.With("operation", "create mail dispatcher").Wrap(err)
	}
	// Deliveries outlive request contexts and are drained on shutdown.
	if err := dispatcher.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, nil, nil, oops.With("operation", "start mail dispatcher").Wrap(err)
	}

	svc, err := auth.NewService(auth.ServiceConfig{
		Accounts: accounts,
		Tokens:   tokens,
		Sessions: sessions,
		Notifier: mail.NewNotifier(renderer, dispatcher, logger),
		Observer: metrics,
		Logger:   logger,
	})
	if err != nil {
		stopDispatcher(dispatcher, logger)
		return nil, nil, nil, oops.With("operation", "create auth service").Wrap(err)
	}
	return svc, tokens, dispatcher, nil
}

// autoMigrate applies pending migrations before the store is opened.
func autoMigrate(databaseURL string, factory func(string) (AutoMigrator, error), logger *slog.Logger) error {
	migrator, err := factory(databaseURL)
	if err != nil {
		return oops.With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	logger.Info("running database migrations")
	if err := migrator.Up(); err != nil {
		return oops.With("operation", "auto-migrate").Wrap(err)
	}
	logger.Info("database migrations complete")
	return nil
}

func stopDispatcher(d *mail.Dispatcher, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		logger.Warn("failed to stop mail dispatcher during cleanup", "error", err)
	}
}

func stopObservability(s ObservabilityServer, logger *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("failed to stop observability server during cleanup", "error", err)
	}
}

// monitorServerErrors cancels the run context when a server reports an error.
// It exits when an error arrives, the channel closes, or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
