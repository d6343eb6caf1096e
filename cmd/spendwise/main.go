package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spendwise/internal/auth"
	"spendwise/internal/backend"
	"spendwise/internal/cache"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	apphttp "spendwise/internal/http"
	"spendwise/internal/log"
	"spendwise/internal/services"
)

const (
	shutdownTimeout      = 30 * time.Second
	denylistSize         = 10000
	cacheCleanupInterval = time.Minute
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		log.New(log.DefaultConfig()).Error("Failed to load env file", log.FieldError, err)
		os.Exit(1)
	}

	cfg, err := cli.LoadConfig((*config.Config).Validate)
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	logger := cli.SetupLogger(cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}

	caches := cache.NewManager(logger)
	denylist := cache.NewLRUCache[struct{}](denylistSize, cfg.AuthTokenTTL)
	caches.Register(denylist)
	caches.StartCleanup(ctx, cacheCleanupInterval)

	authService := auth.NewService(res.Store, cfg.AuthSecret, cfg.AuthTokenTTL, denylist, auth.WithLogger(logger))

	// A nil *amqp.Client must not reach the interface as a typed nil.
	var publisher services.ChangePublisher
	if res.Publisher != nil {
		publisher = res.Publisher
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Expenses:  services.NewExpenseService(res.Store, publisher, logger),
		Dashboard: services.NewDashboardService(res.Store, time.Now, cfg.DashboardMonths, cfg.DashboardRecent),
		Savings:   services.NewSavingsService(res.Store, time.Now),
		Auth:      authService,
		Store:     res.Store,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting spendwise server",
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			"amqp_enabled", res.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// The publisher is owned by the backend and closed by its cleanup.
		return cli.GracefulShutdown(logger, shutdownTimeout,
			cli.ShutdownStep{Name: "http server", Fn: srv.Shutdown},
			cli.ShutdownStep{Name: "cache janitor", Fn: func(context.Context) error {
				caches.Stop()
				return nil
			}},
			cli.ShutdownStep{Name: "backend", Fn: func(context.Context) error {
				return res.Cleanup()
			}},
		)
	})
	return g.Wait()
}
