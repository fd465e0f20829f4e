package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // report timezone on hosts without zoneinfo

	"github.com/cenkalti/backoff/v4"

	"invencea-api/internal/cache"
	"invencea-api/internal/config"
	"invencea-api/internal/handler"
	"invencea-api/internal/middleware"
	"invencea-api/internal/repository"
	"invencea-api/internal/router"
	"invencea-api/internal/service"
)

func main() {
	cfg := config.MustLoad()
	setupLogger(cfg.App.Debug)

	slog.Info("starting", "app", cfg.App.Name, "version", cfg.App.Version, "env", cfg.App.Environment)

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	c := openCache(ctx, cfg)
	defer c.Close()

	deps := []handler.Dependency{{Name: "database", Ping: db.PingContext}}
	if rc, ok := c.(*cache.RedisCache); ok {
		deps = append(deps, handler.Dependency{Name: "cache", Ping: rc.Ping})
	}

	// Repositories
	branches := repository.NewBranchStore(db)
	users := repository.NewUserStore(db)
	sessions := repository.NewSessionStore(db)
	items := repository.NewInventoryStore(db)
	requests := repository.NewBorrowStore(db)
	audits := repository.NewAuditStore(db)

	if _, err := branches.EnsureDefaults(ctx); err != nil {
		return err
	}

	// Services
	tokens := service.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL, cfg.App.Name)
	authService := service.NewAuthService(users, sessions, tokens, c, service.NewPasswordVerifier(users), service.AuthConfig{
		ScanSecret: cfg.Auth.ScanSecret,
		ProfileTTL: cfg.Cache.TTL,
	})
	auditService := service.NewAuditService(audits)
	inventoryService := service.NewInventoryService(items, branches, auditService, cfg.Inventory.StrictMetadata)
	borrowService := service.NewBorrowService(requests, items, branches, auditService)
	returnService := service.NewReturnService(requests, items, auditService)
	dashboardService := service.NewDashboardService(audits, items, requests)
	reportService, err := service.NewReportService(requests, items, cfg.Report.Timezone)
	if err != nil {
		return err
	}

	sweeper := service.NewSessionSweeper(sessions, cfg.Auth.SweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	r := router.New(router.Config{
		Handler:          handler.New(cfg.App.Name, cfg.App.Version, deps...),
		AuthHandler:      handler.NewAuthHandler(authService),
		InventoryHandler: handler.NewInventoryHandler(inventoryService),
		BorrowHandler:    handler.NewBorrowHandler(borrowService, returnService),
		ReportHandler:    handler.NewReportHandler(reportService),
		DashboardHandler: handler.NewDashboardHandler(dashboardService, auditService),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{
			Authenticator: authService,
		}),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore retries the initial connection so the API can start before
// its database container is accepting connections.
func openStore(ctx context.Context, cfg *config.Config) (*repository.DB, error) {
	opts := repository.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = time.Minute

	var db *repository.DB
	err := backoff.RetryNotify(func() error {
		var err error
		db, err = repository.Open(ctx, opts)
		return err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		slog.Warn("store not ready, retrying", "driver", opts.Driver, "retry_in", next, "error", err)
	})
	return db, err
}

// openCache returns the configured cache. An unreachable Redis degrades to
// the in-process cache so logins keep working on a single instance.
func openCache(ctx context.Context, cfg *config.Config) cache.Cache {
	if cfg.Cache.Type == "redis" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddress(),
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.Cache.RedisPrefix,
		})
		if err == nil {
			return rc
		}
		slog.Warn("redis unavailable, using memory cache", "addr", cfg.Cache.RedisAddress(), "error", err)
	}
	return cache.NewMemoryCache(time.Minute)
}
