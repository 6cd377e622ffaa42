// Package factory wires configuration, storage and transport into runnable
// service applications.
package factory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"cardledger/internal/api"
	"cardledger/internal/api/middleware"
	"cardledger/internal/config"
	"cardledger/internal/database"
	"cardledger/internal/directory"
	"cardledger/internal/domain"
	"cardledger/internal/gateway"
	"cardledger/internal/repository"
	"cardledger/internal/service"
	"cardledger/pkg/cache"
	"cardledger/pkg/logger"
	"cardledger/pkg/metrics"
	"cardledger/pkg/tracing"
)

// App is one assembled service. Handler is ready to mount; Run serves it on
// the configured port until ctx is cancelled.
type App struct {
	Config  *config.Config
	Logger  logger.Logger
	Handler http.Handler

	closers []func(context.Context) error
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse acquisition order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              a.Config.Server.Addr(),
		Handler:           a.Handler,
		ReadHeaderTimeout: a.Config.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("HTTP server starting", map[string]interface{}{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.Close(context.Background())
			return fmt.Errorf("listen on %s: %w", server.Addr, err)
		}
	case <-ctx.Done():
	}

	a.Logger.Info("HTTP server shutting down", map[string]interface{}{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	shutdownErr := server.Shutdown(shutdownCtx)
	closeErr := a.Close(shutdownCtx)
	if err := errors.Join(shutdownErr, closeErr); err != nil {
		return err
	}

	a.Logger.Info("HTTP server stopped", map[string]interface{}{})
	return nil
}

// NewLogger builds the service logger from configuration.
func NewLogger(cfg *config.Config) logger.Logger {
	return logger.New(logger.LogLevel(cfg.LogLevel), os.Stdout, string(cfg.ServiceName), cfg.IsDevelopment())
}

func newApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: log}

	shutdown, err := tracing.Init(ctx, string(cfg.ServiceName), cfg.Tracing.Endpoint)
	if err != nil {
		return nil, err
	}
	app.onClose(shutdown)
	return app, nil
}

func (a *App) openStore(ctx context.Context, migrations []database.Migration) (*database.Store, error) {
	db, dialect, err := database.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return db.Close() })

	if err := database.NewMigrationService(db, dialect, a.Logger).Run(ctx, migrations); err != nil {
		return nil, err
	}
	return &database.Store{DB: db, Dialect: dialect}, nil
}

func (a *App) mount(mux *http.ServeMux, respond api.Responder) {
	mux.Handle("GET /metrics", metrics.Handler())
	a.Handler = middleware.Default(mux, mux, respond, a.Logger)
}

// NewUserServiceApp assembles the user directory: SQL store, optional Redis
// read-through cache and the /users routes.
func NewUserServiceApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	app, err := newApp(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := app.openStore(ctx, database.UserMigrations)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	repo := repository.NewUserRepository(store.DB, log)
	var users domain.UserService = service.NewUserService(repo, log)

	checks := []api.HealthCheck{
		{Name: "database", Target: string(store.Dialect), Critical: true, Probe: repo.Ping},
	}

	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			app.Close(ctx)
			return nil, err
		}
		app.onClose(func(context.Context) error { return client.Close() })

		redisCache := cache.NewRedisCache(client, log, "cardledger")
		cached := service.NewCachedUserService(users, redisCache, cfg.Redis.TTL, log)
		if _, err := cached.WarmUp(ctx, cfg.Redis.WarmUp); err != nil {
			log.Warn("User cache warm-up failed", map[string]interface{}{"error": err.Error()})
		}
		users = cached
		checks = append(checks, api.HealthCheck{Name: "cache", Target: cfg.Redis.Addr, Probe: redisCache.Ping})
		log.Info("User cache enabled", map[string]interface{}{"addr": cfg.Redis.Addr, "ttl": cfg.Redis.TTL.String()})
	}

	respond := api.Responder{Service: string(cfg.ServiceName), Logger: log}
	mux := http.NewServeMux()
	api.NewUserHandler(users, respond).RegisterRoutes(mux)
	api.NewHealthHandler(string(cfg.ServiceName), cfg.Version, cfg.Timeouts.Probe, checks...).
		RegisterRoutes(mux, "/users/health")
	mux.Handle("/", respond.NotFoundHandler())

	app.mount(mux, respond)
	return app, nil
}

// NewTransactionServiceApp assembles the ledger with its user directory
// client. httpClient may be nil.
func NewTransactionServiceApp(ctx context.Context, cfg *config.Config, log logger.Logger, httpClient *http.Client) (*App, error) {
	app, err := newApp(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := app.openStore(ctx, database.TransactionMigrations)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	dir := directory.NewClient(directory.Config{
		BaseURL:     cfg.Services.UserServiceURL,
		Timeout:     cfg.Timeouts.Validation,
		MaxFailures: cfg.Breaker.MaxFailures,
		CoolDown:    cfg.Breaker.CoolDown,
		Caller:      string(cfg.ServiceName),
	}, httpClient, log)

	repo := repository.NewTransactionRepository(store.DB, log)
	txs := service.NewTransactionService(repo, dir, log)

	respond := api.Responder{Service: string(cfg.ServiceName), Logger: log}
	mux := http.NewServeMux()
	api.NewTransactionHandler(txs, respond).RegisterRoutes(mux)
	api.NewHealthHandler(string(cfg.ServiceName), cfg.Version, cfg.Timeouts.Probe,
		api.HealthCheck{Name: "database", Target: string(store.Dialect), Critical: true, Probe: repo.Ping},
		api.HealthCheck{Name: "user_service", Target: cfg.Services.UserServiceURL, Probe: dir.Ping},
	).RegisterRoutes(mux, "/transactions/health")
	mux.Handle("/", respond.NotFoundHandler())

	app.mount(mux, respond)
	return app, nil
}

// NewGatewayApp assembles the stateless gateway. transport may be nil.
func NewGatewayApp(ctx context.Context, cfg *config.Config, log logger.Logger, transport http.RoundTripper) (*App, error) {
	app, err := newApp(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	users, err := gateway.NewBackend(gateway.BackendConfig{
		Name:        string(config.UserService),
		URL:         cfg.Services.UserServiceURL,
		Timeout:     cfg.Timeouts.Proxy,
		MaxFailures: cfg.Breaker.MaxFailures,
		CoolDown:    cfg.Breaker.CoolDown,
	}, transport, log)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	ledger, err := gateway.NewBackend(gateway.BackendConfig{
		Name:        string(config.TransactionService),
		URL:         cfg.Services.TransactionServiceURL,
		Timeout:     cfg.Timeouts.Proxy,
		MaxFailures: cfg.Breaker.MaxFailures,
		CoolDown:    cfg.Breaker.CoolDown,
	}, transport, log)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	gw := gateway.New(users, ledger, gateway.Config{
		Version:      cfg.Version,
		ProbeTimeout: cfg.Timeouts.Probe,
		ReportFetch:  cfg.Timeouts.ReportFetch,
	}, log)

	mux := http.NewServeMux()
	gw.RegisterRoutes(mux)

	app.mount(mux, api.Responder{Service: string(cfg.ServiceName), Logger: log})
	return app, nil
}

