package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/nimbusvault/authcore/internal/auth/http"
	"github.com/nimbusvault/authcore/internal/auth/metrics"
	"github.com/nimbusvault/authcore/internal/auth/service"
	"github.com/nimbusvault/authcore/internal/auth/store"
	redisstore "github.com/nimbusvault/authcore/internal/auth/store/drivers/redis"
	"github.com/nimbusvault/authcore/internal/auth/store/drivers/sqlite"
	"github.com/nimbusvault/authcore/pkg/cryptox"
	"github.com/nimbusvault/authcore/pkg/httpx"
	"github.com/nimbusvault/authcore/pkg/jwtx"
	"github.com/nimbusvault/authcore/pkg/ratelimit"
	"github.com/nimbusvault/authcore/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// BuildVersion is overridden at build time with -ldflags "-X ...".
var BuildVersion = "v0.1.0"

// Application encapsulates the auth service and all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db          store.Store
	revocations store.Revocations
	redis       goredis.UniversalClient // nil unless a redis backend is selected
	windows     *ratelimit.MemoryStore  // nil with the redis rate-limit store
	keys        *TokenKeys

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	authService         *service.AuthService
	housekeepingService *service.HousekeepingService
	housekeepingRunning bool

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initRedis(); err != nil {
		app.closeBackends()
		return nil, err
	}

	keys, err := InitTokenKeys(cfg, app.logger)
	if err != nil {
		app.closeBackends()
		return nil, fmt.Errorf("failed to initialize token keys: %w", err)
	}
	app.keys = keys

	app.initMetrics()
	if err := app.initServices(); err != nil {
		app.closeBackends()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the root HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// AuthService exposes the service for in-process callers such as authctl.
func (app *Application) AuthService() *service.AuthService { return app.authService }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()
	app.housekeepingRunning = true

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"key_mode", app.cfg.KeyMode,
		"ratelimit_store", app.cfg.RateLimitStore,
		"revocation_store", app.cfg.RevocationStore,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.housekeepingRunning {
		app.housekeepingService.Stop()
		app.housekeepingRunning = false
	}

	if err := app.closeBackends(); err != nil {
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) closeBackends() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
			errs = append(errs, err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenDatabase opens the sqlite credential database at file and applies
// migrations. ":memory:" gives a private in-memory database.
func OpenDatabase(file string) (*sqlite.Store, error) {
	dsn := file
	if dsn != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", file)
	}
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return db, nil
}

// versionedDB is the part of *sqlite.Store that checkSchema needs.
type versionedDB interface {
	SchemaVersion() (uint, error)
	Close() error
}

// checkSchema reads the schema version of a freshly migrated database and
// closes db when it cannot be read.
func checkSchema(db versionedDB) (uint, error) {
	version, err := db.SchemaVersion()
	if err != nil {
		_ = db.Close()
		return 0, fmt.Errorf("failed to read database schema version: %w", err)
	}
	return version, nil
}

func (app *Application) initDatabase() error {
	db, err := OpenDatabase(app.cfg.DatabaseFile)
	if err != nil {
		return err
	}
	version, err := checkSchema(db)
	if err != nil {
		return err
	}
	app.db = db
	app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile, "schema_version", version)
	return nil
}

func (app *Application) initRedis() error {
	if !app.cfg.usesRedis() {
		return nil
	}
	client := goredis.NewClient(&goredis.Options{Addr: app.cfg.RedisAddr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to reach redis at %s: %w", app.cfg.RedisAddr, err)
	}
	app.redis = client
	app.logger.Info("redis connected", "addr", app.cfg.RedisAddr)
	return nil
}

func (app *Application) initMetrics() {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.New(app.registry)
}

// initServices builds the auth service and housekeeping from config.
func (app *Application) initServices() error {
	hasher, err := cryptox.NewHasher(app.cfg.PasswordHash, app.cfg.Pepper)
	if err != nil {
		return err
	}

	var windows ratelimit.WindowStore
	if app.cfg.RateLimitStore == BackendRedis {
		windows = ratelimit.NewRedisStore(app.redis, "")
	} else {
		app.windows = ratelimit.NewMemoryStore()
		app.metrics.TrackWindows(app.windows.Len)
		windows = app.windows
	}

	app.revocations = app.db.Revocations()
	if app.cfg.RevocationStore == BackendRedis {
		app.revocations = redisstore.NewRevocations(app.redis, "")
	}

	issuer := jwtx.NewIssuer(app.keys.Signer, app.cfg.Issuer)
	issuer.AccessTTL = app.cfg.AccessTTL
	issuer.RefreshTTL = app.cfg.RefreshTTL

	app.authService = &service.AuthService{
		Credentials:   app.db.Credentials(),
		Revocations:   app.revocations,
		Hasher:        hasher,
		Limiter:       ratelimit.New(windows, app.cfg.LoginRateLimit, app.cfg.LoginRateWindow),
		Issuer:        issuer,
		Verifier:      app.keys.Verifier,
		LookupTimeout: app.cfg.LookupTimeout,
		RotateRefresh: app.cfg.RotateRefresh,
		Metrics:       app.metrics,
	}

	var pruner service.WindowPruner
	if app.windows != nil {
		pruner = app.windows
	}
	app.housekeepingService = service.NewHousekeepingService(
		app.revocations,
		pruner,
		app.cfg.LoginRateWindow,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keys.Keys,
		app.keys.Verifier,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.AuthService = app.authService
	router.Signer = app.keys.Signer
	router.Metrics = app.metrics
	router.Gatherer = app.registry
	router.Cookies = httpapi.CookieConfig{Secure: app.cfg.CookieSecure, Domain: app.cfg.CookieDomain}
	router.TrustProxy = app.cfg.TrustProxy
	router.PublicLimit = httpx.ParseThrottleFromEnv("PUBLIC", httpx.PublicLimit)
	if app.redis != nil {
		router.Cache = pingerFunc(func(ctx context.Context) error {
			return app.redis.Ping(ctx).Err()
		})
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
