// Package app assembles the token gate service: configuration, signing
// codec, revocation store driver, services, and the HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	httpapi "github.com/aussiebroadwan/tokengate/internal/gate/http"
	"github.com/aussiebroadwan/tokengate/internal/gate/service"
	"github.com/aussiebroadwan/tokengate/pkg/blacklist"
	"github.com/aussiebroadwan/tokengate/pkg/blacklist/drivers/docapi"
	"github.com/aussiebroadwan/tokengate/pkg/blacklist/drivers/mongoapi"
	"github.com/aussiebroadwan/tokengate/pkg/blacklist/drivers/redisstore"
	"github.com/aussiebroadwan/tokengate/pkg/blacklist/drivers/sqlitestore"
	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the token gate service with all its dependencies.
type Application struct {
	cfg    *Config
	logger *slog.Logger

	codec     jwtx.Codec
	issuer    *jwtx.Issuer
	verifier  *jwtx.Verifier
	blacklist *blacklist.Client

	// Driver handles kept for shutdown.
	sqliteStore *sqlitestore.Store
	redisClient *redis.Client

	tokenService        *service.TokenService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg *Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "tokengate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initCodec(); err != nil {
		return nil, err
	}
	if err := app.initBlacklist(); err != nil {
		return nil, err
	}

	var checker jwtx.RevocationChecker
	if app.blacklist != nil {
		checker = app.blacklist
	}
	verifier, err := jwtx.NewVerifier(app.codec, checker, cfg.FailMode())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize verifier: %w", err)
	}
	app.verifier = verifier

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	if app.housekeepingService != nil {
		app.housekeepingService.Start()
	}

	app.logger.Info("token gate starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"blacklist_driver", app.cfg.Blacklist.Driver,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
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
	app.logger.Info("shutting down token gate...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.housekeepingService != nil {
		app.housekeepingService.Stop()
	}

	if app.sqliteStore != nil {
		if err := app.sqliteStore.Close(); err != nil {
			app.logger.Error("error closing sqlite store", "error", err)
		}
	}
	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	app.logger.Info("token gate stopped")
	return nil
}

// initCodec builds the signing codec and issuer from the configured
// algorithm and key material.
func (app *Application) initCodec() error {
	var key []byte
	if app.cfg.JWT.PrivateKeyFile != "" {
		pem, err := os.ReadFile(app.cfg.JWT.PrivateKeyFile)
		if err != nil {
			return fmt.Errorf("failed to read private key file: %w", err)
		}
		key = pem
	} else {
		key = []byte(app.cfg.JWT.Secret)
	}

	codec, err := jwtx.NewCodec(app.cfg.JWT.Algorithm, key)
	if err != nil {
		return fmt.Errorf("failed to initialize codec: %w", err)
	}
	app.codec = codec

	issuer, err := jwtx.NewIssuer(codec, app.cfg.JWT.AccessTTL, app.cfg.JWT.RefreshTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize issuer: %w", err)
	}
	app.issuer = issuer

	return nil
}

// initBlacklist builds the configured revocation store driver and the
// client over it. With the "none" driver no client is built and revocation
// checking is disabled.
func (app *Application) initBlacklist() error {
	var store blacklist.Store

	switch app.cfg.Blacklist.Driver {
	case DriverMongoAPI:
		store = mongoapi.New(app.cfg.Blacklist.Endpoint, app.cfg.Blacklist.Collection, app.cfg.Blacklist.Timeout)
	case DriverDocAPI:
		store = docapi.New(app.cfg.Blacklist.Endpoint, app.cfg.Blacklist.Collection, app.cfg.Blacklist.Timeout)
	case DriverRedis:
		app.redisClient = redis.NewClient(&redis.Options{Addr: app.cfg.Blacklist.RedisAddr})
		store = redisstore.New(app.redisClient, "")
	case DriverSQLite:
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.Blacklist.DatabaseFile)
		sq, err := sqlitestore.NewStore(dsn)
		if err != nil {
			return fmt.Errorf("failed to initialize sqlite blacklist: %w", err)
		}
		if err := sq.ApplyMigrations(); err != nil {
			_ = sq.Close()
			return fmt.Errorf("failed to apply blacklist migrations: %w", err)
		}
		app.sqliteStore = sq
		store = sq
		app.logger.Info("blacklist migrations applied successfully")
	case DriverNone:
		app.logger.Warn("revocation checking disabled: blacklist driver is none")
		return nil
	}

	bl, err := blacklist.New(store, jwtx.ExpiryOf(app.codec))
	if err != nil {
		return fmt.Errorf("failed to initialize blacklist client: %w", err)
	}
	app.blacklist = bl
	return nil
}

// initServices initializes the business logic services.
func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Issuer:    app.issuer,
		Verifier:  app.verifier,
		Blacklist: app.blacklist,
		AccessTTL: app.cfg.JWT.AccessTTL,
	}

	if app.blacklist != nil {
		app.housekeepingService = service.NewHousekeepingService(
			app.blacklist,
			app.logger,
			app.cfg.HousekeepingInterval,
		)
	}
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.verifier,
		app.cfg.IssuerKey,
		BuildVersion,
		app.blacklist,
		app.logger,
	)

	router.TokenService = app.tokenService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
