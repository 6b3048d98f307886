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

	"github.com/quillworks/inkwell/internal/domain"
	"github.com/quillworks/inkwell/internal/httpapi"
	"github.com/quillworks/inkwell/internal/service"
	"github.com/quillworks/inkwell/internal/store"
	"github.com/quillworks/inkwell/internal/store/drivers/sqlite"
	"github.com/quillworks/inkwell/pkg/idx"
	"github.com/quillworks/inkwell/pkg/jwtx"
	"github.com/quillworks/inkwell/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application wires config, store, services and the HTTP server together.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db    store.Store
	codec *jwtx.Codec

	sessionService   *service.SessionService
	accessService    *service.AccessService
	userService      *service.UserService
	authorizeService *service.AuthorizeService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "inkwell",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	codec, err := initCodec(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("initialize token codec: %w", err)
	}
	app.codec = codec

	app.initServices()
	app.initHTTP()

	if err := app.bootstrapAPIKey(context.Background()); err != nil {
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("inkwell starting", "port", app.cfg.Port, "version", BuildVersion)

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

// Shutdown drains in-flight requests and releases resources.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down inkwell...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("inkwell stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied")
	return nil
}

func (app *Application) initServices() {
	app.sessionService = &service.SessionService{
		Codec:      app.codec,
		Store:      app.db,
		Issuer:     app.cfg.Issuer,
		Audience:   app.cfg.Audience,
		AccessTTL:  app.cfg.AccessTokenValidity,
		RefreshTTL: app.cfg.RefreshTokenValidity,
	}
	app.accessService = &service.AccessService{
		Store:    app.db,
		Sessions: app.sessionService,
	}
	app.userService = &service.UserService{
		Store:    app.db,
		Sessions: app.sessionService,
	}
	app.authorizeService = &service.AuthorizeService{Store: app.db}
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	router.SessionService = app.sessionService
	router.AccessService = app.accessService
	router.UserService = app.userService
	router.AuthorizeService = app.authorizeService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// bootstrapAPIKey seeds the first API key on an empty table so a fresh
// deployment can pass the gate. Existing keys always win; the variable is
// ignored once any key exists.
func (app *Application) bootstrapAPIKey(ctx context.Context) error {
	if app.cfg.BootstrapAPIKey == "" {
		return nil
	}

	empty, err := app.db.APIKeys().IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("check api keys: %w", err)
	}
	if !empty {
		return nil
	}

	err = app.db.APIKeys().CreateAPIKey(ctx, domain.APIKey{
		ID:          idx.New(),
		Key:         app.cfg.BootstrapAPIKey,
		Permissions: []domain.Permission{domain.PermissionGeneral},
		Status:      true,
	})
	if err != nil {
		return fmt.Errorf("bootstrap api key: %w", err)
	}

	app.logger.Info("bootstrap api key inserted")
	return nil
}
