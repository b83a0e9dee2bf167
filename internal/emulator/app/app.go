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

	httpapi "github.com/aussiebroadwan/firekit/internal/emulator/http"
	"github.com/aussiebroadwan/firekit/internal/emulator/service"
	"github.com/aussiebroadwan/firekit/internal/emulator/store"
	"github.com/aussiebroadwan/firekit/internal/emulator/store/drivers/sqlite"
	"github.com/aussiebroadwan/firekit/pkg/jwtx"
	"github.com/aussiebroadwan/firekit/pkg/slogx"
	"github.com/jonboulle/clockwork"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application is the emulator process with all of its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger
	clock  clockwork.Clock

	db          store.Store
	idKeys      *jwtx.KeyManager
	sessionKeys *jwtx.KeyManager
	trustedKeys *jwtx.KeySet

	tokenService   *service.TokenService
	accountService *service.AccountService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with everything initialized. Nothing listens
// until Run.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg:   cfg,
		clock: clockwork.NewRealClock(),
		logger: slogx.New(slogx.Config{
			Service: "auth-emulator",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	var err error
	app.idKeys, app.sessionKeys, err = InitEmulatorKeys(app.cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.trustedKeys, err = LoadTrustedKeys(app.cfg.TrustedKeysFile, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler is the emulator's HTTP surface, for serving it from somewhere
// other than Run.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the server and blocks until it fails or a shutdown signal
// arrives.
func (app *Application) Run() error {
	app.logger.Info("auth emulator starting",
		"port", app.cfg.Port,
		"project_id", app.cfg.ProjectID,
		"version", BuildVersion,
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
			_ = app.db.Close()
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

// Shutdown drains in-flight requests and closes the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth emulator...")

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

	app.logger.Info("auth emulator stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
	return nil
}

func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Store:       app.db,
		IDKeys:      app.idKeys,
		SessionKeys: app.sessionKeys,
		ProjectID:   app.cfg.ProjectID,
		IDTokenTTL:  app.cfg.IDTokenTTL,
		Clock:       app.clock,
		Logger:      app.logger.With("component", "tokens"),
	}
	// A nil *KeySet in the interface would read as "verify"
	if app.trustedKeys != nil {
		app.tokenService.TrustedKeys = app.trustedKeys
	}

	app.accountService = &service.AccountService{
		Store:  app.db,
		Clock:  app.clock,
		Logger: app.logger.With("component", "accounts"),
	}
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.idKeys,
		app.sessionKeys,
		BuildVersion,
		app.db,
		app.clock,
		app.logger,
	)

	router.TokenService = app.tokenService
	router.AccountService = app.accountService
	router.KeyMaxAge = app.cfg.KeyMaxAge
	router.AdminToken = app.cfg.AdminToken
	router.SignInLimit = app.cfg.SignInLimit
	router.AdminLimit = app.cfg.AdminLimit
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
