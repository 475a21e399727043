// Package main initializes and starts the Smart Bookmarks server, setting up
// configuration, logging, the data service, the session store, services,
// handlers, and optional TLS.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atinyakov/SmartBookmarks/internal/config"
	"github.com/atinyakov/SmartBookmarks/internal/dataservice"
	"github.com/atinyakov/SmartBookmarks/internal/db"
	"github.com/atinyakov/SmartBookmarks/internal/identity"
	"github.com/atinyakov/SmartBookmarks/internal/logger"
	"github.com/atinyakov/SmartBookmarks/internal/middleware"
	"github.com/atinyakov/SmartBookmarks/internal/repository"
	"github.com/atinyakov/SmartBookmarks/internal/server/handler/http"
	"github.com/atinyakov/SmartBookmarks/internal/service"
	"github.com/atinyakov/SmartBookmarks/internal/workspace"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 10 * time.Second

// workspaceStore is what both the screen controller and the API need
// from the workspace backend.
type workspaceStore interface {
	workspace.Store
	http.Locker
}

func main() {
	// Parse command-line, config file and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", orDefault(version, "N/A"))
	fmt.Printf("Build date: %s\n", orDefault(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]http.Checker{}

	// Data service. Missing configuration is not fatal: the screens show
	// a banner instead of bookmarks.
	var client dataservice.Client = dataservice.Unavailable{}
	if options.DataServiceConfigured() {
		dsn, err := db.BuildDSN(options.DataServiceURL, options.DataServiceKey)
		if err != nil {
			zapLogger.Fatal("invalid data service configuration", zap.Error(err))
		}
		postgresDB, err := db.OpenPostgres(dsn)
		if err != nil {
			zapLogger.Fatal("invalid data service configuration", zap.Error(err))
		}
		defer postgresDB.Close()

		// An unreachable data service is not fatal: the schema is applied
		// on the first call that gets through.
		sqlClient := dataservice.NewSQLClient(postgresDB)
		sqlClient.Setup = db.ApplySchema
		readyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := sqlClient.Ready(readyCtx); err != nil {
			zapLogger.Warn("data service unreachable; will retry on first use", zap.Error(err))
		}
		cancel()
		client = sqlClient
		checks["data_service"] = sqlClient.Ping
	} else {
		zapLogger.Warn("data service is not configured; bookmarks are unavailable")
	}

	// Session store. Without Redis, sign-in is disabled and workspaces are
	// kept in memory.
	var redisClient *redis.Client
	if options.RedisAddr != "" {
		rc, err := db.InitRedis(ctx, db.RedisOptions{
			Addr:     options.RedisAddr,
			Password: options.RedisPassword,
			DB:       options.RedisDB,
		})
		if err != nil {
			zapLogger.Warn("redis unavailable; sign-in disabled", zap.Error(err))
		} else {
			redisClient = rc
			defer redisClient.Close()
			checks["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
		}
	}

	var store workspaceStore
	if redisClient != nil {
		store = workspace.NewRedisStore(redisClient, options.WorkspaceIdleTTL)
	} else {
		mem := workspace.NewMemoryStore()
		workspace.StartSweeper(ctx, mem, time.Minute, options.WorkspaceIdleTTL, zapLogger)
		store = mem
	}

	identityService := identity.NewDisabledService()
	switch {
	case !options.IdentityConfigured():
		zapLogger.Warn("sign-in is not configured")
	case redisClient == nil:
		zapLogger.Warn("sign-in needs redis; running without it")
	default:
		identityService = identity.NewService(
			identity.NewRedisStore(redisClient),
			identity.NewTokenSigner(options.SessionSecret),
			options.SessionTTL,
			zapLogger,
		)
		identityService.Register(identity.ProviderGoogle, identity.NewGoogleProvider(
			options.GoogleClientID,
			options.GoogleClientSecret,
			options.RedirectURL(),
		))
	}

	// Initialize repository and business-logic services.
	bookmarkRepo := repository.NewBookmarkRepository(client)
	bookmarkService := service.NewBookmarkService(bookmarkRepo)
	controller := workspace.NewController(bookmarkService, store, zapLogger)

	// Create HTTP handlers.
	pageHandler := &http.PageHandler{
		Identity:      identityService,
		Workspace:     controller,
		Log:           zapLogger,
		SecureCookies: options.SecureCookies(),
	}
	apiHandler := &http.APIHandler{Bookmarks: bookmarkService, Inflight: store, Log: zapLogger}
	healthHandler := &http.HealthHandler{
		Version:   version,
		BuildDate: buildDate,
		StartTime: time.Now(),
		Checks:    checks,
	}

	// Build the router with middleware and routes.
	router := http.NewRouter(pageHandler, apiHandler, healthHandler, middleware.NewGate(identityService, zapLogger), zapLogger)

	server := &nethttp.Server{
		Addr:              options.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if options.TLSCert != "" && options.TLSKey != "" {
			zapLogger.Info("starting HTTPS server", zap.String("addr", options.Addr))
			err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
		} else {
			zapLogger.Info("starting HTTP server", zap.String("addr", options.Addr))
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		zapLogger.Info("shutting down gracefully")
	case err := <-errCh:
		zapLogger.Fatal("failed to start server", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("failed to stop server", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}

// orDefault returns v, or def when v is empty (cmp.Or equivalent for Go 1.21).
func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
