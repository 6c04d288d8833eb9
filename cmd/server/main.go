package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rpggio/hq/internal/app"
	"github.com/rpggio/hq/internal/config"
	"github.com/rpggio/hq/internal/logging"
	"github.com/rpggio/hq/internal/postgres"
	"github.com/rpggio/hq/internal/remote"
	"github.com/rpggio/hq/internal/sqlite"
	"github.com/rpggio/hq/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(cfg.Log.Level, cfg.Log.File, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		logger, logCloser, _ = logging.New(cfg.Log.Level, "", os.Stdout)
	}
	defer logCloser.Close()

	// API keys always live in the sqlite database, whatever serves records.
	db, err := app.OpenSQLite(cfg.DB.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	keys := sqlite.NewAPIKeyResolver(db)
	if token, owner := os.Getenv("HQ_API_TOKEN"), os.Getenv("HQ_API_OWNER"); token != "" && owner != "" {
		err := keys.AddAPIKey(context.Background(), token, owner, "bootstrap")
		if err != nil && !errors.Is(err, remote.ErrConflict) {
			logger.Error("failed to register bootstrap token", "error", err)
			os.Exit(1)
		}
		logger.Info("registered bootstrap token", "owner_id", owner)
	}

	store, closeStore, err := openStore(cfg, db)
	if err != nil {
		logger.Error("failed to open record store", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	router := transport.NewServer(store, transport.AuthMiddleware(keys), logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr, "backend", cfg.Backend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(logger, httpServer)
}

// openStore picks the record store. The rpc backend makes no sense here and
// falls back to sqlite.
func openStore(cfg config.Config, db *sqlite.DB) (remote.Store, func(), error) {
	if strings.ToLower(cfg.Backend) != config.BackendPostgres {
		return sqlite.NewStore(db), func() {}, nil
	}
	store, err := postgres.Open(cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func waitForShutdown(logger *slog.Logger, server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
