package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authgate/api"
	"authgate/cli"
	"authgate/config"
	"authgate/core/store"
	"authgate/core/utils"
)

func main() {
	if len(os.Args) > 1 {
		cli.Run()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := utils.NewLogger()

	db, err := openDatabase(cfg, logger)
	if err != nil {
		logger.Fatalf("db init: %v", err)
	}
	if db != nil {
		defer db.Close()
	}

	srv, err := api.NewServer(cfg, db, logger)
	if err != nil {
		logger.Fatalf("server init: %v", err)
	}
	go func() {
		// ErrServerClosed is the normal outcome of Stop, not a failure.
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()
	logger.Printf("gateway listening on %s (session backend %s)", cfg.ListenAddr, cfg.Session.Backend)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range stop {
		if sig == syscall.SIGHUP {
			if err := srv.ReloadRoutes(); err != nil {
				logger.Errorf("route reload: %v", err)
			}
			continue
		}
		break
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Errorf("graceful shutdown: %v", err)
	}
}

// openDatabase sets up the relational store only when something needs it; the
// kv session backends run without one.
func openDatabase(cfg *config.AppConfig, logger *utils.Logger) (db *sql.DB, err error) {
	if cfg.Session.Backend != "sql" {
		return nil, nil
	}
	db, err = store.NewDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := store.ApplyMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
