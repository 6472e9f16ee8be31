// Package app assembles the process: database, engine, scheduler and
// HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/flowledger/flowledger/internal/balance"
	"github.com/flowledger/flowledger/internal/config"
	"github.com/flowledger/flowledger/internal/db"
	"github.com/flowledger/flowledger/internal/engine"
	"github.com/flowledger/flowledger/internal/fx"
	"github.com/flowledger/flowledger/internal/http/api"
	"github.com/flowledger/flowledger/internal/scheduler"
	"github.com/flowledger/flowledger/internal/settings"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Bootstrap opens the database, migrates the schema and seeds
// defaults. Every entry point goes through it.
func Bootstrap(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return nil, errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return nil, errMigrate
	}
	if _, errSeed := fx.EnsureDefaults(ctx, conn); errSeed != nil {
		return nil, errSeed
	}
	if _, errSettings := settings.GetOrCreate(ctx, conn); errSettings != nil {
		return nil, errSettings
	}
	return conn, nil
}

// NewRunner builds the evaluation engine over the shared database.
func NewRunner(conn *gorm.DB) *engine.Runner {
	return engine.NewRunner(conn, fx.NewService(conn), balance.NewSource(conn), settings.NewSource(conn))
}

// NewRouter builds the gin engine with all API routes registered.
func NewRouter(conn *gorm.DB, runner *engine.Runner) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	api.RegisterRoutes(r, conn, runner)
	return r
}

// RunServer bootstraps everything and serves HTTP until the context
// is canceled, then shuts down gracefully.
func RunServer(ctx context.Context, cfg *config.Config) error {
	conn, errBoot := Bootstrap(ctx, cfg)
	if errBoot != nil {
		return errBoot
	}
	runner := NewRunner(conn)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(conn, runner, cfg.Scheduler.Spec)
		if errStart := sched.Start(ctx); errStart != nil {
			return fmt.Errorf("app: start scheduler: %w", errStart)
		}
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           NewRouter(conn, runner),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("HTTP server listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case errServe := <-serveErr:
		if sched != nil {
			sched.Stop()
		}
		if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return errServe
		}
		return nil
	case <-ctx.Done():
	}

	if sched != nil {
		sched.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return errShutdown
	}
	log.Info("HTTP server stopped")
	return nil
}
