// dietplan serves the household meal planner: weekly templates, recorded
// choices, a free-meal quota and per-profile access control, over a
// websocket command API backed by one SQLite file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dietplan/dietplan/internal/acl"
	"github.com/dietplan/dietplan/internal/config"
	"github.com/dietplan/dietplan/internal/health"
	"github.com/dietplan/dietplan/internal/identity"
	"github.com/dietplan/dietplan/internal/logging"
	"github.com/dietplan/dietplan/internal/metrics"
	"github.com/dietplan/dietplan/internal/planner"
	"github.com/dietplan/dietplan/internal/profiles"
	"github.com/dietplan/dietplan/internal/service"
	"github.com/dietplan/dietplan/internal/store"
	"github.com/dietplan/dietplan/internal/wsapi"
)

func main() {
	cfg, err := config.New("")
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer logging.Sync(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DBPath, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	users := identity.File{Path: cfg.UsersFile}
	dir := profiles.NewDirectory(db, users, log)
	plan := planner.New(db, log)
	policy := cfg.QuotaPolicy()
	svc := service.New(dir, acl.NewChecker(db), plan, policy, log)

	if cfg.SyncOnStart {
		if _, statErr := os.Stat(cfg.UsersFile); statErr == nil {
			res, err := svc.SyncProfiles(ctx, service.SyncRequest{IncludeSystem: cfg.IncludeSystemUsers})
			if err != nil {
				return fmt.Errorf("initial profile sync: %w", err)
			}
			log.Info("initial profile sync", zap.Int("profiles", res.Count))
		} else {
			log.Warn("users file not found; skipping initial sync", zap.String("path", cfg.UsersFile))
		}
	}

	if !cfg.LogDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}
	reg := health.NewRegistry()
	reg.Register("database", db)
	m := metrics.New(dir, plan, policy.PerWeek, log)

	srv := wsapi.NewServer(svc, reg, m, log)
	srv.Addr = cfg.ListenAddr
	srv.CallerHeader = cfg.CallerHeader
	reg.Register("wsapi", srv)

	log.Info("dietplan starting",
		zap.String("db", cfg.DBPath),
		zap.Int("free_meals_per_week", policy.PerWeek),
		zap.String("free_limit_mode", string(policy.Mode)))
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	log.Info("dietplan stopped")
	return nil
}
