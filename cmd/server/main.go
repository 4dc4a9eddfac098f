package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Spok95/e-weave/internal/api"
	"github.com/Spok95/e-weave/internal/config"
	"github.com/Spok95/e-weave/internal/domain/catalog"
	"github.com/Spok95/e-weave/internal/domain/ledger"
	"github.com/Spok95/e-weave/internal/infra/db"
	httpx "github.com/Spok95/e-weave/internal/infra/http"
	"github.com/Spok95/e-weave/internal/infra/logger"
	"github.com/Spok95/e-weave/internal/infra/memstore"
	"github.com/Spok95/e-weave/internal/infra/metrics"
	"github.com/Spok95/e-weave/internal/infra/pgstore"
)

type store interface {
	ledger.Store
	catalog.Store
}

func main() {
	configPath := flag.String("config", "config/example.yaml", "path to the config file")
	tokenFor := flag.String("token", "", "print a bearer token for this user id and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	auth := api.NewAuthenticator(cfg.Auth.JWTSecret)

	if *tokenFor != "" {
		tok, err := auth.Sign(*tokenFor, 24*time.Hour)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	log := logger.New(cfg.App.Env)
	if err := run(cfg, auth, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, auth *api.Authenticator, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st store
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		st = memstore.New()
		log.Warn("using in-memory storage; data is lost on restart")
	default:
		if err := db.Migrate(cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
		log.Info("migrations applied")

		pool, err := db.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("db connect failed: %w", err)
		}
		defer pool.Close()
		log.Info("db connected")
		st = pgstore.New(pool)
	}

	var (
		m        *metrics.Metrics
		gatherer prometheus.Gatherer
		obs      ledger.Observer
		httpObs  api.HTTPMetrics
	)
	if cfg.Metrics.Enabled {
		m = metrics.New()
		gatherer, obs, httpObs = m.Registry, m, m
	}

	l := ledger.New(st, log, obs)
	a := api.New(log, l, catalog.NewService(st), auth, httpObs)

	srv := httpx.New(cfg.HTTP.Addr, a.Routes(), gatherer)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			stop()
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr, "storage", cfg.Storage.Driver)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("graceful shutdown complete")
	return nil
}
