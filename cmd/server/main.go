// Command server runs the vortice admission gateway.
//
// Configuration is layered: built-in defaults, a YAML config file
// (-config flag, VORTICE_CONFIG env, ./config.yaml, /etc/vortice/config.yaml),
// then VORTICE_* environment overrides. The token signing secret is
// required; see pkg/config for the full surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/transer/vortice/pkg/admission"
	"github.com/transer/vortice/pkg/auth"
	"github.com/transer/vortice/pkg/config"
	"github.com/transer/vortice/pkg/httpapi"
	"github.com/transer/vortice/pkg/identity"
	"github.com/transer/vortice/pkg/observability"
	"github.com/transer/vortice/pkg/ratelimit"
	"github.com/transer/vortice/pkg/storage/memory"
	"github.com/transer/vortice/pkg/storage/postgres"
	"github.com/transer/vortice/pkg/token"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	codec, err := token.New(token.Config{
		Secret:     cfg.Token.Secret,
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
	})
	if err != nil {
		return fmt.Errorf("creating token codec: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wire the record and user stores.
	var (
		records httpapi.RecordStore
		users   identity.Store
	)
	switch cfg.Storage.Type {
	case "postgres":
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:             cfg.Storage.Postgres.DSN,
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			MaxConnLifetime: cfg.Storage.Postgres.MaxConnLifetime,
			MigrateOnStart:  cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pg.Close()
		records = pg
		users = identity.NewPostgresStore(pg.Pool())
		slog.Info("storage enabled", "type", "postgres")
	default:
		records = memory.New()
		mem, err := identity.NewMemoryStore(cfg.Identity.Users)
		if err != nil {
			return fmt.Errorf("seeding user store: %w", err)
		}
		users = mem
		slog.Info("storage enabled", "type", "memory", "seeded_users", len(cfg.Identity.Users))
	}

	// Assemble the admission pipeline.
	limiter := ratelimit.NewStore(cfg.RateLimit)
	resolver := auth.NewResolver(codec, users)
	pipeline := admission.New(limiter, resolver, nil)

	// Sample the live bucket count for the tracked-buckets gauge.
	go func() {
		tick := time.NewTicker(15 * time.Second)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				observability.TrackedBuckets.Set(float64(limiter.Len()))
			}
		}
	}()

	// API routes.
	mux := http.NewServeMux()
	api := httpapi.NewHandler(codec, users)
	api.Routes(mux)

	recs := httpapi.NewRecordHandler(records)
	mux.Handle("GET /api/v1/offices/{officeID}/records",
		admission.RequireTenantParam("officeID", http.HandlerFunc(recs.List)))
	mux.Handle("GET /api/v1/offices/{officeID}/records/{recordID}",
		admission.RequireTenantParam("officeID", http.HandlerFunc(recs.Get)))
	mux.Handle("POST /api/v1/offices/{officeID}/records",
		admission.RequireTenantParam("officeID", http.HandlerFunc(recs.Create)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	handler := observability.MetricsMiddleware(pipeline.Middleware(mux))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting",
			"port", cfg.Server.Port,
			"storage", cfg.Storage.Type,
			"rate_limiting", cfg.RateLimit.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
