package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-progress/internal/api"
	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/platform/cache"
	"github.com/p-n-ai/pai-progress/internal/platform/config"
	"github.com/p-n-ai/pai-progress/internal/platform/database"
	"github.com/p-n-ai/pai-progress/internal/platform/logging"
	"github.com/p-n-ai/pai-progress/internal/platform/metrics"
	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/roster"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log, os.Stdout)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.Server.Metrics {
		m = metrics.New()
	}
	hub := api.NewHub()
	events := roster.MultiEventLogger{hub, m}

	var pool *pgxpool.Pool
	if cfg.Roster.Source == config.SourcePostgres {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx, roster.Schema); err != nil {
			return err
		}
		pool = db.Pool
		events = append(events, roster.NewPostgresEventLogger(db.Pool))
	}

	source, err := roster.Open(cfg.Roster, cat, pool)
	if err != nil {
		return err
	}
	store := roster.NewStore(source, events)
	if _, err := store.Reload(ctx); err != nil {
		// Keep serving; the watcher retries and /readyz reports not ready.
		slog.Error("initial roster load failed", "source", source.Name(), "error", err)
	}
	go store.Watch(ctx, cfg.Roster.ReloadInterval)

	var c *cache.Cache
	if cfg.CacheEnabled() {
		c, err = cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			slog.Warn("cache unavailable, summaries will not be cached", "error", err)
		} else {
			defer c.Close()
		}
	}

	srv := api.NewServer(progress.NewEngine(cat), store, api.Options{
		Cache:    c,
		CacheTTL: cfg.Cache.TTL,
		Metrics:  m,
		Hub:      hub,
	})

	mux := newMux(store)
	srv.Register(mux)
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", httpSrv.Addr, "source", source.Name())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return nil
}

// readiness is satisfied by *roster.Store.
type readiness interface {
	Ready() bool
}

// newMux creates the HTTP router with health check endpoints.
func newMux(r readiness) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", handleReadyz(r))
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func handleReadyz(ready readiness) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !ready.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"loading"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}
}
