package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/p-n-ai/eduruang/internal/api"
	"github.com/p-n-ai/eduruang/internal/app"
	"github.com/p-n-ai/eduruang/internal/catalog"
	"github.com/p-n-ai/eduruang/internal/notification"
	"github.com/p-n-ai/eduruang/internal/platform/cache"
	"github.com/p-n-ai/eduruang/internal/platform/config"
	"github.com/p-n-ai/eduruang/internal/platform/database"
	"github.com/p-n-ai/eduruang/internal/storage"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.Log))

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store, events, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open storage", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	cat, err := catalog.NewLoader(cfg.Catalog.Path)
	if err != nil {
		slog.Error("failed to load catalog", "path", cfg.Catalog.Path, "error", err)
		os.Exit(1)
	}

	docs, err := storage.NewDocuments(store)
	if err != nil {
		slog.Error("failed to compile state schemas", "error", err)
		os.Exit(1)
	}

	ws := notification.NewWebSocketChannel()
	gateway := notification.NewGateway()
	gateway.Register("websocket", ws)

	a := app.New(app.Config{
		Catalog:    cat,
		Documents:  docs,
		Gateway:    gateway,
		Events:     events,
		SessionTTL: cfg.Game.SessionTTL,
	})
	if err := a.Load(ctx); err != nil {
		slog.Error("failed to restore state", "error", err)
		os.Exit(1)
	}

	mux := newMux(a.Ready)
	api.New(a).Register(mux)
	mux.Handle("GET /ws/notifications", ws.Handler(api.UserID))

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.Game.SessionTTL > 0 {
		go sweepSessions(ctx, a, cfg.Game.SweepInterval)
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := gateway.CloseAll(); err != nil {
		slog.Warn("closing notification channels", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newLogger builds the process logger from the log settings.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// openStore connects the configured storage backend. The returned func
// releases its connections.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, app.EventLogger, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		c, err := cache.New(ctx, cfg.Cache)
		if err != nil {
			return nil, nil, nil, err
		}
		store, err := storage.NewRedisStore(c.Client, cfg.Storage.KeyPrefix)
		if err != nil {
			c.Close()
			return nil, nil, nil, err
		}
		return store, app.NopEventLogger{}, func() { c.Close() }, nil

	case config.BackendPostgres:
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		store, err := storage.NewPostgresStore(ctx, db.Pool, cfg.Storage.KeyPrefix)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		events, err := app.NewPostgresEventLogger(ctx, db.Pool)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return store, events, db.Close, nil

	case config.BackendMemory:
		slog.Warn("using in-memory storage; state is lost on restart")
		return storage.NewMemoryStore(), app.NopEventLogger{}, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// sweepSessions drops abandoned quiz sessions until ctx is done.
func sweepSessions(ctx context.Context, a *app.App, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.SweepExpiredGames(); n > 0 {
				slog.Debug("swept expired game sessions", "count", n)
			}
		}
	}
}

// newMux creates the HTTP router with health check endpoints.
func newMux(ready func(context.Context) error) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", handleReadyz(ready))
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func handleReadyz(ready func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ready(ctx); err != nil {
			slog.Warn("readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}
}
