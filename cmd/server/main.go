package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apihttp "github.com/TellyCloud/torrent-stream-server/internal/api/http"
	"github.com/TellyCloud/torrent-stream-server/internal/app"
	"github.com/TellyCloud/torrent-stream-server/internal/auth"
	"github.com/TellyCloud/torrent-stream-server/internal/metrics"
	"github.com/TellyCloud/torrent-stream-server/internal/services/swarm/anacrolix"
	"github.com/TellyCloud/torrent-stream-server/internal/session"
	"github.com/TellyCloud/torrent-stream-server/internal/telemetry"
	"github.com/TellyCloud/torrent-stream-server/internal/usecase"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "torrent-stream-server")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "torrent-stream-server"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("dataDir", cfg.DataDir),
		slog.Bool("requireAuth", cfg.RequireAuth),
		slog.Duration("idleTTL", cfg.IdleTTL),
		slog.Duration("creationTimeout", cfg.CreationTimeout),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("data dir create failed", slog.String("dir", cfg.DataDir), slog.String("error", err.Error()))
		os.Exit(1)
	}

	engine, err := anacrolix.New(anacrolix.Config{DataDir: cfg.DataDir})
	if err != nil {
		logger.Error("swarm engine init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	registry := session.NewRegistry(engine,
		session.Config{IdleTTL: cfg.IdleTTL, CreationTimeout: cfg.CreationTimeout},
		session.WithNormalizer(anacrolix.NormalizeIdentifier),
		session.WithLogger(logger),
	)

	listUC := usecase.ListFiles{Registry: registry}
	streamUC := usecase.OpenStream{Registry: registry}

	options := []apihttp.ServerOption{
		apihttp.WithLogger(logger),
		apihttp.WithOpenStream(streamUC),
		apihttp.WithSessionsView(registry),
		apihttp.WithAllowedOrigins(cfg.CORSOrigins),
		apihttp.WithAuth(auth.NewService(cfg.JWTSecret), cfg.RequireAuth),
	}

	handler := apihttp.NewServer(listUC, options...)

	// Periodically update Prometheus gauges from registry state.
	go updateRegistryMetrics(rootCtx, registry)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	handler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	registry.Shutdown()
	if err := engine.Close(); err != nil {
		logger.Warn("engine close error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

func updateRegistryMetrics(ctx context.Context, registry *session.Registry) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshots := registry.Snapshot()
			var readers int64
			for _, snap := range snapshots {
				readers += snap.ActiveReaders
			}
			metrics.ActiveSessions.Set(float64(len(snapshots)))
			metrics.ActiveReaders.Set(float64(readers))
		}
	}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
