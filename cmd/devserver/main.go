// contentIQ dev backend: a local stand-in for the widget API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/symplistic/contentiq-widget/internal/api"
	"github.com/symplistic/contentiq-widget/internal/config"
	"github.com/symplistic/contentiq-widget/internal/logging"
	"github.com/symplistic/contentiq-widget/internal/metrics"
	"github.com/symplistic/contentiq-widget/internal/middleware"
	"github.com/symplistic/contentiq-widget/internal/store"
	"github.com/symplistic/contentiq-widget/internal/transcript"
	"github.com/symplistic/contentiq-widget/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.LoadDevServer()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		slog.Error("Failed to configure logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	slog.Info("Starting dev backend", "port", cfg.Port, "agents", len(cfg.Agents), "dev", cfg.IsDevelopment())

	storage, err := store.Open(cfg.Store, cfg.StorePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "driver", cfg.Store, "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := storage.Close(); closeErr != nil {
			slog.Error("Failed to close storage", "error", closeErr)
		}
	}()
	slog.Info("Storage ready", "driver", cfg.Store)

	styling, err := cfg.Styling()
	if err != nil {
		slog.Error("Invalid styling configuration", "error", err)
		os.Exit(1)
	}

	transcripts, err := transcript.New(transcript.Config{
		Enabled:   cfg.TranscriptDir != "",
		Dir:       cfg.TranscriptDir,
		QueueSize: cfg.TranscriptQueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript logging", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := transcripts.Close(); closeErr != nil {
			slog.Error("Failed to close transcript log", "error", closeErr)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	handler := api.NewHandler(api.Settings{
		Agents:        cfg.Agents,
		MaxSkew:       cfg.MaxSkew,
		ThreadTimeout: cfg.ThreadTimeout,
		DoubleEncode:  cfg.DoubleEncode,
		Styling:       styling,
	}, storage, api.WithMetrics(m), api.WithLogger(logger), api.WithTranscript(transcripts))
	healthHandler := api.NewHealthHandler(storage)

	origins := []string{"*"}
	if !cfg.IsDevelopment() {
		origins = []string{cfg.FrontendURL}
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(origins))

	healthHandler.RegisterHealth(r)
	handler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Handle("/*", web.Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
