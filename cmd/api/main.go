package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finsent-backend/cmd"
	"finsent-backend/internal/api"
	"finsent-backend/internal/config"
	"finsent-backend/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()

	cfg, err := config.LoadServingConfig()
	if err != nil {
		log.Fatalf("error parsing config: %v", err)
	}
	cmd.SetupLogging(cfg.LogLevel)

	if cfg.CheckpointS3URI != "" {
		provider := cmd.CreateStorageProvider(context.Background(), cfg.S3)
		if err := cmd.FetchCheckpoint(context.Background(), provider, cfg.CheckpointS3URI, cfg.CheckpointDir); err != nil {
			log.Fatalf("Failed to fetch checkpoint: %v", err)
		}
	}

	pipeline, model, err := core.LoadPipeline(cfg.Pipeline(), core.OnnxModelLoader(cfg.Onnx.Runtime()))
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}
	defer func() {
		pipeline.Release()
		if err := core.DestroyOnnxRuntime(); err != nil {
			slog.Error("error destroying onnx env", "error", err)
		}
	}()

	db := cmd.OpenDatabase(cfg.DatabaseURL)

	var metrics *api.Metrics
	if cfg.EnableMetrics {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = api.NewMetrics(registry)
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if metrics != nil {
		r.Use(metrics.Middleware)
	}

	apiHandler := api.NewBackendService(pipeline, model, db, metrics)
	apiHandler.AddRoutes(r)

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	slog.Info("server started", "port", cfg.APIPort, "checkpoint", model.Checkpoint, "labels", model.Labels)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	slog.Info("server stopped")
}
