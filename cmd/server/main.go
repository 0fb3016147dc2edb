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

	"github.com/gin-gonic/gin"

	"videotemplate-render-service/internal/blob"
	"videotemplate-render-service/internal/cache"
	"videotemplate-render-service/internal/config"
	"videotemplate-render-service/internal/handlers"
	"videotemplate-render-service/internal/ingest"
	"videotemplate-render-service/internal/jobstore"
	"videotemplate-render-service/internal/logger"
	"videotemplate-render-service/internal/media"
	"videotemplate-render-service/internal/observability"
	"videotemplate-render-service/internal/queue"
	"videotemplate-render-service/internal/render"
	"videotemplate-render-service/internal/router"
)

func main() {
	cfg := config.Load()

	logger.Init("videotemplate-render-service", cfg.Env, logger.ParseLevelFromEnv())

	shutdownOTel, err := observability.InitOTel(context.Background(), "videotemplate-render-service")
	if err != nil {
		log.Printf("Warning: Failed to initialize OpenTelemetry: %v", err)
	} else {
		defer func() {
			if err := shutdownOTel(context.Background()); err != nil {
				log.Printf("Error shutting down OpenTelemetry: %v", err)
			}
		}()
		slog.Info("OpenTelemetry initialized")
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	kv, err := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Printf("Warning: Redis cache not configured: %v", err)
	}

	blobStore, err := blob.New(blob.Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicURL:       cfg.R2PublicURL,
	})
	if err != nil {
		log.Printf("Warning: R2 blob store not configured: %v", err)
	}

	store := jobstore.New(kv, blobStore, cfg.JobSnapshotTTL)
	defer store.Close()

	ingestor, err := ingest.New(cfg.ScratchDir, cfg.AllowInsecureHTTP)
	if err != nil {
		log.Fatal("Failed to initialize asset ingestor:", err)
	}

	prober := media.NewProber(cfg.FFprobeBin)

	engine, err := render.New(cfg.FFmpegBin, cfg.ScratchDir)
	if err != nil {
		log.Fatal("Failed to initialize render engine:", err)
	}
	if err := engine.CheckBinary(context.Background()); err != nil {
		log.Printf("Warning: ffmpeg binary check failed: %v", err)
	}

	jobQueue := queue.New(store, engine, cfg.MaxActiveJobsPerOwner, cfg.CircuitBreakerStallThreshold, cfg.CircuitBreakerCooldown)

	processHandler := &handlers.ProcessHandler{
		Store:                 store,
		Queue:                 jobQueue,
		Ingestor:              ingestor,
		Prober:                prober,
		MaxActiveJobsPerOwner: cfg.MaxActiveJobsPerOwner,
	}
	outputHandler := &handlers.OutputHandler{OutputDir: cfg.ScratchDir}

	r := router.Setup(processHandler, outputHandler)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	slog.Info("server exited")
}
