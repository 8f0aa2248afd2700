package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RudraShekhare/face-attendance-system/internal/api"
	"github.com/RudraShekhare/face-attendance-system/internal/api/handler"
	"github.com/RudraShekhare/face-attendance-system/internal/app"
	"github.com/RudraShekhare/face-attendance-system/internal/config"
	"github.com/RudraShekhare/face-attendance-system/internal/extractor"
	_ "github.com/RudraShekhare/face-attendance-system/internal/extractor/dlib"
	"github.com/RudraShekhare/face-attendance-system/internal/logger"
	"github.com/go-co-op/gocron"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := app.NewLogger(&cfg.Log, "face-attendance-api")
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	// Daily export
	var scheduler *gocron.Scheduler
	if cfg.Export.Schedule != "" {
		scheduler, err = application.Attendance.StartScheduler(ctx, cfg.Export.Schedule, cfg.Export.CSVPath, cfg.Export.XLSXPath)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to start export scheduler")
		}
	}

	checkinMode, _ := extractor.ParseMode(cfg.Recognition.CheckinMode)
	admin := handler.NewAdminHandler(ctx, application.Rebuilds)

	// Setup router
	router := api.SetupRouter(&api.Handlers{
		Health: handler.NewHealthHandler(application.Recognition),
		Face: handler.NewFaceHandler(application.Enrollment, application.Recognition, handler.FaceHandlerConfig{
			MaxUploadBytes:   cfg.Server.MaxUploadBytes,
			DefaultMode:      checkinMode,
			DefaultTolerance: cfg.Recognition.CheckinTolerance,
		}),
		Attendance: handler.NewAttendanceHandler(application.Attendance),
		Admin:      admin,
	}, &cfg.Server, appLogger)

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	// Stop background work before closing the extractors it uses
	cancel()
	admin.Wait()
	if scheduler != nil {
		scheduler.Stop()
	}

	appLogger.Info("Server exited")
}
