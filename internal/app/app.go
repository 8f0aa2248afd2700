// Package app wires configuration into the repositories, extractors and
// services shared by the API server and the facectl command.
package app

import (
	"context"
	"fmt"

	"github.com/RudraShekhare/face-attendance-system/internal/config"
	"github.com/RudraShekhare/face-attendance-system/internal/extractor"
	"github.com/RudraShekhare/face-attendance-system/internal/gallery"
	"github.com/RudraShekhare/face-attendance-system/internal/logger"
	"github.com/RudraShekhare/face-attendance-system/internal/repository"
	"github.com/RudraShekhare/face-attendance-system/internal/service"
	"github.com/RudraShekhare/face-attendance-system/internal/source"
	"github.com/RudraShekhare/face-attendance-system/internal/storage"
	"gorm.io/gorm"
)

// App holds the initialized services. Close releases everything New opened.
type App struct {
	Config  *config.Config
	Logger  *logger.Logger
	Dataset *source.Dataset

	Attendance  *service.AttendanceService
	Enrollment  *service.EnrollmentService
	Recognition *service.RecognitionService
	Rebuilds    *service.RebuildRunner

	db         *gorm.DB
	extractors []extractor.FeatureExtractor
	index      *repository.FaceIndex
}

// NewLogger builds the process logger from LOG_* variables overlaid with
// cfg.Log and installs it as default.
func NewLogger(cfg *config.LogConfig, serviceName string) *logger.Logger {
	lc := logger.LoadFromEnv()
	lc.ServiceName = serviceName
	if cfg.Level != "" {
		lc.Level = cfg.Level
	}
	if cfg.Format != "" {
		lc.Format = cfg.Format
	}
	if cfg.File != "" {
		lc.File = cfg.File
	}

	l := logger.New(lc)
	logger.SetDefaultLogger(l)
	return l
}

// New initializes the database, object storage, extractors, optional face
// index and services, then loads the gallery into the recognition service.
// Parameters:
//   - ctx: context for startup I/O.
//   - cfg: loaded configuration.
//   - log: process logger.
//
// Returns:
//   - *App: ready application; call Close when done.
//   - error: non-nil if any component fails to start.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	// Database
	var err error
	a.db, err = repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	attendanceRepo := repository.NewAttendanceRepository(a.db)
	jobRepo := repository.NewJobRepository(a.db)
	if n, err := jobRepo.MarkInterrupted(ctx); err != nil {
		log.WithError(err).Warn("Failed to mark interrupted rebuild jobs")
	} else if n > 0 {
		log.WithField("count", n).Warn("Marked interrupted rebuild jobs as failed")
	}

	// Object storage for archives; nil when disabled
	objectStorage, err := storage.NewStorage(ctx, &storage.Config{
		Type:      storage.StorageType(cfg.Storage.Type),
		LocalDir:  cfg.Storage.LocalDir,
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Extractors
	liveMode, err := extractor.ParseMode(cfg.Recognition.LiveMode)
	if err != nil {
		return nil, err
	}
	checkinMode, err := extractor.ParseMode(cfg.Recognition.CheckinMode)
	if err != nil {
		return nil, err
	}
	enrollMode, err := extractor.ParseMode(cfg.Recognition.EnrollMode)
	if err != nil {
		return nil, err
	}
	a.extractors, err = extractor.NewSet(&cfg.Extractor, liveMode, checkinMode, enrollMode)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}
	var enrollExt extractor.FeatureExtractor
	for _, ext := range a.extractors {
		if ext.Mode() == enrollMode {
			enrollExt = ext
		}
	}

	// Optional face index
	var index service.FaceIndex
	if cfg.Index.Enabled {
		a.index, err = repository.NewFaceIndex(&repository.FaceIndexConfig{
			Host:       cfg.Index.Host,
			Port:       cfg.Index.Port,
			Collection: cfg.Index.Collection,
			APIKey:     cfg.Index.APIKey,
			UseTLS:     cfg.Index.UseTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize face index: %w", err)
		}
		index = a.index
	}

	// Services
	a.Dataset = source.NewDataset(cfg.Dataset.Dir)
	a.Attendance = service.NewAttendanceService(attendanceRepo, objectStorage, log)
	a.Enrollment = service.NewEnrollmentService(
		a.Dataset,
		gallery.NewStore(cfg.Gallery.Path, objectStorage),
		enrollExt,
		index,
		objectStorage,
		log,
		&service.EnrollmentConfig{
			Workers:      cfg.Dataset.Workers,
			BatchSize:    cfg.Dataset.BatchSize,
			MaxImageSide: cfg.Dataset.MaxImageSide,
		},
	)
	a.Recognition = service.NewRecognitionService(a.extractors, a.Attendance, index, log, service.RecognitionConfig{
		LiveTolerance:    cfg.Recognition.LiveTolerance,
		CheckinTolerance: cfg.Recognition.CheckinTolerance,
		CheckinMode:      checkinMode,
		LiveMode:         liveMode,
		IndexPageSize:    cfg.Index.PageSize,
		MaxImageSide:     cfg.Dataset.MaxImageSide,
	})
	a.Rebuilds = service.NewRebuildRunner(a.Enrollment, jobRepo)

	a.Enrollment.OnChange(a.Recognition.UseGallery)
	g, err := a.Enrollment.Reload(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load gallery: %w", err)
	}
	log.WithFields(logger.Fields{
		"gallery_size": g.Len(),
		"identities":   len(g.Identities()),
		"provider":     cfg.Extractor.Provider,
		"index":        cfg.Index.Enabled,
	}).Info("Application initialized")

	ready = true
	return a, nil
}

// Close releases the extractors, face index and database handle.
func (a *App) Close() {
	for _, ext := range a.extractors {
		if err := ext.Close(); err != nil {
			a.Logger.WithError(err).Warn("Failed to close extractor")
		}
	}
	if a.index != nil {
		a.index.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
