package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/RudraShekhare/face-attendance-system/internal/export"
	"github.com/RudraShekhare/face-attendance-system/internal/logger"
	"github.com/RudraShekhare/face-attendance-system/internal/repository"
	"github.com/RudraShekhare/face-attendance-system/internal/storage"
	"github.com/go-co-op/gocron"
)

const (
	contentTypeCSV  = "text/csv"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// AttendanceService wraps the attendance ledger with identity normalization
// and export helpers.
type AttendanceService struct {
	repo    *repository.AttendanceRepository
	storage storage.ObjectStorage
	logger  *logger.Logger
}

// NewAttendanceService creates a new attendance service.
// Parameters:
//   - repo: attendance ledger.
//   - objectStorage: archive for exported files; nil disables archiving.
//   - log: fallback logger.
//
// Returns:
//   - *AttendanceService: initialized service.
func NewAttendanceService(repo *repository.AttendanceRepository, objectStorage storage.ObjectStorage, log *logger.Logger) *AttendanceService {
	return &AttendanceService{repo: repo, storage: objectStorage, logger: log}
}

func (s *AttendanceService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// Mark records identity as present on the local date of at. A second call
// for the same identity and date returns AlreadyMarked and the first record.
func (s *AttendanceService) Mark(ctx context.Context, identity string, at time.Time) (domain.MarkResult, *domain.AttendanceRecord, error) {
	name, err := domain.NormalizeIdentity(identity)
	if err != nil {
		return "", nil, err
	}

	result, rec, err := s.repo.Mark(ctx, domain.NewAttendanceRecord(name, at))
	if err != nil {
		return "", nil, err
	}
	if result == domain.Marked {
		s.log(ctx).WithFields(logger.Fields{
			logger.FieldIdentity: rec.Name,
			"date":               rec.Date,
			"time":               rec.Time,
		}).Info("Attendance marked")
	}
	return result, rec, nil
}

// List returns records matching filter in insertion order. The name filter
// is normalized the way Mark stores names; a blank name means no filter.
func (s *AttendanceService) List(ctx context.Context, filter domain.AttendanceFilter) ([]domain.AttendanceRecord, error) {
	if strings.TrimSpace(filter.Name) == "" {
		filter.Name = ""
	} else {
		name, err := domain.NormalizeIdentity(filter.Name)
		if err != nil {
			return nil, err
		}
		filter.Name = name
	}
	return s.repo.Query(ctx, filter)
}

// Names returns the distinct names in the ledger.
func (s *AttendanceService) Names(ctx context.Context) ([]string, error) {
	return s.repo.Names(ctx)
}

// Clear deletes every attendance record.
func (s *AttendanceService) Clear(ctx context.Context) (int64, error) {
	removed, err := s.repo.ClearAll(ctx)
	if err != nil {
		return 0, err
	}
	s.log(ctx).WithField(logger.FieldCount, removed).Warn("Attendance log cleared")
	return removed, nil
}

// ExportCSV writes the full unfiltered table as CSV.
func (s *AttendanceService) ExportCSV(ctx context.Context, w io.Writer) error {
	records, err := s.repo.Query(ctx, domain.AttendanceFilter{})
	if err != nil {
		return err
	}
	return export.WriteCSV(w, records)
}

// ExportSpreadsheet writes the full unfiltered table as an .xlsx workbook.
func (s *AttendanceService) ExportSpreadsheet(ctx context.Context, w io.Writer) error {
	records, err := s.repo.Query(ctx, domain.AttendanceFilter{})
	if err != nil {
		return err
	}
	return export.WriteXLSX(w, records)
}

// ExportResult describes one ExportFiles run.
type ExportResult struct {
	Records  int      `json:"records"`
	Files    []string `json:"files"`
	Archived []string `json:"archived,omitempty"`
	URLs     []string `json:"urls,omitempty"`
}

// ExportFiles writes the CSV and spreadsheet files. Either path may be empty
// to skip that format. Each file is replaced atomically and, when object
// storage is configured, archived under exports/<date>/.
func (s *AttendanceService) ExportFiles(ctx context.Context, csvPath, xlsxPath string) (*ExportResult, error) {
	records, err := s.repo.Query(ctx, domain.AttendanceFilter{})
	if err != nil {
		return nil, err
	}

	targets := []struct {
		path        string
		contentType string
		render      func(io.Writer, []domain.AttendanceRecord) error
	}{
		{csvPath, contentTypeCSV, export.WriteCSV},
		{xlsxPath, contentTypeXLSX, export.WriteXLSX},
	}

	result := &ExportResult{Records: len(records)}
	day := time.Now().Format(domain.DateLayout)
	for _, t := range targets {
		if t.path == "" {
			continue
		}

		var buf bytes.Buffer
		if err := t.render(&buf, records); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", t.path, err)
		}
		if err := writeFileAtomic(t.path, buf.Bytes()); err != nil {
			return nil, err
		}
		result.Files = append(result.Files, t.path)

		if s.storage == nil {
			continue
		}
		key := storage.ArchiveKey("exports", day, filepath.Base(t.path))
		if err := s.storage.Upload(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), t.contentType); err != nil {
			s.log(ctx).WithError(err).WithField("key", key).Warn("Failed to archive export")
			continue
		}
		result.Archived = append(result.Archived, key)
		result.URLs = append(result.URLs, s.storage.GetURL(key))
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldCount: result.Records,
		"files":           result.Files,
	}).Info("Attendance exported")
	return result, nil
}

// StartScheduler runs ExportFiles every day at clock ("15:04", local time).
// The returned scheduler is already running; call Stop on shutdown.
func (s *AttendanceService) StartScheduler(ctx context.Context, clock, csvPath, xlsxPath string) (*gocron.Scheduler, error) {
	sched := gocron.NewScheduler(time.Local)
	_, err := sched.Every(1).Day().At(clock).Do(func() {
		jobCtx := logger.SetComponent(ctx, "export_scheduler")
		if _, err := s.ExportFiles(jobCtx, csvPath, xlsxPath); err != nil {
			s.log(jobCtx).WithError(err).Error("Scheduled export failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule export at %q: %w", clock, err)
	}
	sched.StartAsync()
	s.log(ctx).WithField("at", clock).Info("Export scheduler started")
	return sched, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
