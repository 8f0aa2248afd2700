package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/RudraShekhare/face-attendance-system/internal/config"
	"github.com/RudraShekhare/face-attendance-system/internal/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	body := `
database:
  path: ` + filepath.Join(dir, "attendance.db") + `
  log_level: silent
gallery:
  path: ` + filepath.Join(dir, "models", "encodings.json") + `
dataset:
  dir: ` + filepath.Join(dir, "dataset") + `
extractor:
  provider: remote
  base_url: http://127.0.0.1:1
storage:
  type: local
  local_dir: ` + filepath.Join(dir, "archive") + `
recognition:
  enroll_mode: accurate
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return cfg
}

func TestNewWiresServices(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(context.Background(), cfg, logger.GetDefault())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if a.Attendance == nil || a.Enrollment == nil || a.Recognition == nil || a.Rebuilds == nil {
		t.Fatalf("services not wired: %+v", a)
	}
	if got := a.Recognition.GallerySize(); got != 0 {
		t.Errorf("GallerySize() = %d, want 0 for a fresh install", got)
	}
	// fast (live) and accurate (check-in, enrollment) share one extractor each
	if len(a.extractors) != 2 {
		t.Errorf("extractors = %d, want 2", len(a.extractors))
	}

	names, err := a.Attendance.Names(context.Background())
	if err != nil || len(names) != 0 {
		t.Errorf("Names() = %v, %v", names, err)
	}
}

func TestNewFailsCleanly(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Storage.LocalDir = filepath.Join(blocker, "archive")

	if _, err := New(context.Background(), cfg, logger.GetDefault()); err == nil {
		t.Fatal("New() with unusable storage directory succeeded")
	}
}
