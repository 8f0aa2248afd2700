package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"path/filepath"
	"sync"
	"testing"

	"github.com/RudraShekhare/face-attendance-system/internal/config"
	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/RudraShekhare/face-attendance-system/internal/extractor"
	"github.com/RudraShekhare/face-attendance-system/internal/matcher"
	"github.com/RudraShekhare/face-attendance-system/internal/repository"
)

// testJPEG returns a solid JPEG whose width acts as the fake extractor key.
func testJPEG(t *testing.T, width int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, 8))
	for x := 0; x < width; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 150, B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// fakeExtractor returns faces keyed by image width.
type fakeExtractor struct {
	mode  extractor.Mode
	faces map[int][]domain.Face
	fail  map[int]error

	// onDetect runs before each detection when set.
	onDetect func()

	mu    sync.Mutex
	calls int
}

func newFakeExtractor(mode extractor.Mode) *fakeExtractor {
	return &fakeExtractor{mode: mode, faces: map[int][]domain.Face{}, fail: map[int]error{}}
}

// face registers one face with a 2-d embedding for images of the given width.
func (f *fakeExtractor) face(width int, emb ...float64) *fakeExtractor {
	f.faces[width] = append(f.faces[width], domain.Face{
		Region:    image.Rect(1, 1, 5, 5),
		Embedding: domain.Embedding(emb),
	})
	return f
}

func (f *fakeExtractor) DetectAndEncode(ctx context.Context, data []byte) ([]domain.Face, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.onDetect != nil {
		f.onDetect()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Join(domain.ErrUnreadableImage, err)
	}
	if err := f.fail[cfg.Width]; err != nil {
		return nil, err
	}
	return f.faces[cfg.Width], nil
}

func (f *fakeExtractor) Mode() extractor.Mode { return f.mode }

func (f *fakeExtractor) Close() error { return nil }

// fakeIndex records syncs and serves canned candidates.
type fakeIndex struct {
	mu         sync.Mutex
	synced     *domain.Gallery
	syncErr    error
	candidates []matcher.Candidate
	searchErr  error
}

func (f *fakeIndex) Sync(_ context.Context, g *domain.Gallery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.syncErr != nil {
		return f.syncErr
	}
	f.synced = g
	return nil
}

func (f *fakeIndex) Candidates(_ context.Context, _ domain.Embedding, _ float64, _ int) ([]matcher.Candidate, error) {
	return f.candidates, f.searchErr
}

func newTestAttendanceService(t *testing.T) *AttendanceService {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "attendance.db"),
		AutoMigrate: true,
		LogLevel:    "silent",
	})
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewAttendanceService(repository.NewAttendanceRepository(db), nil, nil)
}
