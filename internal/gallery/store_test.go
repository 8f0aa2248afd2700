package gallery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/RudraShekhare/face-attendance-system/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "models", "encodings.json"), nil)
}

func TestLoadMissingIsNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Load(context.Background())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}

	g, err := s.LoadOrEmpty(context.Background())
	if err != nil {
		t.Fatalf("LoadOrEmpty() error = %v", err)
	}
	if g.Len() != 0 {
		t.Errorf("LoadOrEmpty() len = %d, want 0", g.Len())
	}
}

func TestLoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "\x80\x04pickle"},
		{name: "misaligned", content: `{"version":1,"dimension":2,"encodings":[[0,1]],"names":[]}`},
		{name: "mixed dimensions", content: `{"version":1,"dimension":2,"encodings":[[0,1],[0]],"names":["a","b"]}`},
		{name: "unknown version", content: `{"version":9,"encodings":[],"names":[]}`},
		{name: "header dimension", content: `{"version":1,"dimension":3,"encodings":[[0,1]],"names":["a"]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestStore(t)
			if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(s.Path(), []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Load(context.Background()); !errors.Is(err, domain.ErrCorruptData) {
				t.Errorf("Load() error = %v, want ErrCorruptData", err)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	g := domain.NewGallery()
	_ = g.Add("alice", domain.Embedding{0.1, -0.25, 1e-9}, domain.Embedding{0.3, 0.2, 0.1})
	_ = g.Add("bob", domain.Embedding{-1, 0, 0.5})

	if err := s.Save(ctx, g); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, g) {
		t.Errorf("Load() = %+v, want %+v", got, g)
	}

	entries, _ := os.ReadDir(filepath.Dir(s.Path()))
	if len(entries) != 1 {
		t.Errorf("gallery directory has %d entries, want only the blob", len(entries))
	}
}

func TestAppendIsolation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e1, e2, e3 := domain.Embedding{1, 0}, domain.Embedding{0, 1}, domain.Embedding{1, 1}

	if _, err := s.Append(ctx, "eve", []domain.Embedding{e1, e2}); err != nil {
		t.Fatalf("Append(eve) error = %v", err)
	}
	returned, err := s.Append(ctx, "frank", []domain.Embedding{e3})
	if err != nil {
		t.Fatalf("Append(frank) error = %v", err)
	}

	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(loaded, returned) {
		t.Errorf("Append() returned %+v, persisted %+v", returned, loaded)
	}
	if got := loaded.EmbeddingsOf("eve"); !reflect.DeepEqual(got, []domain.Embedding{e1, e2}) {
		t.Errorf("eve embeddings = %v", got)
	}
	if got := loaded.EmbeddingsOf("frank"); !reflect.DeepEqual(got, []domain.Embedding{e3}) {
		t.Errorf("frank embeddings = %v", got)
	}
}

func TestAppendRejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Append(ctx, "eve", []domain.Embedding{{1, 0}}); err != nil {
		t.Fatal(err)
	}
	_, err := s.Append(ctx, "frank", []domain.Embedding{{1, 0, 0}})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("Append() error = %v, want ErrDimensionMismatch", err)
	}

	g, _ := s.Load(ctx)
	if g.Len() != 1 {
		t.Errorf("gallery len = %d after rejected append, want 1", g.Len())
	}
}

func TestCancelledSaveLeavesPreviousGallery(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Append(context.Background(), "eve", []domain.Embedding{{1, 0}}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	replacement := domain.NewGallery()
	_ = replacement.Add("mallory", domain.Embedding{0, 1})
	if err := s.Save(ctx, replacement); !errors.Is(err, context.Canceled) {
		t.Fatalf("Save() error = %v, want context.Canceled", err)
	}

	g, err := s.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(g.Names, []string{"eve"}) {
		t.Errorf("Names = %v, want [eve]", g.Names)
	}
}

func TestSaveUploadsBackup(t *testing.T) {
	ctx := context.Background()
	backup, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(filepath.Join(t.TempDir(), "encodings.json"), backup)

	if _, err := s.Append(ctx, "eve", []domain.Embedding{{1, 0}}); err != nil {
		t.Fatal(err)
	}
	if ok, _ := backup.Exists(ctx, BackupKey); !ok {
		t.Errorf("backup %s not written", BackupKey)
	}
}

func TestLoadOrEmptyRestoresBackup(t *testing.T) {
	ctx := context.Background()
	backup, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	original := NewStore(filepath.Join(t.TempDir(), "encodings.json"), backup)
	want, err := original.Append(ctx, "eve", []domain.Embedding{{1, 0}, {0, 1}})
	if err != nil {
		t.Fatal(err)
	}

	// A fresh machine: no local blob, same backup.
	fresh := NewStore(filepath.Join(t.TempDir(), "models", "encodings.json"), backup)
	got, err := fresh.LoadOrEmpty(ctx)
	if err != nil {
		t.Fatalf("LoadOrEmpty() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadOrEmpty() = %+v, want %+v", got, want)
	}
	if _, err := os.Stat(fresh.Path()); err != nil {
		t.Errorf("restored blob not written locally: %v", err)
	}
}

func TestLoadOrEmptyIgnoresCorruptBackup(t *testing.T) {
	ctx := context.Background()
	backup, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := backup.Upload(ctx, BackupKey, strings.NewReader("garbage"), 7, "application/json"); err != nil {
		t.Fatal(err)
	}

	s := NewStore(filepath.Join(t.TempDir(), "encodings.json"), backup)
	g, err := s.LoadOrEmpty(ctx)
	if err != nil {
		t.Fatalf("LoadOrEmpty() error = %v", err)
	}
	if g.Len() != 0 {
		t.Errorf("len = %d, want empty gallery", g.Len())
	}
}
