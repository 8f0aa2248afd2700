package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/RudraShekhare/face-attendance-system/internal/extractor"
	"github.com/RudraShekhare/face-attendance-system/internal/gallery"
	"github.com/RudraShekhare/face-attendance-system/internal/source"
)

type enrollFixture struct {
	root  string
	store *gallery.Store
	ext   *fakeExtractor
	index *fakeIndex
	svc   *EnrollmentService
}

func newEnrollFixture(t *testing.T, workers int) *enrollFixture {
	t.Helper()
	root := filepath.Join(t.TempDir(), "dataset")
	store := gallery.NewStore(filepath.Join(t.TempDir(), "encodings.json"), nil)
	ext := newFakeExtractor(extractor.Fast)
	index := &fakeIndex{}
	svc := NewEnrollmentService(source.NewDataset(root), store, ext, index, nil, nil, &EnrollmentConfig{
		Workers:   workers,
		BatchSize: 2,
	})
	return &enrollFixture{root: root, store: store, ext: ext, index: index, svc: svc}
}

func (f *enrollFixture) write(t *testing.T, rel string, data []byte) {
	t.Helper()
	path := filepath.Join(f.root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRebuildKeepsDatasetOrder(t *testing.T) {
	f := newEnrollFixture(t, 3)
	f.ext.face(10, 10, 0).face(11, 11, 0).face(12, 12, 0).face(20, 20, 0)

	f.write(t, "alice/10.jpg", testJPEG(t, 12))
	f.write(t, "alice/2.jpg", testJPEG(t, 11))
	f.write(t, "alice/1.jpg", testJPEG(t, 10))
	f.write(t, "bob/1.jpg", testJPEG(t, 20))
	f.write(t, "bob/notes.txt", []byte("ignored"))
	f.write(t, "carol/1.jpg", testJPEG(t, 30)) // no face
	f.write(t, "carol/2.jpg", []byte("not an image"))

	var progressCalls int64
	stats, err := f.svc.Rebuild(context.Background(), func(done, total int64) { progressCalls = done })
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	if stats.Total != 6 || stats.Encoded != 4 || stats.Skipped != 2 || stats.Failed != 0 || stats.Faces != 4 {
		t.Errorf("stats = %+v", stats)
	}
	if progressCalls != 6 {
		t.Errorf("progress reached %d, want 6", progressCalls)
	}

	g, err := f.store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	wantNames := []string{"alice", "alice", "alice", "bob"}
	if !reflect.DeepEqual(g.Names, wantNames) {
		t.Errorf("Names = %v, want %v", g.Names, wantNames)
	}
	wantFirst := []float64{10, 11, 12, 20}
	for i, enc := range g.Encodings {
		if enc[0] != wantFirst[i] {
			t.Errorf("encoding %d = %v, want first value %v", i, enc, wantFirst[i])
		}
	}
	if f.index.synced == nil || f.index.synced.Len() != 4 {
		t.Errorf("index not synced with rebuilt gallery")
	}
}

func TestRebuildCancelledKeepsGallery(t *testing.T) {
	f := newEnrollFixture(t, 2)
	f.ext.face(10, 1, 0)
	f.write(t, "alice/1.jpg", testJPEG(t, 10))

	if _, err := f.store.Append(context.Background(), "old", []domain.Embedding{{9, 9}}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.svc.Rebuild(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Rebuild() error = %v, want context.Canceled", err)
	}

	g, _ := f.store.Load(context.Background())
	if !reflect.DeepEqual(g.Names, []string{"old"}) {
		t.Errorf("Names = %v, want previous gallery", g.Names)
	}
}

func TestRebuildExtractorFailureKeepsGallery(t *testing.T) {
	f := newEnrollFixture(t, 2)
	f.ext.face(10, 1, 0)
	f.ext.fail[11] = errors.New("face server unavailable")
	f.write(t, "alice/1.jpg", testJPEG(t, 10))
	f.write(t, "bob/1.jpg", testJPEG(t, 11))

	if _, err := f.store.Append(context.Background(), "old", []domain.Embedding{{9, 9}}); err != nil {
		t.Fatal(err)
	}

	stats, err := f.svc.Rebuild(context.Background(), nil)
	if err == nil {
		t.Fatal("Rebuild() error = nil, want failure")
	}
	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
	g, _ := f.store.Load(context.Background())
	if !reflect.DeepEqual(g.Names, []string{"old"}) {
		t.Errorf("Names = %v, want previous gallery", g.Names)
	}
}

func TestRebuildSkipsVanishedFile(t *testing.T) {
	f := newEnrollFixture(t, 1)
	f.ext.face(10, 1, 0).face(11, 2, 0)
	f.write(t, "alice/1.jpg", testJPEG(t, 10))
	f.write(t, "alice/2.jpg", testJPEG(t, 11))
	f.write(t, "alice/3.jpg", testJPEG(t, 10))

	// The listing already holds alice/2.jpg when it disappears.
	gone := filepath.Join(f.root, "alice", "2.jpg")
	var once sync.Once
	f.ext.onDetect = func() {
		once.Do(func() {
			if err := os.Remove(gone); err != nil {
				t.Error(err)
			}
		})
	}

	stats, err := f.svc.Rebuild(context.Background(), nil)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if stats.Total != 3 || stats.Encoded != 2 || stats.Skipped != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}

	g, err := f.store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if g.Len() != 2 {
		t.Errorf("gallery size = %d, want 2", g.Len())
	}
}

func TestRebuildSkipsInvalidFolderNames(t *testing.T) {
	f := newEnrollFixture(t, 2)
	f.ext.face(10, 1, 0).face(11, 2, 0)
	f.write(t, "   /1.jpg", testJPEG(t, 10))
	f.write(t, "dave  lee/1.jpg", testJPEG(t, 11))

	stats, err := f.svc.Rebuild(context.Background(), nil)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if stats.Total != 1 || stats.Encoded != 1 {
		t.Errorf("stats = %+v", stats)
	}

	g, err := f.store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if want := []string{"dave lee"}; !reflect.DeepEqual(g.Names, want) {
		t.Errorf("gallery names = %v, want %v", g.Names, want)
	}
}

func TestEncodeItemSkipsMissingFile(t *testing.T) {
	f := newEnrollFixture(t, 1)
	res := f.svc.encodeItem(context.Background(), source.ImageItem{
		Identity: "alice",
		Name:     "missing.jpg",
		Path:     filepath.Join(f.root, "alice", "missing.jpg"),
	})
	if res.err != nil || !res.skipped {
		t.Errorf("encodeItem() = skipped %v, err %v; want skipped", res.skipped, res.err)
	}
}

func TestRebuildMissingDataset(t *testing.T) {
	f := newEnrollFixture(t, 1)
	if _, err := f.svc.Rebuild(context.Background(), nil); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Rebuild() error = %v, want ErrNotFound", err)
	}
}

func TestEnroll(t *testing.T) {
	f := newEnrollFixture(t, 1)
	f.ext.face(40, 4, 0)

	var published *domain.Gallery
	f.svc.OnChange(func(g *domain.Gallery, indexed bool) {
		published = g
		if !indexed {
			t.Errorf("listener indexed = false, want true")
		}
	})

	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local)
	res, err := f.svc.Enroll(context.Background(), "  Dana   Scully ", testJPEG(t, 40), at)
	if err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	if res.Identity != "Dana Scully" || res.Faces != 1 || res.GallerySize != 1 {
		t.Errorf("Enroll() = %+v", res)
	}
	want := filepath.Join(f.root, "Dana Scully", "20240301_090000.jpg")
	if res.ImagePath != want {
		t.Errorf("ImagePath = %q, want %q", res.ImagePath, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("enrollment image missing: %v", err)
	}
	if published == nil || published.Len() != 1 {
		t.Errorf("listener not notified with the new gallery")
	}
}

func TestEnrollRejects(t *testing.T) {
	tests := []struct {
		name      string
		identity  string
		image     func(t *testing.T) []byte
		wantErr   error
		wantSaved bool
	}{
		{name: "no face", identity: "eve", image: func(t *testing.T) []byte { return testJPEG(t, 30) }, wantErr: domain.ErrNoFaceDetected, wantSaved: true},
		{name: "unreadable", identity: "eve", image: func(t *testing.T) []byte { return []byte("garbage") }, wantErr: domain.ErrUnreadableImage},
		{name: "path identity", identity: "../eve", image: func(t *testing.T) []byte { return testJPEG(t, 40) }, wantErr: domain.ErrInvalidIdentity},
		{name: "empty identity", identity: "   ", image: func(t *testing.T) []byte { return testJPEG(t, 40) }, wantErr: domain.ErrInvalidIdentity},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newEnrollFixture(t, 1)
			f.ext.face(40, 4, 0)

			_, err := f.svc.Enroll(context.Background(), tc.identity, tc.image(t), time.Now())
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Enroll() error = %v, want %v", err, tc.wantErr)
			}
			if _, err := f.store.Load(context.Background()); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("gallery written after rejected enrollment")
			}
			items, _ := source.NewDataset(f.root).List()
			if saved := len(items) > 0; saved != tc.wantSaved {
				t.Errorf("image saved = %v, want %v", saved, tc.wantSaved)
			}
		})
	}
}

func TestEnrollDataset(t *testing.T) {
	f := newEnrollFixture(t, 1)
	f.ext.face(10, 1, 0).face(11, 2, 0)
	f.write(t, "frank/1.jpg", testJPEG(t, 10))
	f.write(t, "frank/2.jpg", testJPEG(t, 11))
	f.write(t, "frank/3.jpg", testJPEG(t, 30))

	stats, err := f.svc.EnrollDataset(context.Background(), "frank")
	if err != nil {
		t.Fatalf("EnrollDataset() error = %v", err)
	}
	if stats.Encoded != 2 || stats.Skipped != 1 {
		t.Errorf("stats = %+v", stats)
	}

	g, _ := f.store.Load(context.Background())
	if got := g.EmbeddingsOf("frank"); len(got) != 2 {
		t.Errorf("frank embeddings = %v", got)
	}

	if _, err := f.svc.EnrollDataset(context.Background(), "nobody"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("EnrollDataset(nobody) error = %v, want ErrNotFound", err)
	}
}
