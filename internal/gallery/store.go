// Package gallery persists the face embedding gallery as a single JSON blob.
//
// Every write replaces the whole file: the blob is written to a temporary file
// in the same directory, synced, and renamed over the target, so a crash never
// leaves a half-written gallery that parses as valid.
package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/RudraShekhare/face-attendance-system/internal/logger"
	"github.com/RudraShekhare/face-attendance-system/internal/storage"
)

const formatVersion = 1

// BackupKey is the object key used when a backup storage is configured.
const BackupKey = "gallery/encodings.json"

type blob struct {
	Version   int                `json:"version"`
	Dimension int                `json:"dimension"`
	Encodings []domain.Embedding `json:"encodings"`
	Names     []string           `json:"names"`
}

// Store is a file-backed EmbeddingStore. Appends from one process are
// serialized; concurrent writers in separate processes are not coordinated.
type Store struct {
	path   string
	backup storage.ObjectStorage
	mu     sync.Mutex
}

// NewStore creates a store for the blob at path. backup may be nil.
func NewStore(path string, backup storage.ObjectStorage) *Store {
	return &Store{path: path, backup: backup}
}

// Path returns the blob location.
func (s *Store) Path() string {
	return s.path
}

// Load reads and validates the persisted gallery.
// Parameters:
//   - ctx: context for cancellation.
//
// Returns:
//   - *domain.Gallery: the stored gallery.
//   - error: domain.ErrNotFound when the blob is absent, domain.ErrCorruptData
//     when it cannot be parsed or breaks the alignment invariant.
func (s *Store) Load(ctx context.Context) (*domain.Gallery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("gallery %s: %w", s.path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read gallery: %w", err)
	}

	return s.decode(data)
}

func (s *Store) decode(data []byte) (*domain.Gallery, error) {
	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("gallery %s: %w: %v", s.path, domain.ErrCorruptData, err)
	}
	if b.Version != formatVersion {
		return nil, fmt.Errorf("gallery %s: %w: unsupported version %d", s.path, domain.ErrCorruptData, b.Version)
	}

	g := &domain.Gallery{Encodings: b.Encodings, Names: b.Names}
	if g.Encodings == nil {
		g.Encodings = []domain.Embedding{}
	}
	if g.Names == nil {
		g.Names = []string{}
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("gallery %s: %w: %v", s.path, domain.ErrCorruptData, err)
	}
	if g.Len() > 0 && b.Dimension != g.Dimension() {
		return nil, fmt.Errorf("gallery %s: %w: header dimension %d, data dimension %d",
			s.path, domain.ErrCorruptData, b.Dimension, g.Dimension())
	}
	return g, nil
}

// LoadOrEmpty loads the gallery. A missing blob is restored from the backup
// when one exists, otherwise it reads as an empty gallery.
func (s *Store) LoadOrEmpty(ctx context.Context) (*domain.Gallery, error) {
	g, err := s.Load(ctx)
	if !errors.Is(err, domain.ErrNotFound) {
		return g, err
	}
	if s.backup != nil {
		restored, err := s.restore(ctx)
		if err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to restore gallery from backup")
		} else if restored != nil {
			return restored, nil
		}
	}
	return domain.NewGallery(), nil
}

// restore copies a valid backup into place. It returns nil, nil when there
// is no backup.
func (s *Store) restore(ctx context.Context) (*domain.Gallery, error) {
	ok, err := s.backup.Exists(ctx, BackupKey)
	if err != nil || !ok {
		return nil, err
	}
	rc, err := s.backup.Download(ctx, BackupKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery backup: %w", err)
	}
	g, err := s.decode(data)
	if err != nil {
		return nil, err
	}
	if err := writeAtomic(ctx, s.path, data); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		"gallery_size": g.Len(),
		"source":       s.backup.GetURL(BackupKey),
	}).Info("Gallery restored from backup")
	return g, nil
}

// Save atomically replaces the persisted gallery.
func (s *Store) Save(ctx context.Context, g *domain.Gallery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, g)
}

// Append adds embeddings under identity and persists the result.
// Parameters:
//   - ctx: context for cancellation; a cancelled context leaves the blob untouched.
//   - identity: normalized identity label.
//   - embeddings: descriptors to add; an empty slice still returns the current gallery.
//
// Returns:
//   - *domain.Gallery: the updated gallery, ready for matching.
//   - error: non-nil on load, validation or write failure.
func (s *Store) Append(ctx context.Context, identity string, embeddings []domain.Embedding) (*domain.Gallery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.LoadOrEmpty(ctx)
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return g, nil
	}
	if err := g.Add(identity, embeddings...); err != nil {
		return nil, err
	}
	if err := s.save(ctx, g); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldIdentity: identity,
		logger.FieldCount:    len(embeddings),
		"gallery_size":       g.Len(),
	}).Info("Appended embeddings to gallery")
	return g, nil
}

func (s *Store) save(ctx context.Context, g *domain.Gallery) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid gallery: %w", err)
	}

	data, err := json.Marshal(blob{
		Version:   formatVersion,
		Dimension: g.Dimension(),
		Encodings: g.Encodings,
		Names:     g.Names,
	})
	if err != nil {
		return fmt.Errorf("failed to encode gallery: %w", err)
	}

	if err := writeAtomic(ctx, s.path, data); err != nil {
		return err
	}

	if s.backup != nil {
		if err := s.backup.Upload(ctx, BackupKey, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to back up gallery")
		}
	}
	return nil
}

func writeAtomic(ctx context.Context, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create gallery directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp gallery: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write gallery: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync gallery: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close gallery: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace gallery: %w", err)
	}
	committed = true
	return nil
}
