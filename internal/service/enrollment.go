package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/RudraShekhare/face-attendance-system/internal/extractor"
	"github.com/RudraShekhare/face-attendance-system/internal/gallery"
	"github.com/RudraShekhare/face-attendance-system/internal/logger"
	"github.com/RudraShekhare/face-attendance-system/internal/matcher"
	"github.com/RudraShekhare/face-attendance-system/internal/media"
	"github.com/RudraShekhare/face-attendance-system/internal/source"
	"github.com/RudraShekhare/face-attendance-system/internal/storage"
)

// EnrollImageLayout names images saved by Enroll.
const EnrollImageLayout = "20060102_150405"

// FaceIndex is the optional vector index mirroring the gallery.
type FaceIndex interface {
	Sync(ctx context.Context, g *domain.Gallery) error
	Candidates(ctx context.Context, query domain.Embedding, tolerance float64, pageSize int) ([]matcher.Candidate, error)
}

// GalleryListener is notified after the gallery changes. indexed reports
// whether the face index now mirrors g.
type GalleryListener func(g *domain.Gallery, indexed bool)

// EnrollmentService owns every write to the gallery: single enrollments,
// per-identity folder encodes and full rebuilds from the dataset.
type EnrollmentService struct {
	dataset   *source.Dataset
	store     *gallery.Store
	extractor extractor.FeatureExtractor
	index     FaceIndex
	storage   storage.ObjectStorage
	logger    *logger.Logger
	workers   int
	batchSize int
	maxSide   int

	mu        sync.Mutex
	listeners []GalleryListener
}

// EnrollmentConfig holds configuration for the enrollment service.
type EnrollmentConfig struct {
	Workers      int
	BatchSize    int
	MaxImageSide int
}

// NewEnrollmentService creates a new enrollment service. index and
// objectStorage may be nil.
func NewEnrollmentService(
	dataset *source.Dataset,
	store *gallery.Store,
	ext extractor.FeatureExtractor,
	index FaceIndex,
	objectStorage storage.ObjectStorage,
	log *logger.Logger,
	cfg *EnrollmentConfig,
) *EnrollmentService {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	return &EnrollmentService{
		dataset:   dataset,
		store:     store,
		extractor: ext,
		index:     index,
		storage:   objectStorage,
		logger:    log,
		workers:   workers,
		batchSize: batchSize,
		maxSide:   cfg.MaxImageSide,
	}
}

func (s *EnrollmentService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// OnChange registers fn to run after every successful gallery write.
func (s *EnrollmentService) OnChange(fn GalleryListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Reload loads the persisted gallery and publishes it to listeners and the
// index. A missing gallery publishes an empty one.
func (s *EnrollmentService) Reload(ctx context.Context) (*domain.Gallery, error) {
	g, err := s.store.LoadOrEmpty(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish(ctx, g)
	return g, nil
}

// publish syncs the index and notifies listeners. Callers hold s.mu.
func (s *EnrollmentService) publish(ctx context.Context, g *domain.Gallery) {
	indexed := false
	if s.index != nil {
		if err := s.index.Sync(ctx, g); err != nil {
			s.log(ctx).WithError(err).Warn("Failed to sync face index, falling back to linear scan")
		} else {
			indexed = true
		}
	}
	for _, fn := range s.listeners {
		fn(g, indexed)
	}
}

// EnrollResult describes one enrollment.
type EnrollResult struct {
	Identity    string `json:"identity"`
	ImagePath   string `json:"image_path"`
	Faces       int    `json:"faces"`
	GallerySize int    `json:"gallery_size"`
}

// Enroll stores a new reference photo of identity and appends its face
// embeddings to the gallery. The photo is kept in the dataset even when no
// face is found, so a later rebuild can retry it.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - identity: person label; normalized before use.
//   - image: raw image bytes in any supported format.
//   - at: capture time, used for the file name.
//
// Returns:
//   - *EnrollResult: saved path and number of appended embeddings.
//   - error: domain.ErrInvalidIdentity, domain.ErrUnreadableImage or
//     domain.ErrNoFaceDetected for bad input, otherwise a wrapped I/O error.
func (s *EnrollmentService) Enroll(ctx context.Context, identity string, image []byte, at time.Time) (*EnrollResult, error) {
	name, err := domain.NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetIdentity(ctx, name)

	jpeg, err := media.Normalize(image, s.maxSide)
	if err != nil {
		return nil, err
	}

	fileName := at.Format(EnrollImageLayout) + ".jpg"
	path, err := s.dataset.SaveImage(name, fileName, jpeg)
	if err != nil {
		return nil, err
	}
	s.archive(ctx, name, fileName, jpeg)

	faces, err := s.extractor.DetectAndEncode(ctx, jpeg)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		s.log(ctx).WithField(logger.FieldPath, path).Warn("No face detected in enrollment image")
		return nil, fmt.Errorf("enroll %s: %w", name, domain.ErrNoFaceDetected)
	}

	g, err := s.appendEmbeddings(ctx, name, embeddingsOf(faces))
	if err != nil {
		return nil, err
	}
	return &EnrollResult{Identity: name, ImagePath: path, Faces: len(faces), GallerySize: g.Len()}, nil
}

// EnrollDataset encodes every image in the identity's dataset folder and
// appends the embeddings in one write. Unreadable or faceless images are
// skipped.
func (s *EnrollmentService) EnrollDataset(ctx context.Context, identity string) (*RebuildStats, error) {
	name, err := domain.NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetIdentity(ctx, name)

	items, err := s.dataset.Images(name)
	if err != nil {
		return nil, err
	}

	stats := &RebuildStats{Start: time.Now(), Total: int64(len(items))}
	var embeddings []domain.Embedding
	for _, item := range items {
		res := s.encodeItem(ctx, item)
		stats.record(res)
		if res.err != nil {
			return nil, res.err
		}
		embeddings = append(embeddings, res.embeddings...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("enroll %s: %w", name, domain.ErrNoFaceDetected)
	}

	if _, err := s.appendEmbeddings(ctx, name, embeddings); err != nil {
		return nil, err
	}
	stats.End = time.Now()
	return stats, nil
}

func (s *EnrollmentService) appendEmbeddings(ctx context.Context, identity string, embeddings []domain.Embedding) (*domain.Gallery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.store.Append(ctx, identity, embeddings)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, g)
	return g, nil
}

func (s *EnrollmentService) archive(ctx context.Context, identity, fileName string, data []byte) {
	if s.storage == nil {
		return
	}
	key := storage.ArchiveKey("dataset", identity, fileName)
	if err := s.storage.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), "image/jpeg"); err != nil {
		s.log(ctx).WithError(err).WithField("key", key).Warn("Failed to archive enrollment image")
	}
}

// RebuildStats holds statistics for a rebuild run.
type RebuildStats struct {
	Total   int64     `json:"total"`
	Encoded int64     `json:"encoded"`
	Skipped int64     `json:"skipped"`
	Failed  int64     `json:"failed"`
	Faces   int64     `json:"faces"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

func (st *RebuildStats) record(res *encodeResult) {
	switch {
	case res.err != nil:
		atomic.AddInt64(&st.Failed, 1)
	case res.skipped:
		atomic.AddInt64(&st.Skipped, 1)
	default:
		atomic.AddInt64(&st.Encoded, 1)
		atomic.AddInt64(&st.Faces, int64(len(res.embeddings)))
	}
}

// RebuildProgress is called once per processed image.
type RebuildProgress func(done, total int64)

type encodeResult struct {
	item       source.ImageItem
	embeddings []domain.Embedding
	skipped    bool
	err        error
}

// Rebuild re-encodes the whole dataset and replaces the gallery. Images are
// encoded concurrently but the gallery keeps dataset order. The stored
// gallery is only replaced when every image was processed; cancellation or
// an extractor failure leaves it untouched.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - progress: optional per-image callback.
//
// Returns:
//   - *RebuildStats: counts for the run.
//   - error: domain.ErrNotFound when the dataset is missing, ctx.Err() on
//     cancellation, or the first fatal error.
func (s *EnrollmentService) Rebuild(ctx context.Context, progress RebuildProgress) (*RebuildStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &RebuildStats{Start: time.Now()}
	s.log(ctx).WithFields(logger.Fields{
		"source":  s.dataset.GetSourceID(),
		"workers": s.workers,
	}).Info("Starting gallery rebuild")

	itemsChan := make(chan source.ImageItem, s.workers*2)
	resultsChan := make(chan *encodeResult, s.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, itemsChan, resultsChan)
		}()
	}

	var collected []*encodeResult
	done := make(chan struct{})
	go func() {
		for result := range resultsChan {
			stats.record(result)
			collected = append(collected, result)
			if result.err != nil {
				s.log(ctx).WithField(logger.FieldPath, result.item.Path).WithError(result.err).Error("Failed to encode image")
			}
			if progress != nil {
				progress(int64(len(collected)), atomic.LoadInt64(&stats.Total))
			}
		}
		close(done)
	}()

	fetchErr := s.feed(ctx, stats, itemsChan)

	close(itemsChan)
	wg.Wait()
	close(resultsChan)
	<-done
	stats.End = time.Now()

	if fetchErr != nil {
		return stats, fetchErr
	}
	if err := ctx.Err(); err != nil {
		s.log(ctx).Warn("Gallery rebuild cancelled, keeping previous gallery")
		return stats, err
	}
	if stats.Failed > 0 {
		return stats, fmt.Errorf("rebuild aborted: %d images failed to encode", stats.Failed)
	}

	sort.Slice(collected, func(i, j int) bool { return collected[i].item.Seq < collected[j].item.Seq })
	g := domain.NewGallery()
	for _, res := range collected {
		if err := g.Add(res.item.Identity, res.embeddings...); err != nil {
			return stats, fmt.Errorf("rebuild %s: %w", res.item.Path, err)
		}
	}

	if err := s.store.Save(ctx, g); err != nil {
		return stats, err
	}
	s.publish(ctx, g)

	logger.With(logger.Fields{
		"total":      stats.Total,
		"encoded":    stats.Encoded,
		"skipped":    stats.Skipped,
		"faces":      stats.Faces,
		"identities": len(g.Identities()),
	}).WithDuration(stats.End.Sub(stats.Start)).Info(ctx, "Gallery rebuild completed")
	return stats, nil
}

// feed pages through the dataset and hands items to the workers.
func (s *EnrollmentService) feed(ctx context.Context, stats *RebuildStats, items chan<- source.ImageItem) error {
	cursor := ""
	for {
		if ctx.Err() != nil {
			return nil
		}

		batch, next, err := s.dataset.FetchBatch(ctx, cursor, s.batchSize)
		if err != nil {
			if errors.Is(err, ctx.Err()) {
				return nil
			}
			return fmt.Errorf("failed to list dataset: %w", err)
		}
		atomic.AddInt64(&stats.Total, int64(len(batch)))

		for _, item := range batch {
			select {
			case items <- item:
			case <-ctx.Done():
				return nil
			}
		}

		if next == "" {
			return nil
		}
		cursor = next
	}
}

func (s *EnrollmentService) worker(ctx context.Context, items <-chan source.ImageItem, results chan<- *encodeResult) {
	for item := range items {
		if ctx.Err() != nil {
			// drain so the feeder never blocks
			continue
		}
		results <- s.encodeItem(ctx, item)
	}
}

// encodeItem reads and encodes one dataset image. Unreadable images and
// images without faces are skipped rather than failed.
func (s *EnrollmentService) encodeItem(ctx context.Context, item source.ImageItem) *encodeResult {
	res := &encodeResult{item: item}

	data, err := os.ReadFile(item.Path)
	if err != nil {
		s.log(ctx).WithField(logger.FieldPath, item.Path).WithError(err).Warn("Skipping unreadable image file")
		res.skipped = true
		return res
	}

	jpeg, err := media.Normalize(data, s.maxSide)
	if err != nil {
		s.log(ctx).WithField(logger.FieldPath, item.Path).WithError(err).Warn("Skipping unreadable image")
		res.skipped = true
		return res
	}

	faces, err := s.extractor.DetectAndEncode(ctx, jpeg)
	switch {
	case errors.Is(err, domain.ErrUnreadableImage):
		s.log(ctx).WithField(logger.FieldPath, item.Path).WithError(err).Warn("Skipping unreadable image")
		res.skipped = true
		return res
	case err != nil:
		res.err = fmt.Errorf("failed to encode %s: %w", item.Path, err)
		return res
	case len(faces) == 0:
		s.log(ctx).WithField(logger.FieldPath, item.Path).Warn("Skipping image without a face")
		res.skipped = true
		return res
	}

	res.embeddings = embeddingsOf(faces)
	return res
}

func embeddingsOf(faces []domain.Face) []domain.Embedding {
	out := make([]domain.Embedding, len(faces))
	for i, f := range faces {
		out[i] = f.Embedding
	}
	return out
}
