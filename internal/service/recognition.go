package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/RudraShekhare/face-attendance-system/internal/extractor"
	"github.com/RudraShekhare/face-attendance-system/internal/logger"
	"github.com/RudraShekhare/face-attendance-system/internal/matcher"
	"github.com/RudraShekhare/face-attendance-system/internal/media"
)

// Box is a face bounding box in image pixels.
type Box struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

func boxOf(r image.Rectangle) Box {
	return Box{Left: r.Min.X, Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y}
}

// Rect converts b back to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Recognition is the match outcome for one detected face.
type Recognition struct {
	Box Box `json:"box"`
	matcher.Result
}

// CheckInOutcome pairs a recognition with its attendance mark. Mark is empty
// for unknown faces.
type CheckInOutcome struct {
	Recognition
	Mark   domain.MarkResult        `json:"mark,omitempty"`
	Record *domain.AttendanceRecord `json:"record,omitempty"`
}

// RecognitionConfig holds configuration for the recognition service.
type RecognitionConfig struct {
	LiveTolerance    float64
	CheckinTolerance float64
	CheckinMode      extractor.Mode
	LiveMode         extractor.Mode
	IndexPageSize    int
	MaxImageSide     int
}

// RecognitionService matches faces against the in-memory gallery. The
// gallery is replaced wholesale through UseGallery, so readers never observe
// a partially updated gallery.
type RecognitionService struct {
	extractors map[extractor.Mode]extractor.FeatureExtractor
	attendance *AttendanceService
	index      FaceIndex
	logger     *logger.Logger
	cfg        RecognitionConfig
	now        func() time.Time

	mu      sync.RWMutex
	gallery *domain.Gallery
	indexed bool
}

// NewRecognitionService creates a new recognition service.
// Parameters:
//   - extractors: one extractor per mode the caller will request.
//   - attendance: ledger used by CheckIn and Watch.
//   - index: optional face index; nil always scans the gallery.
//   - log: fallback logger.
//   - cfg: tolerances, modes and index page size.
//
// Returns:
//   - *RecognitionService: service with an empty gallery.
func NewRecognitionService(
	extractors []extractor.FeatureExtractor,
	attendance *AttendanceService,
	index FaceIndex,
	log *logger.Logger,
	cfg RecognitionConfig,
) *RecognitionService {
	byMode := make(map[extractor.Mode]extractor.FeatureExtractor, len(extractors))
	for _, ext := range extractors {
		byMode[ext.Mode()] = ext
	}
	if cfg.IndexPageSize <= 0 {
		cfg.IndexPageSize = 64
	}
	return &RecognitionService{
		extractors: byMode,
		attendance: attendance,
		index:      index,
		logger:     log,
		cfg:        cfg,
		now:        time.Now,
		gallery:    domain.NewGallery(),
	}
}

func (s *RecognitionService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// UseGallery swaps in a new gallery. It matches the GalleryListener
// signature so it can be registered with EnrollmentService.OnChange.
func (s *RecognitionService) UseGallery(g *domain.Gallery, indexed bool) {
	s.mu.Lock()
	s.gallery = g
	s.indexed = indexed && s.index != nil
	s.mu.Unlock()
}

// GallerySize returns the number of embeddings currently loaded.
func (s *RecognitionService) GallerySize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gallery.Len()
}

func (s *RecognitionService) snapshot() (*domain.Gallery, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gallery, s.indexed
}

// Recognize detects every face in image and matches each one against the
// gallery.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - image: raw image bytes in any supported format.
//   - mode: detector mode; an extractor for it must be configured.
//   - tolerance: maximum match distance; <= 0 uses matcher.DefaultTolerance.
//
// Returns:
//   - []Recognition: one entry per face, in detector order.
//   - error: domain.ErrNoFaceDetected when the image has no face,
//     domain.ErrUnreadableImage when it cannot be decoded.
func (s *RecognitionService) Recognize(ctx context.Context, image []byte, mode extractor.Mode, tolerance float64) ([]Recognition, error) {
	ext, ok := s.extractors[mode]
	if !ok {
		return nil, fmt.Errorf("no extractor configured for mode %q", mode)
	}

	jpeg, err := media.Normalize(image, s.cfg.MaxImageSide)
	if err != nil {
		return nil, err
	}
	return s.recognizeJPEG(ctx, ext, jpeg, tolerance)
}

func (s *RecognitionService) recognizeJPEG(ctx context.Context, ext extractor.FeatureExtractor, jpeg []byte, tolerance float64) ([]Recognition, error) {
	faces, err := ext.DetectAndEncode(ctx, jpeg)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, domain.ErrNoFaceDetected
	}

	if tolerance <= 0 {
		tolerance = matcher.DefaultTolerance
	}
	g, indexed := s.snapshot()

	out := make([]Recognition, 0, len(faces))
	for _, f := range faces {
		out = append(out, Recognition{
			Box:    boxOf(f.Region),
			Result: s.match(ctx, f.Embedding, g, indexed, tolerance),
		})
	}
	return out, nil
}

func (s *RecognitionService) match(ctx context.Context, query domain.Embedding, g *domain.Gallery, indexed bool, tolerance float64) matcher.Result {
	if indexed {
		candidates, err := s.index.Candidates(ctx, query, tolerance, s.cfg.IndexPageSize)
		if err == nil {
			return matcher.Vote(candidates)
		}
		s.log(ctx).WithError(err).Warn("Face index lookup failed, scanning gallery")
	}
	return matcher.Match(query, g, tolerance)
}

// CheckIn recognizes faces with the check-in tolerance and accurate mode and
// marks attendance for every known face.
func (s *RecognitionService) CheckIn(ctx context.Context, image []byte, at time.Time) ([]CheckInOutcome, error) {
	recognitions, err := s.Recognize(ctx, image, s.cfg.CheckinMode, s.cfg.CheckinTolerance)
	if err != nil {
		return nil, err
	}
	return s.markAll(ctx, recognitions, at)
}

func (s *RecognitionService) markAll(ctx context.Context, recognitions []Recognition, at time.Time) ([]CheckInOutcome, error) {
	out := make([]CheckInOutcome, 0, len(recognitions))
	for _, r := range recognitions {
		outcome := CheckInOutcome{Recognition: r}
		if r.Known {
			result, rec, err := s.attendance.Mark(ctx, r.Identity, at)
			if err != nil {
				return nil, err
			}
			outcome.Mark = result
			outcome.Record = rec
		}
		out = append(out, outcome)
	}
	return out, nil
}

// FrameSource yields JPEG frames for the live loop. io.EOF ends the stream.
type FrameSource interface {
	NextFrame(ctx context.Context) ([]byte, error)
}

// FrameHandler receives the outcomes for each processed frame. Returning a
// non-nil error stops Watch; ErrStopWatch stops it without error.
type FrameHandler func(ctx context.Context, outcomes []CheckInOutcome) error

// ErrStopWatch ends Watch cleanly when returned by a FrameHandler.
var ErrStopWatch = errors.New("stop watch")

// Watch runs the live loop: take a frame, recognize with the live tolerance
// in fast mode, mark attendance, hand the outcomes to handler, then take the
// next frame. Frames that arrive while one is being processed are not queued.
func (s *RecognitionService) Watch(ctx context.Context, frames FrameSource, handler FrameHandler) error {
	ext, ok := s.extractors[s.cfg.LiveMode]
	if !ok {
		return fmt.Errorf("no extractor configured for mode %q", s.cfg.LiveMode)
	}
	ctx = logger.SetComponent(ctx, "watch")
	s.log(ctx).WithField(logger.FieldMode, string(s.cfg.LiveMode)).Info("Live recognition started")

	processed := 0
	defer func() {
		logger.With(logger.Fields{}).WithCount(processed).Info(ctx, "Live recognition stopped")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := frames.NextFrame(ctx)
		if errors.Is(err, io.EOF) || (err != nil && ctx.Err() != nil) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read frame: %w", err)
		}

		outcomes, err := s.processFrame(ctx, ext, frame)
		if err != nil {
			return err
		}
		processed++

		if handler != nil {
			if err := handler(ctx, outcomes); err != nil {
				if errors.Is(err, ErrStopWatch) {
					return nil
				}
				return err
			}
		}
	}
}

func (s *RecognitionService) processFrame(ctx context.Context, ext extractor.FeatureExtractor, frame []byte) ([]CheckInOutcome, error) {
	recognitions, err := s.recognizeJPEG(ctx, ext, frame, s.cfg.LiveTolerance)
	switch {
	case errors.Is(err, domain.ErrNoFaceDetected):
		return nil, nil
	case errors.Is(err, domain.ErrUnreadableImage):
		s.log(ctx).WithError(err).Debug("Dropping unreadable frame")
		return nil, nil
	case err != nil:
		return nil, err
	}
	return s.markAll(ctx, recognitions, s.now())
}
