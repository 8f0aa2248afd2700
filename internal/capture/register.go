// Package capture records reference photos from a live frame source.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/RudraShekhare/face-attendance-system/internal/logger"
	"github.com/RudraShekhare/face-attendance-system/internal/source"
)

// DefaultCount is the number of photos taken per registration.
const DefaultCount = 20

// FrameSource yields JPEG frames. io.EOF ends the stream.
type FrameSource interface {
	NextFrame(ctx context.Context) ([]byte, error)
}

// Options tunes a registration run.
type Options struct {
	Count    int           // photos to take; <= 0 uses DefaultCount
	Interval time.Duration // pause between photos
	// Progress is called after each saved photo with its 1-based index.
	Progress func(saved int, path string)
}

// Register saves up to opts.Count frames as <dataset>/<identity>/<i>.jpg,
// numbered from 1. Existing files with the same names are replaced. The
// stream ending early or ctx being cancelled stops the run and returns the
// photos saved so far.
func Register(ctx context.Context, frames FrameSource, dataset *source.Dataset, identity string, opts Options) ([]string, error) {
	name, err := domain.NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}
	count := opts.Count
	if count <= 0 {
		count = DefaultCount
	}
	ctx = logger.SetIdentity(ctx, name)

	var saved []string
	for i := 1; i <= count; i++ {
		if ctx.Err() != nil {
			break
		}

		frame, err := frames.NextFrame(ctx)
		if errors.Is(err, io.EOF) || (err != nil && ctx.Err() != nil) {
			break
		}
		if err != nil {
			return saved, fmt.Errorf("failed to read frame %d: %w", i, err)
		}

		path, err := dataset.SaveImage(name, strconv.Itoa(i)+".jpg", frame)
		if err != nil {
			return saved, err
		}
		saved = append(saved, path)
		if opts.Progress != nil {
			opts.Progress(i, path)
		}

		if opts.Interval > 0 && i < count {
			select {
			case <-time.After(opts.Interval):
			case <-ctx.Done():
			}
		}
	}

	logger.FromContext(ctx).WithField(logger.FieldCount, len(saved)).Info("Registration capture finished")
	return saved, nil
}
