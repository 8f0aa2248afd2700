// Package extractor detects faces in JPEG images and turns each one into a
// fixed-length embedding.
package extractor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/RudraShekhare/face-attendance-system/internal/config"
	"github.com/RudraShekhare/face-attendance-system/internal/domain"
)

// Mode selects the detector trade-off.
type Mode string

const (
	// Fast uses the HOG detector. Suitable for live video.
	Fast Mode = "fast"
	// Accurate uses the CNN detector. Slower, better with angled or small faces.
	Accurate Mode = "accurate"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Fast, "hog", "":
		return Fast, nil
	case Accurate, "cnn":
		return Accurate, nil
	default:
		return "", fmt.Errorf("unknown extractor mode %q", s)
	}
}

// detector returns the detector name used by the remote protocol.
func (m Mode) detector() string {
	if m == Accurate {
		return "cnn"
	}
	return "hog"
}

// FeatureExtractor finds faces in an image and returns one embedding per face.
// An image without faces yields an empty slice and no error.
type FeatureExtractor interface {
	DetectAndEncode(ctx context.Context, jpeg []byte) ([]domain.Face, error)
	Mode() Mode
	Close() error
}

// Factory builds an extractor of one provider for mode.
type Factory func(cfg *config.ExtractorConfig, mode Mode) (FeatureExtractor, error)

// ModeSharer is implemented by extractors whose loaded models can serve
// another mode without loading them again.
type ModeSharer interface {
	WithMode(mode Mode) FeatureExtractor
}

var (
	providersMu sync.RWMutex
	providers   = map[string]Factory{
		"remote": newRemote,
	}
)

// Register makes a provider available to New. Native providers register
// themselves from their own package so the core stays pure Go.
func Register(provider string, f Factory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[provider] = f
}

func newRemote(cfg *config.ExtractorConfig, mode Mode) (FeatureExtractor, error) {
	cfg.ResolveEnvVars()
	return NewRemote(cfg, mode), nil
}

// New builds the extractor configured by cfg.Provider.
func New(cfg *config.ExtractorConfig, mode Mode) (FeatureExtractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	providersMu.RLock()
	factory, ok := providers[cfg.Provider]
	providersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown extractor provider %q (not linked into this binary?)", cfg.Provider)
	}
	return factory(cfg, mode)
}

// NewSet builds one extractor per distinct mode. Providers implementing
// ModeSharer load their models once; closing any view closes all of them.
func NewSet(cfg *config.ExtractorConfig, modes ...Mode) ([]FeatureExtractor, error) {
	seen := make(map[Mode]bool, len(modes))
	var out []FeatureExtractor
	var base ModeSharer
	for _, mode := range modes {
		if seen[mode] {
			continue
		}
		seen[mode] = true

		if base != nil {
			out = append(out, base.WithMode(mode))
			continue
		}
		ext, err := New(cfg, mode)
		if err != nil {
			for _, e := range out {
				e.Close()
			}
			return nil, err
		}
		if sharer, ok := ext.(ModeSharer); ok {
			base = sharer
		}
		out = append(out, ext)
	}
	return out, nil
}

func checkDimension(faces []domain.Face, want int) error {
	if want <= 0 {
		return nil
	}
	for _, f := range faces {
		if len(f.Embedding) != want {
			return fmt.Errorf("%w: extractor returned %d values, want %d", domain.ErrDimensionMismatch, len(f.Embedding), want)
		}
	}
	return nil
}
