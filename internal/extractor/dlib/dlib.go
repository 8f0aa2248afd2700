// Package dlib provides the in-process go-face extractor. Importing it
// registers the "dlib" provider with the extractor package; it needs the dlib
// headers and libraries at build time.
package dlib

import (
	"context"
	"fmt"
	"sync"

	"github.com/Kagami/go-face"
	"github.com/RudraShekhare/face-attendance-system/internal/config"
	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/RudraShekhare/face-attendance-system/internal/extractor"
)

func init() {
	extractor.Register("dlib", func(cfg *config.ExtractorConfig, mode extractor.Mode) (extractor.FeatureExtractor, error) {
		return New(cfg.ModelsDir, mode)
	})
}

// DescriptorSize is the embedding length produced by the dlib ResNet model.
const DescriptorSize = 128

// Extractor runs detection and encoding in-process through go-face.
// The models directory must contain shape_predictor_5_face_landmarks.dat,
// dlib_face_recognition_resnet_model_v1.dat and, for accurate mode,
// mmod_human_face_detector.dat.
type Extractor struct {
	core *core
	mode extractor.Mode
}

// core is the native recognizer shared by every mode view.
type core struct {
	mu  sync.Mutex
	rec *face.Recognizer
}

// New loads the dlib models from modelsDir.
func New(modelsDir string, mode extractor.Mode) (*Extractor, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load dlib models from %s: %w", modelsDir, err)
	}
	return &Extractor{core: &core{rec: rec}, mode: mode}, nil
}

// WithMode returns an extractor for mode that shares d's loaded models.
func (d *Extractor) WithMode(mode extractor.Mode) extractor.FeatureExtractor {
	return &Extractor{core: d.core, mode: mode}
}

// DetectAndEncode implements FeatureExtractor. The recognizer is not safe for
// concurrent use, so calls are serialized.
func (d *Extractor) DetectAndEncode(ctx context.Context, jpeg []byte) ([]domain.Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.core.mu.Lock()
	if d.core.rec == nil {
		d.core.mu.Unlock()
		return nil, fmt.Errorf("dlib extractor is closed")
	}
	var (
		found []face.Face
		err   error
	)
	if d.mode == extractor.Accurate {
		found, err = d.core.rec.RecognizeCNN(jpeg)
	} else {
		found, err = d.core.rec.Recognize(jpeg)
	}
	d.core.mu.Unlock()
	if err != nil {
		if _, ok := err.(face.ImageLoadError); ok {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnreadableImage, err)
		}
		return nil, fmt.Errorf("dlib recognize failed: %w", err)
	}

	faces := make([]domain.Face, 0, len(found))
	for _, f := range found {
		emb := make(domain.Embedding, len(f.Descriptor))
		for i, v := range f.Descriptor {
			emb[i] = float64(v)
		}
		faces = append(faces, domain.Face{Region: f.Rectangle, Embedding: emb})
	}
	return faces, nil
}

// Mode implements FeatureExtractor.
func (d *Extractor) Mode() extractor.Mode { return d.mode }

// Close frees the native recognizer for every view sharing it.
func (d *Extractor) Close() error {
	d.core.mu.Lock()
	defer d.core.mu.Unlock()
	if d.core.rec != nil {
		d.core.rec.Close()
		d.core.rec = nil
	}
	return nil
}
