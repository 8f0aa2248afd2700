// Package media turns arbitrary uploaded or captured images into the JPEG
// frames the feature extractors accept.
package media

import (
	"bytes"
	"fmt"
	"image"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// DefaultMaxSide bounds the longest edge handed to the extractor.
const DefaultMaxSide = 1600

const jpegQuality = 92

// Decode reads any registered image format and applies EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", domain.ErrUnreadableImage)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreadableImage, err)
	}
	return img, nil
}

// Normalize decodes data, shrinks it so neither side exceeds maxSide and
// re-encodes it as JPEG.
// Parameters:
//   - data: raw image bytes (jpeg, png, gif or webp).
//   - maxSide: longest allowed edge; <= 0 keeps the original size.
//
// Returns:
//   - []byte: JPEG-encoded image.
//   - error: wraps domain.ErrUnreadableImage when data cannot be decoded.
func Normalize(data []byte, maxSide int) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return EncodeJPEG(Fit(img, maxSide))
}

// Fit downsizes img to fit in a maxSide square, preserving aspect ratio.
func Fit(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	if maxSide <= 0 || (b.Dx() <= maxSide && b.Dy() <= maxSide) {
		return img
	}
	return imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
}

// EncodeJPEG encodes img as JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
