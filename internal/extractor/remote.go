package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net/http"

	"github.com/RudraShekhare/face-attendance-system/internal/config"
	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/go-resty/resty/v2"
)

const embedFacePath = "/embed/face"

// Remote calls an HTTP face embedding server.
//
// Request: multipart form field "image" to POST /embed/face?model=hog|cnn.
// Response: {"faces":[{"bbox":[top,right,bottom,left],"embedding":[...]}]}.
type Remote struct {
	client     *resty.Client
	mode       Mode
	dimensions int
}

type remoteFace struct {
	BBox      []int     `json:"bbox"`
	Embedding []float64 `json:"embedding"`
}

type remoteResponse struct {
	Faces  []remoteFace `json:"faces"`
	Error  string       `json:"error,omitempty"`
	Detail string       `json:"detail,omitempty"`
}

// NewRemote creates a remote extractor.
func NewRemote(cfg *config.ExtractorConfig, mode Mode) *Remote {
	client := resty.New().SetBaseURL(cfg.BaseURL)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &Remote{
		client:     client,
		mode:       mode,
		dimensions: cfg.Dimensions,
	}
}

// DetectAndEncode implements FeatureExtractor.
func (r *Remote) DetectAndEncode(ctx context.Context, jpeg []byte) ([]domain.Face, error) {
	var resp remoteResponse
	httpResp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("model", r.mode.detector()).
		SetFileReader("image", "image.jpg", bytes.NewReader(jpeg)).
		SetResult(&resp).
		SetError(&resp).
		Post(embedFacePath)
	if err != nil {
		return nil, fmt.Errorf("failed to call face server: %w", err)
	}

	switch httpResp.StatusCode() {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnreadableImage, resp.message(httpResp.StatusCode()))
	default:
		return nil, fmt.Errorf("face server error: %s", resp.message(httpResp.StatusCode()))
	}

	faces := make([]domain.Face, 0, len(resp.Faces))
	for i, f := range resp.Faces {
		if len(f.BBox) != 4 {
			return nil, fmt.Errorf("face server returned malformed bbox for face %d", i)
		}
		top, right, bottom, left := f.BBox[0], f.BBox[1], f.BBox[2], f.BBox[3]
		faces = append(faces, domain.Face{
			Region:    image.Rect(left, top, right, bottom),
			Embedding: domain.Embedding(f.Embedding),
		})
	}
	if err := checkDimension(faces, r.dimensions); err != nil {
		return nil, err
	}
	return faces, nil
}

func (r remoteResponse) message(status int) string {
	switch {
	case r.Error != "":
		return r.Error
	case r.Detail != "":
		return r.Detail
	default:
		return fmt.Sprintf("status %d", status)
	}
}

// Mode implements FeatureExtractor.
func (r *Remote) Mode() Mode { return r.mode }

// Close implements FeatureExtractor.
func (r *Remote) Close() error { return nil }
