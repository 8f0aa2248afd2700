package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/RudraShekhare/face-attendance-system/internal/logger"
	"github.com/gin-gonic/gin"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidIdentity), errors.Is(err, domain.ErrUnreadableImage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoFaceDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDimensionMismatch), errors.Is(err, domain.ErrCorruptData):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.CtxError(c.Request.Context(), "Request failed: path=%s, error=%v", c.Request.URL.Path, err)
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}

// readImage loads the "image" multipart field, rejecting files above limit.
func readImage(c *gin.Context, limit int64) ([]byte, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("image file is required: %w", err)
	}
	if limit > 0 && fh.Size > limit {
		return nil, fmt.Errorf("image exceeds %d bytes", limit)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}
