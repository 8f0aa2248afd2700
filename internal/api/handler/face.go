package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/RudraShekhare/face-attendance-system/internal/extractor"
	"github.com/RudraShekhare/face-attendance-system/internal/logger"
	"github.com/RudraShekhare/face-attendance-system/internal/service"
	"github.com/gin-gonic/gin"
)

// FaceHandler serves enrollment, check-in and plain recognition.
type FaceHandler struct {
	enrollment  *service.EnrollmentService
	recognition *service.RecognitionService
	cfg         FaceHandlerConfig
	now         func() time.Time
}

// FaceHandlerConfig holds request limits and /recognize defaults.
type FaceHandlerConfig struct {
	MaxUploadBytes   int64
	DefaultMode      extractor.Mode
	DefaultTolerance float64
}

// NewFaceHandler creates a new face handler.
// Parameters:
//   - enrollment: service that writes the gallery.
//   - recognition: service that matches faces and marks attendance.
//   - cfg: upload limit and defaults for requests that omit mode or tolerance.
//
// Returns:
//   - *FaceHandler: initialized handler.
func NewFaceHandler(enrollment *service.EnrollmentService, recognition *service.RecognitionService, cfg FaceHandlerConfig) *FaceHandler {
	return &FaceHandler{
		enrollment:  enrollment,
		recognition: recognition,
		cfg:         cfg,
		now:         time.Now,
	}
}

// EnrollRequest is the multipart form for POST /enroll.
type EnrollRequest struct {
	Name string `form:"name" binding:"required,max=128"`
}

// RecognizeRequest is the multipart form for POST /recognize.
type RecognizeRequest struct {
	Tolerance float64 `form:"tolerance" binding:"omitempty,gt=0,lte=2"`
	Mode      string  `form:"mode" binding:"omitempty,oneof=fast accurate"`
}

// Enroll handles POST /api/v1/enroll.
func (h *FaceHandler) Enroll(c *gin.Context) {
	ctx := c.Request.Context()

	var req EnrollRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	img, err := readImage(c, h.cfg.MaxUploadBytes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.enrollment.Enroll(ctx, req.Name, img, h.now())
	if err != nil {
		if errors.Is(err, domain.ErrNoFaceDetected) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "No face detected, try again with better lighting or position"})
			return
		}
		respondError(c, err)
		return
	}

	logger.CtxInfo(ctx, "Enrolled identity: name=%s, faces=%d, gallery_size=%d", res.Identity, res.Faces, res.GallerySize)
	c.JSON(http.StatusCreated, res)
}

// CheckIn handles POST /api/v1/checkin.
func (h *FaceHandler) CheckIn(c *gin.Context) {
	img, err := readImage(c, h.cfg.MaxUploadBytes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcomes, err := h.recognition.CheckIn(c.Request.Context(), img, h.now())
	if err != nil {
		if errors.Is(err, domain.ErrNoFaceDetected) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "No face detected, try again with better lighting or position"})
			return
		}
		respondError(c, err)
		return
	}

	recognized := 0
	for _, o := range outcomes {
		if o.Known {
			recognized++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"faces":      outcomes,
		"recognized": recognized,
	})
}

// Recognize handles POST /api/v1/recognize. Nothing is recorded.
func (h *FaceHandler) Recognize(c *gin.Context) {
	var req RecognizeRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	img, err := readImage(c, h.cfg.MaxUploadBytes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := h.cfg.DefaultMode
	if req.Mode != "" {
		mode = extractor.Mode(req.Mode)
	}
	tolerance := h.cfg.DefaultTolerance
	if req.Tolerance > 0 {
		tolerance = req.Tolerance
	}

	recognitions, err := h.recognition.Recognize(c.Request.Context(), img, mode, tolerance)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"faces": recognitions})
}
