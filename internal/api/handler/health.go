package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GallerySizer reports how many embeddings are loaded.
type GallerySizer interface {
	GallerySize() int
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	gallery GallerySizer
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(gallery GallerySizer) *HealthHandler {
	return &HealthHandler{gallery: gallery}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"gallery_size": h.gallery.GallerySize(),
	})
}
