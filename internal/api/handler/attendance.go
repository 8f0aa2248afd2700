package handler

import (
	"bytes"
	"net/http"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/RudraShekhare/face-attendance-system/internal/logger"
	"github.com/RudraShekhare/face-attendance-system/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// AttendanceHandler serves the attendance log.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// AttendanceQuery holds the optional list filters.
type AttendanceQuery struct {
	Name string `form:"name" binding:"max=128"`
	Date string `form:"date" binding:"omitempty,datetime=2006-01-02"`
}

// List handles GET /api/v1/attendance.
func (h *AttendanceHandler) List(c *gin.Context) {
	var q AttendanceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := h.attendance.List(c.Request.Context(), domain.AttendanceFilter{Name: q.Name, Date: q.Date})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   len(records),
	})
}

// Names handles GET /api/v1/attendance/names.
func (h *AttendanceHandler) Names(c *gin.Context) {
	names, err := h.attendance.Names(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"names": names})
}

// Clear handles DELETE /api/v1/attendance.
func (h *AttendanceHandler) Clear(c *gin.Context) {
	ctx := c.Request.Context()
	removed, err := h.attendance.Clear(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	logger.CtxWarn(ctx, "Attendance cleared via API: removed=%d, client_ip=%s", removed, c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// ExportCSV handles GET /api/v1/attendance/export.csv.
func (h *AttendanceHandler) ExportCSV(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.attendance.ExportCSV(c.Request.Context(), &buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="attendance.csv"`)
	c.Data(http.StatusOK, contentTypeCSV, buf.Bytes())
}

// ExportXLSX handles GET /api/v1/attendance/export.xlsx.
func (h *AttendanceHandler) ExportXLSX(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.attendance.ExportSpreadsheet(c.Request.Context(), &buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="attendance.xlsx"`)
	c.Data(http.StatusOK, contentTypeXLSX, buf.Bytes())
}
