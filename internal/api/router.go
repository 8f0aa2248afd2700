package api

import (
	"github.com/RudraShekhare/face-attendance-system/internal/api/handler"
	"github.com/RudraShekhare/face-attendance-system/internal/api/middleware"
	"github.com/RudraShekhare/face-attendance-system/internal/config"
	"github.com/RudraShekhare/face-attendance-system/internal/logger"
	"github.com/gin-gonic/gin"
)

// Handlers groups the route handlers.
type Handlers struct {
	Health     *handler.HealthHandler
	Face       *handler.FaceHandler
	Attendance *handler.AttendanceHandler
	Admin      *handler.AdminHandler
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(h *Handlers, cfg *config.ServerConfig, log *logger.Logger) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	if cfg.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = cfg.MaxUploadBytes
	}

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check
	r.GET("/health", h.Health.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.POST("/enroll", h.Face.Enroll)
		v1.POST("/checkin", h.Face.CheckIn)
		v1.POST("/recognize", h.Face.Recognize)

		attendance := v1.Group("/attendance")
		attendance.GET("", h.Attendance.List)
		attendance.DELETE("", h.Attendance.Clear)
		attendance.GET("/names", h.Attendance.Names)
		attendance.GET("/export.csv", h.Attendance.ExportCSV)
		attendance.GET("/export.xlsx", h.Attendance.ExportXLSX)

		admin := v1.Group("/admin")
		admin.POST("/rebuild", h.Admin.TriggerRebuild)
		admin.GET("/rebuild", h.Admin.GetRebuildStatus)
	}

	return r
}
