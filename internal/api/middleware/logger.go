package middleware

import (
	"net/http"
	"time"

	"github.com/RudraShekhare/face-attendance-system/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// quietPaths are polled by health checks and only logged at debug level.
var quietPaths = map[string]bool{
	"/health": true,
}

// LoggerMiddleware returns a Gin middleware that injects a request-scoped logger.
// A valid incoming X-Request-ID is reused so calls can be traced across services.
// Parameters:
//   - log: base logger to enrich with request fields.
//
// Returns:
//   - gin.HandlerFunc: middleware handler.
func LoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		requestID := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}

		ctx := log.WithContext(c.Request.Context())
		ctx = logger.WithFields(ctx, logger.Fields{
			logger.FieldRequestID: requestID,
			logger.FieldComponent: "api",
		})
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		entry := logger.With(logger.Fields{
			logger.FieldStatus: status,
			logger.FieldSize:   c.Writer.Size(),
		}).WithDuration(time.Since(start))

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error(ctx, "Request failed: method=%s, path=%s, client_ip=%s, errors=%s",
				c.Request.Method, path, c.ClientIP(), c.Errors.String())
		case status >= http.StatusBadRequest:
			entry.Warn(ctx, "Request rejected: method=%s, path=%s, client_ip=%s",
				c.Request.Method, path, c.ClientIP())
		case quietPaths[path]:
			entry.Debug(ctx, "Request completed: method=%s, path=%s", c.Request.Method, path)
		default:
			entry.Info(ctx, "Request completed: method=%s, path=%s, client_ip=%s",
				c.Request.Method, path, c.ClientIP())
		}
	}
}
