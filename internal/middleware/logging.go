package middleware

import (
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"whatsdesk/internal/dto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Request tracing: request id, access log, panic recovery
// ===========================================================================

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"

	maxRequestIDLen = 128
)

// quietPaths are polled by load balancers and never logged on success
var quietPaths = map[string]bool{
	"/health":      true,
	"/api/v1/ping": true,
}

// secretParams are masked in logged query strings. Provider webhooks carry
// the instance secret in the URL.
var secretParams = []string{"secret", "token", "access_token", "auth[application_token]"}

// machinePrefixes answer with the flat {"error": ...} body
var machinePrefixes = []string{"/api/v1/webhook/", "/api/v1/functions/"}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// Logging writes one line per request. Level follows the status:
// 5xx error, 4xx warn, rest info.
func Logging(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest && quietPaths[path] {
			return
		}

		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", redactQuery(c.Request.URL.RawQuery)),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if ua := c.Request.UserAgent(); ua != "" {
			fields = append(fields, zap.String("user_agent", ua))
		}
		if ws, ok := GetWorkspaceID(c); ok {
			fields = append(fields, zap.String("workspace_id", ws.String()))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request completed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}

func redactQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "[unparseable]"
	}
	changed := false
	for _, key := range secretParams {
		if values.Has(key) {
			values.Set(key, "***")
			changed = true
		}
	}
	if !changed {
		return raw
	}
	return values.Encode()
}

// Recovery converts a handler panic into a 500. Webhook and function
// callers get the flat error body they expect everywhere else.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error("panic recovered",
				zap.String("request_id", GetRequestID(c)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)

			if isMachinePath(c.Request.URL.Path) {
				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.FunctionError("internal error"))
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "An internal error occurred"))
		}()
		c.Next()
	}
}

func isMachinePath(path string) bool {
	for _, prefix := range machinePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
