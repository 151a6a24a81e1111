// Package middleware holds the gin handlers wrapped around every wsapi route.
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dietplan/dietplan/internal/core"
)

const (
	RequestIDKey    = "request_id"
	CallerKey       = "caller"
	HeaderRequestID = "X-Request-ID"

	DefaultMaxBodySize = 64 << 10
)

// RequestID reuses the proxy's X-Request-ID or generates one, and echoes it back.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// GetRequestID returns the id set by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// AccessLog writes one line per request once the handler returns. For a
// websocket that is when the connection closes.
func AccessLog(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", GetRequestID(c)),
		}
		if caller := GetCaller(c); caller != "" {
			fields = append(fields, zap.String("caller", caller))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("request", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}

// BodyLimit caps request bodies; maxSize <= 0 means DefaultMaxBodySize.
func BodyLimit(maxSize int64) gin.HandlerFunc {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"success": false,
				"error":   gin.H{"code": core.CodeInvalidFormat, "message": "request body too large"},
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// RequireCaller stores the trusted caller header under CallerKey and rejects
// the request with 401 when it is absent.
func RequireCaller(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetHeader(header)
		if caller == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"id":      0,
				"type":    "result",
				"success": false,
				"error":   gin.H{"code": core.CodeUnregistered, "message": "missing " + header},
			})
			return
		}
		c.Set(CallerKey, caller)
		c.Next()
	}
}

// GetCaller returns the caller stored by RequireCaller, or "".
func GetCaller(c *gin.Context) string {
	return c.GetString(CallerKey)
}
