package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"mint-radar/shared/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
)

// RequestID tags every request with an id, reusing the caller's X-Request-ID when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestIDField(c *gin.Context) zap.Field {
	return zap.String(requestIDKey, c.GetString(requestIDKey))
}

// AccessLog logs each request at debug level.
func AccessLog(appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		appLogger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
			requestIDField(c))
	}
}

func tokenMatches(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// RequireToken admits requests carrying "Authorization: Bearer <token>".
// With an empty token every request is rejected.
func RequireToken(token string, appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || !tokenMatches(got, token) {
			appLogger.Warn("Rejected unauthorized request", zap.String("path", c.FullPath()),
				zap.String("remoteAddr", c.RemoteIP()), requestIDField(c))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
