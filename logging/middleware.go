package logging

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/lithammer/shortuuid/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	maxRequestIDLen = 64
)

// validRequestID accepts ids made of letters, digits, '-' and '_' up to
// maxRequestIDLen characters, which covers shortuuid and uuid values.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// RequestID tags each request with an id, taken from the client when it
// sends a well-formed one, and puts a logger carrying it into the request context.
func RequestID(lg *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if !validRequestID(id) {
			id = shortuuid.New()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		ctx := WithLogger(c.Request.Context(), lg.With(zap.String(requestIDKey, id)))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Access logs every request except metric scrapes.
func Access(lg *zap.Logger) gin.HandlerFunc {
	return ginzap.GinzapWithConfig(lg, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/metrics", "/favicon.ico"},
		Context: func(c *gin.Context) []zapcore.Field {
			return []zapcore.Field{zap.String(requestIDKey, c.GetString(requestIDKey))}
		},
	})
}

func Recovery(lg *zap.Logger) gin.HandlerFunc {
	return ginzap.RecoveryWithZap(lg, true)
}
