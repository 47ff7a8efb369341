package logging

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(zap.NewNop()))

	var sawLogger bool
	r.GET("/", func(c *gin.Context) {
		sawLogger = FromContext(c.Request.Context()) != DefaultLogger()
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.True(t, sawLogger)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc123", w.Header().Get(RequestIDHeader))

	for _, bad := range []string{
		strings.Repeat("a", 65),
		"abc\r\nX-Injected: 1",
		"<script>",
		"id with spaces",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header[RequestIDHeader] = []string{bad}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		got := w.Header().Get(RequestIDHeader)
		assert.NotEqual(t, bad, got)
		assert.True(t, validRequestID(got), "replaced with a generated id")
	}
}
