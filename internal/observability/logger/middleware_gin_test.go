package logger

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newLoggedEngine(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zap.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)

	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{
		ErrorClassifier: func(err error) (string, string) { return "internal_error", "boom" },
	}))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
		c.Status(http.StatusInternalServerError)
	})
	return r, logs
}

func TestGinMiddleware_RequestID(t *testing.T) {
	r, logs := newLoggedEngine(t)

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(HeaderRequestID, "portal-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "portal-123", rec.Header().Get(HeaderRequestID))
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-Id"))

	req = httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(HeaderRequestID, strings.Repeat("x", maxRequestIDLength+1))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Len(t, rec.Header().Get(HeaderRequestID), 36)

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "portal-123", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "/ok", entries[0].ContextMap()["route"])
}

func TestGinMiddleware_ErrorsLogAtErrorLevel(t *testing.T) {
	r, logs := newLoggedEngine(t)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "internal_error", entries[0].ContextMap()["error_type"])
	assert.Equal(t, "boom", entries[0].ContextMap()["error_code"])
}

func TestRequestEntryLevel(t *testing.T) {
	cases := []struct {
		entry requestEntry
		want  zapcore.Level
	}{
		{requestEntry{route: "/api/invoices", status: 200}, zapcore.InfoLevel},
		{requestEntry{route: "/api/invoices", status: 503}, zapcore.ErrorLevel},
		{requestEntry{route: "/api/documents", status: 429}, zapcore.WarnLevel},
		{requestEntry{route: "/api/documents", status: 400, errorType: "validation_error"}, zapcore.DebugLevel},
		{requestEntry{route: "/health", status: 200}, zapcore.DebugLevel},
		{requestEntry{route: "/api/invoices/:id", status: 404, errorType: "not_found"}, zapcore.InfoLevel},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.entry.level(), "%+v", tc.entry)
	}
}
