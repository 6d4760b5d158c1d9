package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/schoolbill/internal/observability/context"
	"github.com/smallbiznis/schoolbill/pkg/telemetry/correlation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	HeaderRequestID = "X-Request-Id"

	maxRequestIDLength = 64
)

// MiddlewareConfig controls request logging behavior.
type MiddlewareConfig struct {
	Debug bool
	// ErrorClassifier maps the last handler error to the (type, code) pair
	// returned to the client.
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware logs each request once it completes. Bodies are never logged
// since uploads carry student documents.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFor(c)
		c.Header(HeaderRequestID, requestID)
		c.Set("request_id", requestID)

		ctx := obscontext.WithRequestID(c.Request.Context(), requestID)
		ctx = obscontext.WithClient(ctx, c.ClientIP(), c.Request.UserAgent())
		ctx, cid := correlation.Ensure(correlation.WithID(ctx, c.GetHeader(correlation.HeaderName)))
		c.Header(correlation.HeaderName, cid)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		entry := requestEntry{
			route:  c.FullPath(),
			status: c.Writer.Status(),
		}
		if entry.route == "" {
			entry.route = "unknown"
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", entry.route),
			zap.Int("status", entry.status),
			zap.Duration("duration", time.Since(start)),
			zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if last := c.Errors.Last(); last != nil && cfg.ErrorClassifier != nil {
			entry.errorType, entry.errorCode = cfg.ErrorClassifier(last.Err)
			fields = append(fields,
				zap.String("error_type", entry.errorType),
				zap.String("error_code", entry.errorCode),
			)
			if cfg.Debug && entry.status >= http.StatusInternalServerError {
				fields = append(fields, zap.NamedError("cause", last.Err))
			}
		}

		// c.Request carries the actor once ActorRequired has run.
		if ce := FromContext(c.Request.Context()).Check(entry.level(), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

type requestEntry struct {
	route     string
	status    int
	errorType string
	errorCode string
}

func (e requestEntry) level() zapcore.Level {
	switch {
	case e.status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case e.status == http.StatusTooManyRequests:
		return zapcore.WarnLevel
	case e.errorType == "validation_error", e.route == "/health", e.route == "/metrics":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// requestIDFor keeps a caller supplied id when it is short and has no
// whitespace, otherwise mints a UUID.
func requestIDFor(c *gin.Context) string {
	id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
	if id == "" || len(id) > maxRequestIDLength || strings.ContainsAny(id, " \t\r\n") {
		return uuid.NewString()
	}
	return id
}
