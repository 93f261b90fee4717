package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/sma-occurrences-api/pkg/config"
	appErrors "github.com/noah-isme/sma-occurrences-api/pkg/errors"
	"github.com/noah-isme/sma-occurrences-api/pkg/middleware/requestid"
)

// New builds the application logger from cfg.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Env == config.EnvProduction {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Log.Format {
	case "console":
		zapCfg.Encoding = "console"
	default:
		zapCfg.Encoding = "json"
	}

	if cfg.Log.Level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapCfg.Build()
}

// FieldsFunc contributes request-scoped fields to the access log line.
type FieldsFunc func(c *gin.Context) []zap.Field

// GinMiddleware logs one line per request. Server errors are logged at error
// level and client errors at warn level.
func GinMiddleware(l *zap.Logger, extra ...FieldsFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		reqID := requestid.Value(c)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		}
		if route := c.FullPath(); route != "" {
			fields = append(fields, zap.String("route", route))
		}
		if reqID != "" {
			fields = append(fields, zap.String("request_id", reqID))
		}
		for _, fn := range extra {
			fields = append(fields, fn(c)...)
		}
		if len(c.Errors) > 0 {
			fields = append(fields,
				zap.String("errors", c.Errors.String()),
				zap.String("error_code", appErrors.FromError(c.Errors.Last().Err).Code),
			)
		}

		switch {
		case status >= 500:
			l.Error("http_request", fields...)
		case status >= 400:
			l.Warn("http_request", fields...)
		default:
			l.Info("http_request", fields...)
		}
	}
}
