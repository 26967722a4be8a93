package middleware

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aura-bot/internal/config"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the application logger. It writes JSON to a rotating
// file in cfg.Dir and console output to stdout.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig()),
			zapcore.Lock(os.Stdout),
			level,
		),
	}

	if cfg.Dir != "" {
		// Get absolute path for log directory
		absLogDir, err := filepath.Abs(cfg.Dir)
		if err != nil {
			absLogDir = cfg.Dir
		}
		if err := os.MkdirAll(absLogDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", absLogDir, err)
		}

		appLogFile := &lumberjack.Logger{
			Filename:   filepath.Join(absLogDir, "app.log"),
			MaxSize:    10, // 10 MB
			MaxBackups: 30,
			MaxAge:     30, // 30 days
			Compress:   true,
			LocalTime:  true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig()),
			zapcore.AddSync(appLogFile),
			level,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	logger.Info("logger initialized", zap.String("dir", cfg.Dir), zap.Stringer("level", level))
	return logger, nil
}

func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return ec
}

// RequestLoggerMiddleware logs all incoming requests
func RequestLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		// Build full URL, without the token a WebSocket handshake may carry
		fullURL := c.Request.URL.Path
		query := c.Request.URL.Query()
		if query.Has(tokenQueryParam) {
			query.Set(tokenQueryParam, "***")
		}
		if raw := query.Encode(); raw != "" {
			fullURL = fullURL + "?" + raw
		}

		// Process request
		c.Next()

		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("url", fullURL),
			zap.Int("status", statusCode),
			zap.Duration("latency", latency),
		}
		if userID := GetUserID(c); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if statusCode >= 400 {
			logger.Warn("request", fields...)
		} else {
			logger.Info("request", fields...)
		}
	}
}
