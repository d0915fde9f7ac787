// Package logging wraps a process-wide zap logger for the CLI and the mount.
//
// One-shot commands log in console format to stderr so that stdout stays
// reserved for command output. Mounts default to JSON.
package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger = zap.NewNop()
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Config selects the level, encoding and destination of log output.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // console (default) or json
	OutputPath string // defaults to stderr
}

// Init replaces the process logger. An unknown level falls back to info.
func Init(cfg Config) error {
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zapcore.InfoLevel)
	}

	zc := zap.NewDevelopmentConfig()
	zc.DisableStacktrace = true
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	if cfg.OutputPath != "" {
		zc.OutputPaths = []string{cfg.OutputPath}
	}

	l, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// Sync flushes buffered entries.
func Sync() error {
	return logger.Sync()
}

// L returns the process logger.
func L() *zap.Logger {
	return logger
}

// ForRequest returns a logger tagged with an outgoing API request id.
func ForRequest(requestID string) *zap.Logger {
	return logger.WithOptions(zap.AddCallerSkip(-1)).With(zap.String("request_id", requestID))
}

// Debug logs a debug message.
func Debug(msg string, fields ...zap.Field) {
	logger.Debug(msg, fields...)
}

// Info logs an info message.
func Info(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}

// Warn logs a warning message.
func Warn(msg string, fields ...zap.Field) {
	logger.Warn(msg, fields...)
}

// Error logs an error message.
func Error(msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
}

// String returns a string field.
func String(key, val string) zap.Field {
	return zap.String(key, val)
}

// Int returns an int field.
func Int(key string, val int) zap.Field {
	return zap.Int(key, val)
}

// Err returns the standard error field.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Duration returns a duration field.
func Duration(key string, val time.Duration) zap.Field {
	return zap.Duration(key, val)
}
