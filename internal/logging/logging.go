// Package logging holds the process-wide zap logger and the context
// loggers that carry per-command and per-node fields.
package logging

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const loggerKey contextKey = "logger"

var (
	mu           sync.RWMutex
	globalLogger *zap.Logger
)

// Config selects level and encoding. Unknown levels fall back to info.
// OutputPath defaults to stderr.
type Config struct {
	Level      string
	Format     string // "console" or "json"
	OutputPath string
}

// Init builds a logger from cfg and installs it.
func Init(cfg Config) error {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var config zap.Config
	if cfg.Format == "console" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	config.Level = zap.NewAtomicLevelAt(level)
	if cfg.OutputPath != "" {
		config.OutputPaths = []string{cfg.OutputPath}
	}

	logger, err := config.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return err
	}

	Replace(logger)
	return nil
}

// InitDefault installs a JSON logger at info, or a no-op logger when that
// cannot be built.
func InitDefault() {
	logger, err := zap.NewProduction(zap.AddCallerSkip(1))
	if err != nil {
		logger = zap.NewNop()
	}
	Replace(logger)
}

// Replace swaps the global logger. Tests use it to install zap.NewNop or an
// observer core.
func Replace(logger *zap.Logger) {
	mu.Lock()
	globalLogger = logger
	mu.Unlock()
}

// Sync flushes the installed logger.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

// L returns the installed logger, installing the default on first use.
func L() *zap.Logger {
	mu.RLock()
	logger := globalLogger
	mu.RUnlock()
	if logger == nil {
		InitDefault()
		return L()
	}
	return logger
}

// WithContext returns the logger stored in ctx, or L().
func WithContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return L()
}

// WithFields stores a logger carrying the given fields in the context.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	logger := WithContext(ctx).With(fields...)
	return context.WithValue(ctx, loggerKey, logger)
}

// WithOperation stores a logger tagged with op in the context.
func WithOperation(ctx context.Context, op string) context.Context {
	return WithFields(ctx, zap.String("operation", op))
}

func Debug(msg string, fields ...zap.Field) {
	L().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
}

// Fatal logs at fatal level and exits the process.
func Fatal(msg string, fields ...zap.Field) {
	L().Fatal(msg, fields...)
}

// String is zap.String, for callers that do not import zap.
func String(key, val string) zap.Field {
	return zap.String(key, val)
}

// ParentKey tags a log entry with a node cache key.
func ParentKey(key string) zap.Field {
	return zap.String("parent_key", key)
}

// NodeID tags a log entry with a node id.
func NodeID(id string) zap.Field {
	return zap.String("node_id", id)
}

// SuggestionID tags a log entry with a suggestion id.
func SuggestionID(id string) zap.Field {
	return zap.String("suggestion_id", id)
}
