// Package logger provides a structured logging facility using zap logger.
// It offers context-aware logging capabilities, environment-specific configuration,
// a level that can be changed at runtime, and helper functions for different log levels.
package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// DevelopmentEnvironment represents the development environment setting.
	// In this environment, the logger is configured with development settings (more verbose, human-readable).
	DevelopmentEnvironment = "development"

	// ProductionEnvironment represents the production environment setting.
	// In this environment, the logger is configured with production settings (less verbose, JSON format).
	ProductionEnvironment = "production"

	// TestEnvironment silences everything below warn level.
	TestEnvironment = "test"
)

var (
	// defaultLogger is the package-level logger instance used when no logger is found in context.
	defaultLogger = zap.NewNop() //nolint: gochecknoglobals
	// level is shared by every logger built by Setup so SetLevel applies to all of them.
	level = zap.NewAtomicLevelAt(zap.InfoLevel) //nolint: gochecknoglobals
)

// Setup initializes the default logger based on the environment.
// It configures the logger with appropriate settings for either development or production use.
//
// Parameters:
//   - environment: A string indicating the environment ("development", "production" or "test").
//   - lvl: An optional level name ("debug", "info", "warn", "error"). Empty keeps the environment default.
func Setup(environment string, lvl ...string) {
	var cfg zap.Config
	switch environment {
	case ProductionEnvironment:
		cfg = zap.NewProductionConfig()
	case TestEnvironment:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level.SetLevel(zap.WarnLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
	}

	level.SetLevel(cfg.Level.Level())
	if len(lvl) > 0 && lvl[0] != "" {
		// an unknown level name keeps the environment default
		_ = SetLevel(lvl[0])
	}
	cfg.Level = level

	l, err := cfg.Build()
	if err != nil {
		return
	}
	defaultLogger = l
}

// SetLevel changes the minimum enabled level of every logger created by Setup.
func SetLevel(name string) error {
	parsed, err := zapcore.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("could not parse log level %q: %w", name, err)
	}
	level.SetLevel(parsed)

	return nil
}

// Level returns the current minimum level of loggers created by Setup.
func Level() zapcore.Level {
	return level.Level()
}

// key is a custom type used as a context key for storing and retrieving logger instances.
type key struct{}

// Get retrieves a logger from the provided context.
// If no logger is found in the context, it returns the default logger.
func Get(ctx context.Context) *zap.Logger {
	if logger, _ := ctx.Value(key{}).(*zap.Logger); logger != nil {
		return logger
	}

	return defaultLogger
}

// WithLogger creates a new context with the provided logger attached.
// This allows for context-specific logging with custom logger instances.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, key{}, logger)
}

// WithFields creates a new context with a logger that includes the specified fields.
// This is useful for adding structured data to all log messages within a context.
func WithFields(ctx context.Context, fields ...zapcore.Field) context.Context {
	return WithLogger(ctx, Get(ctx).With(fields...))
}

// IsDebug checks if the logger in the context is configured at debug level.
func IsDebug(ctx context.Context) bool {
	return Get(ctx).Level() == zap.DebugLevel
}

// Debug logs a message at debug level with the given fields.
func Debug(ctx context.Context, msg string, fields ...zapcore.Field) {
	Get(ctx).Debug(msg, fields...)
}

// Info logs a message at info level with the given fields.
func Info(ctx context.Context, msg string, fields ...zapcore.Field) {
	Get(ctx).Info(msg, fields...)
}

// Warn logs a message at warn level with the given fields.
func Warn(ctx context.Context, msg string, fields ...zapcore.Field) {
	Get(ctx).Warn(msg, fields...)
}

// Error logs a message at error level with the given fields.
func Error(ctx context.Context, msg string, fields ...zapcore.Field) {
	Get(ctx).Error(msg, fields...)
}

// Fatal logs a message at fatal level with the given fields.
func Fatal(ctx context.Context, msg string, fields ...zapcore.Field) {
	Get(ctx).Fatal(msg, fields...)
}
