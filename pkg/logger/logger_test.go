package logger_test

import (
	"chatrelay/pkg/logger"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		level       string
		want        zapcore.Level
	}{
		{
			name:        "Development Environment",
			environment: logger.DevelopmentEnvironment,
			want:        zapcore.DebugLevel,
		},
		{
			name:        "Production Environment",
			environment: logger.ProductionEnvironment,
			want:        zapcore.InfoLevel,
		},
		{
			name:        "Test Environment",
			environment: logger.TestEnvironment,
			want:        zapcore.WarnLevel,
		},
		{
			name:        "Explicit Level Overrides Environment",
			environment: logger.ProductionEnvironment,
			level:       "error",
			want:        zapcore.ErrorLevel,
		},
		{
			name:        "Unknown Level Keeps Environment Default",
			environment: logger.ProductionEnvironment,
			level:       "loud",
			want:        zapcore.InfoLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotPanics(t, func() {
				logger.Setup(tt.environment, tt.level)
			})

			l := logger.Get(context.Background())
			require.NotNil(t, l)
			require.Equal(t, tt.want, logger.Level())
		})
	}
}

func TestSetLevel(t *testing.T) {
	logger.Setup(logger.ProductionEnvironment)
	ctx := context.Background()
	require.False(t, logger.IsDebug(ctx))

	require.NoError(t, logger.SetLevel("debug"))
	require.True(t, logger.IsDebug(ctx), "level change should apply to the existing default logger")

	require.Error(t, logger.SetLevel("verbose"))
	require.Equal(t, zapcore.DebugLevel, logger.Level(), "invalid level should not change the current one")
}

func TestGet(t *testing.T) {
	logger.Setup(logger.DevelopmentEnvironment)

	ctx := context.Background()
	l := logger.Get(ctx)
	require.NotNil(t, l, "Should return default logger when context has no logger")

	customLogger, _ := zap.NewDevelopment()
	ctxWithLogger := logger.WithLogger(ctx, customLogger)
	l = logger.Get(ctxWithLogger)
	require.Equal(t, customLogger, l, "Should return logger from context")
}

func TestWithFields(t *testing.T) {
	logger.Setup(logger.DevelopmentEnvironment)
	ctx := context.Background()

	fields := []zapcore.Field{
		zap.String("client", "10.0.0.1"),
		zap.Int("clients", 3),
	}

	ctxWithFields := logger.WithFields(ctx, fields...)

	// zap.Logger does not expose its fields, only that a derived logger was stored
	l := logger.Get(ctxWithFields)
	require.NotNil(t, l)
	require.NotSame(t, logger.Get(ctx), l)
}

func TestIsDebug(t *testing.T) {
	logger.Setup(logger.DevelopmentEnvironment)
	ctx := context.Background()

	require.True(t, logger.IsDebug(ctx), "Development logger should be at debug level")

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	infoLogger, _ := cfg.Build()

	ctxWithInfoLogger := logger.WithLogger(ctx, infoLogger)
	require.False(t, logger.IsDebug(ctxWithInfoLogger), "Info level logger should not be at debug level")
}

func TestLoggingFunctions(t *testing.T) {
	logger.Setup(logger.DevelopmentEnvironment)
	ctx := context.Background()

	require.NotPanics(t, func() {
		logger.Debug(ctx, "debug message", zap.String("key", "value"))
		logger.Info(ctx, "info message", zap.String("key", "value"))
		logger.Warn(ctx, "warn message", zap.String("key", "value"))
		logger.Error(ctx, "error message", zap.String("key", "value"))
	})
}
