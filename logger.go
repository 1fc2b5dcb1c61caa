package docrepo

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a structured logger
type Logger interface {
	Error(ctx context.Context, msg string, err error, tags map[string]any)
	Warn(ctx context.Context, msg string, tags map[string]any)
	Info(ctx context.Context, msg string, tags map[string]any)
	Debug(ctx context.Context, msg string, tags map[string]any)
}

type zapLogger struct {
	logger *zap.Logger
}

// NewLogger returns a structured json logger with the given level and default fields
func NewLogger(level string, defaultFields map[string]any) (Logger, error) {
	cfg := zap.NewProductionConfig()
	opts := []zap.Option{
		zap.WithCaller(true),
		zap.AddCallerSkip(1),
	}
	for k, v := range defaultFields {
		opts = append(opts, zap.Fields(zap.Any(k, v)))
	}
	cfg.Level = zap.NewAtomicLevelAt(getLevel(level))
	logger, err := cfg.Build(opts...)
	if err != nil {
		return nil, err
	}
	return &zapLogger{logger: logger}, nil
}

// NopLogger returns a logger that discards everything
func NopLogger() Logger {
	return &zapLogger{logger: zap.NewNop()}
}

func fields(ctx context.Context, tags map[string]any) []zap.Field {
	var f []zap.Field
	for k, v := range tags {
		f = append(f, zap.Any(k, v))
	}
	if s, ok := sessionFromContext(ctx); ok {
		f = append(f, zap.String("session", s))
	}
	return f
}

func (z *zapLogger) Error(ctx context.Context, msg string, err error, tags map[string]any) {
	z.logger.Error(msg, append(fields(ctx, tags), zap.Error(err))...)
}

func (z *zapLogger) Warn(ctx context.Context, msg string, tags map[string]any) {
	z.logger.Warn(msg, fields(ctx, tags)...)
}

func (z *zapLogger) Info(ctx context.Context, msg string, tags map[string]any) {
	z.logger.Info(msg, fields(ctx, tags)...)
}

func (z *zapLogger) Debug(ctx context.Context, msg string, tags map[string]any) {
	z.logger.Debug(msg, fields(ctx, tags)...)
}

func getLevel(level string) zapcore.Level {
	levelMap := map[string]zapcore.Level{
		"error":   zap.ErrorLevel,
		"warn":    zap.WarnLevel,
		"warning": zap.WarnLevel,
		"info":    zap.InfoLevel,
		"debug":   zap.DebugLevel,
	}
	l, ok := levelMap[strings.ToLower(level)]
	if !ok {
		return zap.InfoLevel
	}
	return l
}
