package logger

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var defaultLogger *zap.SugaredLogger

func init() {
	defaultLogger = build(zapcore.InfoLevel, nil)
}

// New builds a structured logger at the given level, tee'd to stderr and,
// when filePath is non-empty, to an appended log file.
func New(level string, filePath string) (*zap.SugaredLogger, error) {
	var logFile *os.File
	if filePath != "" {
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logFile = f
	}
	return build(parseLevel(level), logFile), nil
}

func build(level zapcore.Level, logFile *os.File) *zap.SugaredLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.Lock(os.Stderr), level),
	}
	if logFile != nil {
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.Lock(logFile), level))
	}

	core := zapcore.NewTee(cores...)
	return zap.New(core).Sugar()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetLogger sets the global logger instance.
func SetLogger(l *zap.SugaredLogger) {
	defaultLogger = l
}

// SetLevel rebuilds the global logger at the given level.
func SetLevel(level string) {
	defaultLogger = build(parseLevel(level), nil)
}

// Logger returns the default logger.
func Logger() *zap.SugaredLogger {
	return defaultLogger
}

type traceIDKey struct{}

// WithTraceID returns a context carrying a trace ID for WithContext to pick up.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// WithContext returns a logger with context values attached.
func WithContext(ctx context.Context) *zap.SugaredLogger {
	if ctx == nil {
		return defaultLogger
	}
	if traceID, ok := ctx.Value(traceIDKey{}).(string); ok {
		return defaultLogger.With("trace_id", traceID)
	}
	return defaultLogger
}

// Info logs at Info level.
func Info(msg string, keysAndValues ...any) {
	defaultLogger.Infow(msg, keysAndValues...)
}

// InfoContext logs at Info level with context.
func InfoContext(ctx context.Context, msg string, keysAndValues ...any) {
	WithContext(ctx).Infow(msg, keysAndValues...)
}

// Error logs at Error level.
func Error(msg string, keysAndValues ...any) {
	defaultLogger.Errorw(msg, keysAndValues...)
}

// ErrorContext logs at Error level with context.
func ErrorContext(ctx context.Context, msg string, keysAndValues ...any) {
	WithContext(ctx).Errorw(msg, keysAndValues...)
}

// Warn logs at Warn level.
func Warn(msg string, keysAndValues ...any) {
	defaultLogger.Warnw(msg, keysAndValues...)
}

// WarnContext logs at Warn level with context.
func WarnContext(ctx context.Context, msg string, keysAndValues ...any) {
	WithContext(ctx).Warnw(msg, keysAndValues...)
}

// Debug logs at Debug level.
func Debug(msg string, keysAndValues ...any) {
	defaultLogger.Debugw(msg, keysAndValues...)
}

// DebugContext logs at Debug level with context.
func DebugContext(ctx context.Context, msg string, keysAndValues ...any) {
	WithContext(ctx).Debugw(msg, keysAndValues...)
}
