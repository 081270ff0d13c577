// Package logger wraps zap with the fields every HR assistant component logs.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a wrapper around zap.Logger.
type Logger struct {
	*zap.Logger
}

// Options selects the level and output format.
type Options struct {
	Level   string // debug, info, warn, error
	Format  string // json (default) or console
	Service string
}

// New creates a JSON logger at the given level.
func New(level string) (*Logger, error) {
	return Build(Options{Level: level, Service: "hr-assistant"})
}

// Build creates a logger from opts. An unknown level is an error.
func Build(opts Options) (*Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to parse log level: %w", err)
		}
		level = parsed
	}

	encoder := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	encoding := "json"
	if opts.Format == "console" {
		encoding = "console"
		encoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	cfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Encoding:          encoding,
		EncoderConfig:     encoder,
		DisableStacktrace: level > zapcore.DebugLevel,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	if opts.Service != "" {
		cfg.InitialFields = map[string]interface{}{"service": opts.Service}
	}

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return &Logger{Logger: l}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Named returns a child logger scoped to a component.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name)}
}

// With creates a child logger with additional fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// WithChat creates a child logger carrying the chat platform identifiers of an
// inbound message.
func (l *Logger) WithChat(correlationID, chatID, userID string) *Logger {
	return l.With(
		zap.String("correlation_id", correlationID),
		zap.String("chat_id", chatID),
		zap.String("bitrix_user_id", userID),
	)
}

// SetGlobal installs l as zap's global logger so library code using zap.L()
// shares the same sink.
func SetGlobal(l *Logger) {
	zap.ReplaceGlobals(l.Logger)
}
