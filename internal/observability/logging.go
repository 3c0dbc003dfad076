// Package observability provides the engine's logging, metrics, and health
// surfaces.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/recoverops/dunning/internal/config"
)

// NewLogger creates a zap.Logger configured for JSON output to stdout.
//
// Log level usage conventions:
//   - error: infrastructure failures (store down, channel errors)
//   - warn:  degraded operation (marker release failed, record write lost)
//   - info:  evaluation run summaries, dispatches, catalog load
//   - debug: trigger/schedule decisions, idempotency skips, cache operations
func NewLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapCfg.Build()
}

// CaseLogger returns a logger enriched with the identifiers every per-case
// log line should carry.
func CaseLogger(logger *zap.Logger, caseID string, daysOverdue int) *zap.Logger {
	return logger.With(
		zap.String("case_id", caseID),
		zap.Int("days_overdue", daysOverdue),
	)
}
