// Package logging builds the service logger and an audit sink that writes
// audit events through it.
package logging

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/phonebook"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON logger at level, or a console logger with caller and
// stack traces when development is set.
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// AuditSink logs each audit event at info level, failures at warn.
type AuditSink struct {
	logger *zap.Logger
}

var _ phonebook.AuditSink = (*AuditSink)(nil)

func NewAuditSink(logger *zap.Logger) *AuditSink {
	return &AuditSink{logger: logger.Named("audit")}
}

func (s *AuditSink) Emit(_ context.Context, ev phonebook.AuditEvent) {
	fields := []zap.Field{
		zap.String("event", ev.EventType),
		zap.Time("at", ev.Timestamp.UTC().Truncate(time.Millisecond)),
		zap.Bool("success", ev.Success),
	}
	if ev.UserID != "" {
		fields = append(fields, zap.String("user_id", ev.UserID))
	}
	if ev.RequestID != "" {
		fields = append(fields, zap.String("request_id", ev.RequestID))
	}
	if ev.IP != "" {
		fields = append(fields, zap.String("ip", ev.IP))
	}
	if ev.UserAgent != "" {
		fields = append(fields, zap.String("user_agent", ev.UserAgent))
	}
	if ev.Error != "" {
		fields = append(fields, zap.String("error", ev.Error))
	}
	if len(ev.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", ev.Metadata))
	}

	if ev.Success {
		s.logger.Info("audit", fields...)
		return
	}
	s.logger.Warn("audit", fields...)
}
