package infra

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/annolab/annolab-platform/config"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// LoggerClient writes to stdout and, when telemetry is initialized, mirrors
// records into the OTLP log pipeline via the otelslog bridge.
type LoggerClient struct {
	console *slog.Logger
	otel    *slog.Logger
}

func InitLoggerClient(cfg *config.EnvConfig) *LoggerClient {
	console := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	return &LoggerClient{
		console: console,
		otel:    otelslog.NewLogger(cfg.Telemetry.ServiceName),
	}
}

// NewTestLogger returns a console-only logger for tests.
func NewTestLogger() *LoggerClient {
	return &LoggerClient{
		console: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
}

func (l *LoggerClient) InfoWithContextf(ctx context.Context, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.console.InfoContext(ctx, msg)
	if l.otel != nil {
		l.otel.InfoContext(ctx, msg)
	}
}

func (l *LoggerClient) WarningWithContextf(ctx context.Context, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.console.WarnContext(ctx, msg)
	if l.otel != nil {
		l.otel.WarnContext(ctx, msg)
	}
}

func (l *LoggerClient) ErrorWithContextf(ctx context.Context, err error, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		l.console.ErrorContext(ctx, msg, slog.Any("error", err))
		if l.otel != nil {
			l.otel.ErrorContext(ctx, msg, slog.Any("error", err))
		}
		return
	}
	l.console.ErrorContext(ctx, msg)
	if l.otel != nil {
		l.otel.ErrorContext(ctx, msg)
	}
}
