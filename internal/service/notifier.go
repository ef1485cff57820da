package service

import (
	"context"

	"go.uber.org/zap"
)

// Notifier delivers user-facing outcomes. Calls never block the caller on
// delivery and never fail.
type Notifier interface {
	Success(ctx context.Context, message string)
	Warning(ctx context.Context, message string)
	Error(ctx context.Context, message string, err error)
}

type logNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier records notifications as structured log entries.
func NewLogNotifier(logger *zap.Logger) Notifier {
	return &logNotifier{logger: logger.Named("notify")}
}

func (n *logNotifier) Success(_ context.Context, message string) {
	n.logger.Info(message, zap.String("kind", "success"))
}

func (n *logNotifier) Warning(_ context.Context, message string) {
	n.logger.Warn(message, zap.String("kind", "warning"))
}

func (n *logNotifier) Error(_ context.Context, message string, err error) {
	n.logger.Error(message, zap.String("kind", "error"), zap.Error(err))
}
