package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/jamesweston/viral-monitor/internal/monitor"
)

// Log writes alerts to the logger only, for local runs and tests.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a Log notifier.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

// Send logs the event and always succeeds.
func (l *Log) Send(_ context.Context, event monitor.ViralEvent) error {
	l.logger.Info("VIRAL ALERT",
		zap.String("handle", event.Username),
		zap.String("video_id", event.VideoID),
		zap.Int64("previous_views", event.PreviousViews),
		zap.Int64("current_views", event.CurrentViews),
		zap.Int64("delta", event.Delta),
		zap.String("url", event.VideoURL()),
	)
	return nil
}

// SendText logs a plain status message.
func (l *Log) SendText(_ context.Context, text string) error {
	l.logger.Info(text)
	return nil
}
