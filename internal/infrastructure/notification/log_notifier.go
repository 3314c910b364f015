package notification

import (
	"context"

	"github.com/garyjia/e-approval/internal/application/port"
	"go.uber.org/zap"
)

// LogNotifier writes notifications to the log. Used when no messenger is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements port.Notifier
func (n *LogNotifier) Notify(_ context.Context, msg port.Notification) error {
	fields := []zap.Field{
		zap.String("event", msg.Event),
		zap.Int64s("recipients", msg.Recipients),
		zap.Int64("actor_id", msg.ActorID),
	}
	if msg.Document != nil {
		fields = append(fields,
			zap.Int64("document_id", msg.Document.ID),
			zap.String("document_no", msg.Document.DocumentNo),
			zap.String("status", msg.Document.CurrentStatus))
	}
	n.logger.Info("Notification", fields...)
	return nil
}
