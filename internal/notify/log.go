package notify

import (
	"context"
	"log/slog"

	"github.com/safenotsorry/checkin/internal/model"
)

// LogSender writes messages to the log instead of delivering them.
// It is the development default.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("component", "notify.log")}
}

// Send logs the message.
func (s *LogSender) Send(ctx context.Context, to, message string) error {
	s.logger.InfoContext(ctx, "sms", "to", model.MaskPhone(to), "body", message)
	return nil
}
