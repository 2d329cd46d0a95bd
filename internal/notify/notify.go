// Package notify delivers outbound messages. Transports implement Sender;
// Notifier sits in front of them so that delivery failures are logged and
// counted but never propagate into check-in handling.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/safenotsorry/checkin/internal/metrics"
	"github.com/safenotsorry/checkin/internal/model"
)

// ErrEmptyDestination is returned when a message has no recipient.
var ErrEmptyDestination = errors.New("destination is empty")

// Sender delivers one message to one destination.
type Sender interface {
	Send(ctx context.Context, to, message string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, to, message string) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, to, message string) error {
	return f(ctx, to, message)
}

type kindKey struct{}

// WithKind tags ctx with the message kind being sent.
func WithKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, kindKey{}, kind)
}

// KindFrom returns the message kind set by WithKind, or "".
func KindFrom(ctx context.Context) string {
	kind, _ := ctx.Value(kindKey{}).(string)
	return kind
}

// DefaultSendTimeout bounds a single transport call.
const DefaultSendTimeout = 15 * time.Second

// Notifier wraps a Sender with logging, metrics and a timeout.
type Notifier struct {
	sender  Sender
	logger  *slog.Logger
	metrics metrics.Recorder
	timeout time.Duration
}

// NewNotifier creates a Notifier.
func NewNotifier(sender Sender, logger *slog.Logger, recorder metrics.Recorder) *Notifier {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Notifier{
		sender:  sender,
		logger:  logger.With("component", "notify"),
		metrics: recorder,
		timeout: DefaultSendTimeout,
	}
}

// Notify sends message to the destination and reports whether the
// transport accepted it. Failures are logged here and not returned.
func (n *Notifier) Notify(ctx context.Context, kind, to, message string) bool {
	if to == "" {
		n.logger.Warn("notification skipped", "kind", kind, "error", ErrEmptyDestination)
		n.metrics.IncNotification(kind, "failed")
		return false
	}

	ctx, cancel := context.WithTimeout(WithKind(ctx, kind), n.timeout)
	defer cancel()

	start := time.Now()
	err := n.sender.Send(ctx, to, message)
	if err != nil {
		status := "failed"
		if errors.Is(err, ErrThrottled) {
			status = "throttled"
		}
		n.logger.Error("notification failed",
			"kind", kind,
			"to", model.MaskPhone(to),
			"error", err,
		)
		n.metrics.IncNotification(kind, status)
		return false
	}

	n.logger.Info("notification sent",
		"kind", kind,
		"to", model.MaskPhone(to),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	n.metrics.IncNotification(kind, "success")
	return true
}
