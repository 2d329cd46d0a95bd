package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/safenotsorry/checkin/internal/cache"
	"github.com/safenotsorry/checkin/internal/metrics"
	"github.com/safenotsorry/checkin/internal/model"
)

// ErrThrottled is returned when a destination exceeded its send budget.
var ErrThrottled = errors.New("destination send budget exhausted")

// SendBudget reports whether another message to destination is allowed.
type SendBudget interface {
	AllowSend(ctx context.Context, destination string, perMinute int) (*cache.SendGuardResult, error)
}

// GuardedSender caps messages per destination per minute.
// A budget backend failure lets the message through. Escalations bypass
// the budget; their check-in is already marked escalated when they are sent.
type GuardedSender struct {
	next      Sender
	budget    SendBudget
	perMinute int
	exempt    map[string]bool
	logger    *slog.Logger
}

// NewGuardedSender wraps next with a per-destination budget.
func NewGuardedSender(next Sender, budget SendBudget, perMinute int, logger *slog.Logger) *GuardedSender {
	return &GuardedSender{
		next:      next,
		budget:    budget,
		perMinute: perMinute,
		exempt:    map[string]bool{metrics.KindEscalation: true},
		logger:    logger.With("component", "notify.guard"),
	}
}

// Send checks the budget and forwards.
func (g *GuardedSender) Send(ctx context.Context, to, message string) error {
	if g.exempt[KindFrom(ctx)] {
		return g.next.Send(ctx, to, message)
	}

	res, err := g.budget.AllowSend(ctx, to, g.perMinute)
	if err != nil {
		g.logger.Warn("send guard unavailable, allowing", "to", model.MaskPhone(to), "error", err)
	} else if !res.Allowed {
		return fmt.Errorf("%w: retry after %s", ErrThrottled, res.RetryAfter.Round(time.Second))
	}

	return g.next.Send(ctx, to, message)
}
