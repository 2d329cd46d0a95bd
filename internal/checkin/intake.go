package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/safenotsorry/checkin/internal/metrics"
	"github.com/safenotsorry/checkin/internal/model"
	"github.com/safenotsorry/checkin/internal/repository"
)

// IntakeResult describes what a reply did.
type IntakeResult struct {
	Affirmative bool
	// CheckIn is the check-in the reply completed, nil if none was open.
	CheckIn *model.CheckIn
}

// IsAffirmative reports whether text is exactly the token once trimmed,
// ignoring case. "y" and " Y " match "Y"; "yes" does not.
func IsAffirmative(text, token string) bool {
	return strings.ToUpper(strings.TrimSpace(text)) == strings.ToUpper(strings.TrimSpace(token))
}

// Receive handles an inbound reply. Every reply is logged to the response
// store. An affirmative reply completes the most recently scheduled open
// check-in for the number and is acknowledged with a confirmation.
func (s *Service) Receive(ctx context.Context, phone, text string) (*IntakeResult, error) {
	phone = strings.TrimSpace(phone)
	affirmative := IsAffirmative(text, s.policy.AffirmativeToken)
	s.metrics.IncResponseReceived(affirmative)

	if err := s.responses.Append(ctx, &model.Response{
		PhoneNumber: phone,
		Text:        text,
		ReceivedAt:  s.now().UTC(),
	}); err != nil {
		// Losing the audit row must not lose the completion.
		s.logger.Error("failed to record response", "phone", model.MaskPhone(phone), "error", err)
	}

	result := &IntakeResult{Affirmative: affirmative}
	if !affirmative || phone == "" {
		return result, nil
	}

	completed, err := s.checkIns.CompleteLatestByPhone(ctx, phone, s.now())
	switch {
	case err == nil:
		result.CheckIn = completed
		s.metrics.IncCheckInCompleted()
		s.logger.Info("check-in completed", "check_in_id", completed.ID, "user_id", completed.UserID)
	case errors.Is(err, repository.ErrCheckInNotFound):
		s.logger.Info("affirmative reply with no open check-in", "phone", model.MaskPhone(phone))
	default:
		s.logger.Error("failed to complete check-in", "phone", model.MaskPhone(phone), "error", err)
		return result, fmt.Errorf("complete check-in: %w", err)
	}

	s.notifier.Notify(ctx, metrics.KindConfirmation, phone, s.messages.Confirmation())
	return result, nil
}
