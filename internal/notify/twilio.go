package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// TwilioConfig holds REST credentials.
type TwilioConfig struct {
	BaseURL       string
	AccountSID    string
	AuthToken     string
	From          string
	RatePerSecond int
}

// twilioError is the error body returned by the Messages API.
type twilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// TwilioSender sends SMS through the Twilio Messages REST API.
// Requests are throttled locally and never retried.
type TwilioSender struct {
	client  *resty.Client
	from    string
	path    string
	limiter *rate.Limiter
}

// NewTwilioSender creates a Twilio sender.
func NewTwilioSender(cfg TwilioConfig) *TwilioSender {
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 1
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(10*time.Second).
		SetRetryCount(0).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetHeader("Accept", "application/json")

	return &TwilioSender{
		client:  client,
		from:    cfg.From,
		path:    fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", cfg.AccountSID),
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Send posts one message.
func (s *TwilioSender) Send(ctx context.Context, to, message string) error {
	if to == "" {
		return ErrEmptyDestination
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("twilio rate limit wait: %w", err)
	}

	var result twilioMessage
	var apiErr twilioError
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   to,
			"From": s.from,
			"Body": message,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post(s.path)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}

	if resp.IsError() {
		if apiErr.Message != "" {
			return fmt.Errorf("twilio error %d (HTTP %d): %s", apiErr.Code, resp.StatusCode(), apiErr.Message)
		}
		return fmt.Errorf("twilio returned HTTP %d", resp.StatusCode())
	}

	return nil
}
