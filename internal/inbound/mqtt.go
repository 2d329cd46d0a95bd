// Package inbound receives replies forwarded by the SMS gateway over MQTT.
package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/safenotsorry/checkin/internal/checkin"
	"github.com/safenotsorry/checkin/internal/model"
	"github.com/safenotsorry/checkin/internal/mqtt"
)

// ErrMissingSender is returned for a reply without a from number, after
// it has been passed to intake.
var ErrMissingSender = errors.New("reply has no sender")

// Intake processes one reply.
type Intake interface {
	Receive(ctx context.Context, phone, text string) (*checkin.IntakeResult, error)
}

// Subscriber is the slice of the MQTT client the consumer needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// Reply is the payload the gateway publishes for an inbound SMS.
type Reply struct {
	From       string    `json:"from"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at,omitempty"`
}

// Consumer feeds gateway replies into the intake.
type Consumer struct {
	subscriber Subscriber
	intake     Intake
	topic      string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewConsumer creates a consumer for topic. Each reply is processed with
// its own context bounded by timeout.
func NewConsumer(subscriber Subscriber, intake Intake, topic string, timeout time.Duration, logger *slog.Logger) *Consumer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Consumer{
		subscriber: subscriber,
		intake:     intake,
		topic:      topic,
		timeout:    timeout,
		logger:     logger.With("component", "inbound.mqtt"),
	}
}

// Start subscribes at QoS 1. It returns once the subscription is active.
func (c *Consumer) Start() error {
	if err := c.subscriber.Subscribe(c.topic, 1, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to reply topic: %w", err)
	}
	c.logger.Info("reply consumer started", "topic", c.topic)
	return nil
}

// Stop unsubscribes from the reply topic.
func (c *Consumer) Stop() error {
	if err := c.subscriber.Unsubscribe(c.topic); err != nil {
		return err
	}
	c.logger.Info("reply consumer stopped", "topic", c.topic)
	return nil
}

// handleMessage decodes and processes one reply. Errors are returned for
// logging by the client; the message is never redelivered.
func (c *Consumer) handleMessage(topic string, payload []byte) error {
	var reply Reply
	if err := json.Unmarshal(payload, &reply); err != nil {
		return fmt.Errorf("failed to unmarshal reply: %w", err)
	}

	from := strings.TrimSpace(reply.From)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	// A reply without a sender is still recorded, then reported.
	result, err := c.intake.Receive(ctx, from, reply.Body)
	if err != nil {
		return fmt.Errorf("failed to process reply: %w", err)
	}
	if from == "" {
		return ErrMissingSender
	}

	c.logger.Debug("reply processed",
		"topic", topic,
		"phone", model.MaskPhone(from),
		"affirmative", result.Affirmative,
		"completed", result.CheckIn != nil,
	)
	return nil
}
