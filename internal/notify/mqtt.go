package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/safenotsorry/checkin/internal/model"
)

// Publisher is the slice of the MQTT client the gateway sender needs.
type Publisher interface {
	Publish(topic string, qos byte, payload []byte) error
}

// GatewayMessage is the payload published for the SMS gateway.
type GatewayMessage struct {
	ID       string    `json:"id"`
	To       string    `json:"to"`
	Body     string    `json:"body"`
	QueuedAt time.Time `json:"queued_at"`
}

// MQTTSender hands messages to an SMS gateway over MQTT.
type MQTTSender struct {
	publisher Publisher
	topic     string
	now       func() time.Time
}

// NewMQTTSender creates a sender that publishes to topic at QoS 1.
func NewMQTTSender(publisher Publisher, topic string) *MQTTSender {
	return &MQTTSender{publisher: publisher, topic: topic, now: time.Now}
}

// Send publishes the message. The gateway acknowledges at the broker
// level only; delivery to the handset is not confirmed.
func (s *MQTTSender) Send(ctx context.Context, to, message string) error {
	if to == "" {
		return ErrEmptyDestination
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(GatewayMessage{
		ID:       model.NewID(),
		To:       to,
		Body:     message,
		QueuedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal gateway message: %w", err)
	}

	return s.publisher.Publish(s.topic, 1, payload)
}
