package messaging

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Event wraps every published payload with its type and publish time.
type Event struct {
	Type string      `json:"type"`
	At   time.Time   `json:"at"`
	Data interface{} `json:"data"`
}

type Producer struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

func NewProducer(url string, subject string, logger *slog.Logger) (*Producer, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}

	logger.Info("NATS producer initialized", "url", url, "subject", subject)

	return &Producer{
		conn:    nc,
		subject: subject,
		logger:  logger,
	}, nil
}

// Publish sends a typed event as JSON to the configured subject.
func (p *Producer) Publish(eventType string, data interface{}) error {
	payload, err := json.Marshal(Event{
		Type: eventType,
		At:   time.Now(),
		Data: data,
	})
	if err != nil {
		p.logger.Error("failed to marshal event", "type", eventType, "error", err)
		return err
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		p.logger.Error("failed to publish event to NATS", "type", eventType, "error", err)
		return err
	}

	p.logger.Info("event published to NATS", "subject", p.subject, "type", eventType)
	return nil
}

func (p *Producer) Close() error {
	p.conn.Close()
	return nil
}
