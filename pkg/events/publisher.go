// Package events publishes report lifecycle events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueReportGenerated is the durable queue receiving ReportGenerated events.
const QueueReportGenerated = "muhurat.report.generated"

// ReportGenerated is emitted after a report has been persisted.
type ReportGenerated struct {
	ReadingID   string    `json:"readingId"`
	UserID      string    `json:"userId"`
	EventName   string    `json:"eventName"`
	EventType   string    `json:"eventType"`
	Tier        string    `json:"tier"`
	Defaulted   []string  `json:"defaulted,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Publisher delivers lifecycle events.
type Publisher interface {
	PublishReportGenerated(ctx context.Context, event ReportGenerated) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishReportGenerated(context.Context, ReportGenerated) error { return nil }

// AMQPPublisher publishes persistent JSON messages through the default exchange.
// Each publish dials its own connection so a broker outage never leaves a
// broken connection behind.
type AMQPPublisher struct {
	url    string
	logger *slog.Logger
}

// NewAMQPPublisher builds a publisher for the broker at url.
func NewAMQPPublisher(url string, logger *slog.Logger) (*AMQPPublisher, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("amqp url required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPPublisher{url: url, logger: logger.With("component", "events")}, nil
}

// PublishReportGenerated declares the durable queue and publishes event to it.
// Failures are returned, not logged.
func (p *AMQPPublisher) PublishReportGenerated(ctx context.Context, event ReportGenerated) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.publish(ctx, QueueReportGenerated, body); err != nil {
		return fmt.Errorf("%s: %w", QueueReportGenerated, err)
	}
	p.logger.Debug("event published", "queue", QueueReportGenerated, "reading_id", event.ReadingID)
	return nil
}

func (p *AMQPPublisher) publish(ctx context.Context, queue string, body []byte) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
