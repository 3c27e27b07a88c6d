package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// EventBusChannel publishes a JSON copy of topic-bearing messages to a topic
// exchange for downstream consumers. Publishing is best effort like every
// other channel.
type EventBusChannel struct {
	ch       publisher
	closer   func() error
	exchange string
}

type busEvent struct {
	ID         string         `json:"id"`
	Event      string         `json:"event"`
	Subject    string         `json:"subject,omitempty"`
	Body       string         `json:"body"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func DialEventBus(url, exchange string) (*EventBusChannel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &EventBusChannel{
		ch:       ch,
		exchange: exchange,
		closer: func() error {
			_ = ch.Close()
			return conn.Close()
		},
	}, nil
}

func (c *EventBusChannel) Name() string {
	return "eventbus"
}

func (c *EventBusChannel) Accepts(msg Message) bool {
	return msg.Topic != ""
}

func (c *EventBusChannel) Send(ctx context.Context, msg Message) error {
	b, err := json.Marshal(busEvent{
		ID:         msg.ID,
		Event:      msg.Event,
		Subject:    msg.Subject,
		Body:       msg.Body,
		Data:       msg.Data,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return c.ch.PublishWithContext(ctx, c.exchange, msg.Topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		MessageId:    msg.ID,
		Body:         b,
	})
}

func (c *EventBusChannel) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}
