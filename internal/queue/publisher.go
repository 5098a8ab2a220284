// Package queue publishes reservation events to RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kirinyoku/tablego/internal/events"
)

// DefaultQueue is the durable queue events are routed to through the
// default exchange.
const DefaultQueue = "tablego.events"

// Publisher keeps one connection and channel open and publishes every event
// as a persistent JSON message.
type Publisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// Dial connects to url and declares queue.
func Dial(url, queue string) (*Publisher, error) {
	const op = "queue.Dial"

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: channel: %w", op, err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: declare %s: %w", op, queue, err)
	}

	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

// Publish implements events.Publisher.
func (p *Publisher) Publish(ctx context.Context, ev events.Event) error {
	const op = "queue.Publisher.Publish"

	body, err := encode(ev)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         string(ev.Type),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_ = p.ch.Close()
	return p.conn.Close()
}

func encode(ev events.Event) ([]byte, error) {
	return json.Marshal(ev)
}
