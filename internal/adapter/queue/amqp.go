// Package queue adapts RabbitMQ (via amqp091-go) to the domain.Queue port.
package queue

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

const (
	tasksQueue = "executor.tasks"
	tasksDLQ   = "executor.tasks.dlq"
)

// Client adapts an amqp091-go connection/channel pair to domain.Queue.
// Prefetch is fixed at 1 so the dispatcher never holds more than one
// unacked delivery per connection, matching the at-most-one-concurrent
// in-progress-set invariant C6 enforces on top of it.
type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// New dials url, declares the durable work queue and its DLQ (C6
// publishes there best-effort, via PublishDLQ, only after a task is
// permanently failed), and sets prefetch to 1.
func New(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("op=queue_new: %w: %w", domain.ErrTransientNetwork, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("op=queue_new: open channel: %w: %w", domain.ErrTransientNetwork, err)
	}

	if _, err := ch.QueueDeclare(tasksDLQ, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("op=queue_new: declare dlq: %w: %w", domain.ErrTransientNetwork, err)
	}
	if _, err := ch.QueueDeclare(tasksQueue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("op=queue_new: declare queue: %w: %w", domain.ErrTransientNetwork, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("op=queue_new: set qos: %w: %w", domain.ErrTransientNetwork, err)
	}

	return &Client{conn: conn, ch: ch}, nil
}

// Consume returns a channel of deliveries, each wrapping its own
// ack/nack/reject against the underlying amqp.Delivery.
func (c *Client) Consume(ctx context.Context) (<-chan domain.Delivery, error) {
	deliveries, err := c.ch.ConsumeWithContext(ctx, tasksQueue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("op=queue_consume: %w: %w", domain.ErrTransientNetwork, err)
	}

	out := make(chan domain.Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				delivery := d
				out <- domain.Delivery{
					Body:   delivery.Body,
					Ack:    func() error { return delivery.Ack(false) },
					Nack:   func(requeue bool) error { return delivery.Nack(false, requeue) },
					Reject: func(requeue bool) error { return delivery.Reject(requeue) },
				}
			}
		}
	}()
	return out, nil
}

// PublishDLQ is a best-effort publish to the declared DLQ, used after a
// task is permanently failed. A failure here never blocks the ack
// decision already made against the main queue.
func (c *Client) PublishDLQ(ctx context.Context, body []byte) error {
	err := c.ch.PublishWithContext(ctx, "", tasksDLQ, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("op=queue_publish_dlq: %w: %w", domain.ErrTransientNetwork, err)
	}
	return nil
}

// Close tears down the channel then the connection.
func (c *Client) Close() error {
	chErr := c.ch.Close()
	connErr := c.conn.Close()
	if chErr != nil {
		return fmt.Errorf("op=queue_close: %w", chErr)
	}
	return connErr
}

var _ domain.Queue = (*Client)(nil)
