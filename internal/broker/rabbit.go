// Package broker wraps the RabbitMQ connection used to republish classified
// inbound events and to consume outbound instructions.
package broker

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler consumes one delivery body. The delivery is acknowledged regardless
// of the outcome: a payload that cannot be processed is logged by the handler
// and discarded rather than redelivered in a loop.
type Handler func(body []byte)

// Rabbit holds one connection with a dedicated publish channel; each consumer
// gets its own channel.
type Rabbit struct {
	conn   *amqp.Connection
	pub    *amqp.Channel
	logger *zap.Logger
}

func Connect(url string, logger *zap.Logger) (*Rabbit, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	pub, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}
	logger.Info("Connected to RabbitMQ")
	return &Rabbit{conn: conn, pub: pub, logger: logger}, nil
}

// Publish sends body to (exchange, routingKey) as a JSON payload.
func (r *Rabbit) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	return r.pub.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// Consume starts a consumer on queue, invoking fn for every delivery and
// acknowledging it afterwards. The consumer stops when ctx is cancelled or
// the channel closes.
func (r *Rabbit) Consume(ctx context.Context, queue string, fn Handler) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel for %s: %w", queue, err)
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to consume %s: %w", queue, err)
	}

	go func() {
		defer ch.Close()
		r.logger.Info("Consuming queue", zap.String("queue", queue))
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					r.logger.Warn("Delivery channel closed", zap.String("queue", queue))
					return
				}
				fn(d.Body)
				if err := d.Ack(false); err != nil {
					r.logger.Warn("Failed to ack delivery", zap.String("queue", queue), zap.Error(err))
				}
			}
		}
	}()
	return nil
}

// Close shuts the publish channel and the connection.
func (r *Rabbit) Close() {
	if r.pub != nil {
		_ = r.pub.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
}
