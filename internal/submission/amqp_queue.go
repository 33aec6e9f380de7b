package submission

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher is the subset of *amqp.Channel used for publishing.
type AMQPPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPQueue publishes persistent JSON messages to a RabbitMQ queue through
// the default exchange.
type AMQPQueue struct {
	channel AMQPPublisher
	queue   string
	closer  func() error
}

// NewAMQPQueue wraps an open channel.
func NewAMQPQueue(channel AMQPPublisher, queue string) *AMQPQueue {
	if channel == nil {
		panic("submission: AMQP channel cannot be nil")
	}
	if queue == "" {
		panic("submission: AMQP queue name cannot be empty")
	}
	return &AMQPQueue{channel: channel, queue: queue}
}

// DialAMQP connects to url, declares a durable queue and returns a queue
// that owns the connection.
func DialAMQP(url, queue string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("submission: connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("submission: open rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("submission: declare queue %s: %w", queue, err)
	}
	q := NewAMQPQueue(ch, queue)
	q.closer = func() error {
		ch.Close()
		return conn.Close()
	}
	return q, nil
}

func (q *AMQPQueue) Send(ctx context.Context, body string) error {
	err := q.channel.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         []byte(body),
		Headers: amqp.Table{
			"message_type":     "JSON",
			"requeue_strategy": "DROP",
		},
	})
	if err != nil {
		return fmt.Errorf("submission: failed to publish AMQP message: %w", err)
	}
	return nil
}

// Close releases the connection opened by DialAMQP.
func (q *AMQPQueue) Close() error {
	if q.closer == nil {
		return nil
	}
	return q.closer()
}
