package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"account_service/internal/config"
	"account_service/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrNotConfirmed = errors.New("message was nacked by the broker")

// Broker carries blob cleanup notices over a durable queue. Publishes are confirmed by the broker.
type Broker struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func New(cfg config.RabbitMQ) (*Broker, error) {
	const op = "rabbitmq.New"

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: dial: %w", op, err)
	}

	b := &Broker{conn: conn}

	if err := b.setup(cfg.QueueName); err != nil {
		b.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

func (b *Broker) setup(queueName string) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	b.channel = ch

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable confirms: %w", err)
	}

	b.queue, err = ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %q: %w", queueName, err)
	}

	return nil
}

func publishing(msg models.BlobCleanup, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, err
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
	}, nil
}

// SendMessage publishes a blob cleanup request and waits for the broker to confirm it.
func (b *Broker) SendMessage(ctx context.Context, msg models.BlobCleanup) error {
	const op = "rabbitmq.SendMessage"

	p, err := publishing(msg, time.Now())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	confirm, err := b.channel.PublishWithDeferredConfirmWithContext(ctx, "", b.queue.Name, false, false, p)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !acked {
		return fmt.Errorf("%s: %w", op, ErrNotConfirmed)
	}

	return nil
}

// Consume delivers queued messages to handle until ctx is cancelled or the broker closes the delivery stream.
// It uses its own channel so publishing is unaffected. Every delivery is acked once handle returns.
func (b *Broker) Consume(ctx context.Context, handle func(ctx context.Context, body []byte)) error {
	const op = "rabbitmq.Consume"

	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msgs, err := ch.ConsumeWithContext(
		ctx,
		b.queue.Name,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}

			handle(ctx, d.Body)

			if err := d.Ack(false); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
	}
}

func (b *Broker) Close() {
	if b.channel != nil {
		_ = b.channel.Close()
	}
	_ = b.conn.Close()
}
