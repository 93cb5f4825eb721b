package rabbitmq

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"vodforge/config"
	"vodforge/dto"
)

// Publisher enqueues processing jobs. Submission is fire-and-forget from the
// request handler's point of view; the consumer side drains the queue.
type Publisher interface {
	Publish(ctx context.Context, message dto.JobMessage) error
}

type publisher struct {
	conn *amqp.Connection
	cfg  *config.RabbitMQ
}

func NewPublisher(conn *amqp.Connection, cfg *config.RabbitMQ) Publisher {
	return &publisher{
		conn: conn,
		cfg:  cfg,
	}
}

func (p *publisher) Publish(ctx context.Context, message dto.JobMessage) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(exchangeName, p.cfg.Kind, true, false, false, false, nil)
	if err != nil {
		return err
	}

	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(
		ctx,
		exchangeName,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
}
