package rabbitmq

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"vodforge/config"
)

const (
	exchangeName = "processing_exchange"
	queueName    = "processing_queue"
	routingKey   = "processing.request"
)

type Consumer[T any] interface {
	Consume(ctx context.Context, dependencies T) error
}

type consumer[T any] struct {
	conn       *amqp.Connection
	cfg        *config.RabbitMQ
	handler    func(ctx context.Context, msg amqp.Delivery, dependencies T) error
	numWorkers int
}

func (c consumer[T]) Consume(ctx context.Context, dependencies T) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(exchangeName, c.cfg.Kind, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", queueName).Msg("failed to declare exchange")
		return err
	}

	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", queueName).Msg("failed to declare queue")
		return err
	}

	err = ch.QueueBind(q.Name, routingKey, exchangeName, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", queueName).Msg("failed to bind queue")
		return err
	}

	err = ch.Qos(c.numWorkers, 0, false)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", queueName).Msg("failed to set QoS")
		return err
	}

	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", queueName).Msg("failed to consume queue")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("queue", queueName).
		Str("exchange", exchangeName).
		Int("workers", c.numWorkers).
		Msg("processing consumer started")

	jobs := make(chan amqp.Delivery, c.numWorkers)
	var wg sync.WaitGroup
	for i := 1; i <= c.numWorkers; i++ {
		wg.Add(1)
		go func(workerId int) {
			defer wg.Done()
			for msg := range jobs {
				// Job failures are terminal and recorded on the job
				// row by the handler; the delivery is always acked so
				// the worker moves on to the next queued job.
				if err := c.handler(ctx, msg, dependencies); err != nil {
					zerolog.Ctx(ctx).Error().Err(err).Int("worker_id", workerId).Msg("failed to handle message")
				}
				if err := msg.Ack(false); err != nil {
					zerolog.Ctx(ctx).Error().Msg("failed to acknowledge message")
				}
			}
		}(i)
	}

	for {
		select {
		case delivery, ok := <-deliveries:
			if !ok {
				close(jobs)
				wg.Wait()
				return nil
			}

			jobs <- delivery
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
}

func NewConsumer[T any](
	conn *amqp.Connection,
	cfg *config.RabbitMQ,
	numWorkers int,
	handler func(ctx context.Context, msg amqp.Delivery, dependencies T) error,
) Consumer[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &consumer[T]{
		conn:       conn,
		cfg:        cfg,
		handler:    handler,
		numWorkers: numWorkers,
	}
}
