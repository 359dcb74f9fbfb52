package rabbitmq

import (
	"context"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one delivery body. A nil return acks the message; an
// error nacks it without requeue, so the queue's dead-letter policy owns
// redelivery. Handlers that must never poison-loop (status, commands)
// swallow their own errors and return nil.
type Handler func(ctx context.Context, body []byte) error

type Consumer struct {
	channel    *amqp.Channel
	exchange   string
	routingKey string
	queue      string
}

// NewConsumer declares and binds a durable queue on the topic exchange.
// A non-empty deadLetterExchange is attached as the queue's DLX target.
// Prefetch is pinned to 1: one in-flight job per worker process, and
// in-order status processing on the gateway side.
func NewConsumer(conn *amqp.Connection, exchange, routingKey, queue, deadLetterExchange string) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, err
	}

	var args amqp.Table
	if deadLetterExchange != "" {
		if err := ch.ExchangeDeclare(deadLetterExchange, "fanout", true, false, false, false, nil); err != nil {
			return nil, err
		}
		args = amqp.Table{"x-dead-letter-exchange": deadLetterExchange}
	}

	if _, err := ch.QueueDeclare(
		queue,
		true, // durable
		false,
		false,
		false,
		args,
	); err != nil {
		return nil, err
	}

	if err := ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		return nil, err
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return nil, err
	}

	return &Consumer{
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
		queue:      queue,
	}, nil
}

// Start consumes until ctx is done or the channel closes. Deliveries are
// handled synchronously so per-queue ordering is preserved.
func (c *Consumer) Start(ctx context.Context, handle Handler) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("consumer %s shutting down", c.queue)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				log.Printf("consumer %s: channel closed", c.queue)
				return nil
			}
			if err := handle(ctx, msg.Body); err != nil {
				log.Printf("consumer %s: handler error: %v", c.queue, err)
				msg.Nack(false, false)
				continue
			}
			msg.Ack(false)
		}
	}
}
