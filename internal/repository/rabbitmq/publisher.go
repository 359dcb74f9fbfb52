package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange and routing-key layout shared by gateway and worker.
const (
	Exchange           = "casestudy.exchange"
	DeadLetterExchange = "casestudy.dlx"

	JobsRoutingKey     = "jobs.submitted"
	StatusRoutingKey   = "jobs.status"
	CommandsRoutingKey = "jobs.commands"

	JobsQueue     = "jobs.submitted.q"
	StatusQueue   = "jobs.status.q"
	CommandsQueue = "jobs.commands.q"
)

type Publisher struct {
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

func NewPublisher(conn *amqp.Connection, exchange, routingKey string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true, // durable
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &Publisher{
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, body json.RawMessage) error {
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		p.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
