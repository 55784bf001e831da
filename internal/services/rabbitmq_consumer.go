package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/campusconnect/campusconnect/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// RabbitMQConsumer listens for item events on a private, auto-deleted queue
// bound to the events exchange.
type RabbitMQConsumer struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	exchangeName string
	bindingKey   string
}

// NewRabbitMQConsumer connects and declares the exchange. bindingKey is a
// topic pattern, "item.#" for every item event.
func NewRabbitMQConsumer(url, exchangeName, bindingKey string) (*RabbitMQConsumer, error) {
	conn, channel, err := dialExchange(url, exchangeName)
	if err != nil {
		return nil, err
	}
	if bindingKey == "" {
		bindingKey = "item.#"
	}

	return &RabbitMQConsumer{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		bindingKey:   bindingKey,
	}, nil
}

// Consume delivers decoded events to handler until ctx is cancelled or the
// broker closes the delivery channel.
func (c *RabbitMQConsumer) Consume(ctx context.Context, handler func(models.ItemEvent)) error {
	q, err := c.channel.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := c.channel.QueueBind(q.Name, c.bindingKey, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue to %s: %w", c.bindingKey, err)
	}

	msgs, err := c.channel.Consume(
		q.Name, // queue
		"",     // consumer tag
		true,   // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	log.Info().
		Str("queue", q.Name).
		Str("binding_key", c.bindingKey).
		Msg("Item event consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			var event models.ItemEvent
			if err := json.Unmarshal(d.Body, &event); err != nil {
				log.Error().Err(err).Str("routing_key", d.RoutingKey).Msg("Failed to unmarshal item event")
				continue
			}
			if event.Type == "" {
				event.Type = d.RoutingKey
			}

			log.Debug().
				Str("routing_key", d.RoutingKey).
				Str("item_id", event.ItemID).
				Msg("Received item event")

			handler(event)
		}
	}
}

func (c *RabbitMQConsumer) Close() error {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close channel")
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close connection")
			return err
		}
	}
	return nil
}
