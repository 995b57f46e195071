package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange          = "ecommerce.events"
	TicketCreatedRoutingKey = "ticket.created.v1"
	ticketServiceName       = "ticket-service"
)

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
}

// Dial connects to RabbitMQ, retrying until attempts run out or ctx is done.
func Dial(ctx context.Context, url string, attempts int, logger *slog.Logger) (*amqp.Connection, error) {
	if attempts < 1 {
		attempts = 1
	}
	backoff := 500 * time.Millisecond

	var lastErr error
	for i := 1; i <= attempts; i++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if i == attempts {
			break
		}
		logger.WarnContext(ctx, "rabbitmq dial failed, retrying", "attempt", i, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("connect to RabbitMQ: %w", lastErr)
}
