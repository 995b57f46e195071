package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/andreasstove999/ecommerce-system/services/ticket-service-go/internal/telemetry"
	"github.com/andreasstove999/ecommerce-system/services/ticket-service-go/internal/ticket"
)

const publishTimeout = 3 * time.Second

// SequenceSource hands out the per-partition sequence stamped on each event.
type SequenceSource interface {
	Next(ctx context.Context, partitionKey string) (int64, error)
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	ch       channel
	seq      SequenceSource
	producer string
	now      func() time.Time
}

type PublisherOptions struct {
	Producer string
}

func NewPublisher(conn *amqp.Connection, seq SequenceSource, opts PublisherOptions) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	return newPublisher(ch, seq, opts), nil
}

func newPublisher(ch channel, seq SequenceSource, opts PublisherOptions) *Publisher {
	producer := opts.Producer
	if producer == "" {
		producer = ticketServiceName
	}
	return &Publisher{
		ch:       ch,
		seq:      seq,
		producer: producer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// PublishTicketCreated emits a TicketCreated v1 event partitioned by customer.
func (p *Publisher) PublishTicketCreated(ctx context.Context, customerAccountNo *string, result ticket.TicketResult) error {
	partition := partitionFor(customerAccountNo)

	seq, err := p.seq.Next(ctx, partition)
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}

	ev := newTicketCreatedEvent(telemetry.CorrelationID(ctx), partition, seq, p.producer, customerAccountNo, result, p.now())
	if err := ev.Validate(EventTypeTicketCreated, 1); err != nil {
		return fmt.Errorf("invalid TicketCreated envelope: %w", err)
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal TicketCreated envelope: %w", err)
	}

	return p.publishJSON(ctx, TicketCreatedRoutingKey, ev.EventID, body)
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey, messageID string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Body:         body,
		},
	)
}

func partitionFor(customerAccountNo *string) string {
	if customerAccountNo == nil || *customerAccountNo == "" {
		return walkInPartition
	}
	return *customerAccountNo
}

func newTicketCreatedEvent(correlationID, partition string, seq int64, producer string, customerAccountNo *string, result ticket.TicketResult, occurredAt time.Time) TicketCreatedEvent {
	payload := TicketCreatedPayload{
		TicketID:  result.TicketID,
		Subtotal:  json.Number(ticket.FormatAmount(result.Subtotal)),
		TaxAmount: json.Number(ticket.FormatAmount(result.TaxAmount)),
		Total:     json.Number(ticket.FormatAmount(result.Total)),
		Timestamp: occurredAt,
	}
	if customerAccountNo != nil {
		payload.CustomerAccountNo = *customerAccountNo
	}

	return TicketCreatedEvent{
		EventEnvelope: EventEnvelope{
			EventName:     EventTypeTicketCreated,
			EventVersion:  1,
			EventID:       uuid.NewString(),
			CorrelationID: correlationID,
			Producer:      producer,
			PartitionKey:  partition,
			Sequence:      seq,
			OccurredAt:    occurredAt,
			Schema:        ticketCreatedSchema,
		},
		Payload: payload,
	}
}
