package ticket

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const tracerName = "github.com/andreasstove999/ecommerce-system/services/ticket-service-go/internal/ticket"

// EventPublisher is notified after a ticket has been created.
type EventPublisher interface {
	PublishTicketCreated(ctx context.Context, customerAccountNo *string, result TicketResult) error
}

type nopPublisher struct{}

func (nopPublisher) PublishTicketCreated(context.Context, *string, TicketResult) error { return nil }

// Service validates ticket requests and hands them to the gateway.
// It keeps no per-request state, so identical requests reach the
// gateway as independent calls.
type Service struct {
	gateway Gateway
	events  EventPublisher
	logger  *slog.Logger

	created  metric.Int64Counter
	rejected metric.Int64Counter
}

// NewService wires a Service. A nil publisher disables notifications.
func NewService(gw Gateway, events EventPublisher, logger *slog.Logger) *Service {
	if events == nil {
		events = nopPublisher{}
	}
	meter := otel.Meter(tracerName)
	created, _ := meter.Int64Counter("tickets.created", metric.WithDescription("Tickets created by the store"))
	rejected, _ := meter.Int64Counter("tickets.rejected", metric.WithDescription("Ticket requests that failed, by error kind"))

	return &Service{
		gateway:  gw,
		events:   events,
		logger:   logger,
		created:  created,
		rejected: rejected,
	}
}

func (s *Service) CreateTicket(ctx context.Context, req *TicketRequest) (TicketResult, error) {
	if err := Validate(req); err != nil {
		s.countRejected(ctx, err)
		return TicketResult{}, err
	}

	customer := normalizeCustomer(req.CustomerAccountNo)
	res, err := s.gateway.CreateTicket(ctx, customer, req.lineValues())
	if err != nil {
		if KindOf(err) == KindInventory {
			s.logger.WarnContext(ctx, "inventory validation failed", "customer", customerLabel(customer))
		}
		s.countRejected(ctx, err)
		return TicketResult{}, err
	}
	s.created.Add(ctx, 1)

	if err := s.events.PublishTicketCreated(ctx, customer, res); err != nil {
		s.logger.ErrorContext(ctx, "publish ticket created", "ticket_id", res.TicketID, "error", err)
	}
	return res, nil
}

func (s *Service) countRejected(ctx context.Context, err error) {
	s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", KindOf(err).String())))
}

func customerLabel(customer *string) string {
	if customer == nil {
		return ""
	}
	return *customer
}
