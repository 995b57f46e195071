package ticket

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// InventoryRejectedCode is the SQLSTATE create_ticket raises when it refuses
// a ticket for stock or pricing reasons.
const InventoryRejectedCode = "IV001"

const createTicketSQL = `SELECT ticket_id, subtotal, tax_amount, total FROM create_ticket($1, $2::jsonb)`

// Gateway creates tickets in the external store.
type Gateway interface {
	CreateTicket(ctx context.Context, customerAccountNo *string, lines []TicketLine) (TicketResult, error)
}

// Conn is the part of a pooled connection the gateway uses.
// *pgxpool.Conn satisfies it.
type Conn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Release()
}

// ConnSource hands out a connection for the duration of one call.
type ConnSource interface {
	AcquireConn(ctx context.Context) (Conn, error)
}

type poolConnSource struct {
	pool *pgxpool.Pool
}

// NewPoolConnSource acquires connections from a pgx pool.
func NewPoolConnSource(pool *pgxpool.Pool) ConnSource {
	return poolConnSource{pool: pool}
}

func (s poolConnSource) AcquireConn(ctx context.Context) (Conn, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type PostgresGateway struct {
	conns ConnSource
}

func NewPostgresGateway(conns ConnSource) *PostgresGateway {
	return &PostgresGateway{conns: conns}
}

// CreateTicket runs create_ticket once and maps its single result row.
// The store function owns the transaction; nothing is retried here.
func (g *PostgresGateway) CreateTicket(ctx context.Context, customerAccountNo *string, lines []TicketLine) (TicketResult, error) {
	table, err := BuildLineTable(lines)
	if err != nil {
		return TicketResult{}, err
	}
	payload, err := table.MarshalJSON()
	if err != nil {
		return TicketResult{}, NewGatewayError("encode ticket lines", err)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "ticket.gateway.create_ticket")
	defer span.End()
	span.SetAttributes(attribute.Int("ticket.lines", table.Len()))

	res, err := g.createTicket(ctx, customerAccountNo, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err).String())
		return TicketResult{}, err
	}
	span.SetAttributes(attribute.Int64("ticket.id", res.TicketID))
	return res, nil
}

func (g *PostgresGateway) createTicket(ctx context.Context, customerAccountNo *string, payload []byte) (TicketResult, error) {
	conn, err := g.conns.AcquireConn(ctx)
	if err != nil {
		return TicketResult{}, NewGatewayError("acquire connection", err)
	}
	defer conn.Release()

	var res TicketResult
	err = conn.QueryRow(ctx, createTicketSQL, nullableText(customerAccountNo), payload).
		Scan(&res.TicketID, &res.Subtotal, &res.TaxAmount, &res.Total)
	if err != nil {
		return TicketResult{}, classifyStoreError(err)
	}
	return res, nil
}

func classifyStoreError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return NewGatewayError("stored procedure did not return a result", err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == InventoryRejectedCode {
		return NewInventoryError(pgErr.Message)
	}
	return NewGatewayError("create ticket", fmt.Errorf("call create_ticket: %w", err))
}

func nullableText(v *string) pgtype.Text {
	if v == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *v, Valid: true}
}
