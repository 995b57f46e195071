package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/services/ticket-service-go/internal/http/openapi"
	"github.com/andreasstove999/ecommerce-system/services/ticket-service-go/internal/ticket"
)

const maxRequestBytes = 1 << 20

// TicketCreator is the ticket service as seen by the HTTP layer.
type TicketCreator interface {
	CreateTicket(ctx context.Context, req *ticket.TicketRequest) (ticket.TicketResult, error)
}

type Handler struct {
	tickets TicketCreator
	logger  *slog.Logger
	timeout time.Duration
}

// NewHandler builds the HTTP handler. timeout bounds each ticket call;
// zero leaves only the request context in charge.
func NewHandler(tickets TicketCreator, logger *slog.Logger, timeout time.Duration) *Handler {
	return &Handler{tickets: tickets, logger: logger, timeout: timeout}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapi.YAML)
}

type createTicketRequest struct {
	CustomerAccountNo *string              `json:"customerAccountNo"`
	Lines             []*ticketLineRequest `json:"lines"`
}

type ticketLineRequest struct {
	SKU           string           `json:"sku"`
	Qty           int              `json:"qty"`
	OverridePrice *decimal.Decimal `json:"overridePrice"`
}

type ticketResponse struct {
	TicketID  int64       `json:"ticketId"`
	Subtotal  json.Number `json:"subtotal"`
	TaxAmount json.Number `json:"taxAmount"`
	Total     json.Number `json:"total"`
}

func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTicketRequest(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, malformedBodyMessage(err))
		return
	}

	ctx := r.Context()
	h.logger.InfoContext(ctx, "create ticket request received", "has_customer", hasCustomer(req))

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res, err := h.tickets.CreateTicket(ctx, req)
	if err != nil {
		h.writeTicketError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "create ticket request succeeded", "ticket_id", res.TicketID)
	writeJSON(w, http.StatusOK, ticketResponse{
		TicketID:  res.TicketID,
		Subtotal:  json.Number(ticket.FormatAmount(res.Subtotal)),
		TaxAmount: json.Number(ticket.FormatAmount(res.TaxAmount)),
		Total:     json.Number(ticket.FormatAmount(res.Total)),
	})
}

func (h *Handler) writeTicketError(w http.ResponseWriter, r *http.Request, err error) {
	var tErr *ticket.Error
	errors.As(err, &tErr)

	switch ticket.KindOf(err) {
	case ticket.KindValidation:
		writeError(w, http.StatusBadRequest, tErr.Message)
	case ticket.KindInventory:
		writeError(w, http.StatusConflict, tErr.Message)
	case ticket.KindGateway, ticket.KindUnknown:
		h.logger.ErrorContext(r.Context(), "create ticket failed", "error", err)
		writeError(w, http.StatusInternalServerError, unexpectedErrorMessage)
	}
}

var errTrailingData = errors.New("trailing data after request body")

// decodeTicketRequest returns a nil request for an empty or null body so the
// validator reports it. The body must hold exactly one JSON value.
func decodeTicketRequest(body io.Reader) (*ticket.TicketRequest, error) {
	dec := json.NewDecoder(body)
	var in *createTicketRequest
	if err := dec.Decode(&in); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	if in == nil {
		return nil, nil
	}

	req := &ticket.TicketRequest{CustomerAccountNo: in.CustomerAccountNo}
	if in.Lines != nil {
		req.Lines = make([]*ticket.TicketLine, 0, len(in.Lines))
	}
	for _, l := range in.Lines {
		if l == nil {
			req.Lines = append(req.Lines, nil)
			continue
		}
		req.Lines = append(req.Lines, &ticket.TicketLine{
			SKU:           l.SKU,
			Qty:           l.Qty,
			OverridePrice: l.OverridePrice,
		})
	}
	return req, nil
}

// malformedBodyMessage describes a decode failure without echoing decoder
// internals to the caller.
func malformedBodyMessage(err error) string {
	var (
		typeErr *json.UnmarshalTypeError
		maxErr  *http.MaxBytesError
	)
	switch {
	case errors.Is(err, errTrailingData):
		return "Malformed request body: unexpected data after the JSON object."
	case errors.As(err, &maxErr):
		return "Malformed request body: payload too large."
	case errors.As(err, &typeErr) && typeErr.Field != "":
		field := typeErr.Field[strings.LastIndex(typeErr.Field, ".")+1:]
		return fmt.Sprintf("Malformed request body: field %q has the wrong type.", field)
	default:
		return "Malformed request body: invalid JSON."
	}
}

func hasCustomer(req *ticket.TicketRequest) bool {
	return req != nil && req.CustomerAccountNo != nil && strings.TrimSpace(*req.CustomerAccountNo) != ""
}
