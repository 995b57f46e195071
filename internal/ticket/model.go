package ticket

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TicketLine is a single requested SKU on a ticket.
type TicketLine struct {
	SKU           string
	Qty           int
	OverridePrice *decimal.Decimal
}

// TicketRequest is what callers submit to create a ticket.
// A nil entry in Lines is an absent line and fails validation.
type TicketRequest struct {
	CustomerAccountNo *string
	Lines             []*TicketLine
}

// TicketResult holds the totals computed by the store for a created ticket.
// Total is taken from the store as-is.
type TicketResult struct {
	TicketID  int64
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// FormatAmount renders a money amount with two decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// lineValues copies validated lines out of the request.
func (r *TicketRequest) lineValues() []TicketLine {
	out := make([]TicketLine, 0, len(r.Lines))
	for _, l := range r.Lines {
		out = append(out, *l)
	}
	return out
}

// normalizeCustomer maps a blank customer reference to nil. Other values
// pass through unchanged.
func normalizeCustomer(customerAccountNo *string) *string {
	if customerAccountNo == nil || strings.TrimSpace(*customerAccountNo) == "" {
		return nil
	}
	return customerAccountNo
}
