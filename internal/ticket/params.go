package ticket

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// LineTable columns, in the order the store function reads them.
const (
	ColumnSKU           = "Sku"
	ColumnQty           = "Qty"
	ColumnOverridePrice = "OverridePrice"
)

// LineRow is one row of the tabular lines parameter.
type LineRow struct {
	SKU           string
	Qty           int
	OverridePrice decimal.Decimal
}

// LineTable is the structured parameter passed to create_ticket.
// It is sent to Postgres as a JSON array of row objects.
type LineTable struct {
	rows []LineRow
}

// BuildLineTable turns ticket lines into table rows, keeping input order.
// A missing override price becomes 0.00.
func BuildLineTable(lines []TicketLine) (LineTable, error) {
	if len(lines) == 0 {
		return LineTable{}, NewValidationError("No ticket lines provided.")
	}

	rows := make([]LineRow, 0, len(lines))
	for _, l := range lines {
		override := decimal.Zero
		if l.OverridePrice != nil {
			override = *l.OverridePrice
		}
		rows = append(rows, LineRow{SKU: l.SKU, Qty: l.Qty, OverridePrice: override})
	}
	return LineTable{rows: rows}, nil
}

func (t LineTable) Columns() []string {
	return []string{ColumnSKU, ColumnQty, ColumnOverridePrice}
}

// Rows returns a copy of the table rows.
func (t LineTable) Rows() []LineRow {
	return append([]LineRow(nil), t.rows...)
}

func (t LineTable) Len() int {
	return len(t.rows)
}

type lineRowJSON struct {
	SKU           string      `json:"sku"`
	Qty           int         `json:"qty"`
	OverridePrice json.Number `json:"override_price"`
}

// MarshalJSON encodes the rows with prices as plain numbers, two decimals.
func (t LineTable) MarshalJSON() ([]byte, error) {
	out := make([]lineRowJSON, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, lineRowJSON{
			SKU:           r.SKU,
			Qty:           r.Qty,
			OverridePrice: json.Number(FormatAmount(r.OverridePrice)),
		})
	}
	return json.Marshal(out)
}
