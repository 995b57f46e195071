package ticket

import "strings"

// Validate checks a request before anything is sent to the store.
func Validate(req *TicketRequest) error {
	if req == nil {
		return NewValidationError("Request body is required.")
	}
	if len(req.Lines) == 0 {
		return NewValidationError("Ticket must include at least one line.")
	}

	for _, line := range req.Lines {
		if line == nil {
			return NewValidationError("Line cannot be null.")
		}
		if strings.TrimSpace(line.SKU) == "" {
			return NewValidationError("Each line must have a SKU.")
		}
		if line.Qty <= 0 {
			return NewValidationError("Each line must have Qty > 0.")
		}
		if line.OverridePrice != nil && line.OverridePrice.IsNegative() {
			return NewValidationError("Line OverridePrice must be >= 0.")
		}
	}
	return nil
}
