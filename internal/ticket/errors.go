package ticket

import "errors"

// Kind tags a ticket error so the request boundary can pick a status code.
type Kind uint8

const (
	// KindUnknown is reported for errors not produced by this package.
	KindUnknown Kind = iota
	// KindValidation means the caller sent input that breaks a structural rule.
	KindValidation
	// KindInventory means the store rejected the ticket for a business reason.
	KindInventory
	// KindGateway means talking to the store failed or its answer was unusable.
	KindGateway
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInventory:
		return "inventory"
	case KindGateway:
		return "gateway"
	default:
		return "unknown"
	}
}

// Error is the error type returned by the ticket pipeline.
// Message is safe to show to callers for validation and inventory errors;
// Err holds the underlying cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewValidationError(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func NewInventoryError(msg string) error {
	return &Error{Kind: KindInventory, Message: msg}
}

func NewGatewayError(msg string, cause error) error {
	return &Error{Kind: KindGateway, Message: msg, Err: cause}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
