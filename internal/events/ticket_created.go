package events

import (
	"encoding/json"
	"time"
)

const (
	EventTypeTicketCreated = "TicketCreated"
	ticketCreatedSchema    = "contracts/events/ticket/TicketCreated.v1.payload.schema.json"

	// walkInPartition groups tickets that carry no customer account.
	walkInPartition = "walk-in"
)

type TicketCreatedPayload struct {
	TicketID          int64       `json:"ticketId"`
	CustomerAccountNo string      `json:"customerAccountNo,omitempty"`
	Subtotal          json.Number `json:"subtotal"`
	TaxAmount         json.Number `json:"taxAmount"`
	Total             json.Number `json:"total"`
	Timestamp         time.Time   `json:"timestamp"`
}

type TicketCreatedEvent struct {
	EventEnvelope
	Payload TicketCreatedPayload `json:"payload"`
}
