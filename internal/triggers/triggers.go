// Package triggers hands invoice lifecycle events to the external workflow engine.
package triggers

import (
	"context"
	"encoding/json"
	"time"
)

// Name is the trigger hook consumed by the workflow engine.
type Name string

const (
	InvoiceCreated    Name = "invoice_created"
	InvoiceAuthorized Name = "invoice_authorized"
	InvoiceCancelled  Name = "invoice_cancelled"
	InvoiceRejected   Name = "invoice_rejected"
	InvoiceDenied     Name = "invoice_denied"
	InvoiceDeleted    Name = "invoice_deleted"
)

func (n Name) String() string { return string(n) }

// Trigger is a webhook delivery mapped to a hook name.
type Trigger struct {
	Name       Name            `json:"trigger"`
	EventKind  string          `json:"event"`
	StatusCode int             `json:"status_code,omitempty"`
	InvoiceID  int64           `json:"invoice_id"`
	EventID    string          `json:"event_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Emitter publishes triggers. Implementations must be safe for concurrent use.
type Emitter interface {
	Emit(ctx context.Context, trigger Trigger) error
}
