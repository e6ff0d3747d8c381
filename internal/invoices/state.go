package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/blingbridge/internal/orders"
	"github.com/angelmondragon/blingbridge/internal/triggers"
	"github.com/angelmondragon/blingbridge/pkg/bling"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

// Local invoice states stored on the order.
const (
	StateAuthorized = "authorized"
	StateCancelled  = "cancelled"
	StateRejected   = "rejected"
	StateDenied     = "denied"
)

// allowedTransitions lists the states an invoice may leave for. Cancelled and
// denied are final; an authorized invoice can only be cancelled.
var allowedTransitions = map[string][]string{
	StateAuthorized: {StateCancelled},
	StateCancelled:  {},
	StateDenied:     {},
}

var terminalStates = map[triggers.Name]string{
	triggers.InvoiceAuthorized: StateAuthorized,
	triggers.InvoiceCancelled:  StateCancelled,
	triggers.InvoiceRejected:   StateRejected,
	triggers.InvoiceDenied:     StateDenied,
}

// StateChange is the invoice data carried by a webhook delivery.
type StateChange struct {
	Trigger   triggers.Name
	InvoiceID int64
	Number    string
	Series    string
	AccessKey string
	DanfeURL  string
}

// InvoiceReader fetches invoices to complete sparse webhook payloads.
type InvoiceReader interface {
	GetInvoice(ctx context.Context, id int64) (*bling.Invoice, error)
}

type StateUpdaterParams struct {
	Orders orders.Repository
	Reader InvoiceReader
	Logger *logger.Logger
}

// StateUpdater applies webhook-driven terminal states onto linked orders.
type StateUpdater struct {
	orders orders.Repository
	reader InvoiceReader
	logg   *logger.Logger
}

func NewStateUpdater(params StateUpdaterParams) (*StateUpdater, error) {
	if params.Orders == nil {
		return nil, errors.New("orders repository required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &StateUpdater{orders: params.Orders, reader: params.Reader, logg: params.Logger}, nil
}

// Apply reports false when the trigger is not a terminal state or no local
// order is linked to the invoice. Unlinked events are dropped.
func (u *StateUpdater) Apply(ctx context.Context, change StateChange) (bool, error) {
	state, ok := terminalStates[change.Trigger]
	if !ok || change.InvoiceID == 0 {
		return false, nil
	}
	ctx = u.logg.WithInvoiceID(ctx, change.InvoiceID)

	order, err := u.orders.FindByInvoiceID(ctx, change.InvoiceID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			u.logg.Info(ctx, "no order linked to invoice; event dropped")
			return false, nil
		}
		return false, err
	}
	ctx = u.logg.WithOrderID(ctx, order.ID)

	if current := currentState(order.InvoiceStatus); !canTransition(current, state) {
		ctx = u.logg.WithFields(ctx, map[string]any{"invoice_state": current, "incoming_state": state})
		u.logg.Warn(ctx, "out-of-order invoice state ignored")
		body := fmt.Sprintf("Ignored a late %q notification for invoice %d; the invoice is already %s.", state, change.InvoiceID, current)
		if err := u.orders.AddNote(ctx, order.ID, body); err != nil {
			u.logg.Warn(u.logg.WithField(ctx, "error", err.Error()), "append order note failed")
		}
		return false, nil
	}

	if state == StateAuthorized {
		change = u.enrich(ctx, change)
	}

	update := orders.InvoiceState{Status: state}
	if change.Number != "" {
		update.Number = &change.Number
	}
	if change.Series != "" {
		update.Series = &change.Series
	}
	if change.AccessKey != "" {
		update.AccessKey = &change.AccessKey
	}
	if change.DanfeURL != "" {
		update.DanfeURL = &change.DanfeURL
	}
	if err := u.orders.UpdateInvoiceState(ctx, order.ID, update); err != nil {
		return false, err
	}

	if err := u.orders.AddNote(ctx, order.ID, stateNote(state, change)); err != nil {
		u.logg.Warn(u.logg.WithField(ctx, "error", err.Error()), "append order note failed")
	}
	u.logg.Info(u.logg.WithField(ctx, "invoice_state", state), "invoice state updated")
	return true, nil
}

func currentState(status *string) string {
	if status == nil {
		return ""
	}
	return strings.TrimSpace(*status)
}

// canTransition reports whether an invoice in state from may move to state to.
// Repeating the current state is allowed so late enrichment still lands.
func canTransition(from, to string) bool {
	if from == "" || from == to {
		return true
	}
	allowed, restricted := allowedTransitions[from]
	if !restricted {
		return true
	}
	for _, state := range allowed {
		if state == to {
			return true
		}
	}
	return false
}

// enrich fills the DANFE link, number and access key from Bling when the
// webhook omitted them. Failures keep the payload as is.
func (u *StateUpdater) enrich(ctx context.Context, change StateChange) StateChange {
	if u.reader == nil || (change.DanfeURL != "" && change.Number != "" && change.AccessKey != "") {
		return change
	}
	invoice, err := u.reader.GetInvoice(ctx, change.InvoiceID)
	if err != nil || invoice == nil {
		if err != nil {
			u.logg.Warn(u.logg.WithField(ctx, "error", err.Error()), "invoice enrichment failed")
		}
		return change
	}
	if change.Number == "" {
		change.Number = invoice.Number.String()
	}
	if change.Series == "" {
		change.Series = invoice.Series.String()
	}
	if change.AccessKey == "" {
		change.AccessKey = strings.TrimSpace(invoice.AccessKey)
	}
	if change.DanfeURL == "" {
		change.DanfeURL = strings.TrimSpace(invoice.DanfeURL)
	}
	return change
}

func stateNote(state string, change StateChange) string {
	switch state {
	case StateAuthorized:
		parts := []string{fmt.Sprintf("Invoice %d authorized by SEFAZ.", change.InvoiceID)}
		if change.Number != "" {
			parts = append(parts, "Number: "+change.Number+".")
		}
		if change.AccessKey != "" {
			parts = append(parts, "Access key: "+change.AccessKey+".")
		}
		if change.DanfeURL != "" {
			parts = append(parts, "DANFE: "+change.DanfeURL)
		}
		return strings.Join(parts, " ")
	case StateCancelled:
		return fmt.Sprintf("Invoice %d was cancelled in Bling.", change.InvoiceID)
	case StateRejected:
		return fmt.Sprintf("Invoice %d was rejected by SEFAZ.", change.InvoiceID)
	default:
		return fmt.Sprintf("Invoice %d was denied by SEFAZ.", change.InvoiceID)
	}
}
