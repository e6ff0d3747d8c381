package invoices

import (
	"context"

	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
)

// StatusOutcome reports what a storefront status change caused.
type StatusOutcome struct {
	OrderID   int64   `json:"order_id"`
	Status    string  `json:"status"`
	Triggered bool    `json:"triggered"`
	Invoice   *Result `json:"invoice,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// HandleStatusChange records the new status and, when the auto-invoice policy
// matches, issues the invoice. Invoice failures are reported in the outcome and
// never fail the status change itself.
func (o *Orchestrator) HandleStatusChange(ctx context.Context, orderID int64, status string, settings Settings) (StatusOutcome, error) {
	status = normalizeStatus(status)
	outcome := StatusOutcome{OrderID: orderID, Status: status}
	if status == "" {
		return outcome, pkgerrors.New(pkgerrors.CodeValidation, "status is required")
	}
	if err := o.orders.UpdateStatus(ctx, orderID, status); err != nil {
		return outcome, err
	}
	if !settings.Triggers(status) {
		return outcome, nil
	}

	order, err := o.orders.FindByID(ctx, orderID)
	if err != nil {
		return outcome, err
	}
	if order.HasInvoice() {
		return outcome, nil
	}

	outcome.Triggered = true
	result, err := o.CreateForOrder(ctx, orderID, settings)
	if err != nil {
		outcome.Error = pkgerrors.MessageOf(err)
		return outcome, nil
	}
	outcome.Invoice = result
	return outcome, nil
}
