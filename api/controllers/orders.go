package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/blingbridge/api/responses"
	"github.com/angelmondragon/blingbridge/api/validators"
	"github.com/angelmondragon/blingbridge/internal/invoices"
	"github.com/angelmondragon/blingbridge/internal/orders"
	"github.com/angelmondragon/blingbridge/pkg/config"
	"github.com/angelmondragon/blingbridge/pkg/db/models"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

type OrderService interface {
	Ingest(ctx context.Context, input orders.SnapshotInput) (*models.Order, error)
	Invoice(ctx context.Context, id int64) (orders.InvoiceView, error)
}

type InvoiceIssuer interface {
	CreateForOrder(ctx context.Context, orderID int64, settings invoices.Settings) (*invoices.Result, error)
	HandleStatusChange(ctx context.Context, orderID int64, status string, settings invoices.Settings) (invoices.StatusOutcome, error)
}

// OrderSnapshot upserts the storefront's view of an order.
func OrderSnapshot(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var input orders.SnapshotInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Ingest(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders.NewOrderView(order))
	}
}

// OrderStatusChange records a storefront status transition and applies the
// auto-invoice policy. Invoice failures are reported in the body, never as an
// error status.
func OrderStatusChange(svc InvoiceIssuer, cfg config.InvoiceConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice orchestrator unavailable"))
			return
		}

		orderID, err := validators.PathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input orders.StatusInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID)
		}
		outcome, err := svc.HandleStatusChange(ctx, orderID, input.Status, invoices.SettingsFromConfig(cfg))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

// OrderInvoiceCreate issues the invoice on operator request and surfaces the
// Bling error message unchanged on failure.
func OrderInvoiceCreate(svc InvoiceIssuer, cfg config.InvoiceConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice orchestrator unavailable"))
			return
		}

		orderID, err := validators.PathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID)
		}
		result, err := svc.CreateForOrder(ctx, orderID, invoices.SettingsFromConfig(cfg))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// OrderInvoiceGet returns the stored invoice link and the order's audit notes.
func OrderInvoiceGet(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.PathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Invoice(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
