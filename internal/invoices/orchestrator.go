package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/blingbridge/internal/contacts"
	"github.com/angelmondragon/blingbridge/internal/orders"
	"github.com/angelmondragon/blingbridge/internal/products"
	"github.com/angelmondragon/blingbridge/internal/saleschannels"
	"github.com/angelmondragon/blingbridge/pkg/bling"
	"github.com/angelmondragon/blingbridge/pkg/db/models"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

// Outcomes reported to the Recorder.
const (
	OutcomeCreated    = "created"
	OutcomeFailed     = "failed"
	OutcomeRejected   = "validation_failed"
	OutcomeDuplicate  = "duplicate"
	OutcomeSendFailed = "send_failed"
)

const (
	defaultSubmitTimeout = 30 * time.Second
	// leaseMargin is kept between the end of the submit deadline and lock expiry.
	leaseMargin = 5 * time.Second
)

// InvoiceClient is the subset of the Bling gateway used to issue invoices.
type InvoiceClient interface {
	CreateInvoice(ctx context.Context, payload bling.InvoiceRequest) (*bling.InvoiceRef, error)
	SendInvoice(ctx context.Context, id int64, sendEmail bool) error
}

type ContactEnsurer interface {
	Ensure(ctx context.Context, order models.Order, settings contacts.Settings) (int64, error)
}

type ProductSyncer interface {
	Sync(ctx context.Context, items []models.OrderItem) products.Report
}

type ChannelResolver interface {
	Resolve(ctx context.Context, id int64) saleschannels.Channel
}

// Recorder observes orchestration outcomes.
type Recorder interface {
	RecordInvoice(outcome string)
}

type OrchestratorParams struct {
	Orders   orders.Repository
	Client   InvoiceClient
	Contacts ContactEnsurer
	Products ProductSyncer
	Channels ChannelResolver
	Locker   Locker
	Logger   *logger.Logger
	Recorder Recorder
	Clock    func() time.Time
	Debug    bool

	// SubmitTimeout bounds the invoice creation call. It must fit inside the lock TTL.
	SubmitTimeout time.Duration
}

// Orchestrator issues exactly one Bling invoice per order.
type Orchestrator struct {
	orders   orders.Repository
	client   InvoiceClient
	contacts ContactEnsurer
	products ProductSyncer
	channels ChannelResolver
	locker   Locker
	logg     *logger.Logger
	recorder Recorder
	now      func() time.Time
	debug    bool
	submit   time.Duration
}

// Result describes an issued invoice.
type Result struct {
	OrderID   int64  `json:"order_id"`
	InvoiceID int64  `json:"invoice_id"`
	Number    string `json:"number,omitempty"`
	Series    string `json:"series,omitempty"`
	Sent      bool   `json:"sent"`
	SendError string `json:"send_error,omitempty"`
}

func NewOrchestrator(params OrchestratorParams) (*Orchestrator, error) {
	if params.Orders == nil {
		return nil, errors.New("orders repository required")
	}
	if params.Client == nil {
		return nil, errors.New("bling client required")
	}
	if params.Contacts == nil {
		return nil, errors.New("contact reconciler required")
	}
	if params.Locker == nil {
		return nil, errors.New("order locker required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	submit := params.SubmitTimeout
	if submit <= 0 {
		submit = defaultSubmitTimeout
	}
	return &Orchestrator{
		orders:   params.Orders,
		client:   params.Client,
		contacts: params.Contacts,
		products: params.Products,
		channels: params.Channels,
		locker:   params.Locker,
		logg:     params.Logger,
		recorder: params.Recorder,
		now:      clock,
		debug:    params.Debug,
		submit:   submit,
	}, nil
}

// CreateForOrder issues the invoice for the order. An order that already carries
// an invoice id is refused with CONFLICT before any remote call.
func (o *Orchestrator) CreateForOrder(ctx context.Context, orderID int64, settings Settings) (*Result, error) {
	ctx = o.logg.WithOrderID(ctx, orderID)

	order, err := o.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.HasInvoice() {
		o.record(OutcomeDuplicate)
		return nil, alreadyInvoiced(order)
	}

	lease, ok, err := o.locker.Acquire(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire order lock")
	}
	if !ok {
		o.record(OutcomeDuplicate)
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "invoice creation already in progress for this order")
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "release order lock failed")
		}
	}()

	order, err = o.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.HasInvoice() {
		o.record(OutcomeDuplicate)
		return nil, alreadyInvoiced(order)
	}

	result, err := o.issue(ctx, lease, *order, settings)
	if err != nil {
		o.fail(ctx, order.ID, err)
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) issue(ctx context.Context, lease Lease, order models.Order, settings Settings) (*Result, error) {
	if err := ValidateLines(order); err != nil {
		return nil, err
	}
	if err := o.ensureLease(lease); err != nil {
		return nil, err
	}

	prepCtx, cancelPrep := context.WithTimeout(ctx, lease.Remaining()-o.submit-leaseMargin)
	defer cancelPrep()

	var contactID int64
	if settings.SyncCustomers {
		id, err := o.contacts.Ensure(prepCtx, order, settings.contactSettings())
		if err != nil {
			return nil, err
		}
		contactID = id
	}

	if settings.SyncProducts && o.products != nil {
		report := o.products.Sync(prepCtx, order.Items)
		for _, failure := range report.Failures {
			o.note(ctx, order.ID, fmt.Sprintf("Product sync failed for SKU %s: %s", failure.SKU, pkgerrors.MessageOf(failure.Err)))
		}
	}

	var channel *saleschannels.Channel
	if settings.SalesChannelID > 0 && o.channels != nil {
		resolved := o.channels.Resolve(prepCtx, settings.SalesChannelID)
		channel = &resolved
	}

	payload, err := Build(BuildInput{
		Order:     order,
		ContactID: contactID,
		Channel:   channel,
		Now:       o.now(),
	}, settings)
	if err != nil {
		return nil, err
	}

	if err := o.ensureLease(lease); err != nil {
		return nil, err
	}
	submitCtx, cancelSubmit := context.WithTimeout(ctx, o.submit)
	ref, err := o.client.CreateInvoice(submitCtx, payload)
	cancelSubmit()
	if err != nil {
		return nil, err
	}
	ctx = o.logg.WithInvoiceID(ctx, ref.ID)

	linked, err := o.orders.LinkInvoice(ctx, order.ID, orders.InvoiceLink{
		InvoiceID: ref.ID,
		Number:    ref.Number.String(),
		Series:    ref.Series.String(),
		CreatedAt: o.now().UTC(),
	})
	if err != nil {
		o.logg.Error(ctx, "invoice created in bling but not linked to the order", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("invoice %d was created but could not be stored on the order", ref.ID))
	}
	if !linked {
		o.logg.Error(ctx, "order was linked to another invoice concurrently", nil)
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order already linked; invoice %d is a duplicate", ref.ID)).
			WithDetails(map[string]any{"invoice_id": ref.ID})
	}

	o.note(ctx, order.ID, createdNote(ref))
	o.record(OutcomeCreated)
	o.logg.Info(ctx, "invoice created")

	result := &Result{
		OrderID:   order.ID,
		InvoiceID: ref.ID,
		Number:    ref.Number.String(),
		Series:    ref.Series.String(),
	}

	if err := o.client.SendInvoice(ctx, ref.ID, settings.SendEmail); err != nil {
		result.SendError = pkgerrors.MessageOf(err)
		o.record(OutcomeSendFailed)
		o.note(ctx, order.ID, "Invoice could not be sent for authorization: "+result.SendError)
		o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "invoice authorization submit failed")
		return result, nil
	}
	result.Sent = true
	o.note(ctx, order.ID, "Invoice sent to SEFAZ for authorization.")
	return result, nil
}

// ensureLease refuses to start the submit when the order lock could expire before
// the call returns.
func (o *Orchestrator) ensureLease(lease Lease) error {
	remaining := lease.Remaining()
	if remaining >= o.submit+leaseMargin {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeDependency, "order lock expires before the invoice can be submitted; retry the issuance").
		WithDetails(map[string]any{
			"lock_remaining": remaining.Round(time.Millisecond).String(),
			"submit_timeout": o.submit.String(),
		})
}

func (o *Orchestrator) fail(ctx context.Context, orderID int64, err error) {
	if pkgerrors.Is(err, pkgerrors.CodeValidation) {
		o.record(OutcomeRejected)
	} else {
		o.record(OutcomeFailed)
	}
	o.note(ctx, orderID, "Invoice was not created: "+describe(err))

	if o.debug {
		ctx = o.logg.WithField(ctx, "error_dump", pkgerrors.Dump(err))
		o.logg.Error(ctx, "invoice creation failed", err)
		return
	}
	o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "invoice creation failed")
}

func (o *Orchestrator) note(ctx context.Context, orderID int64, body string) {
	if err := o.orders.AddNote(ctx, orderID, body); err != nil {
		o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "append order note failed")
	}
}

func (o *Orchestrator) record(outcome string) {
	if o.recorder != nil {
		o.recorder.RecordInvoice(outcome)
	}
}

func alreadyInvoiced(order *models.Order) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "an invoice already exists for this order").
		WithDetails(map[string]any{"invoice_id": *order.BlingInvoiceID})
}

func createdNote(ref *bling.InvoiceRef) string {
	note := fmt.Sprintf("Invoice created in Bling (ID %d", ref.ID)
	if number := ref.Number.String(); number != "" {
		note += ", number " + number
	}
	if series := ref.Series.String(); series != "" {
		note += ", series " + series
	}
	return note + ")."
}

// describe renders the error with any missing fields reported by validation.
func describe(err error) string {
	msg := pkgerrors.MessageOf(err)
	typed := pkgerrors.As(err)
	if typed == nil {
		return msg
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return msg
	}
	for _, key := range []string{"missing_fields", "lines_without_sku"} {
		if fields, ok := details[key].([]string); ok && len(fields) > 0 {
			msg += " (" + strings.Join(fields, ", ") + ")"
		}
	}
	return msg
}
