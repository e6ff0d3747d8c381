package invoices

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/blingbridge/internal/contacts"
	"github.com/angelmondragon/blingbridge/internal/saleschannels"
	"github.com/angelmondragon/blingbridge/pkg/bling"
	"github.com/angelmondragon/blingbridge/pkg/db/models"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
)

const (
	invoiceTypeOutgoing = 1
	freightBySender     = 0
	defaultUnit         = "UN"
	productTypeGoods    = "P"
	dateLayout          = "2006-01-02"
	dateTimeLayout      = "2006-01-02 15:04:05"
)

// BuildInput is everything the builder needs besides the settings.
type BuildInput struct {
	Order     models.Order
	ContactID int64
	Channel   *saleschannels.Channel
	Now       time.Time
}

// ValidateLines rejects an order without lines or with a line lacking a SKU.
func ValidateLines(order models.Order) error {
	if len(order.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order has no line items")
	}
	var missing []string
	for _, line := range order.Items {
		if strings.TrimSpace(line.SKU) == "" {
			missing = append(missing, strings.TrimSpace(line.Name))
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "every order line requires a product SKU").
			WithDetails(map[string]any{"lines_without_sku": missing})
	}
	return nil
}

// Build turns an order into the NF-e creation payload. A line without SKU or an
// order without lines is a VALIDATION_ERROR; nothing is silently skipped.
func Build(in BuildInput, settings Settings) (bling.InvoiceRequest, error) {
	order := in.Order
	if err := ValidateLines(order); err != nil {
		return bling.InvoiceRequest{}, err
	}

	items := make([]bling.InvoiceItem, 0, len(order.Items))
	for _, line := range order.Items {
		items = append(items, bling.InvoiceItem{
			Code:        strings.TrimSpace(line.SKU),
			Description: strings.TrimSpace(line.Name),
			Unit:        defaultUnit,
			Quantity:    quantity(line),
			UnitPrice:   bling.Amount(line.UnitPrice),
			Type:        productTypeGoods,
		})
	}

	contact, err := invoiceContact(order, in.ContactID)
	if err != nil {
		return bling.InvoiceRequest{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	payload := bling.InvoiceRequest{
		Type:          invoiceTypeOutgoing,
		OperationDate: now.Format(dateTimeLayout),
		Contact:       contact,
		Purpose:       settings.Purpose,
		Series:        settings.Series,
		Notes:         observation(order, settings.StoreURL),
		Items:         items,
		Installments: []bling.Installment{{
			Date:   now.Format(dateLayout),
			Amount: bling.Amount(order.Total),
			Notes:  strings.TrimSpace(order.PaymentMethodTitle),
		}},
	}
	if settings.OperationID > 0 {
		payload.OperationNature = &bling.IDRef{ID: settings.OperationID}
	}
	if in.Channel != nil && in.Channel.ID > 0 {
		payload.Store = &bling.InvoiceStore{ID: in.Channel.ID, Description: in.Channel.Description}
	}
	if order.DiscountTotal.IsPositive() {
		payload.Discount = bling.Amount(order.DiscountTotal)
	}
	if order.ShippingTotal.IsPositive() {
		payload.Transport = &bling.InvoiceTransport{
			FreightPayer: freightBySender,
			Freight:      bling.Amount(order.ShippingTotal),
		}
	}
	return payload, nil
}

// invoiceContact references the synced contact, or inlines the billing data
// when customer sync is disabled.
func invoiceContact(order models.Order, contactID int64) (bling.InvoiceContact, error) {
	if contactID > 0 {
		return bling.InvoiceContact{ID: contactID}, nil
	}
	local := contacts.FromOrder(order)
	if local.Document == "" {
		return bling.InvoiceContact{}, pkgerrors.New(pkgerrors.CodeValidation, "customer tax id (CPF/CNPJ) is required to issue an invoice").
			WithDetails(map[string]any{"missing_fields": []string{"tax_id"}})
	}
	if err := contacts.ValidateFiscal(local); err != nil {
		return bling.InvoiceContact{}, err
	}
	address := local.Address.General
	return bling.InvoiceContact{
		Name:       local.Name,
		Document:   local.Document,
		PersonType: local.PersonType,
		Email:      local.Email,
		Phone:      local.Phone,
		Address:    &address,
	}, nil
}

func quantity(line models.OrderItem) json.Number {
	return json.Number(line.Quantity.String())
}

func observation(order models.Order, storeURL string) string {
	note := fmt.Sprintf("Pedido #%s", order.Number)
	if storeURL != "" {
		note += " - " + storeURL
	}
	return note
}
