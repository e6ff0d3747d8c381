package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/blingbridge/pkg/db/models"
)

// InvoiceLink is the idempotency anchor written once an invoice exists in Bling.
type InvoiceLink struct {
	InvoiceID int64
	Number    string
	Series    string
	CreatedAt time.Time
}

// InvoiceState carries webhook-driven updates. Nil fields are left untouched.
type InvoiceState struct {
	Status    string
	Number    *string
	Series    *string
	AccessKey *string
	DanfeURL  *string
}

// SnapshotInput is the order payload pushed by the storefront.
type SnapshotInput struct {
	ID                 int64           `json:"id" validate:"required,gt=0"`
	Number             string          `json:"number" validate:"required"`
	Status             string          `json:"status" validate:"required"`
	CustomerUserID     *int64          `json:"customer_user_id,omitempty"`
	Billing            BillingInput    `json:"billing"`
	Items              []ItemInput     `json:"items" validate:"dive"`
	ShippingTotal      decimal.Decimal `json:"shipping_total"`
	DiscountTotal      decimal.Decimal `json:"discount_total"`
	Total              decimal.Decimal `json:"total"`
	PaymentMethodTitle string          `json:"payment_method_title"`
}

type BillingInput struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Company      string `json:"company"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone"`
	Cellphone    string `json:"cellphone"`
	CPF          string `json:"cpf"`
	CNPJ         string `json:"cnpj"`
	PersonType   string `json:"person_type"`
	Address1     string `json:"address_1"`
	Number       string `json:"number"`
	Neighborhood string `json:"neighborhood"`
	Address2     string `json:"address_2"`
	City         string `json:"city"`
	State        string `json:"state"`
	Postcode     string `json:"postcode"`
	Country      string `json:"country"`
}

type ItemInput struct {
	Name      string          `json:"name" validate:"required"`
	SKU       string          `json:"sku"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// StatusInput is the body of the status-change callback.
type StatusInput struct {
	Status string `json:"status" validate:"required"`
}

// ToModel maps the snapshot onto the persisted order. Invoice fields are never set here.
func (in SnapshotInput) ToModel() *models.Order {
	order := &models.Order{
		ID:                  in.ID,
		Number:              in.Number,
		Status:              in.Status,
		CustomerUserID:      in.CustomerUserID,
		BillingFirstName:    in.Billing.FirstName,
		BillingLastName:     in.Billing.LastName,
		BillingCompany:      in.Billing.Company,
		BillingEmail:        in.Billing.Email,
		BillingPhone:        in.Billing.Phone,
		BillingCellphone:    in.Billing.Cellphone,
		BillingCPF:          in.Billing.CPF,
		BillingCNPJ:         in.Billing.CNPJ,
		BillingPersonType:   in.Billing.PersonType,
		BillingAddress1:     in.Billing.Address1,
		BillingNumber:       in.Billing.Number,
		BillingNeighborhood: in.Billing.Neighborhood,
		BillingAddress2:     in.Billing.Address2,
		BillingCity:         in.Billing.City,
		BillingState:        in.Billing.State,
		BillingPostcode:     in.Billing.Postcode,
		BillingCountry:      in.Billing.Country,
		ShippingTotal:       in.ShippingTotal,
		DiscountTotal:       in.DiscountTotal,
		Total:               in.Total,
		PaymentMethodTitle:  in.PaymentMethodTitle,
	}
	for i, item := range in.Items {
		order.Items = append(order.Items, models.OrderItem{
			OrderID:   in.ID,
			Position:  i,
			Name:      item.Name,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return order
}

// InvoiceView is the stored invoice link returned by the admin API.
type InvoiceView struct {
	OrderID     int64      `json:"order_id"`
	OrderNumber string     `json:"order_number"`
	OrderStatus string     `json:"order_status"`
	InvoiceID   *int64     `json:"invoice_id"`
	Number      *string    `json:"number,omitempty"`
	Series      *string    `json:"series,omitempty"`
	Status      *string    `json:"status,omitempty"`
	AccessKey   *string    `json:"access_key,omitempty"`
	DanfeURL    *string    `json:"danfe_url,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	Notes       []NoteView `json:"notes"`
}

// NoteView is one audit note as exposed by the admin API.
type NoteView struct {
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderView summarizes a stored order snapshot.
type OrderView struct {
	ID         int64           `json:"id"`
	Number     string          `json:"number"`
	Status     string          `json:"status"`
	Total      decimal.Decimal `json:"total"`
	Items      int             `json:"items"`
	HasInvoice bool            `json:"has_invoice"`
	InvoiceID  *int64          `json:"invoice_id,omitempty"`
}

func NewOrderView(order *models.Order) OrderView {
	return OrderView{
		ID:         order.ID,
		Number:     order.Number,
		Status:     order.Status,
		Total:      order.Total,
		Items:      len(order.Items),
		HasInvoice: order.HasInvoice(),
		InvoiceID:  order.BlingInvoiceID,
	}
}

func NewInvoiceView(order *models.Order, notes []models.OrderNote) InvoiceView {
	views := make([]NoteView, 0, len(notes))
	for _, note := range notes {
		views = append(views, NoteView{Body: note.Body, CreatedAt: note.CreatedAt})
	}
	return InvoiceView{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		OrderStatus: order.Status,
		InvoiceID:   order.BlingInvoiceID,
		Number:      order.InvoiceNumber,
		Series:      order.InvoiceSeries,
		Status:      order.InvoiceStatus,
		AccessKey:   order.InvoiceKey,
		DanfeURL:    order.DanfeURL,
		CreatedAt:   order.InvoiceCreatedAt,
		Notes:       views,
	}
}
