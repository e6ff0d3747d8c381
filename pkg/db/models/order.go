package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the local snapshot of a storefront order plus its invoice link.
type Order struct {
	ID             int64  `gorm:"column:id;primaryKey;autoIncrement:false"`
	Number         string `gorm:"column:number;not null"`
	Status         string `gorm:"column:status;not null"`
	CustomerUserID *int64 `gorm:"column:customer_user_id"`

	BillingFirstName    string `gorm:"column:billing_first_name"`
	BillingLastName     string `gorm:"column:billing_last_name"`
	BillingCompany      string `gorm:"column:billing_company"`
	BillingEmail        string `gorm:"column:billing_email"`
	BillingPhone        string `gorm:"column:billing_phone"`
	BillingCellphone    string `gorm:"column:billing_cellphone"`
	BillingCPF          string `gorm:"column:billing_cpf"`
	BillingCNPJ         string `gorm:"column:billing_cnpj"`
	BillingPersonType   string `gorm:"column:billing_person_type"`
	BillingAddress1     string `gorm:"column:billing_address_1"`
	BillingNumber       string `gorm:"column:billing_number"`
	BillingNeighborhood string `gorm:"column:billing_neighborhood"`
	BillingAddress2     string `gorm:"column:billing_address_2"`
	BillingCity         string `gorm:"column:billing_city"`
	BillingState        string `gorm:"column:billing_state"`
	BillingPostcode     string `gorm:"column:billing_postcode"`
	BillingCountry      string `gorm:"column:billing_country"`

	ShippingTotal      decimal.Decimal `gorm:"column:shipping_total;type:numeric(12,2);not null;default:0"`
	DiscountTotal      decimal.Decimal `gorm:"column:discount_total;type:numeric(12,2);not null;default:0"`
	Total              decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	PaymentMethodTitle string          `gorm:"column:payment_method_title"`

	BlingInvoiceID   *int64     `gorm:"column:bling_invoice_id;uniqueIndex"`
	InvoiceNumber    *string    `gorm:"column:invoice_number"`
	InvoiceSeries    *string    `gorm:"column:invoice_series"`
	InvoiceCreatedAt *time.Time `gorm:"column:invoice_created_at"`
	InvoiceStatus    *string    `gorm:"column:invoice_status"`
	InvoiceKey       *string    `gorm:"column:invoice_key"`
	DanfeURL         *string    `gorm:"column:danfe_url"`

	Items []OrderItem `gorm:"foreignKey:OrderID;references:ID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

// HasInvoice reports whether an invoice was already linked to the order.
func (o Order) HasInvoice() bool {
	return o.BlingInvoiceID != nil && *o.BlingInvoiceID != 0
}
