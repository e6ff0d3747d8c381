package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is a line of an order snapshot.
type OrderItem struct {
	ID        int64           `gorm:"column:id;primaryKey"`
	OrderID   int64           `gorm:"column:order_id;not null;index"`
	Position  int             `gorm:"column:position;not null;default:0"`
	Name      string          `gorm:"column:name;not null"`
	SKU       string          `gorm:"column:sku"`
	Quantity  decimal.Decimal `gorm:"column:quantity;type:numeric(12,4);not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (OrderItem) TableName() string { return "order_items" }
