package models

import "time"

// OrderNote is an append-only annotation on an order's history.
type OrderNote struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	OrderID   int64     `gorm:"column:order_id;not null;index"`
	Body      string    `gorm:"column:body;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OrderNote) TableName() string { return "order_notes" }
