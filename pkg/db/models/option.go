package models

import "time"

// Option is a named persistent setting.
type Option struct {
	Name      string    `gorm:"column:name;primaryKey"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Option) TableName() string { return "options" }
