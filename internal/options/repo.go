package options

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/blingbridge/pkg/db/models"
)

// Repository is the persistent key-value option store.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Get returns the stored value and whether it exists.
func (r *Repository) Get(ctx context.Context, name string) (string, bool, error) {
	var opt models.Option
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&opt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return opt.Value, true, nil
}

// Set upserts the value under name.
func (r *Repository) Set(ctx context.Context, name, value string) error {
	opt := models.Option{Name: name, Value: value}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&opt).Error
}

func (r *Repository) Delete(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Where("name = ?", name).Delete(&models.Option{}).Error
}

// GetJSON decodes the stored JSON value into dst.
func (r *Repository) GetJSON(ctx context.Context, name string, dst any) (bool, error) {
	raw, ok, err := r.Get(ctx, name)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return true, fmt.Errorf("decode option %s: %w", name, err)
	}
	return true, nil
}

// SetJSON stores value encoded as JSON.
func (r *Repository) SetJSON(ctx context.Context, name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode option %s: %w", name, err)
	}
	return r.Set(ctx, name, string(raw))
}
