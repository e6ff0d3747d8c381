package orders

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/blingbridge/pkg/db"
	"github.com/angelmondragon/blingbridge/pkg/db/models"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
)

// snapshotColumns are refreshed on every storefront push. Invoice columns are not.
var snapshotColumns = []string{
	"number",
	"status",
	"customer_user_id",
	"billing_first_name",
	"billing_last_name",
	"billing_company",
	"billing_email",
	"billing_phone",
	"billing_cellphone",
	"billing_cpf",
	"billing_cnpj",
	"billing_person_type",
	"billing_address_1",
	"billing_number",
	"billing_neighborhood",
	"billing_address_2",
	"billing_city",
	"billing_state",
	"billing_postcode",
	"billing_country",
	"shipping_total",
	"discount_total",
	"total",
	"payment_method_title",
	"updated_at",
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a repository to the provided GORM handle.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert stores the snapshot and replaces its items. The invoice link survives.
func (r *repository) Upsert(ctx context.Context, order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	items := order.Items
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns(snapshotColumns),
			}).
			Create(order).Error
		if err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].ID = 0
			items[i].OrderID = order.ID
		}
		return tx.Create(&items).Error
	})
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByInvoiceID(ctx context.Context, invoiceID int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&order, "bling_invoice_id = ?", invoiceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order linked to invoice")
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

// LinkInvoice writes the invoice anchor only when the order has none yet.
// It reports false when another writer got there first.
func (r *repository) LinkInvoice(ctx context.Context, id int64, link InvoiceLink) (bool, error) {
	if link.InvoiceID == 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}
	createdAt := link.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND bling_invoice_id IS NULL", id).
		Updates(map[string]any{
			"bling_invoice_id":   link.InvoiceID,
			"invoice_number":     link.Number,
			"invoice_series":     link.Series,
			"invoice_created_at": createdAt,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		if db.IsUniqueViolation(res.Error, "") {
			return false, pkgerrors.Wrap(pkgerrors.CodeConflict, res.Error, "invoice already linked to another order")
		}
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateInvoiceState records webhook-reported state. Nil fields are kept.
func (r *repository) UpdateInvoiceState(ctx context.Context, id int64, state InvoiceState) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if state.Status != "" {
		updates["invoice_status"] = state.Status
	}
	if state.Number != nil {
		updates["invoice_number"] = *state.Number
	}
	if state.Series != nil {
		updates["invoice_series"] = *state.Series
	}
	if state.AccessKey != nil {
		updates["invoice_key"] = *state.AccessKey
	}
	if state.DanfeURL != nil {
		updates["danfe_url"] = *state.DanfeURL
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

func (r *repository) AddNote(ctx context.Context, id int64, body string) error {
	note := models.OrderNote{OrderID: id, Body: body}
	return r.db.WithContext(ctx).Create(&note).Error
}

func (r *repository) ListNotes(ctx context.Context, id int64) ([]models.OrderNote, error) {
	var notes []models.OrderNote
	err := r.db.WithContext(ctx).
		Where("order_id = ?", id).
		Order("id ASC").
		Find(&notes).Error
	return notes, err
}
