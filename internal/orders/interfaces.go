package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/blingbridge/pkg/db/models"
)

// Repository persists order snapshots, their invoice link and the audit notes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id int64) (*models.Order, error)
	FindByInvoiceID(ctx context.Context, invoiceID int64) (*models.Order, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	LinkInvoice(ctx context.Context, id int64, link InvoiceLink) (bool, error)
	UpdateInvoiceState(ctx context.Context, id int64, state InvoiceState) error
	AddNote(ctx context.Context, id int64, body string) error
	ListNotes(ctx context.Context, id int64) ([]models.OrderNote, error)
}
