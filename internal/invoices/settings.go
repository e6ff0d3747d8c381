package invoices

import (
	"strings"

	"github.com/angelmondragon/blingbridge/internal/contacts"
	"github.com/angelmondragon/blingbridge/pkg/config"
)

// Settings is the invoice configuration resolved once per operation.
type Settings struct {
	Series               int
	Purpose              int
	OperationID          int64
	TriggerStatuses      []string
	AutoCreate           bool
	SendEmail            bool
	SyncCustomers        bool
	SyncProducts         bool
	SalesChannelID       int64
	StoreURL             string
	ContactOverwriteName bool
}

func SettingsFromConfig(cfg config.InvoiceConfig) Settings {
	statuses := make([]string, 0, len(cfg.TriggerStatuses))
	for _, status := range cfg.TriggerStatuses {
		if normalized := normalizeStatus(status); normalized != "" {
			statuses = append(statuses, normalized)
		}
	}
	purpose := cfg.Purpose
	if purpose == 0 {
		purpose = 1
	}
	return Settings{
		Series:               cfg.Series,
		Purpose:              purpose,
		OperationID:          cfg.OperationID,
		TriggerStatuses:      statuses,
		AutoCreate:           cfg.AutoCreate,
		SendEmail:            cfg.SendEmail,
		SyncCustomers:        cfg.SyncCustomers,
		SyncProducts:         cfg.SyncProducts,
		SalesChannelID:       cfg.SalesChannelID,
		StoreURL:             strings.TrimSpace(cfg.StoreURL),
		ContactOverwriteName: cfg.ContactOverwriteName,
	}
}

// Triggers reports whether an order entering status should be invoiced automatically.
func (s Settings) Triggers(status string) bool {
	if !s.AutoCreate {
		return false
	}
	status = normalizeStatus(status)
	for _, candidate := range s.TriggerStatuses {
		if candidate == status {
			return true
		}
	}
	return false
}

func (s Settings) contactSettings() contacts.Settings {
	return contacts.Settings{OverwriteName: s.ContactOverwriteName}
}

func normalizeStatus(status string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	return strings.TrimPrefix(status, "wc-")
}
