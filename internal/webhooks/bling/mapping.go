package blingwebhook

import (
	"github.com/angelmondragon/blingbridge/internal/triggers"
	"github.com/angelmondragon/blingbridge/pkg/bling"
)

var invoiceResources = map[string]struct{}{
	"":        {},
	"invoice": {},
	"nfe":     {},
}

// Map resolves the trigger for an event. Unknown combinations are ignored.
func Map(ev Event) (triggers.Name, bool) {
	if _, ok := invoiceResources[ev.Resource]; !ok {
		return "", false
	}
	switch ev.Kind {
	case KindCreated:
		return triggers.InvoiceCreated, true
	case KindDeleted:
		return triggers.InvoiceDeleted, true
	case KindUpdated:
		switch ev.Status {
		case bling.InvoiceStatusAuthorized, bling.InvoiceStatusIssuedDanfe:
			return triggers.InvoiceAuthorized, true
		case bling.InvoiceStatusCancelled:
			return triggers.InvoiceCancelled, true
		case bling.InvoiceStatusRejected:
			return triggers.InvoiceRejected, true
		case bling.InvoiceStatusDenied:
			return triggers.InvoiceDenied, true
		}
	}
	return "", false
}
