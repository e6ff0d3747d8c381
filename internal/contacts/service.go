package contacts

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/angelmondragon/blingbridge/pkg/bling"
	"github.com/angelmondragon/blingbridge/pkg/db/models"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

// Client is the subset of the Bling gateway used to reconcile contacts.
type Client interface {
	GetContact(ctx context.Context, id int64) (*bling.Contact, error)
	FindContactByDocument(ctx context.Context, document string) (*bling.ContactSummary, error)
	CreateContact(ctx context.Context, contact bling.Contact) (int64, error)
	UpdateContact(ctx context.Context, id int64, contact bling.Contact) error
}

// Cache maps local users to Bling contact ids. Entries are hints only.
type Cache interface {
	Get(ctx context.Context, name string) (string, bool, error)
	Set(ctx context.Context, name, value string) error
	Delete(ctx context.Context, name string) error
}

// Settings are resolved once per operation by the caller.
type Settings struct {
	OverwriteName bool
}

type ServiceParams struct {
	Client Client
	Cache  Cache
	Logger *logger.Logger
}

// Service finds or creates the Bling contact behind an order.
type Service struct {
	client Client
	cache  Cache
	logg   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Client == nil {
		return nil, errors.New("bling client required")
	}
	if params.Cache == nil {
		return nil, errors.New("contact cache required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Service{client: params.Client, cache: params.Cache, logg: params.Logger}, nil
}

// Ensure returns the Bling contact id for the order's customer. The effective
// record is validated before anything is written to Bling; an incomplete
// contact is a VALIDATION_ERROR.
func (s *Service) Ensure(ctx context.Context, order models.Order, settings Settings) (int64, error) {
	local := FromOrder(order)
	if local.Document == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "customer tax id (CPF/CNPJ) is required to sync the contact").
			WithDetails(map[string]any{"missing_fields": []string{"tax_id"}})
	}

	remote, err := s.findRemote(ctx, order, local.Document)
	if err != nil {
		return 0, err
	}

	if remote == nil {
		if err := ValidateFiscal(local); err != nil {
			return 0, err
		}
		id, err := s.client.CreateContact(ctx, local)
		if err != nil {
			return 0, err
		}
		s.logg.Info(s.logg.WithField(ctx, "contact_id", id), "bling contact created")
		s.remember(ctx, order, id)
		return id, nil
	}

	merged, changed := Merge(*remote, local, settings.OverwriteName)
	if err := ValidateFiscal(merged); err != nil {
		return 0, err
	}
	if changed {
		if err := s.client.UpdateContact(ctx, remote.ID, merged); err != nil {
			return 0, err
		}
		s.logg.Info(s.logg.WithField(ctx, "contact_id", remote.ID), "bling contact merged")
	}
	s.remember(ctx, order, remote.ID)
	return remote.ID, nil
}

func (s *Service) findRemote(ctx context.Context, order models.Order, document string) (*bling.Contact, error) {
	if key, ok := cacheKey(order); ok {
		if contact := s.fromCache(ctx, key, document); contact != nil {
			return contact, nil
		}
	}

	summary, err := s.client.FindContactByDocument(ctx, document)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, nil
	}
	contact, err := s.client.GetContact(ctx, summary.ID)
	if err != nil {
		return nil, err
	}
	if contact.ID == 0 {
		contact.ID = summary.ID
	}
	return contact, nil
}

// fromCache resolves a cached id. Stale or mismatching entries are dropped and
// the caller falls back to a document search.
func (s *Service) fromCache(ctx context.Context, key, document string) *bling.Contact {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		_ = s.cache.Delete(ctx, key)
		return nil
	}
	contact, err := s.client.GetContact(ctx, id)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			_ = s.cache.Delete(ctx, key)
		}
		return nil
	}
	if contact.Document != "" && digitsOnly(contact.Document) != document {
		_ = s.cache.Delete(ctx, key)
		return nil
	}
	if contact.ID == 0 {
		contact.ID = id
	}
	return contact
}

func (s *Service) remember(ctx context.Context, order models.Order, id int64) {
	key, ok := cacheKey(order)
	if !ok {
		return
	}
	if err := s.cache.Set(ctx, key, strconv.FormatInt(id, 10)); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "caching bling contact id failed")
	}
}

func cacheKey(order models.Order) (string, bool) {
	if order.CustomerUserID == nil || *order.CustomerUserID <= 0 {
		return "", false
	}
	return fmt.Sprintf("bling_contact:user:%d", *order.CustomerUserID), true
}
