package contacts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/blingbridge/pkg/bling"
	"github.com/angelmondragon/blingbridge/pkg/db/models"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

type fakeClient struct {
	contacts   map[int64]bling.Contact
	byDocument map[string]int64
	nextID     int64

	getCalls    []int64
	searchCalls []string
	created     []bling.Contact
	updated     map[int64]bling.Contact
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		contacts:   map[int64]bling.Contact{},
		byDocument: map[string]int64{},
		updated:    map[int64]bling.Contact{},
		nextID:     100,
	}
}

func (f *fakeClient) add(c bling.Contact) {
	f.contacts[c.ID] = c
	f.byDocument[c.Document] = c.ID
}

func (f *fakeClient) GetContact(_ context.Context, id int64) (*bling.Contact, error) {
	f.getCalls = append(f.getCalls, id)
	c, ok := f.contacts[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contato nao encontrado")
	}
	return &c, nil
}

func (f *fakeClient) FindContactByDocument(_ context.Context, document string) (*bling.ContactSummary, error) {
	f.searchCalls = append(f.searchCalls, document)
	id, ok := f.byDocument[document]
	if !ok {
		return nil, nil
	}
	c := f.contacts[id]
	return &bling.ContactSummary{ID: id, Name: c.Name, Document: c.Document}, nil
}

func (f *fakeClient) CreateContact(_ context.Context, contact bling.Contact) (int64, error) {
	f.nextID++
	contact.ID = f.nextID
	f.created = append(f.created, contact)
	f.add(contact)
	return contact.ID, nil
}

func (f *fakeClient) UpdateContact(_ context.Context, id int64, contact bling.Contact) error {
	f.updated[id] = contact
	contact.ID = id
	f.contacts[id] = contact
	return nil
}

type mapCache map[string]string

func (m mapCache) Get(_ context.Context, name string) (string, bool, error) {
	v, ok := m[name]
	return v, ok, nil
}

func (m mapCache) Set(_ context.Context, name, value string) error {
	m[name] = value
	return nil
}

func (m mapCache) Delete(_ context.Context, name string) error {
	delete(m, name)
	return nil
}

func newService(t *testing.T, client *fakeClient, cache mapCache) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Client: client, Cache: cache, Logger: logger.Nop()})
	require.NoError(t, err)
	return svc
}

func completeOrder() models.Order {
	userID := int64(7)
	return models.Order{
		ID:                  1001,
		Number:              "1001",
		CustomerUserID:      &userID,
		BillingFirstName:    "Maria",
		BillingLastName:     "Silva",
		BillingEmail:        "maria@example.com",
		BillingPhone:        "(11) 99999-9999",
		BillingCPF:          "123.456.789-09",
		BillingAddress1:     "Rua das Flores",
		BillingNumber:       "100",
		BillingNeighborhood: "Centro",
		BillingPostcode:     "01001-000",
		BillingCity:         "Sao Paulo",
		BillingState:        "sp",
		BillingCountry:      "BR",
	}
}

func TestEnsureRequiresTaxID(t *testing.T) {
	client := newFakeClient()
	svc := newService(t, client, mapCache{})

	order := completeOrder()
	order.BillingCPF = ""

	_, err := svc.Ensure(context.Background(), order, Settings{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	assert.Empty(t, client.searchCalls)
	assert.Empty(t, client.created)
}

func TestEnsureCreatesMissingContactAndCachesID(t *testing.T) {
	client := newFakeClient()
	cache := mapCache{}
	svc := newService(t, client, cache)

	id, err := svc.Ensure(context.Background(), completeOrder(), Settings{})
	require.NoError(t, err)
	assert.Equal(t, int64(101), id)
	require.Len(t, client.created, 1)

	created := client.created[0]
	assert.Equal(t, "Maria Silva", created.Name)
	assert.Equal(t, "12345678909", created.Document)
	assert.Equal(t, "F", created.PersonType)
	assert.Equal(t, "01001000", created.Address.General.PostalCode)
	assert.Equal(t, "SP", created.Address.General.State)
	assert.Equal(t, "101", cache["bling_contact:user:7"])
}

func TestEnsureRejectsMissingPostalCodeBeforeAnyWrite(t *testing.T) {
	client := newFakeClient()
	svc := newService(t, client, mapCache{})

	order := completeOrder()
	order.BillingPostcode = ""

	_, err := svc.Ensure(context.Background(), order, Settings{})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, []string{"postal_code"}, typed.Details().(map[string]any)["missing_fields"])
	assert.Empty(t, client.created)
	assert.Empty(t, client.updated)
}

func TestEnsureMergesIncompleteRemoteContact(t *testing.T) {
	client := newFakeClient()
	client.add(bling.Contact{
		ID:       31,
		Name:     "Maria S.",
		Document: "12345678909",
		Phone:    "",
		Address: bling.ContactAddress{General: bling.Address{
			Street: "Av. Paulista", Number: "1000", Neighborhood: "Bela Vista",
			PostalCode: "01310100", City: "Sao Paulo", State: "SP",
		}},
	})
	cache := mapCache{}
	svc := newService(t, client, cache)

	id, err := svc.Ensure(context.Background(), completeOrder(), Settings{})
	require.NoError(t, err)
	assert.Equal(t, int64(31), id)

	updated, ok := client.updated[31]
	require.True(t, ok, "expected merged contact to be written back")
	assert.Equal(t, "11999999999", updated.Phone)
	assert.Equal(t, "Maria S.", updated.Name)
	assert.Equal(t, "Av. Paulista", updated.Address.General.Street)
	assert.Equal(t, "01310100", updated.Address.General.PostalCode)
	assert.Equal(t, "31", cache["bling_contact:user:7"])
	assert.Empty(t, client.created)
}

func TestEnsureSkipsUpdateWhenNothingChanged(t *testing.T) {
	client := newFakeClient()
	local := FromOrder(completeOrder())
	local.ID = 31
	client.add(local)
	svc := newService(t, client, mapCache{})

	_, err := svc.Ensure(context.Background(), completeOrder(), Settings{})
	require.NoError(t, err)
	assert.Empty(t, client.updated)
}

func TestEnsureOverwritesNameOnlyWhenEnabled(t *testing.T) {
	client := newFakeClient()
	remote := FromOrder(completeOrder())
	remote.ID = 31
	remote.Name = "M. Silva"
	client.add(remote)
	svc := newService(t, client, mapCache{})

	_, err := svc.Ensure(context.Background(), completeOrder(), Settings{OverwriteName: true})
	require.NoError(t, err)
	assert.Equal(t, "Maria Silva", client.updated[31].Name)
}

func TestEnsureUsesCachedContactWithoutSearching(t *testing.T) {
	client := newFakeClient()
	remote := FromOrder(completeOrder())
	remote.ID = 31
	client.add(remote)
	cache := mapCache{"bling_contact:user:7": "31"}
	svc := newService(t, client, cache)

	id, err := svc.Ensure(context.Background(), completeOrder(), Settings{})
	require.NoError(t, err)
	assert.Equal(t, int64(31), id)
	assert.Empty(t, client.searchCalls)
	assert.Equal(t, []int64{31}, client.getCalls)
}

func TestEnsureDropsStaleCacheEntry(t *testing.T) {
	client := newFakeClient()
	remote := FromOrder(completeOrder())
	remote.ID = 32
	client.add(remote)
	cache := mapCache{"bling_contact:user:7": "999"}
	svc := newService(t, client, cache)

	id, err := svc.Ensure(context.Background(), completeOrder(), Settings{})
	require.NoError(t, err)
	assert.Equal(t, int64(32), id)
	assert.Equal(t, []string{"12345678909"}, client.searchCalls)
	assert.Equal(t, "32", cache["bling_contact:user:7"])
}

func TestEnsureGuestOrderIsNotCached(t *testing.T) {
	client := newFakeClient()
	cache := mapCache{}
	svc := newService(t, client, cache)

	order := completeOrder()
	order.CustomerUserID = nil
	_, err := svc.Ensure(context.Background(), order, Settings{})
	require.NoError(t, err)
	assert.Empty(t, cache)
}
