package bling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Contact is the Bling contact (customer) record. A contact decoded from Bling
// keeps the full document it came from, so writing it back preserves the
// fields this type does not model (fantasia, tiposContato, endereco.cobranca...).
type Contact struct {
	ID                int64          `json:"id,omitempty"`
	Name              string         `json:"nome"`
	Code              string         `json:"codigo,omitempty"`
	Status            string         `json:"situacao,omitempty"`
	Document          string         `json:"numeroDocumento"`
	Phone             string         `json:"telefone,omitempty"`
	Cellphone         string         `json:"celular,omitempty"`
	Email             string         `json:"email,omitempty"`
	PersonType        string         `json:"tipo,omitempty"`
	StateRegistration string         `json:"ie,omitempty"`
	Address           ContactAddress `json:"endereco"`

	raw json.RawMessage
}

func (c *Contact) UnmarshalJSON(data []byte) error {
	type plain Contact
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*c = Contact(decoded)
	c.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON overlays the modelled fields onto the original document.
func (c Contact) MarshalJSON() ([]byte, error) {
	type plain Contact
	typed, err := json.Marshal(plain(c))
	if err != nil || len(c.raw) == 0 {
		return typed, err
	}

	base, err := decodeObject(c.raw)
	if err != nil {
		return nil, fmt.Errorf("decode stored contact: %w", err)
	}
	overlay, err := decodeObject(typed)
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		delete(base, "id")
	}
	return json.Marshal(overlayObject(base, overlay))
}

func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// overlayObject copies src onto dst, descending into nested objects so that
// sibling keys only present in dst survive.
func overlayObject(dst, src map[string]any) map[string]any {
	for key, value := range src {
		nested, ok := value.(map[string]any)
		if current, isObject := dst[key].(map[string]any); ok && isObject {
			dst[key] = overlayObject(current, nested)
			continue
		}
		dst[key] = value
	}
	return dst
}

type ContactAddress struct {
	General Address `json:"geral"`
}

type Address struct {
	Street       string `json:"endereco"`
	Number       string `json:"numero"`
	Complement   string `json:"complemento,omitempty"`
	Neighborhood string `json:"bairro"`
	PostalCode   string `json:"cep"`
	City         string `json:"municipio"`
	State        string `json:"uf"`
	Country      string `json:"pais,omitempty"`
}

// ContactSummary is the abbreviated record returned by contact listings.
type ContactSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"nome"`
	Document string `json:"numeroDocumento"`
	Status   string `json:"situacao,omitempty"`
}

// GetContact fetches the full contact record.
func (c *Client) GetContact(ctx context.Context, id int64) (*Contact, error) {
	var out envelope[Contact]
	err := c.do(ctx, request{
		op:     "get_contact",
		method: http.MethodGet,
		path:   fmt.Sprintf("/contatos/%d", id),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// FindContactByDocument returns the contact registered under exactly this tax
// id, or nil. Listing results with a different document are skipped.
func (c *Client) FindContactByDocument(ctx context.Context, document string) (*ContactSummary, error) {
	document = strings.TrimSpace(document)
	want := digitsOnly(document)
	if want == "" {
		return nil, nil
	}
	contacts, err := c.ListContacts(ctx, url.Values{"numeroDocumento": {document}})
	if err != nil {
		return nil, err
	}
	for i := range contacts {
		if digitsOnly(contacts[i].Document) == want {
			return &contacts[i], nil
		}
	}
	return nil, nil
}

func digitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ListContacts lists contacts matching the provided filters.
func (c *Client) ListContacts(ctx context.Context, filters url.Values) ([]ContactSummary, error) {
	var out envelope[[]ContactSummary]
	err := c.do(ctx, request{
		op:     "list_contacts",
		method: http.MethodGet,
		path:   "/contatos",
		query:  filters,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// CreateContact registers a new contact and returns its id.
func (c *Client) CreateContact(ctx context.Context, contact Contact) (int64, error) {
	contact.ID = 0
	var out envelope[IDRef]
	err := c.do(ctx, request{
		op:     "create_contact",
		method: http.MethodPost,
		path:   "/contatos",
		body:   contact,
	}, &out)
	if err != nil {
		return 0, err
	}
	if out.Data.ID == 0 {
		return 0, missingIDError("create_contact")
	}
	return out.Data.ID, nil
}

// UpdateContact replaces the stored contact record.
func (c *Client) UpdateContact(ctx context.Context, id int64, contact Contact) error {
	contact.ID = 0
	return c.do(ctx, request{
		op:     "update_contact",
		method: http.MethodPut,
		path:   fmt.Sprintf("/contatos/%d", id),
		body:   contact,
	}, nil)
}
