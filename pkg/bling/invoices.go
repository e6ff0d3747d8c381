package bling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
)

// Invoice status codes (situacao) reported by Bling for NF-e documents.
const (
	InvoiceStatusPending     = 1
	InvoiceStatusCancelled   = 2
	InvoiceStatusAwaiting    = 3
	InvoiceStatusRejected    = 4
	InvoiceStatusAuthorized  = 5
	InvoiceStatusIssuedDanfe = 6
	InvoiceStatusLegacy      = 7
	InvoiceStatusDigitized   = 8
	InvoiceStatusDenied      = 9
)

// InvoiceRequest is the NF-e creation payload.
type InvoiceRequest struct {
	Type            int               `json:"tipo"`
	OperationDate   string            `json:"dataOperacao"`
	Contact         InvoiceContact    `json:"contato"`
	OperationNature *IDRef            `json:"naturezaOperacao,omitempty"`
	Store           *InvoiceStore     `json:"loja,omitempty"`
	Purpose         int               `json:"finalidade"`
	Series          int               `json:"serie,omitempty"`
	Discount        json.Number       `json:"desconto,omitempty"`
	Notes           string            `json:"observacoes,omitempty"`
	Items           []InvoiceItem     `json:"itens"`
	Installments    []Installment     `json:"parcelas,omitempty"`
	Transport       *InvoiceTransport `json:"transporte,omitempty"`
}

// InvoiceContact either references a synced contact by id or carries inline data.
type InvoiceContact struct {
	ID         int64    `json:"id,omitempty"`
	Name       string   `json:"nome,omitempty"`
	Document   string   `json:"numeroDocumento,omitempty"`
	PersonType string   `json:"tipo,omitempty"`
	Email      string   `json:"email,omitempty"`
	Phone      string   `json:"telefone,omitempty"`
	Address    *Address `json:"endereco,omitempty"`
}

type InvoiceStore struct {
	ID          int64  `json:"id"`
	Description string `json:"numero,omitempty"`
}

type InvoiceItem struct {
	Code        string      `json:"codigo"`
	Description string      `json:"descricao"`
	Unit        string      `json:"unidade"`
	Quantity    json.Number `json:"quantidade"`
	UnitPrice   json.Number `json:"valor"`
	Type        string      `json:"tipo"`
	Origin      int         `json:"origem"`
}

type Installment struct {
	Date   string      `json:"data"`
	Amount json.Number `json:"valor"`
	Notes  string      `json:"observacoes,omitempty"`
}

type InvoiceTransport struct {
	FreightPayer int         `json:"fretePorConta"`
	Freight      json.Number `json:"frete"`
}

// InvoiceRef is what Bling returns when an invoice is created.
type InvoiceRef struct {
	ID     int64      `json:"id"`
	Number FlexString `json:"numero"`
	Series FlexString `json:"serie"`
}

// Invoice is the stored NF-e as returned by GET /nfe/{id}.
type Invoice struct {
	ID          int64      `json:"id"`
	Type        int        `json:"tipo"`
	Status      FlexString `json:"situacao"`
	Number      FlexString `json:"numero"`
	Series      FlexString `json:"serie"`
	IssuedAt    string     `json:"dataEmissao"`
	AccessKey   string     `json:"chaveAcesso"`
	DanfeURL    string     `json:"linkDanfe"`
	PDFURL      string     `json:"linkPDF"`
	XMLURL      string     `json:"xml"`
	TotalAmount FlexString `json:"valorNota"`
	Contact     *IDRef     `json:"contato,omitempty"`
}

// CreateInvoice submits an NF-e. A success response without an id is an error.
func (c *Client) CreateInvoice(ctx context.Context, payload InvoiceRequest) (*InvoiceRef, error) {
	var out envelope[InvoiceRef]
	err := c.do(ctx, request{
		op:     "create_invoice",
		method: http.MethodPost,
		path:   "/nfe",
		body:   payload,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Data.ID == 0 {
		return nil, missingIDError("create_invoice")
	}
	return &out.Data, nil
}

// GetInvoice fetches an NF-e by id.
func (c *Client) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	var out envelope[Invoice]
	err := c.do(ctx, request{
		op:     "get_invoice",
		method: http.MethodGet,
		path:   fmt.Sprintf("/nfe/%d", id),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// ListInvoices lists NF-e documents, optionally filtered (situacao, dataEmissaoInicial, pagina...).
func (c *Client) ListInvoices(ctx context.Context, filters url.Values) ([]Invoice, error) {
	var out envelope[[]Invoice]
	err := c.do(ctx, request{
		op:     "list_invoices",
		method: http.MethodGet,
		path:   "/nfe",
		query:  filters,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// SendInvoice submits the NF-e to the fiscal authority.
func (c *Client) SendInvoice(ctx context.Context, id int64, sendEmail bool) error {
	return c.do(ctx, request{
		op:     "send_invoice",
		method: http.MethodPost,
		path:   fmt.Sprintf("/nfe/%d/enviar", id),
		query:  url.Values{"enviarEmail": {strconv.FormatBool(sendEmail)}},
	}, nil)
}

func missingIDError(op string) error {
	return pkgerrors.New(pkgerrors.CodeUpstream, fmt.Sprintf("bling %s response did not include an id", op))
}
