package bling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

type Product struct {
	ID     int64       `json:"id,omitempty"`
	Name   string      `json:"nome"`
	Code   string      `json:"codigo"`
	Price  json.Number `json:"preco,omitempty"`
	Type   string      `json:"tipo"`
	Status string      `json:"situacao"`
	Format string      `json:"formato"`
	Unit   string      `json:"unidade,omitempty"`
}

type Category struct {
	ID          int64  `json:"id"`
	Description string `json:"descricao"`
	Parent      *IDRef `json:"categoriaPai,omitempty"`
}

// FindProductBySKU returns the product registered under the code, or nil.
func (c *Client) FindProductBySKU(ctx context.Context, sku string) (*Product, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, nil
	}
	var out envelope[[]Product]
	err := c.do(ctx, request{
		op:     "find_product",
		method: http.MethodGet,
		path:   "/produtos",
		query:  url.Values{"codigos[]": {sku}},
	}, &out)
	if err != nil {
		return nil, err
	}
	for i := range out.Data {
		if strings.EqualFold(out.Data[i].Code, sku) {
			return &out.Data[i], nil
		}
	}
	return nil, nil
}

func (c *Client) CreateProduct(ctx context.Context, product Product) (int64, error) {
	product.ID = 0
	var out envelope[IDRef]
	err := c.do(ctx, request{
		op:     "create_product",
		method: http.MethodPost,
		path:   "/produtos",
		body:   product,
	}, &out)
	if err != nil {
		return 0, err
	}
	if out.Data.ID == 0 {
		return 0, missingIDError("create_product")
	}
	return out.Data.ID, nil
}

func (c *Client) ListProductCategories(ctx context.Context) ([]Category, error) {
	var out envelope[[]Category]
	err := c.do(ctx, request{
		op:     "list_categories",
		method: http.MethodGet,
		path:   "/categorias/produtos",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}
