package bling

import (
	"context"
	"fmt"
	"net/http"
)

// SalesChannel is a Bling "canal de venda" (loja).
type SalesChannel struct {
	ID          int64  `json:"id"`
	Description string `json:"descricao"`
	Type        string `json:"tipo"`
	Status      string `json:"situacao"`
}

func (c *Client) ListSalesChannels(ctx context.Context) ([]SalesChannel, error) {
	var out envelope[[]SalesChannel]
	err := c.do(ctx, request{
		op:     "list_sales_channels",
		method: http.MethodGet,
		path:   "/canais-venda",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) GetSalesChannel(ctx context.Context, id int64) (*SalesChannel, error) {
	var out envelope[SalesChannel]
	err := c.do(ctx, request{
		op:     "get_sales_channel",
		method: http.MethodGet,
		path:   fmt.Sprintf("/canais-venda/%d", id),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Data, nil
}
