package bling

import (
	"context"
	"fmt"
	"net/http"
)

// SalesOrder is the subset of a Bling "pedido de venda" the bridge reads.
type SalesOrder struct {
	ID      int64      `json:"id"`
	Number  FlexString `json:"numero"`
	Date    string     `json:"data"`
	Total   FlexString `json:"total"`
	Contact *IDRef     `json:"contato,omitempty"`
	Store   *IDRef     `json:"loja,omitempty"`
	Status  *IDRef     `json:"situacao,omitempty"`
}

func (c *Client) GetSalesOrder(ctx context.Context, id int64) (*SalesOrder, error) {
	var out envelope[SalesOrder]
	err := c.do(ctx, request{
		op:     "get_sales_order",
		method: http.MethodGet,
		path:   fmt.Sprintf("/pedidos/vendas/%d", id),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Data, nil
}
