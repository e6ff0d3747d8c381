package bling

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type envelope[T any] struct {
	Data T `json:"data"`
}

// IDRef is the `{"id": n}` reference Bling uses for related records.
type IDRef struct {
	ID int64 `json:"id"`
}

// FlexString accepts either a JSON string or a JSON number. Bling is not
// consistent about numeric fields such as numero, serie and situacao.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// Int returns the numeric value, or 0 when the value is not an integer.
func (f FlexString) Int() int {
	n, err := strconv.Atoi(strings.TrimSpace(string(f)))
	if err != nil {
		return 0
	}
	return n
}

// Amount renders a monetary value with two decimal places.
func Amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}
