// Package money formats monetary amounts as fixed two-decimal strings.
package money

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits carried by every amount.
const Places = 2

var ErrInvalidAmount = errors.New("invalid_amount")

// Money is a decimal amount that serializes as a string such as "109.00".
type Money struct {
	decimal.Decimal
}

func New(d decimal.Decimal) Money {
	return Money{Decimal: d.Round(Places)}
}

// PositiveOrNil returns nil for amounts that are not strictly positive.
func PositiveOrNil(d decimal.Decimal) *Money {
	if !d.IsPositive() {
		return nil
	}
	m := New(d)
	return &m
}

// Parse accepts a plain decimal string; exponents and surrounding spaces are rejected.
func Parse(value string) (decimal.Decimal, error) {
	if value == "" || strings.TrimSpace(value) != value || strings.ContainsAny(value, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

func (m Money) String() string {
	return m.Decimal.StringFixed(Places)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both "1.50" and 1.50.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	d, err := Parse(raw)
	if err != nil {
		return err
	}
	m.Decimal = d
	return nil
}
