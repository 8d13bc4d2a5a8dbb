package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalFixedTwoPlaces(t *testing.T) {
	payload, err := json.Marshal(struct {
		A Money  `json:"a"`
		B *Money `json:"b"`
		C *Money `json:"c"`
	}{
		A: New(decimal.NewFromInt(109)),
		B: PositiveOrNil(decimal.RequireFromString("0.005")),
		C: PositiveOrNil(decimal.NewFromInt(-2)),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"109.00","b":"0.01","c":null}`, string(payload))
}

func TestPositiveOrNilBoundary(t *testing.T) {
	assert.Nil(t, PositiveOrNil(decimal.Zero))
	got := PositiveOrNil(decimal.RequireFromString("0.01"))
	require.NotNil(t, got)
	assert.Equal(t, "0.01", got.String())
}

func TestUnmarshalAcceptsStringAndNumber(t *testing.T) {
	var m Money
	require.NoError(t, json.Unmarshal([]byte(`"2.50"`), &m))
	assert.Equal(t, "2.50", m.String())

	require.NoError(t, json.Unmarshal([]byte(`3`), &m))
	assert.Equal(t, "3.00", m.String())

	assert.Error(t, json.Unmarshal([]byte(`"test"`), &m))
}

func TestParse(t *testing.T) {
	for _, bad := range []string{"", " 1", "1e3", "abc", "1.2.3"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
	d, err := Parse("-0.50")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("-0.5")))
}
