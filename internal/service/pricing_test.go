package service

import (
	"storefront-payments/internal/model"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func line(sku string, qty int32, price string) model.CartLine {
	return model.CartLine{ProductID: sku, Name: sku, Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name     string
		lines    []model.CartLine
		subtotal string
		tax      string
		total    string
		minor    int64
	}{
		{
			name:     "fifty dollar cart",
			lines:    []model.CartLine{line("tshirt", 2, "20.00"), line("mug", 1, "10.00")},
			subtotal: "50.00",
			tax:      "4.00",
			total:    "54.00",
			minor:    5400,
		},
		{
			name:     "tax rounds to cents",
			lines:    []model.CartLine{line("sticker", 3, "0.99")},
			subtotal: "2.97",
			tax:      "0.24", // 0.2376
			total:    "3.21",
			minor:    321,
		},
		{
			name:     "single sub-cent tax",
			lines:    []model.CartLine{line("sticker", 1, "0.99")},
			subtotal: "0.99",
			tax:      "0.08", // 0.0792
			total:    "1.07",
			minor:    107,
		},
		{
			name:     "empty cart",
			subtotal: "0",
			tax:      "0",
			total:    "0",
			minor:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(tt.lines)

			assert.True(t, got.Subtotal.Equal(decimal.RequireFromString(tt.subtotal)), "subtotal %s", got.Subtotal)
			assert.True(t, got.Tax.Equal(decimal.RequireFromString(tt.tax)), "tax %s", got.Tax)
			assert.True(t, got.Total.Equal(decimal.RequireFromString(tt.total)), "total %s", got.Total)
			assert.True(t, got.Total.Equal(got.Subtotal.Add(got.Tax)))
			assert.Equal(t, tt.minor, got.MinorAmount())
		})
	}
}

func TestMinorUnitConversion(t *testing.T) {
	assert.Equal(t, int64(5400), ToMinorUnits(decimal.RequireFromString("54.00")))
	assert.Equal(t, int64(1001), ToMinorUnits(decimal.RequireFromString("10.005")), "half rounds up")
	assert.Equal(t, int64(1000), ToMinorUnits(decimal.RequireFromString("10.004")))

	assert.True(t, FromMinorUnits(5400).Equal(decimal.RequireFromString("54.00")))
	assert.True(t, FromMinorUnits(1).Equal(decimal.RequireFromString("0.01")))
}

func TestOrderLines(t *testing.T) {
	order := &model.Order{Items: []model.OrderItem{
		{ProductID: "tshirt", Name: "T-Shirt", Quantity: 2, UnitPrice: decimal.RequireFromString("20.00")},
	}}

	lines := OrderLines(order)
	assert.Len(t, lines, 1)
	assert.Equal(t, "tshirt", lines[0].ProductID)
	assert.Equal(t, int32(2), lines[0].Quantity)
}
