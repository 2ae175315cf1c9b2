package service

import (
	"storefront-payments/internal/model"

	"github.com/shopspring/decimal"
)

var TaxRate = decimal.RequireFromString("0.08")

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// MinorAmount is the total in minor currency units, as charged by the provider.
func (t Totals) MinorAmount() int64 {
	return ToMinorUnits(t.Total)
}

// ComputeTotals prices lines as subtotal = Σ price×qty, tax = round2(subtotal×rate),
// total = subtotal+tax. Rounding is half away from zero, i.e. half-up for
// the non-negative amounts a cart can hold.
func ComputeTotals(lines []model.CartLine) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt32(line.Quantity)))
	}

	tax := subtotal.Mul(TaxRate).Round(2)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func FromMinorUnits(value int64) decimal.Decimal {
	return decimal.New(value, -2)
}

// OrderLines rebuilds priced lines from an order's snapshotted items.
func OrderLines(order *model.Order) []model.CartLine {
	lines := make([]model.CartLine, len(order.Items))
	for i, item := range order.Items {
		lines[i] = model.CartLine{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return lines
}
