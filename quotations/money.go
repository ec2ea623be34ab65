package quotations

import "github.com/shopspring/decimal"

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// amount rounds to cents for storage.
func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func subtotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Round(2).Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// adjustTotal replaces oldSubtotal with newSubtotal in total.
func adjustTotal(total, oldSubtotal, newSubtotal float64) float64 {
	return amount(dec(total).Sub(dec(oldSubtotal)).Add(dec(newSubtotal)))
}
