package quotations

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSubtotalUsesUnitPriceInCents(t *testing.T) {
	// 0.335 is stored as 0.34, so three units cost 1.02 and not 1.01.
	assert.Equal(t, 1.02, amount(subtotal(3, decimal.RequireFromString("0.335"))))
	assert.Equal(t, 39.96, amount(subtotal(4, decimal.RequireFromString("9.99"))))
}

func TestAdjustTotal(t *testing.T) {
	assert.Equal(t, 30.3, adjustTotal(20.2, 10.1, 20.2))
	assert.Equal(t, 0.2, adjustTotal(0.3, 0.1, 0))
}
