package domain

import "math"

// MaxLineQuantity caps a single negotiation line.
const MaxLineQuantity = 10_000

// AddAmounts sums non-negative credit amounts, failing instead of wrapping.
func AddAmounts(a, b int64) (int64, error) {
	if a < 0 || b < 0 || a > math.MaxInt64-b {
		return 0, ErrInvalidAmount
	}
	return a + b, nil
}

// MulAmount multiplies a unit price by a quantity, failing instead of wrapping.
func MulAmount(price, quantity int64) (int64, error) {
	if price < 0 || quantity < 0 {
		return 0, ErrInvalidAmount
	}
	if quantity != 0 && price > math.MaxInt64/quantity {
		return 0, ErrInvalidAmount
	}
	return price * quantity, nil
}
