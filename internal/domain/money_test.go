package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubtotalOf_Overflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		lines   []NegotiationLine
		want    int64
		wantErr error
	}{
		{
			name:  "plain",
			lines: []NegotiationLine{{Quantity: 2, UnitPrice: 15}, {Quantity: 1, UnitPrice: 5}},
			want:  35,
		},
		{
			name:    "line product wraps",
			lines:   []NegotiationLine{{Quantity: 6148914691236517205, UnitPrice: 3}},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "quantity above cap",
			lines:   []NegotiationLine{{Quantity: MaxLineQuantity + 1, UnitPrice: 1}},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "price times capped quantity wraps",
			lines:   []NegotiationLine{{Quantity: MaxLineQuantity, UnitPrice: math.MaxInt64 / 1000}},
			wantErr: ErrInvalidAmount,
		},
		{
			name: "sum of lines wraps",
			lines: []NegotiationLine{
				{Quantity: 1, UnitPrice: math.MaxInt64 - 1},
				{Quantity: 1, UnitPrice: 2},
			},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative price",
			lines:   []NegotiationLine{{Quantity: 1, UnitPrice: -4}},
			wantErr: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := SubtotalOf(tt.lines)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNegotiation_SetShippingOverflow(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	n := Negotiation{Subtotal: 10, Total: 10, Status: NegotiationCreated}

	require.ErrorIs(t, n.SetShipping(9223372036854775800, now), ErrInvalidAmount)
	assert.Equal(t, NegotiationCreated, n.Status)
	assert.Equal(t, int64(10), n.Total)
	assert.Nil(t, n.ShippingCost)
}

func TestAccount_CreditOverflow(t *testing.T) {
	t.Parallel()

	a := Account{Balance: math.MaxInt64 - 5}
	require.ErrorIs(t, a.Credit(6), ErrInvalidAmount)
	require.ErrorIs(t, a.Adjust(6), ErrInvalidAmount)
	assert.Equal(t, int64(math.MaxInt64-5), a.Balance)

	require.NoError(t, a.Credit(5))
	assert.Equal(t, int64(math.MaxInt64), a.Balance)
}
