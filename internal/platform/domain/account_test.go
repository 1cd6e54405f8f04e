package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCheckAmount(t *testing.T) {
	cases := []struct {
		in   string
		want error
	}{
		{"25.5", nil},
		{"0.00000001", nil},
		{"20.000000010", nil},
		{"0", ErrInvalidAmount},
		{"-1", ErrInvalidAmount},
		{"20.000000001", ErrAmountPrecision},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			err := CheckAmount(decimal.RequireFromString(c.in))
			if c.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, c.want)
		})
	}
}

func TestWinningPayoutKeepsAmountScale(t *testing.T) {
	b := Bet{Amount: decimal.RequireFromString("10.00000001"), InterestRate: decimal.RequireFromString("1.7")}
	assert.Equal(t, "10.17000001", b.WinningPayout().String())
}
