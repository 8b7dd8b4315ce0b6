package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentOf(t *testing.T) {
	tests := []struct {
		amount, pct, want string
	}{
		{"100", "14", "14"},
		{"1234.56", "14", "172.84"},
		{"10.05", "50", "5.03"},
		{"0", "14", "0"},
		{"99.99", "0", "0"},
		{"250", "100", "250"},
	}

	for _, tt := range tests {
		t.Run(tt.amount+"x"+tt.pct, func(t *testing.T) {
			got := PercentOf(MustMoney(tt.amount), MustMoney(tt.pct))
			assert.True(t, MustMoney(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestIsPercentage(t *testing.T) {
	assert.True(t, IsPercentage(MustMoney("0")))
	assert.True(t, IsPercentage(MustMoney("100")))
	assert.True(t, IsPercentage(MustMoney("12.5")))
	assert.False(t, IsPercentage(MustMoney("-0.01")))
	assert.False(t, IsPercentage(MustMoney("100.01")))
}

func TestMaxZero(t *testing.T) {
	assert.True(t, MaxZero(MustMoney("-5")).IsZero())
	assert.True(t, MustMoney("5").Equal(MaxZero(MustMoney("5"))))
}
