package format

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPriceBRL(t *testing.T) {
	tests := []struct {
		price string
		want  string
	}{
		{"11520.00", "R$ 11.520,00"},
		{"45000.555", "R$ 45.000,56"},
		{"1234567.8", "R$ 1.234.567,80"},
		{"999", "R$ 999,00"},
		{"0.5", "R$ 0,50"},
		{"0", "R$ 0,00"},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			assert.Equal(t, tt.want, PriceBRL(decimal.RequireFromString(tt.price)))
		})
	}
}

func TestMonthPT(t *testing.T) {
	tests := []struct {
		date time.Time
		want string
	}{
		{time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), "janeiro/2024"},
		{time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC), "março/2023"},
		{time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), "dezembro/2025"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MonthPT(tt.date))
	}
}
