package importer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseLocaleNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.500.000", "1500000"},
		{"30.000,50", "30000.5"},
		{"Rp 45.000", "45000"},
		{"rp45.000", "45000"},
		{"Rp. 12.500", "12500"},
		{"'75.000", "75000"},
		{"1,5", "1.5"},
		{"1,500,000.25", "1500000.25"},
		{"30000", "30000"},
		{"", "0"},
		{"gratis", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got := ParseLocaleNumber(tc.in)
			assert.True(t, decimal.RequireFromString(tc.want).Equal(got), "got %s", got)
		})
	}
}

func TestCellDecimal_NumericPassesThrough(t *testing.T) {
	assert.True(t, decimal.NewFromInt(30000).Equal(Number("30000").Decimal()))
	// a stored number keeps its decimal point
	assert.True(t, decimal.RequireFromString("1.5").Equal(Number("1.5").Decimal()))
	// the same text is read as Indonesian thousands
	assert.True(t, decimal.NewFromInt(15).Equal(Text("1.5").Decimal()))
}
