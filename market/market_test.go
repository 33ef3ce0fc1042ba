package market

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSideSign(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(1), SideBuy.Sign())
	assert.Equal(t, int64(-1), SideSell.Sign())
	assert.Equal(t, int64(-1), SideSellShort.Sign())
	assert.Equal(t, int64(0), SideUnknown.Sign())
	assert.Equal(t, "SellShort", SideSellShort.String())
}

func TestExecutionEventIsFill(t *testing.T) {
	t.Parallel()

	tests := []struct {
		execType string
		want     bool
	}{
		{ExecTypePartialFill, true},
		{ExecTypeFill, true},
		{ExecTypeTrade, true},
		{"0", false},
		{"4", false},
		{"", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run("exec_"+tt.execType, func(t *testing.T) {
			t.Parallel()
			e := ExecutionEvent{ExecutionType: tt.execType}
			assert.Equal(t, tt.want, e.IsFill())
		})
	}
}

func TestHoldingDataQualityIssue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		owned       int64
		outstanding int64
		want        bool
	}{
		{"normal", 4_500_000, 100_000_000, false},
		{"owned exceeds outstanding", 200, 100, true},
		{"short exceeds outstanding", -200, 100, true},
		{"zero outstanding", 10, 0, true},
		{"equal", 100, 100, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := Holding{
				SharesOwned:            decimal.NewFromInt(tt.owned),
				TotalSharesOutstanding: decimal.NewFromInt(tt.outstanding),
			}
			assert.Equal(t, tt.want, h.DataQualityIssue())
		})
	}
}

func TestSecuritiesLookupIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	s := NewSecurities(
		Security{ID: "acme", Jurisdiction: "us", SharesOutstanding: decimal.NewFromInt(100)},
		Security{ID: "BSKT", Jurisdiction: "US", Basket: true},
	)

	sec, ok := s.Lookup(" Acme ")
	assert.True(t, ok)
	assert.Equal(t, "ACME", sec.ID)
	assert.Equal(t, "US", sec.Jurisdiction)
	assert.True(t, s.Outstanding("ACME").Equal(decimal.NewFromInt(100)))
	assert.True(t, s.Outstanding("NOPE").IsZero())
	assert.Equal(t, []string{"ACME", "BSKT"}, s.IDs())
}

func TestPositionTypeOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Long, PositionTypeOf(decimal.NewFromInt(5)))
	assert.Equal(t, Long, PositionTypeOf(decimal.Zero))
	assert.Equal(t, Short, PositionTypeOf(decimal.NewFromInt(-5)))
}
