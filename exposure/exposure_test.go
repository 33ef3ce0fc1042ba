package exposure

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/stakewatch/market"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func holding(owner, id string, owned, outstanding int64) market.Holding {
	return market.Holding{
		Owner:                  owner,
		SecurityID:             id,
		SharesOwned:            decimal.NewFromInt(owned),
		TotalSharesOutstanding: decimal.NewFromInt(outstanding),
	}
}

func testAggregator(opts ...Option) *Aggregator {
	return NewAggregator([]Basket{
		{Ticker: "idx1", Constituents: []Constituent{
			{Ticker: "x", Weight: d("0.065")},
			{Ticker: "Y", Weight: d("0.10")},
		}},
		{Ticker: "IDX2", Constituents: []Constituent{
			{Ticker: "X", Weight: d("0.02")},
			{Ticker: "IDX1", Weight: d("0.5")},
		}},
	}, opts...)
}

func TestTrueExposureBasketOnly(t *testing.T) {
	t.Parallel()

	secs := market.NewSecurities(market.Security{ID: "X", Jurisdiction: "US", SharesOutstanding: decimal.NewFromInt(100_000_000)})
	a := testAggregator(WithSecurities(secs))

	holdings := []market.Holding{holding("FUND", "IDX1", 10_000_000, 0)}
	b := a.TrueExposure("X", holdings)

	assert.True(t, b.DirectShares.IsZero())
	require.Len(t, b.Indirect, 1)
	assert.Equal(t, "IDX1", b.Indirect[0].BasketID)
	assert.True(t, b.Indirect[0].Shares.Equal(decimal.NewFromInt(650_000)))
	assert.True(t, b.TotalShares.Equal(decimal.NewFromInt(650_000)))
	assert.InDelta(t, 0.65, b.TotalPercent, 1e-12)
	assert.InDelta(t, 0.65, b.IndirectPercent, 1e-12)
	assert.False(t, b.DataQualityWarning)
	assert.True(t, a.HasHiddenExposure("X", holdings))
}

func TestTrueExposureDirectAndIndirect(t *testing.T) {
	t.Parallel()

	a := testAggregator()
	holdings := []market.Holding{
		holding("FUND-A", "X", 3_000_000, 100_000_000),
		holding("FUND-B", "x", 1_000_000, 100_000_000),
		holding("FUND-A", "IDX1", 10_000_000, 0),
		holding("FUND-B", "IDX2", 5_000_000, 0),
		holding("FUND-A", "OTHER", 7, 0),
	}

	b := a.TrueExposure("x", holdings)
	assert.True(t, b.DirectShares.Equal(decimal.NewFromInt(4_000_000)))
	require.Len(t, b.Indirect, 2)
	assert.Equal(t, "IDX1", b.Indirect[0].BasketID)
	assert.Equal(t, "IDX2", b.Indirect[1].BasketID)
	assert.True(t, b.Indirect[1].Shares.Equal(decimal.NewFromInt(100_000)))
	assert.True(t, b.TotalShares.Equal(decimal.NewFromInt(4_750_000)))
	assert.InDelta(t, 4.0, b.DirectPercent, 1e-12)
	assert.InDelta(t, 0.75, b.IndirectPercent, 1e-12)
	assert.InDelta(t, 4.75, b.TotalPercent, 1e-12)
	assert.Equal(t, "Direct: 4.00% | Hidden: +0.75%", b.Summary())
}

func TestBasketsAreNotLookedThrough(t *testing.T) {
	t.Parallel()

	a := testAggregator()
	holdings := []market.Holding{
		holding("FUND", "IDX1", 1_000, 50_000),
		holding("FUND", "IDX2", 10_000, 0),
	}
	b := a.TrueExposure("IDX1", holdings)
	assert.Empty(t, b.Indirect)
	assert.True(t, b.TotalShares.Equal(decimal.NewFromInt(1_000)))
}

func TestExplicitExclusion(t *testing.T) {
	t.Parallel()

	a := testAggregator(WithExclusions("y"))
	holdings := []market.Holding{holding("FUND", "IDX1", 1_000, 0), holding("FUND", "Y", 0, 1_000_000)}

	assert.Empty(t, a.TrueExposure("Y", holdings).Indirect)
	assert.NotEmpty(t, a.TrueExposure("X", holdings).Indirect)
}

func TestDataQualityWarning(t *testing.T) {
	t.Parallel()

	a := testAggregator()

	b := a.TrueExposure("Z", []market.Holding{holding("FUND", "Z", 10, 0)})
	assert.True(t, b.DataQualityWarning)
	assert.Zero(t, b.TotalPercent)

	b = a.TrueExposure("Z", []market.Holding{holding("FUND", "Z", 200, 100)})
	assert.True(t, b.DataQualityWarning)
	assert.InDelta(t, 200.0, b.TotalPercent, 1e-12)
}

func TestShortBasketReducesExposure(t *testing.T) {
	t.Parallel()

	a := testAggregator()
	holdings := []market.Holding{
		holding("FUND", "X", 1_000_000, 100_000_000),
		holding("FUND", "IDX1", -2_000_000, 0),
	}
	b := a.TrueExposure("X", holdings)
	assert.True(t, b.TotalShares.Equal(decimal.NewFromInt(870_000)))
	assert.Equal(t, "Direct: 1.00% | Hidden: -0.13%", b.Summary())
}

func TestReverseIndex(t *testing.T) {
	t.Parallel()

	a := testAggregator()
	assert.Equal(t, []string{"IDX1", "IDX2"}, a.BasketsContaining("x"))
	assert.Equal(t, []string{"IDX2"}, a.BasketsContaining("IDX1"))
	assert.Empty(t, a.BasketsContaining("NOPE"))
	assert.Len(t, a.Constituents("idx1"), 2)
	assert.Nil(t, a.Constituents("X"))
	assert.True(t, a.IsBasket("idx2"))
	assert.False(t, a.IsBasket("X"))
}

func TestHasHiddenExposure(t *testing.T) {
	t.Parallel()

	a := testAggregator()
	assert.False(t, a.HasHiddenExposure("X", []market.Holding{holding("F", "X", 10, 100)}))
	assert.False(t, a.HasHiddenExposure("Q", []market.Holding{holding("F", "IDX1", 10, 0)}))
	assert.False(t, a.HasHiddenExposure("X", []market.Holding{holding("F", "IDX1", 0, 0)}))
	assert.True(t, a.HasHiddenExposure("Y", []market.Holding{holding("F", "IDX1", 10, 0)}))
}
