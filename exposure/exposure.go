// Package exposure computes look-through ownership: direct holdings of a
// security plus the share of it carried inside held basket instruments.
package exposure

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/stakewatch/market"
)

var hundred = decimal.NewFromInt(100)

// Constituent is one weighted member of a basket.
type Constituent struct {
	Ticker string          `json:"ticker" yaml:"ticker"`
	Weight decimal.Decimal `json:"weight" yaml:"weight"`
}

// Basket is the composition of a basket instrument. Weights are in (0,1]
// and need not sum to 1.
type Basket struct {
	Ticker       string        `json:"ticker" yaml:"ticker"`
	Constituents []Constituent `json:"constituents" yaml:"constituents"`
}

// Weight of id in the basket, zero when absent.
func (b Basket) Weight(id string) decimal.Decimal {
	id = market.NormalizeID(id)
	for _, c := range b.Constituents {
		if c.Ticker == id {
			return c.Weight
		}
	}
	return decimal.Zero
}

// Contribution is the indirect exposure carried by one basket.
type Contribution struct {
	BasketID     string          `json:"basket_id"`
	Weight       decimal.Decimal `json:"weight"`
	BasketShares decimal.Decimal `json:"basket_shares"`
	Shares       decimal.Decimal `json:"shares"`
}

// Breakdown is the look-through exposure of one security. Percentages are
// signed; a net short shows as negative.
type Breakdown struct {
	SecurityID         string          `json:"security_id"`
	DirectShares       decimal.Decimal `json:"direct_shares"`
	Indirect           []Contribution  `json:"indirect"`
	IndirectShares     decimal.Decimal `json:"indirect_shares"`
	TotalShares        decimal.Decimal `json:"total_shares"`
	SharesOutstanding  decimal.Decimal `json:"shares_outstanding"`
	DirectPercent      float64         `json:"direct_percent"`
	IndirectPercent    float64         `json:"indirect_percent"`
	TotalPercent       float64         `json:"total_percent"`
	DataQualityWarning bool            `json:"data_quality_warning"`
}

// Summary renders the direct and hidden split for display.
func (b Breakdown) Summary() string {
	return fmt.Sprintf("Direct: %.2f%% | Hidden: %+.2f%%", b.DirectPercent, b.IndirectPercent)
}

type Option func(*Aggregator)

// WithSecurities supplies the security master used when holdings carry no
// shares outstanding.
func WithSecurities(s market.Securities) Option {
	return func(a *Aggregator) { a.securities = s }
}

// WithExclusions adds securities that are never looked through as
// targets. Every basket is excluded already.
func WithExclusions(ids ...string) Option {
	return func(a *Aggregator) {
		for _, id := range ids {
			a.exclusions[market.NormalizeID(id)] = struct{}{}
		}
	}
}

// Aggregator holds the immutable basket reference data. It is safe for
// concurrent use.
type Aggregator struct {
	baskets    map[string]Basket
	containing map[string][]string
	exclusions map[string]struct{}
	securities market.Securities
}

func NewAggregator(baskets []Basket, opts ...Option) *Aggregator {
	a := &Aggregator{
		baskets:    make(map[string]Basket, len(baskets)),
		containing: make(map[string][]string),
		exclusions: make(map[string]struct{}, len(baskets)),
	}
	for _, b := range baskets {
		b.Ticker = market.NormalizeID(b.Ticker)
		cs := make([]Constituent, 0, len(b.Constituents))
		for _, c := range b.Constituents {
			c.Ticker = market.NormalizeID(c.Ticker)
			if c.Ticker == b.Ticker || !c.Weight.IsPositive() {
				continue
			}
			cs = append(cs, c)
			a.containing[c.Ticker] = append(a.containing[c.Ticker], b.Ticker)
		}
		b.Constituents = cs
		a.baskets[b.Ticker] = b
		a.exclusions[b.Ticker] = struct{}{}
	}
	for id := range a.containing {
		sort.Strings(a.containing[id])
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) IsBasket(id string) bool {
	_, ok := a.baskets[market.NormalizeID(id)]
	return ok
}

// BasketsContaining lists the baskets whose composition includes id.
func (a *Aggregator) BasketsContaining(id string) []string {
	return a.containing[market.NormalizeID(id)]
}

// Constituents of a basket, nil for anything that is not a basket.
func (a *Aggregator) Constituents(basket string) []Constituent {
	return a.baskets[market.NormalizeID(basket)].Constituents
}

func (a *Aggregator) excluded(id string) bool {
	_, ok := a.exclusions[id]
	return ok
}

// TrueExposure sums direct holdings of securityID across all owners and
// adds the weighted share of every held basket that contains it.
func (a *Aggregator) TrueExposure(securityID string, holdings []market.Holding) Breakdown {
	id := market.NormalizeID(securityID)
	out := Breakdown{
		SecurityID:        id,
		DirectShares:      decimal.Zero,
		IndirectShares:    decimal.Zero,
		SharesOutstanding: decimal.Zero,
	}

	basketShares := make(map[string]decimal.Decimal)
	for _, h := range holdings {
		hid := market.NormalizeID(h.SecurityID)
		if hid == id {
			out.DirectShares = out.DirectShares.Add(h.SharesOwned)
			if !out.SharesOutstanding.IsPositive() && h.TotalSharesOutstanding.IsPositive() {
				out.SharesOutstanding = h.TotalSharesOutstanding
			}
			continue
		}
		if _, ok := a.baskets[hid]; ok {
			basketShares[hid] = basketShares[hid].Add(h.SharesOwned)
		}
	}

	if !a.excluded(id) {
		for _, bid := range a.containing[id] {
			held, ok := basketShares[bid]
			if !ok || held.IsZero() {
				continue
			}
			w := a.baskets[bid].Weight(id)
			c := Contribution{BasketID: bid, Weight: w, BasketShares: held, Shares: held.Mul(w)}
			out.Indirect = append(out.Indirect, c)
			out.IndirectShares = out.IndirectShares.Add(c.Shares)
		}
	}
	out.TotalShares = out.DirectShares.Add(out.IndirectShares)

	if !out.SharesOutstanding.IsPositive() && a.securities != nil {
		out.SharesOutstanding = a.securities.Outstanding(id)
	}
	if !out.SharesOutstanding.IsPositive() {
		out.DataQualityWarning = true
		return out
	}
	if out.TotalShares.Abs().GreaterThan(out.SharesOutstanding) {
		out.DataQualityWarning = true
	}

	out.DirectPercent = percent(out.DirectShares, out.SharesOutstanding)
	out.IndirectPercent = percent(out.IndirectShares, out.SharesOutstanding)
	out.TotalPercent = percent(out.TotalShares, out.SharesOutstanding)
	return out
}

// HasHiddenExposure reports whether any held basket carries a non-zero
// weight of securityID.
func (a *Aggregator) HasHiddenExposure(securityID string, holdings []market.Holding) bool {
	id := market.NormalizeID(securityID)
	for _, h := range holdings {
		hid := market.NormalizeID(h.SecurityID)
		if hid == id || h.SharesOwned.IsZero() {
			continue
		}
		if b, ok := a.baskets[hid]; ok && !b.Weight(id).IsZero() {
			return true
		}
	}
	return false
}

func percent(shares, outstanding decimal.Decimal) float64 {
	return shares.Div(outstanding).Mul(hundred).InexactFloat64()
}
