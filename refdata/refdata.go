// Package refdata loads the reference data the monitor runs on: the
// security master, basket compositions, rule overrides, holiday calendars
// and opening holdings.
package refdata

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/stakewatch/exposure"
	"github.com/rustyeddy/stakewatch/market"
	"github.com/rustyeddy/stakewatch/rules"
)

type file struct {
	Securities []security          `yaml:"securities"`
	Baskets    []basket            `yaml:"baskets"`
	Rules      []rules.Rule        `yaml:"rules"`
	Holidays   map[string][]string `yaml:"holidays"`
	Holdings   []holding           `yaml:"holdings"`
}

type security struct {
	ID                string  `yaml:"id"`
	Name              string  `yaml:"name"`
	Jurisdiction      string  `yaml:"jurisdiction"`
	SharesOutstanding float64 `yaml:"shares_outstanding"`
	Basket            bool    `yaml:"basket"`
}

type basket struct {
	Ticker       string        `yaml:"ticker"`
	Constituents []constituent `yaml:"constituents"`
}

type constituent struct {
	Ticker string  `yaml:"ticker"`
	Weight float64 `yaml:"weight"` // fraction of one basket share, e.g. 0.065
}

type holding struct {
	Owner    string  `yaml:"owner"`
	Security string  `yaml:"security"`
	Shares   float64 `yaml:"shares"`
}

// Data is the decoded reference data.
type Data struct {
	Securities market.Securities
	Baskets    []exposure.Basket
	Rules      []rules.Rule
	Holidays   map[string][]time.Time
	Holdings   []market.Holding
}

func Load(path string) (*Data, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference data: %w", err)
	}
	d, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

func Parse(b []byte) (*Data, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse reference data: %w", err)
	}

	d := &Data{Holidays: make(map[string][]time.Time, len(f.Holidays))}

	list := make([]market.Security, 0, len(f.Securities))
	seen := make(map[string]bool, len(f.Securities))
	for _, s := range f.Securities {
		id := market.NormalizeID(s.ID)
		if id == "" {
			return nil, fmt.Errorf("security without id")
		}
		if seen[id] {
			return nil, fmt.Errorf("security %s listed twice", id)
		}
		seen[id] = true
		if s.SharesOutstanding < 0 {
			return nil, fmt.Errorf("security %s: negative shares outstanding", id)
		}
		list = append(list, market.Security{
			ID:                id,
			Name:              s.Name,
			Jurisdiction:      s.Jurisdiction,
			SharesOutstanding: decimal.NewFromFloat(s.SharesOutstanding),
			Basket:            s.Basket,
		})
	}
	d.Securities = market.NewSecurities(list...)

	for _, bk := range f.Baskets {
		out := exposure.Basket{Ticker: market.NormalizeID(bk.Ticker)}
		if out.Ticker == "" {
			return nil, fmt.Errorf("basket without ticker")
		}
		for _, c := range bk.Constituents {
			if c.Weight <= 0 {
				return nil, fmt.Errorf("basket %s: constituent %s has non-positive weight", out.Ticker, c.Ticker)
			}
			out.Constituents = append(out.Constituents, exposure.Constituent{
				Ticker: market.NormalizeID(c.Ticker),
				Weight: decimal.NewFromFloat(c.Weight),
			})
		}
		d.Baskets = append(d.Baskets, out)
	}

	for _, r := range f.Rules {
		if r.Jurisdiction == "" || r.Code == "" {
			return nil, fmt.Errorf("rule needs a code and a jurisdiction")
		}
		if r.Long.ThresholdPercent <= 0 {
			return nil, fmt.Errorf("rule %s: threshold must be positive", r.Code)
		}
		if r.Long.WarningPercent >= r.Long.ThresholdPercent {
			return nil, fmt.Errorf("rule %s: warning floor must be below the threshold", r.Code)
		}
		d.Rules = append(d.Rules, r)
	}

	for j, days := range f.Holidays {
		for _, s := range days {
			t, err := time.Parse("2006-01-02", s)
			if err != nil {
				return nil, fmt.Errorf("holiday %s %q: %w", j, s, err)
			}
			d.Holidays[j] = append(d.Holidays[j], t)
		}
	}

	for _, h := range f.Holdings {
		sid := market.NormalizeID(h.Security)
		if sid == "" {
			return nil, fmt.Errorf("holding without security")
		}
		d.Holdings = append(d.Holdings, market.Holding{
			Owner:       market.NormalizeID(h.Owner),
			SecurityID:  sid,
			SharesOwned: decimal.NewFromFloat(h.Shares),
		})
	}
	return d, nil
}

// Table layers the loaded rules and holidays over base.
func (d *Data) Table(base *rules.Table) *rules.Table {
	if base == nil {
		base = rules.DefaultTable()
	}
	if len(d.Rules) == 0 && len(d.Holidays) == 0 {
		return base
	}
	return base.With(d.Rules, d.Holidays)
}

func (d *Data) Aggregator(opts ...exposure.Option) *exposure.Aggregator {
	opts = append([]exposure.Option{exposure.WithSecurities(d.Securities)}, opts...)
	return exposure.NewAggregator(d.Baskets, opts...)
}
