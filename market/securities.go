// market/securities.go
package market

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Security is one row of the security master.
type Security struct {
	ID                string          `json:"id"`
	Name              string          `json:"name,omitempty"`
	Jurisdiction      string          `json:"jurisdiction"`
	SharesOutstanding decimal.Decimal `json:"shares_outstanding"`
	Basket            bool            `json:"basket,omitempty"`
}

// Securities is the security master keyed by normalized ID. It is loaded
// once and only read afterwards.
type Securities map[string]Security

func NewSecurities(list ...Security) Securities {
	s := make(Securities, len(list))
	for _, sec := range list {
		sec.ID = NormalizeID(sec.ID)
		sec.Jurisdiction = NormalizeID(sec.Jurisdiction)
		s[sec.ID] = sec
	}
	return s
}

func (s Securities) Lookup(id string) (Security, bool) {
	sec, ok := s[NormalizeID(id)]
	return sec, ok
}

// Outstanding returns the shares outstanding for id, zero when unknown.
func (s Securities) Outstanding(id string) decimal.Decimal {
	if sec, ok := s.Lookup(id); ok {
		return sec.SharesOutstanding
	}
	return decimal.Zero
}

// IDs returns the known security IDs in sorted order.
func (s Securities) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
