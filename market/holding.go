// market/holding.go
package market

import (
	"time"

	"github.com/shopspring/decimal"
)

type PositionType int

const (
	Long PositionType = iota
	Short
)

func (p PositionType) String() string {
	if p == Short {
		return "short"
	}
	return "long"
}

func (p PositionType) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// PositionTypeOf classifies a signed share count.
func PositionTypeOf(shares decimal.Decimal) PositionType {
	if shares.IsNegative() {
		return Short
	}
	return Long
}

// Holding is the live state of one owner's position in one security.
//
// TotalSharesOutstanding is reference data copied in at creation; it is not
// guaranteed to exceed SharesOwned and DataQualityIssue reports when it
// doesn't.
type Holding struct {
	Owner                  string          `json:"owner"`
	SecurityID             string          `json:"security_id"`
	Jurisdiction           string          `json:"jurisdiction"`
	SharesOwned            decimal.Decimal `json:"shares_owned"`
	TotalSharesOutstanding decimal.Decimal `json:"total_shares_outstanding"`
	RegulatoryRule         string          `json:"regulatory_rule,omitempty"`
	BuyingVelocity         float64         `json:"buying_velocity"` // shares/hour, signed
	LastUpdated            time.Time       `json:"last_updated"`
}

// Key identifies the holding row.
func (h Holding) Key() HoldingKey {
	return HoldingKey{Owner: h.Owner, SecurityID: h.SecurityID}
}

// DataQualityIssue is true when the denominator cannot be trusted.
func (h Holding) DataQualityIssue() bool {
	if !h.TotalSharesOutstanding.IsPositive() {
		return true
	}
	return h.SharesOwned.Abs().GreaterThan(h.TotalSharesOutstanding)
}

type HoldingKey struct {
	Owner      string
	SecurityID string
}
