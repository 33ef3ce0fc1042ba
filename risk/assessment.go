package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/stakewatch/market"
)

// Assessment is the derived risk picture of one security. It is recomputed
// on demand and never persisted by the monitor.
type Assessment struct {
	SecurityID   string `json:"security_id"`
	Jurisdiction string `json:"jurisdiction"`
	Status       Status `json:"status"`

	OwnershipPercent  float64         `json:"ownership_percent"`
	DirectPercent     float64         `json:"direct_percent"`
	IndirectPercent   float64         `json:"indirect_percent"`
	TotalShares       decimal.Decimal `json:"total_shares"`
	SharesOutstanding decimal.Decimal `json:"shares_outstanding"`

	ThresholdPercent float64 `json:"threshold_percent"`
	WarningPercent   float64 `json:"warning_percent"`
	RuleCode         string  `json:"rule_code,omitempty"`
	RequiredForm     string  `json:"required_form"`
	DeadlineDays     *int    `json:"deadline_days"`
	Supported        bool    `json:"supported"`

	ProjectedBreachHours *float64   `json:"projected_breach_hours"`
	BreachDetectedAt     *time.Time `json:"breach_detected_at,omitempty"`
	Deadline             *time.Time `json:"deadline"`
	AdjustedForHoliday   bool       `json:"adjusted_for_holiday"`

	BuyingVelocity     float64             `json:"buying_velocity"`
	PositionType       market.PositionType `json:"position_type"`
	DataQualityWarning bool                `json:"data_quality_warning"`
	Freshness          Freshness           `json:"freshness"`
	LastUpdated        time.Time           `json:"last_updated"`
}

// ThresholdShares is the share count at which the security breaches.
func (a Assessment) ThresholdShares() decimal.Decimal {
	return a.SharesOutstanding.Mul(decimal.NewFromFloat(a.ThresholdPercent)).Div(decimal.NewFromInt(100))
}
