package rules

import (
	"math"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/stakewatch/market"
	"github.com/rustyeddy/stakewatch/risk"
)

// NotApplicable is the form reported for jurisdictions without a rule.
const NotApplicable = "N/A"

// Evaluation is the rule-table verdict for one ownership figure.
type Evaluation struct {
	Status             risk.Status         `json:"status"`
	Jurisdiction       string              `json:"jurisdiction"`
	RuleCode           string              `json:"rule_code,omitempty"`
	RequiredForm       string              `json:"required_form"`
	DeadlineDays       *int                `json:"deadline_days"`
	ThresholdPercent   float64             `json:"threshold_percent"`
	WarningPercent     float64             `json:"warning_percent"`
	PositionType       market.PositionType `json:"position_type"`
	Supported          bool                `json:"supported"`
	DataQualityWarning bool                `json:"data_quality_warning"`
}

type EvaluatorOption func(*Evaluator)

func WithLogger(log zerolog.Logger) EvaluatorOption {
	return func(e *Evaluator) { e.log = log }
}

// WithUnsupportedHook is called on every evaluation of a jurisdiction that
// has no rule.
func WithUnsupportedHook(fn func(jurisdiction string)) EvaluatorOption {
	return func(e *Evaluator) { e.onUnsupported = fn }
}

// Evaluator classifies ownership against a Table. It is safe for concurrent
// use.
type Evaluator struct {
	table         *Table
	log           zerolog.Logger
	onUnsupported func(string)
	warned        sync.Map
}

func NewEvaluator(table *Table, opts ...EvaluatorOption) *Evaluator {
	if table == nil {
		table = DefaultTable()
	}
	e := &Evaluator{table: table, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) Table() *Table { return e.table }

// Evaluate classifies ownershipPercent for the jurisdiction and position
// direction. dataQualityWarning is carried through to the result untouched.
func (e *Evaluator) Evaluate(jurisdiction string, ownershipPercent float64, pt market.PositionType, dataQualityWarning bool) Evaluation {
	j := market.NormalizeID(jurisdiction)
	out := Evaluation{
		Status:             risk.Safe,
		Jurisdiction:       j,
		RequiredForm:       NotApplicable,
		PositionType:       pt,
		DataQualityWarning: dataQualityWarning,
	}

	rule, ok := e.table.Rule(j)
	if !ok {
		e.unsupported(j)
		return out
	}

	band := rule.Band(pt)
	days := band.DeadlineDays
	out.Supported = true
	out.RuleCode = rule.Code
	out.RequiredForm = band.Form
	out.DeadlineDays = &days
	out.ThresholdPercent = band.ThresholdPercent
	out.WarningPercent = band.WarningFloor()
	out.Status = Classify(ownershipPercent, band)
	return out
}

// Classify places p in the band: Breach at or above the threshold, Warning
// at or above the warning floor, otherwise Safe.
func Classify(p float64, b Band) risk.Status {
	switch {
	case math.IsNaN(p), math.IsInf(p, -1):
		return risk.Safe
	case math.IsInf(p, 1):
		return risk.Breach
	}
	pct := decimal.NewFromFloat(p)
	switch {
	case pct.GreaterThanOrEqual(b.threshold()):
		return risk.Breach
	case pct.GreaterThanOrEqual(b.warningFloor()):
		return risk.Warning
	default:
		return risk.Safe
	}
}

func (e *Evaluator) unsupported(j string) {
	if e.onUnsupported != nil {
		e.onUnsupported(j)
	}
	if _, seen := e.warned.LoadOrStore(j, struct{}{}); !seen {
		e.log.Warn().Str("jurisdiction", j).Msg("No disclosure rule for jurisdiction, treating as safe")
	}
}
