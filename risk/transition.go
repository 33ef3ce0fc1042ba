package risk

import "time"

type EventType string

const (
	BreachDetected  EventType = "BreachDetected"
	WarningDetected EventType = "WarningDetected"
	BreachResolved  EventType = "BreachResolved"
	WarningCleared  EventType = "WarningCleared"
)

// DetectTransition names the event for a status change. ok is false when
// the status did not change.
func DetectTransition(from, to Status) (EventType, bool) {
	if from == to {
		return "", false
	}
	switch {
	case to == Breach:
		return BreachDetected, true
	case from == Breach:
		return BreachResolved, true
	case to == Warning:
		return WarningDetected, true
	default:
		return WarningCleared, true
	}
}

// Transition is the outbound record of one genuine status change.
type Transition struct {
	ID                   string    `json:"id"`
	SecurityID           string    `json:"security_id"`
	Jurisdiction         string    `json:"jurisdiction"`
	Type                 EventType `json:"type"`
	From                 Status    `json:"from"`
	To                   Status    `json:"to"`
	OwnershipPercent     float64   `json:"ownership_percent"`
	ThresholdPercent     float64   `json:"threshold_percent"`
	BuyingVelocity       float64   `json:"buying_velocity"`
	ProjectedBreachHours *float64  `json:"projected_breach_hours"`
	Timestamp            time.Time `json:"timestamp"`
}

// NewTransition builds the record for a change between two assessments.
func NewTransition(id string, from Status, a Assessment, at time.Time) (Transition, bool) {
	typ, ok := DetectTransition(from, a.Status)
	if !ok {
		return Transition{}, false
	}
	return Transition{
		ID:                   id,
		SecurityID:           a.SecurityID,
		Jurisdiction:         a.Jurisdiction,
		Type:                 typ,
		From:                 from,
		To:                   a.Status,
		OwnershipPercent:     a.OwnershipPercent,
		ThresholdPercent:     a.ThresholdPercent,
		BuyingVelocity:       a.BuyingVelocity,
		ProjectedBreachHours: a.ProjectedBreachHours,
		Timestamp:            at,
	}, true
}
