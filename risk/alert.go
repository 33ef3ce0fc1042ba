package risk

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNoAlert               = errors.New("risk: no alert for security")
	ErrJustificationRequired = errors.New("risk: dismissal requires a justification")
	ErrInvalidAlertAction    = errors.New("risk: action not allowed in current alert state")
)

type AlertState string

const (
	AlertOpen         AlertState = "Open"
	AlertAcknowledged AlertState = "Acknowledged"
	AlertDismissed    AlertState = "Dismissed"
	AlertResolved     AlertState = "Resolved"
)

// Terminal states accept no further actions.
func (s AlertState) Terminal() bool {
	return s == AlertDismissed || s == AlertResolved
}

type Action string

const (
	ActionOpen        Action = "open"
	ActionAcknowledge Action = "acknowledge"
	ActionDismiss     Action = "dismiss"
	ActionResolve     Action = "resolve"
)

// Alert is the manual workflow overlay for one security. It is tagged on
// top of the computed status and never feeds back into it.
type Alert struct {
	SecurityID               string     `json:"security_id"`
	TransitionID             string     `json:"transition_id"`
	State                    AlertState `json:"state"`
	Severity                 Status     `json:"severity"`
	Actor                    string     `json:"actor,omitempty"`
	Justification            string     `json:"justification,omitempty"`
	Note                     string     `json:"note,omitempty"`
	SupervisorReviewRequired bool       `json:"supervisor_review_required"`
	OpenedAt                 time.Time  `json:"opened_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
}

// WorkflowAction is the audit record of one change to an alert.
type WorkflowAction struct {
	ID                       string     `json:"id"`
	SecurityID               string     `json:"security_id"`
	TransitionID             string     `json:"transition_id"`
	Action                   Action     `json:"action"`
	Actor                    string     `json:"actor"`
	Justification            string     `json:"justification,omitempty"`
	From                     AlertState `json:"from,omitempty"`
	To                       AlertState `json:"to"`
	Severity                 Status     `json:"severity"`
	SupervisorReviewRequired bool       `json:"supervisor_review_required"`
	Timestamp                time.Time  `json:"timestamp"`
}

// OpenAlert starts a new alert for a transition into Warning or Breach.
func OpenAlert(t Transition) (Alert, WorkflowAction) {
	a := Alert{
		SecurityID:   t.SecurityID,
		TransitionID: t.ID,
		State:        AlertOpen,
		Severity:     t.To,
		Actor:        "system",
		OpenedAt:     t.Timestamp,
		UpdatedAt:    t.Timestamp,
	}
	return a, a.action(ActionOpen, "", t.Timestamp)
}

func (a *Alert) Acknowledge(actor string, at time.Time) (WorkflowAction, error) {
	if a.State != AlertOpen {
		return WorkflowAction{}, fmt.Errorf("%w: acknowledge from %s", ErrInvalidAlertAction, a.State)
	}
	from := a.State
	a.State = AlertAcknowledged
	a.Actor = actor
	a.UpdatedAt = at
	return a.action(ActionAcknowledge, from, at), nil
}

// Dismiss closes the alert without resolving the condition. Dismissing a
// breach flags the alert for supervisor review.
func (a *Alert) Dismiss(actor, justification string, at time.Time) (WorkflowAction, error) {
	if a.State.Terminal() {
		return WorkflowAction{}, fmt.Errorf("%w: dismiss from %s", ErrInvalidAlertAction, a.State)
	}
	justification = strings.TrimSpace(justification)
	if justification == "" {
		return WorkflowAction{}, ErrJustificationRequired
	}
	from := a.State
	a.State = AlertDismissed
	a.Actor = actor
	a.Justification = justification
	a.SupervisorReviewRequired = a.Severity == Breach
	a.UpdatedAt = at
	return a.action(ActionDismiss, from, at), nil
}

func (a *Alert) Resolve(actor, note string, at time.Time) (WorkflowAction, error) {
	if a.State.Terminal() {
		return WorkflowAction{}, fmt.Errorf("%w: resolve from %s", ErrInvalidAlertAction, a.State)
	}
	from := a.State
	a.State = AlertResolved
	a.Actor = actor
	a.Note = strings.TrimSpace(note)
	a.UpdatedAt = at
	return a.action(ActionResolve, from, at), nil
}

func (a *Alert) action(kind Action, from AlertState, at time.Time) WorkflowAction {
	just := a.Justification
	if kind == ActionResolve {
		just = a.Note
	}
	return WorkflowAction{
		SecurityID:               a.SecurityID,
		TransitionID:             a.TransitionID,
		Action:                   kind,
		Actor:                    a.Actor,
		Justification:            just,
		From:                     from,
		To:                       a.State,
		Severity:                 a.Severity,
		SupervisorReviewRequired: a.SupervisorReviewRequired,
		Timestamp:                at,
	}
}
