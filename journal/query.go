package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/stakewatch/risk"
)

var ErrNotFound = errors.New("journal: record not found")

const transitionColumns = `id, security_id, jurisdiction, type, from_status, to_status,
	ownership_percent, threshold_percent, buying_velocity, projected_breach_hours, time`

type scanner interface {
	Scan(dest ...any) error
}

func scanTransition(s scanner) (risk.Transition, error) {
	var (
		t         risk.Transition
		typ       string
		from, to  string
		projected sql.NullFloat64
	)
	err := s.Scan(
		&t.ID,
		&t.SecurityID,
		&t.Jurisdiction,
		&typ,
		&from,
		&to,
		&t.OwnershipPercent,
		&t.ThresholdPercent,
		&t.BuyingVelocity,
		&projected,
		&t.Timestamp,
	)
	if err != nil {
		return risk.Transition{}, err
	}
	t.Type = risk.EventType(typ)
	if t.From, err = risk.ParseStatus(from); err != nil {
		return risk.Transition{}, err
	}
	if t.To, err = risk.ParseStatus(to); err != nil {
		return risk.Transition{}, err
	}
	if projected.Valid {
		h := projected.Float64
		t.ProjectedBreachHours = &h
	}
	return t, nil
}

// GetTransition returns a single transition by ID.
func (j *SQLite) GetTransition(id string) (risk.Transition, error) {
	row := j.db.QueryRow(`SELECT `+transitionColumns+` FROM transitions WHERE id = ?`, id)
	t, err := scanTransition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return risk.Transition{}, fmt.Errorf("transition %q: %w", id, ErrNotFound)
	}
	return t, err
}

// ListTransitions returns the transitions of a security within [start, end)
// in emission order.
func (j *SQLite) ListTransitions(securityID string, start, end time.Time) ([]risk.Transition, error) {
	rows, err := j.db.Query(`
		SELECT `+transitionColumns+`
		FROM transitions
		WHERE security_id = ? AND time >= ? AND time < ?
		ORDER BY time ASC, id ASC`, securityID, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []risk.Transition
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListWorkflow returns every alert action recorded for a security.
func (j *SQLite) ListWorkflow(securityID string) ([]risk.WorkflowAction, error) {
	rows, err := j.db.Query(`
		SELECT id, security_id, transition_id, action, actor, justification, from_state, to_state, severity, supervisor_review, time
		FROM workflow_actions
		WHERE security_id = ?
		ORDER BY time ASC, id ASC`, securityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []risk.WorkflowAction
	for rows.Next() {
		var (
			a                     risk.WorkflowAction
			action, from, to, sev string
		)
		if err := rows.Scan(
			&a.ID,
			&a.SecurityID,
			&a.TransitionID,
			&action,
			&a.Actor,
			&a.Justification,
			&from,
			&to,
			&sev,
			&a.SupervisorReviewRequired,
			&a.Timestamp,
		); err != nil {
			return nil, err
		}
		a.Action = risk.Action(action)
		a.From = risk.AlertState(from)
		a.To = risk.AlertState(to)
		if a.Severity, err = risk.ParseStatus(sev); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountExecutions returns how many fills were recorded for a security.
func (j *SQLite) CountExecutions(securityID string) (int, error) {
	var n int
	err := j.db.QueryRow(`SELECT COUNT(*) FROM executions WHERE security_id = ?`, securityID).Scan(&n)
	return n, err
}
