package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/stakewatch/risk"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// monitor partitions write concurrently; sqlite has one writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordExecution(e ExecutionRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO executions
		(id, owner, security_id, side, shares, price, exec_type, order_id, exec_id, position, checksum_mismatch, transact_time, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Owner, e.SecurityID, e.Side.String(), e.Shares, e.Price.String(),
		e.ExecType, e.OrderID, e.ExecID, e.Position.String(), e.ChecksumMismatch,
		e.TransactTime.UTC(), e.ReceivedAt.UTC(),
	)
	return err
}

func (j *SQLite) RecordTransition(t risk.Transition) error {
	var projected sql.NullFloat64
	if t.ProjectedBreachHours != nil {
		projected = sql.NullFloat64{Float64: *t.ProjectedBreachHours, Valid: true}
	}
	_, err := j.db.Exec(`
		INSERT INTO transitions
		(id, security_id, jurisdiction, type, from_status, to_status, ownership_percent, threshold_percent, buying_velocity, projected_breach_hours, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SecurityID, t.Jurisdiction, string(t.Type), t.From.String(), t.To.String(),
		t.OwnershipPercent, t.ThresholdPercent, t.BuyingVelocity, projected, t.Timestamp.UTC(),
	)
	return err
}

func (j *SQLite) RecordWorkflow(a risk.WorkflowAction) error {
	_, err := j.db.Exec(`
		INSERT INTO workflow_actions
		(id, security_id, transition_id, action, actor, justification, from_state, to_state, severity, supervisor_review, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SecurityID, a.TransitionID, string(a.Action), a.Actor, a.Justification,
		string(a.From), string(a.To), a.Severity.String(), a.SupervisorReviewRequired, a.Timestamp.UTC(),
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
