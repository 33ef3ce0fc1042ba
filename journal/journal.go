// Package journal is the append-only audit sink. Every accepted fill,
// status transition and alert workflow action is written here; the monitor
// never reads it back.
package journal

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/stakewatch/market"
	"github.com/rustyeddy/stakewatch/risk"
)

// ExecutionRecord is one fill applied to a holding.
type ExecutionRecord struct {
	ID               string          `json:"id"`
	Owner            string          `json:"owner"`
	SecurityID       string          `json:"security_id"`
	Side             market.Side     `json:"side"`
	Shares           int64           `json:"shares"`
	Price            decimal.Decimal `json:"price"`
	ExecType         string          `json:"exec_type"`
	OrderID          string          `json:"order_id"`
	ExecID           string          `json:"exec_id"`
	Position         decimal.Decimal `json:"position"`
	ChecksumMismatch bool            `json:"checksum_mismatch"`
	TransactTime     time.Time       `json:"transact_time"`
	ReceivedAt       time.Time       `json:"received_at"`
}

type Journal interface {
	RecordExecution(ExecutionRecord) error
	RecordTransition(risk.Transition) error
	RecordWorkflow(risk.WorkflowAction) error
	Close() error
}

// Discard drops every record.
type Discard struct{}

func (Discard) RecordExecution(ExecutionRecord) error    { return nil }
func (Discard) RecordTransition(risk.Transition) error   { return nil }
func (Discard) RecordWorkflow(risk.WorkflowAction) error { return nil }
func (Discard) Close() error                             { return nil }

// Open builds the journal named by kind: "sqlite" (path is the database
// file), "csv" (path is a directory) or "none".
func Open(kind, path string) (Journal, error) {
	switch kind {
	case "sqlite":
		return NewSQLite(path)
	case "csv":
		return NewCSV(path)
	case "", "none":
		return Discard{}, nil
	}
	return nil, fmt.Errorf("unknown journal type %q", kind)
}
