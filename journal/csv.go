package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rustyeddy/stakewatch/risk"
)

var (
	executionHeader  = []string{"id", "owner", "security_id", "side", "shares", "price", "exec_type", "order_id", "exec_id", "position", "checksum_mismatch", "transact_time", "received_at"}
	transitionHeader = []string{"id", "security_id", "jurisdiction", "type", "from", "to", "ownership_percent", "threshold_percent", "buying_velocity", "projected_breach_hours", "time"}
	workflowHeader   = []string{"id", "security_id", "transition_id", "action", "actor", "justification", "from", "to", "severity", "supervisor_review", "time"}
)

// CSV writes one file per record kind into a directory. Files are
// truncated on open.
type CSV struct {
	mu          sync.Mutex
	executions  *csv.Writer
	transitions *csv.Writer
	workflow    *csv.Writer
	files       []*os.File
}

func NewCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	j := &CSV{}
	open := func(name string, header []string) (*csv.Writer, error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, f)
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		w.Flush()
		return w, w.Error()
	}

	var err error
	if j.executions, err = open("executions.csv", executionHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.transitions, err = open("transitions.csv", transitionHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.workflow, err = open("workflow.csv", workflowHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	return j, nil
}

func (j *CSV) write(w *csv.Writer, rec []string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSV) RecordExecution(e ExecutionRecord) error {
	return j.write(j.executions, []string{
		e.ID,
		e.Owner,
		e.SecurityID,
		e.Side.String(),
		strconv.FormatInt(e.Shares, 10),
		e.Price.String(),
		e.ExecType,
		e.OrderID,
		e.ExecID,
		e.Position.String(),
		strconv.FormatBool(e.ChecksumMismatch),
		ts(e.TransactTime),
		ts(e.ReceivedAt),
	})
}

func (j *CSV) RecordTransition(t risk.Transition) error {
	projected := ""
	if t.ProjectedBreachHours != nil {
		projected = f(*t.ProjectedBreachHours)
	}
	return j.write(j.transitions, []string{
		t.ID,
		t.SecurityID,
		t.Jurisdiction,
		string(t.Type),
		t.From.String(),
		t.To.String(),
		f(t.OwnershipPercent),
		f(t.ThresholdPercent),
		f(t.BuyingVelocity),
		projected,
		ts(t.Timestamp),
	})
}

func (j *CSV) RecordWorkflow(a risk.WorkflowAction) error {
	return j.write(j.workflow, []string{
		a.ID,
		a.SecurityID,
		a.TransitionID,
		string(a.Action),
		a.Actor,
		a.Justification,
		string(a.From),
		string(a.To),
		a.Severity.String(),
		strconv.FormatBool(a.SupervisorReviewRequired),
		ts(a.Timestamp),
	})
}

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, w := range []*csv.Writer{j.executions, j.transitions, j.workflow} {
		w.Flush()
		if err := w.Error(); err != nil {
			j.closeFiles()
			return err
		}
	}
	return j.closeFiles()
}

func (j *CSV) closeFiles() error {
	var first error
	for _, file := range j.files {
		if err := file.Close(); err != nil && first == nil {
			first = fmt.Errorf("close %s: %w", file.Name(), err)
		}
	}
	j.files = nil
	return first
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
