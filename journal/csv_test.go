package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/stakewatch/market"
	"github.com/rustyeddy/stakewatch/risk"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(dir)
	require.NoError(t, err)
	assert.NoError(t, j.Close())

	assert.Equal(t, executionHeader, readCSV(t, filepath.Join(dir, "executions.csv"))[0])
	assert.Equal(t, transitionHeader, readCSV(t, filepath.Join(dir, "transitions.csv"))[0])
	assert.Equal(t, workflowHeader, readCSV(t, filepath.Join(dir, "workflow.csv"))[0])
}

func TestCSVJournalRecords(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(dir)
	require.NoError(t, err)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, j.RecordTransition(risk.Transition{
		ID: "T1", SecurityID: "ACME", Jurisdiction: "US", Type: risk.BreachDetected,
		From: risk.Warning, To: risk.Breach, OwnershipPercent: 5.25, ThresholdPercent: 5, Timestamp: at,
	}))
	require.NoError(t, j.RecordExecution(ExecutionRecord{
		ID: "E1", Owner: "FUND", SecurityID: "ACME", Side: market.SideSellShort, Shares: 40,
		Price: decimal.RequireFromString("9.99"), Position: decimal.NewFromInt(-40), TransactTime: at, ReceivedAt: at,
	}))
	require.NoError(t, j.RecordWorkflow(risk.WorkflowAction{
		ID: "A1", SecurityID: "ACME", Action: risk.ActionAcknowledge, Actor: "bob",
		From: risk.AlertOpen, To: risk.AlertAcknowledged, Severity: risk.Breach, Timestamp: at,
	}))
	require.NoError(t, j.Close())

	tr := readCSV(t, filepath.Join(dir, "transitions.csv"))
	require.Len(t, tr, 2)
	assert.Equal(t, []string{"T1", "ACME", "US", "BreachDetected", "Warning", "Breach", "5.250000", "5.000000", "0.000000", "", "2026-01-02T03:04:05Z"}, tr[1])

	ex := readCSV(t, filepath.Join(dir, "executions.csv"))
	require.Len(t, ex, 2)
	assert.Equal(t, "SellShort", ex[1][3])
	assert.Equal(t, "-40", ex[1][9])

	wf := readCSV(t, filepath.Join(dir, "workflow.csv"))
	require.Len(t, wf, 2)
	assert.Equal(t, "acknowledge", wf[1][3])
	assert.Equal(t, "Acknowledged", wf[1][7])
}
