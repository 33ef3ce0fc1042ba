package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/stakewatch/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the audit journal",
	Long: `Query transitions and alert workflow recorded in the SQLite journal.

Subcommands:
  transition - Show one transition by ID
  history    - List a security's transitions
  workflow   - List a security's alert actions

Examples:
  stakewatch journal transition 01HV...
  stakewatch journal history ACME --since 2026-03-01
  stakewatch journal workflow ACME`,
}

var journalTransitionCmd = &cobra.Command{
	Use:   "transition <id>",
	Short: "Show one transition",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTransition,
}

var journalHistoryCmd = &cobra.Command{
	Use:   "history <security>",
	Short: "List transitions for a security",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalHistory,
}

var journalWorkflowCmd = &cobra.Command{
	Use:   "workflow <security>",
	Short: "List alert actions for a security",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalWorkflow,
}

var (
	journalDB    string
	journalSince string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTransitionCmd, journalHistoryCmd, journalWorkflowCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDB, "db", "d", "./stakewatch.db", "path to SQLite journal")
	journalHistoryCmd.Flags().StringVar(&journalSince, "since", "", "start date YYYY-MM-DD (default 30 days ago)")
}

func openJournal() (*journal.SQLite, error) {
	if _, err := os.Stat(journalDB); err != nil {
		return nil, fmt.Errorf("journal %s: %w", journalDB, err)
	}
	return journal.NewSQLite(journalDB)
}

func runJournalTransition(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	t, err := j.GetTransition(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %s\n", t.ID)
	fmt.Fprintf(out, "Security:    %s (%s)\n", t.SecurityID, t.Jurisdiction)
	fmt.Fprintf(out, "Type:        %s (%s -> %s)\n", t.Type, t.From, t.To)
	fmt.Fprintf(out, "Ownership:   %.4f%% of %.2f%% threshold\n", t.OwnershipPercent, t.ThresholdPercent)
	fmt.Fprintf(out, "Velocity:    %.0f shares/h\n", t.BuyingVelocity)
	if t.ProjectedBreachHours != nil {
		fmt.Fprintf(out, "ETA:         %.1f h\n", *t.ProjectedBreachHours)
	}
	fmt.Fprintf(out, "Time:        %s\n", t.Timestamp.Format(time.RFC3339))
	return nil
}

func runJournalHistory(cmd *cobra.Command, args []string) error {
	end := time.Now().UTC().Add(time.Minute)
	start := end.AddDate(0, 0, -30)
	if journalSince != "" {
		var err error
		if start, err = time.Parse("2006-01-02", journalSince); err != nil {
			return fmt.Errorf("bad --since: %w", err)
		}
	}

	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	sec := strings.ToUpper(args[0])
	ts, err := j.ListTransitions(sec, start, end)
	if err != nil {
		return err
	}
	n, err := j.CountExecutions(sec)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s: %d transitions, %d executions journaled\n\n", sec, len(ts), n)
	fmt.Fprintln(w, "TIME\tTYPE\tFROM\tTO\tOWNED %\tID")
	for _, t := range ts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.4f\t%s\n",
			t.Timestamp.Format(time.RFC3339), t.Type, t.From, t.To, t.OwnershipPercent, t.ID)
	}
	return w.Flush()
}

func runJournalWorkflow(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	acts, err := j.ListWorkflow(strings.ToUpper(args[0]))
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tACTOR\tSTATE\tSEVERITY\tREVIEW\tJUSTIFICATION")
	for _, a := range acts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			a.Timestamp.Format(time.RFC3339), a.Action, a.Actor, a.To, a.Severity, a.SupervisorReviewRequired, a.Justification)
	}
	return w.Flush()
}
