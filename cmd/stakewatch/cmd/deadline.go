package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/stakewatch/refdata"
	"github.com/rustyeddy/stakewatch/rules"
)

var deadlineCmd = &cobra.Command{
	Use:   "deadline",
	Short: "Compute a filing deadline in business days",
	Long: `Count business days forward from a date, skipping weekends and the
jurisdiction's holidays. Without --days the rule's own deadline is used.

Example:
  stakewatch deadline --date 2025-05-26 --jurisdiction DE --days 5`,
	RunE: runDeadline,
}

var (
	dlDate         string
	dlDays         int
	dlJurisdiction string
	dlRefData      string
)

func init() {
	rootCmd.AddCommand(deadlineCmd)
	deadlineCmd.Flags().StringVar(&dlDate, "date", "", "start date YYYY-MM-DD (default today)")
	deadlineCmd.Flags().IntVar(&dlDays, "days", -1, "business days to add")
	deadlineCmd.Flags().StringVarP(&dlJurisdiction, "jurisdiction", "j", "", "jurisdiction code (required)")
	deadlineCmd.Flags().StringVar(&dlRefData, "refdata", "", "reference data with extra rules or holidays")
	deadlineCmd.MarkFlagRequired("jurisdiction")
}

func runDeadline(cmd *cobra.Command, args []string) error {
	start := time.Now().UTC().Truncate(24 * time.Hour)
	if dlDate != "" {
		var err error
		if start, err = time.Parse("2006-01-02", dlDate); err != nil {
			return fmt.Errorf("bad --date: %w", err)
		}
	}

	table := rules.DefaultTable()
	if dlRefData != "" {
		data, err := refdata.Load(dlRefData)
		if err != nil {
			return err
		}
		table = data.Table(table)
	}

	days := dlDays
	r, ok := table.Rule(dlJurisdiction)
	if days < 0 {
		if !ok {
			return fmt.Errorf("no rule for %s, pass --days", dlJurisdiction)
		}
		days = r.Long.DeadlineDays
	}
	if days > rules.MaxDeadlineDays {
		return fmt.Errorf("--days must be at most %d", rules.MaxDeadlineDays)
	}

	d := table.BusinessDeadline(start, days, dlJurisdiction)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Start:     %s (%s)\n", start.Format("2006-01-02"), start.Weekday())
	fmt.Fprintf(out, "Days:      %d business days, %s\n", days, dlJurisdiction)
	if ok {
		fmt.Fprintf(out, "Rule:      %s, file %s\n", r.Code, r.Long.Form)
	}
	fmt.Fprintf(out, "Deadline:  %s (%s)\n", d.Date.Format("2006-01-02"), d.Date.Weekday())
	if d.AdjustedForHoliday {
		for _, h := range d.Holidays {
			fmt.Fprintf(out, "Skipped:   %s holiday\n", h.Format("2006-01-02"))
		}
	}
	return nil
}
