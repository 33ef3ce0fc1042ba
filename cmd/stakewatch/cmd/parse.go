package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/stakewatch/feed"
	"github.com/rustyeddy/stakewatch/fix"
	"github.com/rustyeddy/stakewatch/market"
	"github.com/rustyeddy/stakewatch/pkg/logger"
)

var parseCmd = &cobra.Command{
	Use:   "parse [message...]",
	Short: "Decode FIX execution reports",
	Long: `Parse decodes FIX messages given as arguments or read from a file and
prints the resulting execution events with any checksum or body length
warnings. Use '|' in place of SOH on the command line.

Example:
  stakewatch parse '8=FIX.4.4|9=..|35=8|55=ACME|54=1|32=100|150=F|10=123|'
  stakewatch parse -f session.fix`,
	RunE: runParse,
}

var (
	parseFile        string
	parseBeginString string
)

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringVarP(&parseFile, "file", "f", "", "file of FIX messages")
	parseCmd.Flags().StringVar(&parseBeginString, "begin-string", fix.DefaultBeginString, "expected BeginString(8)")
}

type parseOutput struct {
	Status             string                 `json:"status"`
	Reason             string                 `json:"reason,omitempty"`
	Error              string                 `json:"error,omitempty"`
	ChecksumMismatch   bool                   `json:"checksum_mismatch,omitempty"`
	ExpectedChecksum   string                 `json:"expected_checksum,omitempty"`
	BodyLengthMismatch bool                   `json:"body_length_mismatch,omitempty"`
	Event              *market.ExecutionEvent `json:"event,omitempty"`
}

func runParse(cmd *cobra.Command, args []string) error {
	if parseFile == "" && len(args) == 0 {
		return fmt.Errorf("give messages as arguments or use --file")
	}

	p := fix.NewParser(fix.WithBeginString(parseBeginString))
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	sink := feed.SinkFunc(func(raw []byte) error {
		return enc.Encode(decode(p, raw))
	})

	for _, a := range args {
		if err := sink.Ingest([]byte(a)); err != nil {
			return err
		}
	}
	if parseFile != "" {
		f, err := os.Open(parseFile)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := feed.Stream(f, sink, logger.New(logger.Config{Level: "warn"})); err != nil {
			return err
		}
	}
	return nil
}

func decode(p *fix.Parser, raw []byte) parseOutput {
	res, err := p.Parse(raw)
	if err != nil {
		return parseOutput{Status: "error", Error: err.Error()}
	}
	out := parseOutput{
		Status:             res.Status.String(),
		Reason:             res.Reason,
		ChecksumMismatch:   res.ChecksumMismatch,
		BodyLengthMismatch: res.BodyLengthMismatch,
	}
	if res.ChecksumMismatch {
		out.ExpectedChecksum = res.ExpectedChecksum
	}
	if res.Status == fix.StatusOK {
		ev := res.Event
		out.Event = &ev
	}
	return out
}
