// =============================================================================
// IAP ORCAT - Run Command
// =============================================================================
//
// This file defines the 'run' command, which executes the whole pipeline and
// writes the output set.
//
// COMMAND USAGE:
//   orcat run --tx F --report F --mapping F [flags]
//
// FLAGS:
//   --outdir       : Output directory (ORCAT_OUTPUT_DIR)
//   --strict       : Fail the run when reconciliation does not pass (ORCAT_STRICT)
//   --tolerance    : Reconciliation tolerance in USD (ORCAT_TOLERANCE)
//   --rate-policy  : auto, ratio or reported (ORCAT_RATE_POLICY)
//   --encoding     : auto, utf-8, latin1 or windows-1252 (ORCAT_ENCODING)
//   --xlsx         : Also write the summary workbook (ORCAT_XLSX)
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ginjaninja78/iap-orcat/internal/pipeline"
	"github.com/ginjaninja78/iap-orcat/internal/validation"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// inputFlags are the three input files shared by run and validate.
type inputFlags struct {
	tx      string
	report  string
	mapping string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tx, "tx", "", "Transaction export (CSV or XLSX)")
	cmd.Flags().StringVar(&f.report, "report", "", "Financial report (CSV or XLSX)")
	cmd.Flags().StringVar(&f.mapping, "mapping", "", "SKU to project mapping (CSV or XLSX)")
	for _, name := range []string{"tx", "report", "mapping"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

func (f *inputFlags) inputs() pipeline.Inputs {
	return pipeline.Inputs{
		Transactions: f.tx,
		Report:       f.report,
		Mapping:      f.mapping,
	}
}

var runInputs inputFlags

// =============================================================================
// RUN COMMAND DEFINITION
// =============================================================================

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Convert, allocate, aggregate and reconcile one period",
	Long: `The run command derives exchange rates from the financial report, converts
every transaction to USD, allocates adjustments and withholding tax pro-rata,
rolls the result up by project and reconciles it with the report total.

On success:
  - rates.csv, transactions_usd_net_project.csv, project_summary.csv and
    run_log.txt are written to the output directory (plus the workbook with --xlsx)
  - run_error.txt from an earlier failed run is removed

On error:
  - Nothing is written except run_error.txt
  - Files from an earlier successful run are left untouched
  - The command exits with a non-zero status`,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		rc := pipeline.NewRunContext(cfg, runInputs.inputs(), log.Logger)
		out, err := pipeline.Run(rc)
		printRun(cmd.OutOrStdout(), out, err, time.Since(rc.Started))
		return err
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(runCmd)

	runInputs.register(runCmd)
	registerOverrideFlags(runCmd)
	runCmd.Flags().Bool("xlsx", false, "Also write the summary workbook")
}

// registerOverrideFlags adds the run-level override flags. Their defaults
// are never applied; an unset flag leaves the configured value in place.
func registerOverrideFlags(cmd *cobra.Command) {
	cmd.Flags().String("outdir", "", "Output directory")
	cmd.Flags().Bool("strict", false, "Fail the run when reconciliation does not pass")
	cmd.Flags().Float64("tolerance", 0, "Reconciliation tolerance in USD")
	cmd.Flags().String("rate-policy", "", "Rate policy: auto, ratio or reported")
	cmd.Flags().String("encoding", "", "Input encoding: auto, utf-8, latin1 or windows-1252")
}

// =============================================================================
// SUMMARY OUTPUT
// =============================================================================

// printRun prints the outcome of a run in the same shape whether it passed
// or failed.
func printRun(w io.Writer, out *pipeline.Outcome, runErr error, elapsed time.Duration) {
	p := message.NewPrinter(language.English)

	fmt.Fprintln(w, "=== IAP ORCAT ===")

	if out != nil && out.Reconciliation != nil {
		status := "OK"
		if !out.Reconciliation.Passed {
			status = "MISMATCH"
		}
		p.Fprintf(w, "Report total USD:     %.2f\n", out.Totals.ReportTotalUSD.InexactFloat64())
		p.Fprintf(w, "Adj+withholding USD:  %.2f\n", out.Totals.TotalAdjUSD.InexactFloat64())
		p.Fprintf(w, "TX gross USD:         %.2f\n", out.Totals.TxGrossTotalUSD.InexactFloat64())
		p.Fprintf(w, "TX net USD:           %.2f\n", out.Totals.TxNetTotalUSD.InexactFloat64())
		p.Fprintf(w, "Delta USD:            %.2f %s\n", out.Totals.ReconciliationDelta.InexactFloat64(), status)
		fmt.Fprintf(w, "Transactions:         %d\n", len(out.Transactions))
		fmt.Fprintf(w, "Warnings:             %d\n", out.Issues.Warnings())
	}

	if out != nil {
		for _, file := range out.Files {
			fmt.Fprintf(w, "  ✓ %s\n", filepath.Base(file))
		}
	}

	if runErr != nil {
		fmt.Fprintf(w, "  ✗ %s: %v\n", validation.Kind(runErr), runErr)
		if out != nil && out.ErrorFile != "" {
			fmt.Fprintf(w, "Error logged to %s\n", out.ErrorFile)
		}
	}

	fmt.Fprintf(w, "Time elapsed:         %s\n", elapsed.Round(time.Millisecond))
}
