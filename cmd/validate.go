// =============================================================================
// IAP ORCAT - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which checks a set of inputs
// without writing anything.
//
// COMMAND USAGE:
//   orcat validate --tx F --report F --mapping F
//
// CHECKS:
//   1. Every input loads and has its required columns
//   2. Rates can be derived from the report
//   3. Every transaction currency has a rate
//
// Input problems are reported together rather than one at a time.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/iap-orcat/internal/pipeline"
	"github.com/ginjaninja78/iap-orcat/internal/validation"
)

var validateInputs inputFlags

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the inputs of a run without writing any output",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		rc := pipeline.NewRunContext(cfg, validateInputs.inputs(), log.Logger)
		prepared, err := pipeline.Validate(rc)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Report rows:        %d\n", len(prepared.Report.Rows))
		fmt.Fprintf(w, "Currencies:         %d (%d dropped)\n", len(prepared.Rates.Rates), len(prepared.Rates.Dropped))
		fmt.Fprintf(w, "Transactions:       %d\n", len(prepared.Transactions.Rows))
		fmt.Fprintf(w, "Mapped SKUs:        %d\n", len(prepared.Mapping.Map))
		fmt.Fprintln(w)
		fmt.Fprint(w, validation.FormatIssues(prepared.Issues()))
		fmt.Fprintln(w, "\nInputs are valid.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateInputs.register(validateCmd)
	validateCmd.Flags().String("rate-policy", "", "Rate policy: auto, ratio or reported")
	validateCmd.Flags().String("encoding", "", "Input encoding: auto, utf-8, latin1 or windows-1252")
}
