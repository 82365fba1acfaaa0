// =============================================================================
// IAP ORCAT - Rates Command
// =============================================================================
//
// This file defines the 'rates' command, which derives and prints the
// per-currency rate table from a financial report. Nothing is written.
//
// COMMAND USAGE:
//   orcat rates --report F [--rate-policy auto|ratio|reported]
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/iap-orcat/internal/pipeline"
	"github.com/ginjaninja78/iap-orcat/internal/rates"
	"github.com/ginjaninja78/iap-orcat/internal/validation"
)

var ratesReport string

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Derive and print the exchange rate table of a financial report",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		rc := pipeline.NewRunContext(cfg, pipeline.Inputs{Report: ratesReport}, log.Logger)
		rep, table, err := pipeline.DeriveRates(rc)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		printRates(w, table)

		issues := append(validation.Issues{}, rep.Issues...)
		issues = append(issues, table.Issues...)
		fmt.Fprintln(w)
		fmt.Fprint(w, validation.FormatIssues(issues))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ratesCmd)

	ratesCmd.Flags().StringVar(&ratesReport, "report", "", "Financial report (CSV or XLSX)")
	_ = ratesCmd.MarkFlagRequired("report")
	ratesCmd.Flags().String("rate-policy", "", "Rate policy: auto, ratio or reported")
	ratesCmd.Flags().String("encoding", "", "Input encoding: auto, utf-8, latin1 or windows-1252")
}

// printRates prints one aligned row per derived currency, then the dropped
// currencies and the report-level totals.
func printRates(w io.Writer, table *rates.Table) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CURRENCY\tUSD PER UNIT\tSOURCE\tROWS\tADJ+TAX USD")
	for _, r := range table.Rates {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			r.Currency, r.Rate.StringFixed(10), r.Source, r.Rows, r.AdjTaxUSD.StringFixed(2))
	}
	for _, d := range table.Dropped {
		fmt.Fprintf(tw, "%s\t-\tdropped\t-\t%s %s unconverted\n", d.Currency, d.LocalAdjTax.String(), d.Currency)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nPolicy:                    %s\n", table.Policy)
	fmt.Fprintf(w, "Report total USD:          %s\n", table.ReportTotalUSD.StringFixed(2))
	fmt.Fprintf(w, "Adj+withholding total USD: %s\n", table.TotalAdjUSD.StringFixed(2))
}
