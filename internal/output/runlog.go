package output

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ginjaninja78/iap-orcat/internal/types"
	"github.com/ginjaninja78/iap-orcat/internal/validation"
	"github.com/ginjaninja78/iap-orcat/pkg/utils"
)

// =============================================================================
// RUN LOG
// =============================================================================

// RunLog is the content of run_log.txt.
type RunLog struct {
	RunID   string
	Started time.Time

	TransactionsFile string
	ReportFile       string
	MappingFile      string

	RatePolicy string
	Strict     bool
	Tolerance  decimal.Decimal

	Totals     types.RunTotals
	Reconciled bool

	Transactions int
	Currencies   int
	Projects     int

	Issues validation.Issues
}

// printer groups thousands in the headline figures ("2,000.00").
var printer = message.NewPrinter(language.English)

// WriteRunLog writes the run log.
func (w *Writer) WriteRunLog(log *RunLog) (err error) {
	name := w.cfg.RunLogFile
	file, err := os.Create(w.fm.StagingPath(name))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer utils.CloseFile(file, &err)

	buf := bufio.NewWriter(file)
	if _, err := buf.WriteString(FormatRunLog(log, w.cfg.Precision)); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", name, err)
	}

	w.staged = append(w.staged, name)
	return nil
}

// FormatRunLog renders a run log. The headline figures are rounded to cents
// with thousands grouping; the exact figures follow at the given precision.
func FormatRunLog(log *RunLog, precision int32) string {
	t := log.Totals
	status := "OK"
	if !log.Reconciled {
		status = "MISMATCH"
	}
	strict := "no"
	if log.Strict {
		strict = "yes"
	}

	s := "=== IAP ORCAT PIPELINE LOG ===\n"
	s += fmt.Sprintf("Run ID: %s\n", log.RunID)
	s += fmt.Sprintf("Started: %s\n", log.Started.Format("2006-01-02 15:04:05"))
	s += fmt.Sprintf("Transactions file: %s\n", log.TransactionsFile)
	s += fmt.Sprintf("Report file: %s\n", log.ReportFile)
	s += fmt.Sprintf("Mapping file: %s\n", log.MappingFile)
	s += fmt.Sprintf("Rate policy: %s\n", log.RatePolicy)
	s += printer.Sprintf("Transactions: %d, currencies: %d, projects: %d\n", log.Transactions, log.Currencies, log.Projects)
	s += "\n"
	s += fmt.Sprintf("Report Total USD (sum of report USD revenue): %s\n", grouped(t.ReportTotalUSD))
	s += fmt.Sprintf("Adj+Withholding Total USD: %s\n", grouped(t.TotalAdjUSD))
	s += fmt.Sprintf("TX Total USD (before allocation): %s\n", grouped(t.TxGrossTotalUSD))
	s += fmt.Sprintf("TX Net USD (after allocation): %s\n", grouped(t.TxNetTotalUSD))
	s += fmt.Sprintf("Reconciliation delta USD: %s (tolerance %s, strict: %s) %s\n",
		grouped(t.ReconciliationDelta), log.Tolerance.String(), strict, status)
	s += "\n"
	s += "Exact figures:\n"
	s += fmt.Sprintf("  report_total_usd     = %s\n", t.ReportTotalUSD.StringFixed(precision))
	s += fmt.Sprintf("  total_adj_usd        = %s\n", t.TotalAdjUSD.StringFixed(precision))
	s += fmt.Sprintf("  tx_gross_total_usd   = %s\n", t.TxGrossTotalUSD.StringFixed(precision))
	s += fmt.Sprintf("  tx_net_total_usd     = %s\n", t.TxNetTotalUSD.StringFixed(precision))
	s += fmt.Sprintf("  reconciliation_delta = %s\n", t.ReconciliationDelta.StringFixed(precision))
	s += "\n"
	s += validation.FormatIssues(log.Issues)

	return s
}

// grouped formats an amount to cents with thousands separators.
func grouped(d decimal.Decimal) string {
	return printer.Sprintf("%.2f", d.Round(2).InexactFloat64())
}
