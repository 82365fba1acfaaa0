// =============================================================================
// IAP ORCAT Pipeline - Output Writer
// =============================================================================
//
// This module writes the output file set of a run:
//
//   rates.csv                         per-currency rate table
//   transactions_usd_net_project.csv  source columns + USD gross, allocation,
//                                     net and project
//   project_summary.csv               per-project sums, unmapped, grand total
//   run_log.txt                       run-level scalars and issues
//   orcat_summary.xlsx                the three tables as sheets (optional)
//
// ATOMICITY:
//   Files are written into a per-run staging directory and promoted into the
//   output directory by Commit. Abort discards the staging directory and
//   writes run_error.txt, so a failed run never leaves a half-written set or
//   makes an earlier run's files look current.
//
// FORMAT:
//   CSVs are UTF-8 with a byte order mark. Amounts are fixed to the configured
//   precision. Undefined amounts are empty cells.
//
// =============================================================================

package output

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/iap-orcat/internal/config"
	"github.com/ginjaninja78/iap-orcat/internal/types"
	"github.com/ginjaninja78/iap-orcat/internal/validation"
	"github.com/ginjaninja78/iap-orcat/pkg/utils"
)

// utf8BOM lets spreadsheet tools detect UTF-8 (project names are often CJK).
const utf8BOM = "\ufeff"

// Column names appended to the transaction export.
const (
	ColUSDGross       = "Extended Partner Share USD"
	ColCostAllocation = "Cost Allocation (USD)"
	ColNetUSD         = "Net Partner Share (USD)"
	ColProject        = "Project"
)

// =============================================================================
// WRITER
// =============================================================================

// Writer stages and commits the output files of one run.
type Writer struct {
	cfg    config.OutputConfig
	runID  string
	fm     *utils.FileManager
	staged []string
}

// NewWriter creates a Writer for one run. Nothing is written until Begin.
func NewWriter(cfg config.OutputConfig, runID string) *Writer {
	return &Writer{
		cfg:   cfg,
		runID: runID,
		fm:    utils.NewFileManager(cfg.Dir, runID),
	}
}

// StagingDir returns the directory files are staged in.
func (w *Writer) StagingDir() string {
	return w.fm.StagingDir
}

// Begin creates the output and staging directories.
func (w *Writer) Begin() error {
	return w.fm.EnsureDirectories()
}

// Commit promotes every staged file into the output directory. Output files
// of an earlier run that this run did not write (the workbook of an --xlsx
// run, say) are removed with the stale error file, so the directory only ever
// holds one run's set.
//
// RETURNS:
//   - The final paths of the written files.
//   - Every failure, combined.
func (w *Writer) Commit() ([]string, error) {
	paths, err := w.fm.Promote(w.staged)

	var result *multierror.Error
	if err != nil {
		result = multierror.Append(result, err)
	}

	written := make(map[string]bool, len(w.staged))
	for _, name := range w.staged {
		written[name] = true
	}
	for _, name := range append(w.outputNames(), w.cfg.ErrorFile) {
		if written[name] {
			continue
		}
		if err := utils.RemoveIfExists(w.fm.OutputPath(name)); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to remove stale %s: %w", name, err))
		}
	}

	return paths, result.ErrorOrNil()
}

// outputNames lists every file a run can produce.
func (w *Writer) outputNames() []string {
	return []string{
		w.cfg.RatesFile,
		w.cfg.TransactionsFile,
		w.cfg.SummaryFile,
		w.cfg.RunLogFile,
		w.cfg.WorkbookFile,
	}
}

// Abort discards staged files and records cause in the error file.
//
// RETURNS:
//   - The error file path.
//   - Every cleanup failure, combined.
func (w *Writer) Abort(cause error) (string, error) {
	var result *multierror.Error

	if err := w.fm.Discard(); err != nil {
		result = multierror.Append(result, err)
	}

	path := w.fm.OutputPath(w.cfg.ErrorFile)
	if err := os.MkdirAll(w.fm.OutputDir, 0o755); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to create output directory: %w", err))
		return "", result.ErrorOrNil()
	}

	err := utils.WriteErrorLog(utils.ErrorLogEntry{
		Timestamp: time.Now(),
		RunID:     w.runID,
		ErrorType: validation.Kind(cause),
		Message:   cause.Error(),
	}, path)
	if err != nil {
		result = multierror.Append(result, err)
		path = ""
	}

	return path, result.ErrorOrNil()
}

// =============================================================================
// CSV FILES
// =============================================================================

// WriteRates writes the per-currency rate table. Dropped currencies follow
// the derived ones with an empty rate and the reason in the note column.
func (w *Writer) WriteRates(rates []types.CurrencyRate, dropped []types.DroppedCurrency) error {
	records := [][]string{{"Currency", "Rate (USD per unit)", "Source", "Report Rows", "AdjTax USD", "Note"}}

	for _, r := range rates {
		records = append(records, []string{
			r.Currency,
			r.Rate.StringFixed(rateDigits(w.cfg.Precision)),
			string(r.Source),
			strconv.Itoa(r.Rows),
			w.amount(r.AdjTaxUSD),
			"",
		})
	}
	for _, d := range dropped {
		records = append(records, []string{
			d.Currency, "", "dropped", "", "",
			fmt.Sprintf("%s; unconverted adjustment/withholding %s %s", d.Reason, d.LocalAdjTax.String(), d.Currency),
		})
	}

	return w.writeCSV(w.cfg.RatesFile, records)
}

// WriteTransactions writes every transaction in input order with the source
// columns followed by the USD columns and the project.
func (w *Writer) WriteTransactions(headers []string, txs []types.EnrichedTransaction) error {
	header := make([]string, 0, len(headers)+4)
	header = append(header, headers...)
	header = append(header, ColUSDGross, ColCostAllocation, ColNetUSD, ColProject)

	records := make([][]string, 0, len(txs)+1)
	records = append(records, header)

	for _, tx := range txs {
		record := make([]string, len(headers), len(header))
		copy(record, tx.Fields)

		project := tx.Project
		if !tx.Mapped {
			project = w.cfg.UnmappedLabel
		}

		record = append(record,
			w.nullAmount(tx.USDGross),
			w.nullAmount(tx.CostAllocation),
			w.nullAmount(tx.NetUSD),
			project,
		)
		records = append(records, record)
	}

	return w.writeCSV(w.cfg.TransactionsFile, records)
}

// WriteSummary writes the per-project summary, grand total last.
func (w *Writer) WriteSummary(summary []types.ProjectSummary) error {
	records := [][]string{{"Project", "Transactions", "Undefined Rows", ColUSDGross, ColCostAllocation, ColNetUSD}}

	for _, s := range summary {
		records = append(records, []string{
			s.Project,
			strconv.Itoa(s.Transactions),
			strconv.Itoa(s.UndefinedRows),
			w.amount(s.USDGross),
			w.amount(s.CostAllocation),
			w.amount(s.NetUSD),
		})
	}

	return w.writeCSV(w.cfg.SummaryFile, records)
}

func (w *Writer) writeCSV(name string, records [][]string) (err error) {
	path := w.fm.StagingPath(name)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer utils.CloseFile(file, &err)

	buf := bufio.NewWriter(file)
	if _, err := buf.WriteString(utf8BOM); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	writer := csv.NewWriter(buf)
	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", name, err)
	}

	w.staged = append(w.staged, name)
	return nil
}

// =============================================================================
// FORMATTING
// =============================================================================

func (w *Writer) amount(d decimal.Decimal) string {
	return d.StringFixed(w.cfg.Precision)
}

func (w *Writer) nullAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(w.cfg.Precision)
}

// rateDigits keeps small rates (JPY, KRW, ...) readable: rates are written
// with at least 10 decimal places.
func rateDigits(precision int32) int32 {
	if precision < 10 {
		return 10
	}
	return precision
}
