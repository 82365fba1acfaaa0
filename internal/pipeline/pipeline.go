// =============================================================================
// IAP ORCAT Pipeline - Orchestration
// =============================================================================
//
// This module runs one reconciliation from three input files to a committed
// output set. Stages run strictly in sequence and any stage error aborts the
// run:
//
//   1. Load and normalize the report, transactions and mapping
//   2. Derive rates from the report
//   3. Currency gate, conversion to USD and pro-rata allocation
//   4. Project aggregation
//   5. Reconciliation check
//   6. Write the output set to staging and commit it
//
// RUN CONTEXT:
//   Every stage receives the same immutable RunContext (configuration, input
//   paths, logger, run ID). Stages return values instead of sharing state.
//
// =============================================================================

package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/ginjaninja78/iap-orcat/internal/allocation"
	"github.com/ginjaninja78/iap-orcat/internal/config"
	"github.com/ginjaninja78/iap-orcat/internal/mapping"
	"github.com/ginjaninja78/iap-orcat/internal/output"
	"github.com/ginjaninja78/iap-orcat/internal/projects"
	"github.com/ginjaninja78/iap-orcat/internal/rates"
	"github.com/ginjaninja78/iap-orcat/internal/reconcile"
	"github.com/ginjaninja78/iap-orcat/internal/report"
	"github.com/ginjaninja78/iap-orcat/internal/transactions"
	"github.com/ginjaninja78/iap-orcat/internal/types"
	"github.com/ginjaninja78/iap-orcat/internal/validation"
)

// =============================================================================
// RUN CONTEXT
// =============================================================================

// Inputs are the three files of one run.
type Inputs struct {
	Transactions string
	Report       string
	Mapping      string
}

// RunContext is the immutable state threaded through every stage.
type RunContext struct {
	ID      string
	Started time.Time
	Inputs  Inputs
	Config  *config.Config
	Logger  zerolog.Logger
}

// NewRunContext creates a run context with a fresh run ID. The logger is
// tagged with the run ID.
func NewRunContext(cfg *config.Config, inputs Inputs, logger zerolog.Logger) RunContext {
	id := uuid.New().String()
	return RunContext{
		ID:      id,
		Started: time.Now(),
		Inputs:  inputs,
		Config:  cfg,
		Logger:  logger.With().Str("run_id", id).Logger(),
	}
}

// =============================================================================
// RESULT STRUCTURES
// =============================================================================

// Prepared holds the normalized inputs and the derived rate table.
type Prepared struct {
	Report       *report.Result
	Transactions *transactions.Result
	Mapping      *mapping.Result
	Rates        *rates.Table
}

// Issues returns the non-fatal findings of every preparation stage.
func (p *Prepared) Issues() validation.Issues {
	var issues validation.Issues
	issues = append(issues, p.Report.Issues...)
	issues = append(issues, p.Transactions.Issues...)
	issues = append(issues, p.Mapping.Issues...)
	issues = append(issues, p.Rates.Issues...)
	return issues
}

// Outcome is the computed result of a run.
type Outcome struct {
	RunID string

	Rates        *rates.Table
	TxHeaders    []string
	Transactions []types.EnrichedTransaction
	Summary      []types.ProjectSummary

	Totals         types.RunTotals
	Reconciliation *reconcile.Outcome

	// Issues are every non-fatal finding, in stage order.
	Issues validation.Issues

	// Files are the committed output paths.
	Files []string

	// ErrorFile is the error file written by a failed run.
	ErrorFile string
}

// =============================================================================
// STAGES
// =============================================================================

// DeriveRates loads the report and derives the rate table.
func DeriveRates(rc RunContext) (*report.Result, *rates.Table, error) {
	rep, err := report.Load(rc.Inputs.Report, rc.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("report: %w", err)
	}
	rc.Logger.Info().
		Str("file", rc.Inputs.Report).
		Int("rows", len(rep.Rows)).
		Int("skipped", rep.SkippedRows).
		Bool("reported_rate_column", rep.HasReportedRate).
		Msg("report loaded")

	table, err := rates.Derive(rep.Rows, rates.OptionsFromConfig(rc.Config))
	if err != nil {
		return nil, nil, fmt.Errorf("rates: %w", err)
	}
	rc.Logger.Info().
		Str("policy", table.Policy).
		Int("currencies", len(table.Rates)).
		Int("dropped", len(table.Dropped)).
		Str("total_adj_usd", table.TotalAdjUSD.StringFixed(2)).
		Str("report_total_usd", table.ReportTotalUSD.StringFixed(2)).
		Msg("rates derived")

	for _, r := range table.Rates {
		rc.Logger.Debug().
			Str("currency", r.Currency).
			Str("rate", r.Rate.String()).
			Str("source", string(r.Source)).
			Str("adj_tax_usd", r.AdjTaxUSD.StringFixed(6)).
			Msg("rate")
	}

	return rep, table, nil
}

// Prepare loads every input, derives rates and runs the currency gate.
// It writes nothing.
func Prepare(rc RunContext) (*Prepared, error) {
	// =========================================================================
	// STEP 1: REPORT AND RATES
	// =========================================================================

	rep, table, err := DeriveRates(rc)
	if err != nil {
		return nil, err
	}

	// =========================================================================
	// STEP 2: TRANSACTIONS
	// =========================================================================

	txs, err := transactions.Load(rc.Inputs.Transactions, rc.Config)
	if err != nil {
		return nil, fmt.Errorf("transactions: %w", err)
	}
	rc.Logger.Info().
		Str("file", rc.Inputs.Transactions).
		Int("rows", len(txs.Rows)).
		Msg("transactions loaded")

	// =========================================================================
	// STEP 3: MAPPING
	// =========================================================================

	skus, err := mapping.Load(rc.Inputs.Mapping, rc.Config)
	if err != nil {
		return nil, fmt.Errorf("mapping: %w", err)
	}
	rc.Logger.Info().
		Str("file", rc.Inputs.Mapping).
		Int("skus", len(skus.Map)).
		Int("duplicates", skus.Duplicates).
		Msg("mapping loaded")

	// =========================================================================
	// STEP 4: CURRENCY GATE
	// =========================================================================

	if err := allocation.CheckCurrencies(txs.Rows, table); err != nil {
		return nil, fmt.Errorf("conversion: %w", err)
	}

	return &Prepared{
		Report:       rep,
		Transactions: txs,
		Mapping:      skus,
		Rates:        table,
	}, nil
}

// Validate loads every input independently and runs the currency gate when
// all of them load. Unlike Prepare it does not stop at the first problem:
// every input error is returned, combined.
func Validate(rc RunContext) (*Prepared, error) {
	var result *multierror.Error
	p := &Prepared{}

	rep, table, err := DeriveRates(rc)
	if err != nil {
		result = multierror.Append(result, err)
	}
	p.Report, p.Rates = rep, table

	if p.Transactions, err = transactions.Load(rc.Inputs.Transactions, rc.Config); err != nil {
		result = multierror.Append(result, fmt.Errorf("transactions: %w", err))
	}
	if p.Mapping, err = mapping.Load(rc.Inputs.Mapping, rc.Config); err != nil {
		result = multierror.Append(result, fmt.Errorf("mapping: %w", err))
	}

	if result.ErrorOrNil() != nil {
		return nil, result.ErrorOrNil()
	}

	if err := allocation.CheckCurrencies(p.Transactions.Rows, p.Rates); err != nil {
		return nil, fmt.Errorf("conversion: %w", err)
	}
	return p, nil
}

// Compute converts, allocates, aggregates and reconciles prepared inputs.
// On a reconciliation failure in strict mode the outcome is returned along
// with the error so callers can still report the figures.
func Compute(rc RunContext, p *Prepared) (*Outcome, error) {
	out := &Outcome{
		RunID:     rc.ID,
		Rates:     p.Rates,
		TxHeaders: p.Transactions.Headers,
		Issues:    p.Issues(),
	}

	// =========================================================================
	// STEP 5: CONVERSION AND ALLOCATION
	// =========================================================================

	alloc, err := allocation.Convert(p.Transactions.Rows, p.Rates, p.Rates.TotalAdjUSD)
	if err != nil {
		return nil, fmt.Errorf("allocation: %w", err)
	}
	out.Transactions = alloc.Transactions
	rc.Logger.Info().
		Int("transactions", len(alloc.Transactions)).
		Int("defined", alloc.DefinedRows).
		Str("gross_usd", alloc.GrossTotal.StringFixed(2)).
		Str("allocated_usd", alloc.AllocationTotal.StringFixed(2)).
		Str("net_usd", alloc.NetTotal.StringFixed(2)).
		Msg("transactions converted and allocated")

	// =========================================================================
	// STEP 6: PROJECT AGGREGATION
	// =========================================================================

	agg := projects.Aggregate(out.Transactions, p.Mapping.Map, projects.Labels{
		Unmapped: rc.Config.Output.UnmappedLabel,
		Total:    rc.Config.Output.TotalLabel,
	})
	out.Summary = agg.Summary
	out.Issues = append(out.Issues, agg.Issues...)
	rc.Logger.Info().
		Int("projects", len(agg.Summary)-1).
		Int("unmapped_skus", len(agg.UnmappedSKUs)).
		Msg("projects aggregated")

	// =========================================================================
	// STEP 7: RECONCILIATION
	// =========================================================================

	recon, err := reconcile.Check(alloc.NetTotal, p.Rates.ReportTotalUSD, reconcile.Options{
		Strict:    rc.Config.Reconciliation.Strict,
		Tolerance: rc.Config.ToleranceDecimal(),
	})
	out.Reconciliation = recon
	out.Issues = append(out.Issues, recon.Issues...)
	out.Totals = types.RunTotals{
		ReportTotalUSD:      p.Rates.ReportTotalUSD,
		TotalAdjUSD:         p.Rates.TotalAdjUSD,
		TxGrossTotalUSD:     alloc.GrossTotal,
		TxNetTotalUSD:       alloc.NetTotal,
		ReconciliationDelta: recon.Delta,
	}
	rc.Logger.Info().
		Str("net_usd", recon.NetTotal.StringFixed(2)).
		Str("report_usd", recon.ReportTotal.StringFixed(2)).
		Str("delta_usd", recon.Delta.StringFixed(2)).
		Bool("passed", recon.Passed).
		Msg("reconciliation checked")

	if err != nil {
		return out, fmt.Errorf("reconciliation: %w", err)
	}
	return out, nil
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the whole pipeline and commits the output set.
//
// RETURNS:
//   - The outcome. On failure it carries ErrorFile and, when the failure came
//     after computation, the computed figures.
//   - The first fatal error. Output files of earlier runs are left untouched.
func Run(rc RunContext) (*Outcome, error) {
	writer := output.NewWriter(rc.Config.Output, rc.ID)

	out, err := run(rc, writer)
	if err == nil {
		return out, nil
	}

	if out == nil {
		out = &Outcome{RunID: rc.ID}
	}

	errFile, abortErr := writer.Abort(err)
	out.ErrorFile = errFile
	if abortErr != nil {
		rc.Logger.Error().Err(abortErr).Msg("cleanup after failed run was incomplete")
	}
	rc.Logger.Error().Err(err).Str("kind", validation.Kind(err)).Str("error_file", errFile).Msg("run failed")

	return out, err
}

func run(rc RunContext, writer *output.Writer) (*Outcome, error) {
	rc.Logger.Info().
		Str("policy", rc.Config.Rates.Policy).
		Bool("strict", rc.Config.Reconciliation.Strict).
		Str("output_dir", rc.Config.Output.Dir).
		Msg("run started")

	prepared, err := Prepare(rc)
	if err != nil {
		return nil, err
	}

	out, err := Compute(rc, prepared)
	if err != nil {
		return out, err
	}

	for _, issue := range out.Issues {
		logIssue(rc.Logger, issue)
	}

	// =========================================================================
	// STEP 8: WRITE OUTPUTS
	// =========================================================================

	if err := write(rc, writer, out); err != nil {
		return out, fmt.Errorf("output: %w", err)
	}

	files, err := writer.Commit()
	if err != nil {
		return out, fmt.Errorf("output: %w", err)
	}
	out.Files = files

	rc.Logger.Info().
		Strs("files", files).
		Int("warnings", out.Issues.Warnings()).
		Dur("elapsed", time.Since(rc.Started)).
		Msg("run complete")

	return out, nil
}

func write(rc RunContext, writer *output.Writer, out *Outcome) error {
	if err := writer.Begin(); err != nil {
		return err
	}
	if err := writer.WriteRates(out.Rates.Rates, out.Rates.Dropped); err != nil {
		return err
	}
	if err := writer.WriteTransactions(out.TxHeaders, out.Transactions); err != nil {
		return err
	}
	if err := writer.WriteSummary(out.Summary); err != nil {
		return err
	}
	if rc.Config.Output.Workbook {
		if err := writer.WriteWorkbook(out.Summary, out.Rates.Rates, out.TxHeaders, out.Transactions); err != nil {
			return err
		}
	}

	return writer.WriteRunLog(&output.RunLog{
		RunID:            rc.ID,
		Started:          rc.Started,
		TransactionsFile: rc.Inputs.Transactions,
		ReportFile:       rc.Inputs.Report,
		MappingFile:      rc.Inputs.Mapping,
		RatePolicy:       out.Rates.Policy,
		Strict:           rc.Config.Reconciliation.Strict,
		Tolerance:        rc.Config.ToleranceDecimal(),
		Totals:           out.Totals,
		Reconciled:       out.Reconciliation.Passed,
		Transactions:     len(out.Transactions),
		Currencies:       len(out.Rates.Rates),
		Projects:         len(out.Summary) - 1,
		Issues:           out.Issues,
	})
}

// logIssue logs a non-fatal finding at the level matching its severity.
func logIssue(logger zerolog.Logger, issue validation.Issue) {
	event := logger.Info()
	if issue.Severity == validation.SeverityWarning {
		event = logger.Warn()
	}
	if issue.RowNumber > 0 {
		event = event.Int("row", issue.RowNumber)
	}
	event.Str("stage", issue.Stage).Msg(issue.Message)
}
