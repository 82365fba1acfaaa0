// =============================================================================
// IAP ORCAT Pipeline - Reconciliation Check
// =============================================================================
//
// This module compares the sum of transaction net USD against the report's
// independently stated USD revenue total:
//
//   delta = net_total - report_total
//   pass  = |delta| <= tolerance
//
// In strict mode a failing check is a ReconciliationError. Otherwise it is a
// warning carrying the same diagnostic and the run continues.
//
// =============================================================================

package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/iap-orcat/internal/validation"
)

const stage = "reconcile"

// Options is the reconciliation contract.
type Options struct {
	Strict    bool
	Tolerance decimal.Decimal
}

// Outcome is the result of a reconciliation check.
type Outcome struct {
	NetTotal    decimal.Decimal
	ReportTotal decimal.Decimal

	// Delta is NetTotal - ReportTotal.
	Delta decimal.Decimal

	Tolerance decimal.Decimal

	// Passed is true when |Delta| <= Tolerance.
	Passed bool

	Issues validation.Issues
}

// Check runs the reconciliation check.
//
// PARAMETERS:
//   - netTotal: Sum of every defined transaction net USD.
//   - reportTotal: Sum of every defined report USD revenue.
//   - opts: Strict mode and absolute tolerance.
//
// RETURNS:
//   - The outcome, also on failure, so callers can log the figures.
//   - A ReconciliationError when strict and outside tolerance.
func Check(netTotal, reportTotal decimal.Decimal, opts Options) (*Outcome, error) {
	delta := netTotal.Sub(reportTotal)
	out := &Outcome{
		NetTotal:    netTotal,
		ReportTotal: reportTotal,
		Delta:       delta,
		Tolerance:   opts.Tolerance,
		Passed:      delta.Abs().LessThanOrEqual(opts.Tolerance),
	}

	if out.Passed {
		return out, nil
	}

	err := &validation.ReconciliationError{
		NetTotal:    netTotal,
		ReportTotal: reportTotal,
		Delta:       delta,
		Tolerance:   opts.Tolerance,
	}
	if opts.Strict {
		return out, err
	}

	out.Issues.Warn(stage, "%s", err.Error())
	return out, nil
}
