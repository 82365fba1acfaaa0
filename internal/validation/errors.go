// =============================================================================
// IAP ORCAT Pipeline - Error Taxonomy
// =============================================================================
//
// Every fatal condition the pipeline can hit is one of four typed errors.
// Each carries the offending data so the operator can fix the source
// spreadsheet without reading the tool's internals:
//
//   DataIntegrityError    - missing columns, no usable rows
//   UnmappedCurrencyError - transaction currencies absent from the rate table
//   ZeroTotalError        - allocation denominator is zero or undefined
//   ReconciliationError   - net total diverges from the report total (strict)
//
// All of them are fatal to the run and are never retried. Callers match them
// with errors.As after any amount of %w wrapping.
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATA INTEGRITY
// =============================================================================

// DataIntegrityError reports an input that cannot be used at all.
type DataIntegrityError struct {
	// Source names the input ("report", "transactions", "mapping").
	Source string

	// MissingColumns lists logical columns that could not be resolved.
	MissingColumns []string

	// Reason is a human-readable description when columns are not the problem.
	Reason string
}

// Error implements the error interface.
func (e *DataIntegrityError) Error() string {
	if len(e.MissingColumns) > 0 {
		return fmt.Sprintf("data integrity: %s is missing required column(s): %s",
			e.Source, strings.Join(e.MissingColumns, ", "))
	}
	return fmt.Sprintf("data integrity: %s: %s", e.Source, e.Reason)
}

// NewNoRowsError reports an input without a single usable row.
func NewNoRowsError(source, detail string) *DataIntegrityError {
	reason := "no usable rows"
	if detail != "" {
		reason += " (" + detail + ")"
	}
	return &DataIntegrityError{Source: source, Reason: reason}
}

// =============================================================================
// UNMAPPED CURRENCY
// =============================================================================

// UnmappedCurrencyError lists every transaction currency with no derived rate.
type UnmappedCurrencyError struct {
	// Currencies is sorted and de-duplicated.
	Currencies []string

	// Rows maps each missing currency to the number of transactions using it.
	Rows map[string]int

	// Reasons carries the rate deriver's explanation for currencies that were
	// present in the report but dropped.
	Reasons map[string]string
}

// NewUnmappedCurrencyError builds the error from per-currency row counts.
func NewUnmappedCurrencyError(rows map[string]int, reasons map[string]string) *UnmappedCurrencyError {
	currencies := make([]string, 0, len(rows))
	for c := range rows {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	return &UnmappedCurrencyError{
		Currencies: currencies,
		Rows:       rows,
		Reasons:    reasons,
	}
}

// Error implements the error interface.
func (e *UnmappedCurrencyError) Error() string {
	parts := make([]string, 0, len(e.Currencies))
	for _, c := range e.Currencies {
		label := c
		if label == "" {
			label = "<blank>"
		}
		part := fmt.Sprintf("%s (%d transaction(s)", label, e.Rows[c])
		if reason, ok := e.Reasons[c]; ok {
			part += "; " + reason
		}
		parts = append(parts, part+")")
	}
	return fmt.Sprintf("unmapped currency: no exchange rate for %d currency(ies): %s",
		len(e.Currencies), strings.Join(parts, ", "))
}

// =============================================================================
// ZERO TOTAL
// =============================================================================

// ZeroTotalError reports that transactions have no positive USD gross to
// allocate against.
type ZeroTotalError struct {
	// DefinedRows is the number of transactions with a defined USD gross.
	DefinedRows int

	// Total is the computed gross total (zero when DefinedRows is zero).
	Total decimal.Decimal
}

// Error implements the error interface.
func (e *ZeroTotalError) Error() string {
	if e.DefinedRows == 0 {
		return "zero total: no transaction has a defined USD gross amount; check the amount and currency columns"
	}
	return fmt.Sprintf("zero total: USD gross across %d transaction(s) sums to %s; allocation by proportion is undefined",
		e.DefinedRows, e.Total.String())
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconciliationError reports a net total outside the tolerance of the
// report total.
type ReconciliationError struct {
	NetTotal    decimal.Decimal
	ReportTotal decimal.Decimal
	Delta       decimal.Decimal
	Tolerance   decimal.Decimal
}

// Error implements the error interface.
func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation failed: transaction net total %s vs report total %s (delta %s, tolerance %s)",
		e.NetTotal.StringFixed(2), e.ReportTotal.StringFixed(2), e.Delta.StringFixed(2), e.Tolerance.String())
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Kind names the taxonomy class of err, or "Error" when err is not one of
// the pipeline's typed errors.
func Kind(err error) string {
	var (
		integrity *DataIntegrityError
		unmapped  *UnmappedCurrencyError
		zero      *ZeroTotalError
		recon     *ReconciliationError
	)
	switch {
	case errors.As(err, &integrity):
		return "DataIntegrityError"
	case errors.As(err, &unmapped):
		return "UnmappedCurrencyError"
	case errors.As(err, &zero):
		return "ZeroTotalError"
	case errors.As(err, &recon):
		return "ReconciliationError"
	default:
		return "Error"
	}
}
