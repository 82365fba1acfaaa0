// =============================================================================
// IAP ORCAT Pipeline - Shared Types
// =============================================================================
//
// This package contains the domain types passed between pipeline stages. They
// live here to avoid import cycles between:
//   - report / transactions / mapping (normalizers)
//   - rates / allocation / projects / reconcile (core stages)
//   - output (writers)
//
// MONEY:
//   Every amount and rate is a shopspring decimal. An amount that could not be
//   parsed from the source is carried as an invalid decimal.NullDecimal and is
//   never coerced to zero.
//
// =============================================================================

package types

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// REPORT TYPES
// =============================================================================

// ReportRow is one normalized line of the App-store financial report.
// It is read once and never mutated after normalization.
type ReportRow struct {
	// RowNumber is the 1-based row number in the source file.
	RowNumber int

	// Currency is the 3-letter uppercase ISO code.
	Currency string

	// LocalTotal is the total owed in the local currency.
	LocalTotal decimal.NullDecimal

	// USDRevenue is the proceeds in USD.
	USDRevenue decimal.NullDecimal

	// LocalAdjustment defaults to zero when the column is absent or the cell is blank.
	LocalAdjustment decimal.Decimal

	// LocalWithholding defaults to zero when the column is absent or the cell is blank.
	LocalWithholding decimal.Decimal

	// ReportedRate is the per-row exchange rate from the report, already
	// oriented as USD per unit of local currency. Invalid when the report
	// carries no rate column or the cell is unusable.
	ReportedRate decimal.NullDecimal
}

// RateSource records how a currency rate was obtained.
type RateSource string

const (
	RateSourceRatio    RateSource = "ratio"
	RateSourceReported RateSource = "reported"
)

// CurrencyRate is the derived conversion data for one currency.
type CurrencyRate struct {
	Currency string

	// Rate is USD per unit of local currency. Conversion is always a multiplication.
	Rate decimal.Decimal

	Source RateSource

	// AdjTaxUSD is (sum of local adjustments + sum of local withholding) * Rate.
	AdjTaxUSD decimal.Decimal

	// Rows is the number of report rows that contributed to the rate.
	Rows int
}

// DroppedCurrency is a currency present in the report for which no rate
// could be derived.
type DroppedCurrency struct {
	Currency string
	Reason   string

	// LocalAdjTax is the local-currency adjustment + withholding pool that
	// could not be converted to USD.
	LocalAdjTax decimal.Decimal
}

// =============================================================================
// TRANSACTION TYPES
// =============================================================================

// TransactionRow is one purchase record after normalization.
type TransactionRow struct {
	// RowNumber is the 1-based row number in the source file.
	RowNumber int

	LocalAmount decimal.NullDecimal

	// Currency is the extracted, uppercase currency code (may be empty).
	Currency string

	SKU string

	// Fields holds every source column value, in the order of Frame headers,
	// so the enriched output can carry the original record through.
	Fields []string
}

// EnrichedTransaction is a TransactionRow after conversion, allocation and
// project mapping. Undefined amounts stay invalid through every stage.
type EnrichedTransaction struct {
	TransactionRow

	USDGross       decimal.NullDecimal
	CostAllocation decimal.NullDecimal
	NetUSD         decimal.NullDecimal

	// Project is the mapped project name. Empty when Mapped is false.
	Project string
	Mapped  bool
}

// =============================================================================
// MAPPING & SUMMARY TYPES
// =============================================================================

// SkuProjectMap maps a SKU to its project name.
type SkuProjectMap map[string]string

// ProjectSummary holds the per-project sums. The unmapped bucket and the
// grand-total sentinel use the same shape.
type ProjectSummary struct {
	Project string

	// Unmapped marks the bucket of transactions whose SKU has no mapping entry.
	Unmapped bool

	// Total marks the synthetic grand-total row.
	Total bool

	Transactions int

	// UndefinedRows counts transactions whose amounts are undefined; they
	// are counted in Transactions but contribute nothing to the sums.
	UndefinedRows int

	USDGross       decimal.Decimal
	CostAllocation decimal.Decimal
	NetUSD         decimal.Decimal
}

// RunTotals are the run-level scalars written to the run log.
type RunTotals struct {
	ReportTotalUSD      decimal.Decimal
	TotalAdjUSD         decimal.Decimal
	TxGrossTotalUSD     decimal.Decimal
	TxNetTotalUSD       decimal.Decimal
	ReconciliationDelta decimal.Decimal
}
