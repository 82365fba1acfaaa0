// =============================================================================
// IAP ORCAT Pipeline - Report Normalizer
// =============================================================================
//
// This module turns the App-store financial report into normalized
// ReportRows: currency code, local total owed, USD proceeds, local
// adjustment, local withholding tax and (optionally) the reported rate.
//
// CURRENCY EXTRACTION:
//   The report labels each line "Country or Region (Currency)". ExtractCurrency
//   is the one rule used everywhere a currency code is read, including the
//   transaction export:
//     "Japan (JPY)" -> "JPY"
//     " eur "       -> "EUR"
//     "Total"       -> "" (row dropped)
//
// =============================================================================

package report

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/ginjaninja78/iap-orcat/internal/config"
	"github.com/ginjaninja78/iap-orcat/internal/table"
	"github.com/ginjaninja78/iap-orcat/internal/types"
	"github.com/ginjaninja78/iap-orcat/internal/validation"
)

// Logical column names.
const (
	ColCurrency     = "currency"
	ColLocalTotal   = "local_total"
	ColUSDRevenue   = "usd_revenue"
	ColAdjustment   = "adjustment"
	ColWithholding  = "withholding"
	ColReportedRate = "reported_rate"
)

const stage = "report"

var (
	parenthesizedCode = regexp.MustCompile(`\(\s*([A-Za-z]{3})\s*\)`)
	bareCode          = regexp.MustCompile(`^[A-Za-z]{3}$`)
)

// ExtractCurrency returns the uppercase 3-letter currency code of a cell, or
// "" when the cell carries none. A code in parentheses wins; the last one is
// used if there are several. A bare cell must be an ISO 4217 code, so footer
// words such as "Sum" or "All" are not taken for currencies.
func ExtractCurrency(raw string) string {
	if m := parenthesizedCode.FindAllStringSubmatch(raw, -1); len(m) > 0 {
		return strings.ToUpper(m[len(m)-1][1])
	}

	s := strings.TrimSpace(raw)
	if !bareCode.MatchString(s) {
		return ""
	}
	unit, err := currency.ParseISO(s)
	if err != nil {
		return ""
	}
	return unit.String()
}

// =============================================================================
// SCHEMA
// =============================================================================

// Resolver returns the header-scanning resolver for the report.
func Resolver(cfg config.ReportConfig) table.HeaderScanResolver {
	c := cfg.Columns
	return table.HeaderScanResolver{
		Source:   stage,
		ScanRows: cfg.HeaderScanRows,
		Columns: []table.ColumnSpec{
			{Name: ColCurrency, Aliases: c.Currency, Contains: c.CurrencyContains, Required: true},
			{Name: ColLocalTotal, Aliases: c.LocalTotal, Required: true},
			{Name: ColUSDRevenue, Aliases: c.USDRevenue, Required: true},
			{Name: ColAdjustment, Aliases: c.Adjustment},
			{Name: ColWithholding, Aliases: c.Withholding},
			{Name: ColReportedRate, Aliases: c.ReportedRate},
		},
	}
}

// =============================================================================
// NORMALIZATION
// =============================================================================

// Result is the normalized report.
type Result struct {
	Rows []types.ReportRow

	// HasReportedRate is true when the report carries a rate column.
	HasReportedRate bool

	// SkippedRows counts rows dropped because they carry no currency code.
	SkippedRows int

	Issues validation.Issues
}

// Load reads, resolves and normalizes the report at path.
func Load(path string, cfg *config.Config) (*Result, error) {
	grid, err := table.Load(path, table.LoadOptions{
		Sheet:     cfg.Report.Sheet,
		Delimiter: cfg.Delimiter,
		Encoding:  cfg.Encoding,
	})
	if err != nil {
		return nil, err
	}

	return Normalize(grid, Resolver(cfg.Report), cfg.Report.RateOrientation)
}

// Normalize resolves the report grid and converts every row.
//
// PARAMETERS:
//   - grid: The raw report cells.
//   - resolver: Locates the header row and the logical columns.
//   - orientation: Orientation of the report's rate column, if any.
//
// RETURNS:
//   - The normalized rows and any non-fatal issues.
//   - A DataIntegrityError if columns are missing or no row has a currency.
func Normalize(grid table.Grid, resolver table.SchemaResolver, orientation string) (*Result, error) {
	frame, err := resolver.Resolve(grid)
	if err != nil {
		return nil, err
	}

	result := &Result{HasReportedRate: frame.Has(ColReportedRate)}

	for _, rec := range frame.Records {
		currency := ExtractCurrency(frame.Value(rec, ColCurrency))
		if currency == "" {
			result.SkippedRows++
			continue
		}

		row := types.ReportRow{
			RowNumber: rec.RowNumber,
			Currency:  currency,
		}

		row.LocalTotal = parseRequired(frame, rec, ColLocalTotal, &result.Issues)
		row.USDRevenue = parseRequired(frame, rec, ColUSDRevenue, &result.Issues)
		row.LocalAdjustment = parseOptional(frame, rec, ColAdjustment, &result.Issues)
		row.LocalWithholding = parseOptional(frame, rec, ColWithholding, &result.Issues)

		if result.HasReportedRate {
			row.ReportedRate = parseRate(frame, rec, orientation, &result.Issues)
		}

		result.Rows = append(result.Rows, row)
	}

	if len(result.Rows) == 0 {
		return nil, validation.NewNoRowsError(stage, "no row carries a currency code in column "+frame.Header(ColCurrency))
	}

	if result.SkippedRows > 0 {
		result.Issues.Info(stage, "%d row(s) without a currency code skipped (totals or notes)", result.SkippedRows)
	}

	return result, nil
}

func parseRequired(frame *table.Frame, rec table.Record, col string, issues *validation.Issues) decimal.NullDecimal {
	v, err := table.ParseAmount(frame.Value(rec, col))
	if err != nil {
		issues.WarnRow(stage, rec.RowNumber, "%s: %v; treated as undefined", frame.Header(col), err)
	}
	return v
}

func parseOptional(frame *table.Frame, rec table.Record, col string, issues *validation.Issues) decimal.Decimal {
	if !frame.Has(col) {
		return decimal.Zero
	}
	v, err := table.ParseAmountOrZero(frame.Value(rec, col))
	if err != nil {
		issues.WarnRow(stage, rec.RowNumber, "%s: %v; treated as 0", frame.Header(col), err)
	}
	return v
}

// parseRate reads the reported rate and orients it as USD per local unit.
func parseRate(frame *table.Frame, rec table.Record, orientation string, issues *validation.Issues) decimal.NullDecimal {
	raw := frame.Value(rec, ColReportedRate)
	v, err := table.ParseAmount(raw)
	if err != nil {
		issues.WarnRow(stage, rec.RowNumber, "%s: %v; reported rate ignored", frame.Header(ColReportedRate), err)
		return decimal.NullDecimal{}
	}
	if !v.Valid {
		return v
	}
	if !v.Decimal.IsPositive() {
		issues.WarnRow(stage, rec.RowNumber, "%s: rate %s is not positive; reported rate ignored", frame.Header(ColReportedRate), raw)
		return decimal.NullDecimal{}
	}

	if orientation == config.OrientationLocalPerUSD {
		v.Decimal = decimal.NewFromInt(1).Div(v.Decimal)
	}
	return v
}
