// =============================================================================
// IAP ORCAT Pipeline - Transaction Normalizer
// =============================================================================
//
// This module turns the transaction export into TransactionRows. Every source
// column is kept (in header order) so the enriched output can carry the
// original record through unchanged.
//
// =============================================================================

package transactions

import (
	"github.com/ginjaninja78/iap-orcat/internal/config"
	"github.com/ginjaninja78/iap-orcat/internal/report"
	"github.com/ginjaninja78/iap-orcat/internal/table"
	"github.com/ginjaninja78/iap-orcat/internal/types"
	"github.com/ginjaninja78/iap-orcat/internal/validation"
)

// Logical column names.
const (
	ColLocalAmount = "local_amount"
	ColCurrency    = "currency"
	ColSKU         = "sku"
)

const stage = "transactions"

// Result is the normalized transaction export.
type Result struct {
	// Headers are the source column names, aligned with TransactionRow.Fields.
	Headers []string

	Rows []types.TransactionRow

	Issues validation.Issues
}

// Resolver returns the header-scanning resolver for the transaction export.
func Resolver(cfg config.TransactionsConfig) table.HeaderScanResolver {
	return table.HeaderScanResolver{
		Source:   stage,
		ScanRows: cfg.HeaderScanRows,
		Columns: []table.ColumnSpec{
			{Name: ColLocalAmount, Aliases: cfg.Columns.LocalAmount, Required: true},
			{Name: ColCurrency, Aliases: cfg.Columns.Currency, Required: true},
			{Name: ColSKU, Aliases: cfg.Columns.SKU, Required: true},
		},
	}
}

// Load reads, resolves and normalizes the transaction export at path.
func Load(path string, cfg *config.Config) (*Result, error) {
	grid, err := table.Load(path, table.LoadOptions{
		Sheet:     cfg.Transactions.Sheet,
		Delimiter: cfg.Delimiter,
		Encoding:  cfg.Encoding,
	})
	if err != nil {
		return nil, err
	}

	return Normalize(grid, Resolver(cfg.Transactions))
}

// Normalize resolves the transaction grid and converts every row.
//
// Rows are never dropped here: a row with an unparseable amount keeps an
// undefined LocalAmount, and a row whose currency cannot be extracted keeps
// an empty Currency so the converter's currency gate reports it.
func Normalize(grid table.Grid, resolver table.SchemaResolver) (*Result, error) {
	frame, err := resolver.Resolve(grid)
	if err != nil {
		return nil, err
	}

	if len(frame.Records) == 0 {
		return nil, validation.NewNoRowsError(stage, "no data rows below the header row")
	}

	result := &Result{
		Headers: frame.Headers,
		Rows:    make([]types.TransactionRow, 0, len(frame.Records)),
	}

	undefined := 0
	for _, rec := range frame.Records {
		amount, err := table.ParseAmount(frame.Value(rec, ColLocalAmount))
		if err != nil {
			result.Issues.WarnRow(stage, rec.RowNumber, "%s: %v; amount left undefined", frame.Header(ColLocalAmount), err)
		}
		if !amount.Valid {
			undefined++
		}

		rawCurrency := frame.Value(rec, ColCurrency)
		currency := report.ExtractCurrency(rawCurrency)
		if currency == "" && rawCurrency != "" {
			result.Issues.WarnRow(stage, rec.RowNumber, "%s: no currency code in %q", frame.Header(ColCurrency), rawCurrency)
		}

		result.Rows = append(result.Rows, types.TransactionRow{
			RowNumber:   rec.RowNumber,
			LocalAmount: amount,
			Currency:    currency,
			SKU:         frame.Value(rec, ColSKU),
			Fields:      rec.Cells,
		})
	}

	if undefined > 0 {
		result.Issues.Warn(stage, "%d transaction(s) have no usable amount; their USD values stay undefined", undefined)
	}

	return result, nil
}
