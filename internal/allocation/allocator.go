// =============================================================================
// IAP ORCAT Pipeline - Currency Converter & Allocator
// =============================================================================
//
// This module converts every transaction to USD and distributes the
// adjustment/withholding pool across transactions in proportion to their USD
// gross:
//
//   usd_gross[t]       = local_amount[t] * rate[currency[t]]
//   cost_allocation[t] = usd_gross[t] * pool / sum(usd_gross)
//   net[t]             = usd_gross[t] + cost_allocation[t]
//
// GATES:
//   1. Every transaction currency must be in the rate table. All missing
//      currencies are reported together in one UnmappedCurrencyError.
//   2. The sum of defined USD gross must be non-zero (ZeroTotalError).
//
// A transaction with an undefined local amount keeps undefined gross,
// allocation and net. It takes no share of the pool.
//
// =============================================================================

package allocation

import (
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/iap-orcat/internal/types"
	"github.com/ginjaninja78/iap-orcat/internal/validation"
)

// RateLookup resolves a currency code to its derived rate.
type RateLookup interface {
	Lookup(currency string) (types.CurrencyRate, bool)
	DroppedReasons() map[string]string
}

// Result is the converted and allocated transaction set.
type Result struct {
	// Transactions are in input order, one per input row.
	Transactions []types.EnrichedTransaction

	GrossTotal      decimal.Decimal
	AllocationTotal decimal.Decimal
	NetTotal        decimal.Decimal

	// DefinedRows is the number of transactions with a defined USD gross.
	DefinedRows int
}

// CheckCurrencies is the converter's validation gate. It returns an
// UnmappedCurrencyError listing every transaction currency missing from the
// rate table, or nil.
func CheckCurrencies(rows []types.TransactionRow, rates RateLookup) error {
	missing := make(map[string]int)
	for _, row := range rows {
		if _, ok := rates.Lookup(row.Currency); !ok {
			missing[row.Currency]++
		}
	}
	if len(missing) == 0 {
		return nil
	}

	reasons := make(map[string]string)
	dropped := rates.DroppedReasons()
	for c := range missing {
		switch {
		case c == "":
			reasons[c] = "currency cell is blank or has no 3-letter code"
		case dropped[c] != "":
			reasons[c] = dropped[c]
		default:
			reasons[c] = "not present in the report"
		}
	}

	return validation.NewUnmappedCurrencyError(missing, reasons)
}

// Convert runs the currency gate, converts every transaction to USD and
// allocates pool pro rata.
//
// PARAMETERS:
//   - rows: Normalized transactions.
//   - rates: The derived rate table.
//   - pool: The USD adjustment/withholding pool (total_adj_usd).
//
// RETURNS:
//   - The enriched transactions and the run totals.
//   - UnmappedCurrencyError or ZeroTotalError.
func Convert(rows []types.TransactionRow, rates RateLookup, pool decimal.Decimal) (*Result, error) {
	if err := CheckCurrencies(rows, rates); err != nil {
		return nil, err
	}

	result := &Result{
		Transactions:    make([]types.EnrichedTransaction, len(rows)),
		GrossTotal:      decimal.Zero,
		AllocationTotal: decimal.Zero,
		NetTotal:        decimal.Zero,
	}

	for i, row := range rows {
		tx := types.EnrichedTransaction{TransactionRow: row}
		if row.LocalAmount.Valid {
			rate, _ := rates.Lookup(row.Currency)
			gross := row.LocalAmount.Decimal.Mul(rate.Rate)
			tx.USDGross = decimal.NewNullDecimal(gross)
			result.GrossTotal = result.GrossTotal.Add(gross)
			result.DefinedRows++
		}
		result.Transactions[i] = tx
	}

	if result.DefinedRows == 0 || result.GrossTotal.IsZero() {
		return nil, &validation.ZeroTotalError{DefinedRows: result.DefinedRows, Total: result.GrossTotal}
	}

	for i := range result.Transactions {
		tx := &result.Transactions[i]
		if !tx.USDGross.Valid {
			continue
		}

		alloc := Share(tx.USDGross.Decimal, result.GrossTotal, pool)
		net := tx.USDGross.Decimal.Add(alloc)
		tx.CostAllocation = decimal.NewNullDecimal(alloc)
		tx.NetUSD = decimal.NewNullDecimal(net)

		result.AllocationTotal = result.AllocationTotal.Add(alloc)
		result.NetTotal = result.NetTotal.Add(net)
	}

	return result, nil
}

// Share returns gross's pro-rata share of pool. Multiplying before dividing
// keeps a single rounding step per row.
func Share(gross, total, pool decimal.Decimal) decimal.Decimal {
	return gross.Mul(pool).Div(total)
}
