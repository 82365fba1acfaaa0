// =============================================================================
// IAP ORCAT Pipeline - Rate Deriver
// =============================================================================
//
// This module aggregates the normalized report by currency and derives one
// exchange rate per currency plus the USD adjustment/withholding pool.
//
// ORIENTATION:
//   Every rate is USD per unit of local currency, so converting a local
//   amount is always amount * rate.
//
// POLICIES:
//   ratio     rate = sum(USD revenue) / sum(local total) over the currency's
//             rows with a defined, non-zero local total and defined revenue
//   reported  median of the report's per-row rates; a spread above the
//             disagreement tolerance is flagged
//   auto      reported when the currency has a usable reported rate,
//             ratio otherwise
//
// A currency without a derivable rate is omitted from the table and recorded
// as dropped. Transactions in that currency fail at the converter's gate.
//
// =============================================================================

package rates

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/iap-orcat/internal/config"
	"github.com/ginjaninja78/iap-orcat/internal/types"
	"github.com/ginjaninja78/iap-orcat/internal/validation"
)

const stage = "rates"

// Options controls rate derivation.
type Options struct {
	// Policy is one of config.RatePolicyAuto, RatePolicyRatio, RatePolicyReported.
	Policy string

	// DisagreementTolerance is the maximum relative spread of per-row
	// reported rates before a currency is flagged.
	DisagreementTolerance decimal.Decimal
}

// OptionsFromConfig builds Options from the run configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Policy:                cfg.Rates.Policy,
		DisagreementTolerance: decimal.NewFromFloat(cfg.Rates.DisagreementTolerance),
	}
}

// =============================================================================
// RATE TABLE
// =============================================================================

// Table is the derived per-currency rate table.
type Table struct {
	// Rates is sorted by currency code; each currency appears once.
	Rates []types.CurrencyRate

	// Dropped lists report currencies without a derivable rate, sorted.
	Dropped []types.DroppedCurrency

	// TotalAdjUSD is the allocation pool: the sum of AdjTaxUSD over Rates.
	TotalAdjUSD decimal.Decimal

	// ReportTotalUSD is the sum of every defined USD revenue in the report.
	ReportTotalUSD decimal.Decimal

	Policy string

	Issues validation.Issues

	index map[string]int
}

// Lookup returns the rate of a currency.
func (t *Table) Lookup(currency string) (types.CurrencyRate, bool) {
	i, ok := t.index[currency]
	if !ok {
		return types.CurrencyRate{}, false
	}
	return t.Rates[i], true
}

// DroppedReasons maps every dropped currency to the reason it was dropped.
func (t *Table) DroppedReasons() map[string]string {
	reasons := make(map[string]string, len(t.Dropped))
	for _, d := range t.Dropped {
		reasons[d.Currency] = "dropped from rate table: " + d.Reason
	}
	return reasons
}

// =============================================================================
// DERIVATION
// =============================================================================

// bucket accumulates the report rows of one currency.
type bucket struct {
	usdSum      decimal.Decimal
	localSum    decimal.Decimal
	ratioRows   int
	adjTaxLocal decimal.Decimal
	reported    []decimal.Decimal
}

// Derive builds the rate table from normalized report rows.
//
// PARAMETERS:
//   - rows: Normalized report rows.
//   - opts: Policy and disagreement tolerance.
//
// RETURNS:
//   - The rate table, including dropped currencies and non-fatal issues.
//   - A DataIntegrityError if no row can contribute to any rate.
func Derive(rows []types.ReportRow, opts Options) (*Table, error) {
	policy := opts.Policy
	if policy == "" {
		policy = config.RatePolicyAuto
	}
	switch policy {
	case config.RatePolicyAuto, config.RatePolicyRatio, config.RatePolicyReported:
	default:
		return nil, fmt.Errorf("unknown rate policy %q", policy)
	}

	table := &Table{
		Policy:         policy,
		ReportTotalUSD: decimal.Zero,
		TotalAdjUSD:    decimal.Zero,
		index:          make(map[string]int),
	}

	buckets := make(map[string]*bucket)
	validRows := 0
	undefinedRevenue := 0

	for _, row := range rows {
		b, ok := buckets[row.Currency]
		if !ok {
			b = &bucket{}
			buckets[row.Currency] = b
		}

		if row.USDRevenue.Valid {
			table.ReportTotalUSD = table.ReportTotalUSD.Add(row.USDRevenue.Decimal)
		} else {
			undefinedRevenue++
		}

		b.adjTaxLocal = b.adjTaxLocal.Add(row.LocalAdjustment).Add(row.LocalWithholding)

		usable := false
		if row.LocalTotal.Valid && !row.LocalTotal.Decimal.IsZero() && row.USDRevenue.Valid {
			b.usdSum = b.usdSum.Add(row.USDRevenue.Decimal)
			b.localSum = b.localSum.Add(row.LocalTotal.Decimal)
			b.ratioRows++
			usable = true
		}
		if row.ReportedRate.Valid {
			b.reported = append(b.reported, row.ReportedRate.Decimal)
			usable = true
		}
		if usable {
			validRows++
		}
	}

	if validRows == 0 {
		return nil, validation.NewNoRowsError("report", "no row has both a non-zero local total and a USD revenue, or a reported rate")
	}

	if undefinedRevenue > 0 {
		table.Issues.Warn(stage, "%d report row(s) have no USD revenue and are excluded from the report total", undefinedRevenue)
	}

	currencies := make([]string, 0, len(buckets))
	for c := range buckets {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	for _, c := range currencies {
		b := buckets[c]

		rate, source, rows, reason := table.pick(c, b, policy, opts.DisagreementTolerance)
		if reason != "" {
			table.Dropped = append(table.Dropped, types.DroppedCurrency{
				Currency:    c,
				Reason:      reason,
				LocalAdjTax: b.adjTaxLocal,
			})
			if b.adjTaxLocal.IsZero() {
				table.Issues.Warn(stage, "%s dropped: %s", c, reason)
			} else {
				table.Issues.Warn(stage, "%s dropped: %s; its adjustment/withholding pool of %s %s is not allocated",
					c, reason, b.adjTaxLocal.String(), c)
			}
			continue
		}

		adj := b.adjTaxLocal.Mul(rate)
		table.index[c] = len(table.Rates)
		table.Rates = append(table.Rates, types.CurrencyRate{
			Currency:  c,
			Rate:      rate,
			Source:    source,
			AdjTaxUSD: adj,
			Rows:      rows,
		})
		table.TotalAdjUSD = table.TotalAdjUSD.Add(adj)
	}

	return table, nil
}

// pick applies the policy to one currency. A non-empty reason means the
// currency has no rate.
func (t *Table) pick(currency string, b *bucket, policy string, tolerance decimal.Decimal) (decimal.Decimal, types.RateSource, int, string) {
	useReported := policy == config.RatePolicyReported ||
		(policy == config.RatePolicyAuto && len(b.reported) > 0)

	if useReported {
		if len(b.reported) == 0 {
			return decimal.Zero, "", 0, "no usable reported rate"
		}

		med := Median(b.reported)
		if spread := Spread(b.reported, med); spread.GreaterThan(tolerance) {
			t.Issues.Warn(stage, "%s reported rates disagree across %d row(s): spread %s exceeds tolerance %s; using median %s",
				currency, len(b.reported), spread.StringFixed(6), tolerance.String(), med.String())
		}
		return med, types.RateSourceReported, len(b.reported), ""
	}

	if b.ratioRows == 0 || b.localSum.IsZero() {
		return decimal.Zero, "", 0, "local total is zero or undefined in every row"
	}
	return b.usdSum.Div(b.localSum), types.RateSourceRatio, b.ratioRows, ""
}

// =============================================================================
// STATISTICS
// =============================================================================

// Median returns the median of values; the mean of the two middle values
// when the count is even. values must not be empty.
func Median(values []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}

// Spread returns (max - min) / median, or zero when median is zero.
func Spread(values []decimal.Decimal, median decimal.Decimal) decimal.Decimal {
	if len(values) == 0 || median.IsZero() {
		return decimal.Zero
	}
	return decimal.Max(values[0], values[1:]...).Sub(decimal.Min(values[0], values[1:]...)).Div(median).Abs()
}
