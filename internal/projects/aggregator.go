// =============================================================================
// IAP ORCAT Pipeline - Project Aggregator
// =============================================================================
//
// This module maps each transaction to a project through its SKU and sums
// USD gross, cost allocation and net per project.
//
// SUMMARY ORDER:
//   1. Named projects, sorted by name
//   2. The unmapped bucket (only when some SKU has no mapping entry)
//   3. The grand-total row, always last
//
// The grand-total row is summed directly over every transaction, not over the
// project rows, so it is correct regardless of mapping quality.
//
// =============================================================================

package projects

import (
	"sort"

	"github.com/ginjaninja78/iap-orcat/internal/types"
	"github.com/ginjaninja78/iap-orcat/internal/validation"
)

const stage = "projects"

// Labels name the synthetic summary rows.
type Labels struct {
	Unmapped string
	Total    string
}

// Result is the per-project roll-up.
type Result struct {
	// Summary is ordered as described in the package comment.
	Summary []types.ProjectSummary

	// UnmappedSKUs lists distinct SKUs without a mapping entry, sorted.
	UnmappedSKUs []string

	Issues validation.Issues
}

// Assign sets Project and Mapped on every transaction in place.
func Assign(txs []types.EnrichedTransaction, skuMap types.SkuProjectMap) {
	for i := range txs {
		project, ok := skuMap[txs[i].SKU]
		txs[i].Project = project
		txs[i].Mapped = ok
	}
}

// Aggregate maps and sums the transactions.
//
// PARAMETERS:
//   - txs: Converted transactions; Project and Mapped are set in place.
//   - skuMap: The SKU -> project map.
//   - labels: Names for the unmapped bucket and the grand-total row.
//
// RETURNS:
//   - The summary rows with the grand total last.
func Aggregate(txs []types.EnrichedTransaction, skuMap types.SkuProjectMap, labels Labels) *Result {
	Assign(txs, skuMap)

	named := make(map[string]*types.ProjectSummary)
	unmapped := &types.ProjectSummary{Project: labels.Unmapped, Unmapped: true}
	total := &types.ProjectSummary{Project: labels.Total, Total: true}
	unmappedSKUs := make(map[string]struct{})

	for _, tx := range txs {
		bucket := unmapped
		if tx.Mapped {
			b, ok := named[tx.Project]
			if !ok {
				b = &types.ProjectSummary{Project: tx.Project}
				named[tx.Project] = b
			}
			bucket = b
		} else {
			unmappedSKUs[tx.SKU] = struct{}{}
		}

		add(bucket, tx)
		add(total, tx)
	}

	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)

	result := &Result{Summary: make([]types.ProjectSummary, 0, len(names)+2)}
	for _, name := range names {
		if name == labels.Total || name == labels.Unmapped {
			result.Issues.Warn(stage, "project name %q collides with a summary label; rename it in the mapping", name)
		}
		result.Summary = append(result.Summary, *named[name])
	}
	if unmapped.Transactions > 0 {
		result.Summary = append(result.Summary, *unmapped)

		for sku := range unmappedSKUs {
			result.UnmappedSKUs = append(result.UnmappedSKUs, sku)
		}
		sort.Strings(result.UnmappedSKUs)

		result.Issues.Warn(stage, "%d transaction(s) with %d distinct SKU(s) have no project mapping; listed under %q",
			unmapped.Transactions, len(result.UnmappedSKUs), labels.Unmapped)
	}
	result.Summary = append(result.Summary, *total)

	return result
}

// add folds one transaction into a summary row. Undefined amounts count as a
// transaction but add nothing to the sums.
func add(s *types.ProjectSummary, tx types.EnrichedTransaction) {
	s.Transactions++
	if !tx.NetUSD.Valid {
		s.UndefinedRows++
		return
	}
	s.USDGross = s.USDGross.Add(tx.USDGross.Decimal)
	s.CostAllocation = s.CostAllocation.Add(tx.CostAllocation.Decimal)
	s.NetUSD = s.NetUSD.Add(tx.NetUSD.Decimal)
}

// Total returns the grand-total row of a summary.
func (r *Result) Total() types.ProjectSummary {
	return r.Summary[len(r.Summary)-1]
}
