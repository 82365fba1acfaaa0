// =============================================================================
// IAP ORCAT Pipeline - SKU Mapping Loader
// =============================================================================
//
// This module builds the SKU -> project map from the mapping workbook.
//
// MULTI-VALUE CELLS:
//   One mapping row may list several SKUs in a single cell, one per line:
//
//     项目        SKU
//     Puzzle     com.app.puzzle.gems100
//                com.app.puzzle.gems500
//
//   Each line becomes its own key. Values are trimmed and empty values are
//   discarded. A SKU that appears twice keeps the last project seen.
//
// =============================================================================

package mapping

import (
	"strings"

	"github.com/ginjaninja78/iap-orcat/internal/config"
	"github.com/ginjaninja78/iap-orcat/internal/table"
	"github.com/ginjaninja78/iap-orcat/internal/types"
	"github.com/ginjaninja78/iap-orcat/internal/validation"
)

// Logical column names.
const (
	ColProject = "project"
	ColSKU     = "sku"
)

const stage = "mapping"

// Result is the loaded SKU map.
type Result struct {
	Map types.SkuProjectMap

	// Entries counts SKU values read, including duplicates.
	Entries int

	// Duplicates counts SKU values seen more than once.
	Duplicates int

	Issues validation.Issues
}

// Resolver returns the header-scanning resolver for the mapping workbook.
func Resolver(cfg config.MappingConfig) table.HeaderScanResolver {
	return table.HeaderScanResolver{
		Source:   stage,
		ScanRows: cfg.HeaderScanRows,
		Columns: []table.ColumnSpec{
			{Name: ColProject, Aliases: cfg.Columns.Project, Required: true},
			{Name: ColSKU, Aliases: cfg.Columns.SKU, Required: true},
		},
	}
}

// Load reads and builds the SKU map from the file at path.
func Load(path string, cfg *config.Config) (*Result, error) {
	grid, err := table.Load(path, table.LoadOptions{
		Sheet:     cfg.Mapping.Sheet,
		Delimiter: cfg.Delimiter,
		Encoding:  cfg.Encoding,
	})
	if err != nil {
		return nil, err
	}

	return Build(grid, Resolver(cfg.Mapping), cfg.Mapping.SKUSeparators)
}

// Build resolves the mapping grid and explodes every SKU cell.
//
// PARAMETERS:
//   - grid: The raw mapping cells.
//   - resolver: Locates the project and SKU columns.
//   - separators: Extra SKU separators besides line breaks.
//
// RETURNS:
//   - The SKU map; an empty map is valid (every transaction is unmapped).
//   - A DataIntegrityError if a required column is missing.
func Build(grid table.Grid, resolver table.SchemaResolver, separators []string) (*Result, error) {
	frame, err := resolver.Resolve(grid)
	if err != nil {
		return nil, err
	}

	result := &Result{Map: make(types.SkuProjectMap)}

	for _, rec := range frame.Records {
		project := frame.Value(rec, ColProject)
		skus := SplitSKUs(frame.Value(rec, ColSKU), separators)

		if project == "" {
			if len(skus) > 0 {
				result.Issues.WarnRow(stage, rec.RowNumber, "%d SKU(s) without a project name ignored", len(skus))
			}
			continue
		}

		for _, sku := range skus {
			result.Entries++
			if previous, dup := result.Map[sku]; dup {
				result.Duplicates++
				if previous != project {
					result.Issues.WarnRow(stage, rec.RowNumber, "SKU %q remapped from %q to %q", sku, previous, project)
				}
			}
			result.Map[sku] = project
		}
	}

	if len(result.Map) == 0 {
		result.Issues.Warn(stage, "mapping has no SKU entries; every transaction will be unmapped")
	}

	return result, nil
}

// SplitSKUs splits a SKU cell on line breaks and the given separators,
// trims each value and drops empty ones.
func SplitSKUs(cell string, separators []string) []string {
	cell = strings.ReplaceAll(cell, "\r\n", "\n")
	cell = strings.ReplaceAll(cell, "\r", "\n")
	for _, sep := range separators {
		if sep != "" {
			cell = strings.ReplaceAll(cell, sep, "\n")
		}
	}

	var skus []string
	for _, part := range strings.Split(cell, "\n") {
		if sku := strings.TrimSpace(part); sku != "" {
			skus = append(skus, sku)
		}
	}
	return skus
}
