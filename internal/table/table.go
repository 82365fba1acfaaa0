// =============================================================================
// IAP ORCAT Pipeline - Table Loading
// =============================================================================
//
// A Grid is the raw cell matrix read from a CSV or XLSX file. A Frame is a
// Grid after a SchemaResolver has found the header row and located every
// logical column the caller asked for.
//
//   Load(path) -> Grid -> SchemaResolver.Resolve -> Frame
//
// Normalizers in internal/report, internal/transactions and internal/mapping
// consume Frames only; they never look at file formats or header heuristics.
//
// =============================================================================

package table

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/iap-orcat/internal/csvparser"
	"github.com/ginjaninja78/iap-orcat/internal/xlsxparser"
)

// Grid is a raw matrix of cells in file order.
type Grid [][]string

// LoadOptions controls how a file is read into a Grid.
type LoadOptions struct {
	// Sheet selects an XLSX sheet. Empty means the first sheet.
	Sheet string

	// Delimiter and Encoding apply to CSV files only.
	Delimiter string
	Encoding  string
}

// Load reads path into a Grid, choosing the reader by file extension.
// .xlsx and .xlsm go through excelize; everything else is read as CSV.
func Load(path string, opts LoadOptions) (Grid, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err := xlsxparser.ReadGrid(path, opts.Sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		return Grid(rows), nil
	case ".xls":
		return nil, fmt.Errorf("failed to load %s: legacy .xls workbooks are not supported, save as .xlsx or .csv", path)
	default:
		rows, err := csvparser.ReadGrid(path, csvparser.Options{
			Delimiter: opts.Delimiter,
			Encoding:  opts.Encoding,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		return Grid(rows), nil
	}
}

// =============================================================================
// FRAME
// =============================================================================

// Record is one data row of a Frame.
type Record struct {
	// RowNumber is the 1-based row number in the source file.
	RowNumber int

	// Cells has exactly len(Frame.Headers) entries.
	Cells []string
}

// Frame is a Grid with a resolved header row.
type Frame struct {
	// Source names the input ("report", "transactions", "mapping").
	Source string

	// HeaderRow is the 1-based row number of the header row.
	HeaderRow int

	// Headers are trimmed and de-duplicated header names.
	Headers []string

	// Columns maps each resolved logical column to its index in Headers.
	Columns map[string]int

	Records []Record
}

// Has reports whether a logical column was resolved.
func (f *Frame) Has(logical string) bool {
	_, ok := f.Columns[logical]
	return ok
}

// Value returns the trimmed cell of a logical column, or "" when the column
// was not resolved.
func (f *Frame) Value(rec Record, logical string) string {
	idx, ok := f.Columns[logical]
	if !ok || idx >= len(rec.Cells) {
		return ""
	}
	return strings.TrimSpace(rec.Cells[idx])
}

// Header returns the source header name a logical column resolved to.
func (f *Frame) Header(logical string) string {
	idx, ok := f.Columns[logical]
	if !ok {
		return ""
	}
	return f.Headers[idx]
}
