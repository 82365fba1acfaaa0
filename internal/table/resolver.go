package table

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/iap-orcat/internal/csvparser"
	"github.com/ginjaninja78/iap-orcat/internal/validation"
)

// =============================================================================
// SCHEMA RESOLVER
// =============================================================================

// SchemaResolver turns a raw Grid into a Frame or a typed error.
// Format heuristics live behind this interface so the normalizers and the
// allocation core never depend on them.
type SchemaResolver interface {
	Resolve(grid Grid) (*Frame, error)
}

// ColumnSpec describes one logical column.
type ColumnSpec struct {
	// Name is the logical name used by normalizers ("currency", "sku", ...).
	Name string

	// Aliases are matched case-insensitively against header names, in order.
	Aliases []string

	// Contains are fallback tokens: the first header containing one of them
	// (case-insensitive) is used when no alias matched.
	Contains []string

	Required bool
}

// HeaderScanResolver tries each of the first ScanRows rows as the header row
// and picks the first one that resolves every required column.
type HeaderScanResolver struct {
	Source   string
	ScanRows int
	Columns  []ColumnSpec
}

// Resolve implements SchemaResolver.
func (r HeaderScanResolver) Resolve(grid Grid) (*Frame, error) {
	scan := r.ScanRows
	if scan < 1 {
		scan = 1
	}
	if scan > len(grid) {
		scan = len(grid)
	}

	var bestMissing []string
	for h := 0; h < scan; h++ {
		if csvparser.IsRowEmpty(grid[h]) {
			continue
		}

		headers := CleanHeaders(grid[h], maxWidth(grid[h:]))
		columns, missing := r.match(headers)

		if len(missing) == 0 {
			return &Frame{
				Source:    r.Source,
				HeaderRow: h + 1,
				Headers:   headers,
				Columns:   columns,
				Records:   records(grid, h+1, len(headers)),
			}, nil
		}

		if bestMissing == nil || len(missing) < len(bestMissing) {
			bestMissing = missing
		}
	}

	if bestMissing == nil {
		// Nothing but blank rows in the scan window.
		for _, col := range r.Columns {
			if col.Required {
				bestMissing = append(bestMissing, describe(col))
			}
		}
	}

	return nil, &validation.DataIntegrityError{Source: r.Source, MissingColumns: bestMissing}
}

// match resolves every ColumnSpec against a header row.
func (r HeaderScanResolver) match(headers []string) (map[string]int, []string) {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeHeader(h)
	}

	columns := make(map[string]int)
	var missing []string

	for _, col := range r.Columns {
		idx := findColumn(normalized, col)
		if idx >= 0 {
			columns[col.Name] = idx
			continue
		}
		if col.Required {
			missing = append(missing, describe(col))
		}
	}

	return columns, missing
}

func findColumn(normalized []string, col ColumnSpec) int {
	for _, alias := range col.Aliases {
		want := normalizeHeader(alias)
		for i, h := range normalized {
			if h == want {
				return i
			}
		}
	}

	for _, token := range col.Contains {
		want := normalizeHeader(token)
		if want == "" {
			continue
		}
		for i, h := range normalized {
			if strings.Contains(h, want) {
				return i
			}
		}
	}

	return -1
}

func describe(col ColumnSpec) string {
	if len(col.Aliases) == 0 {
		return col.Name
	}
	return fmt.Sprintf("%s (%s)", col.Name, strings.Join(col.Aliases, " | "))
}

// normalizeHeader lowercases and collapses whitespace.
func normalizeHeader(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// =============================================================================
// HEADER CLEANING
// =============================================================================

// CleanHeaders trims header cells, names blank or missing ones "Column_N",
// and de-duplicates repeated names by suffixing ".1", ".2", ... to the later
// occurrences. The Apple report repeats its revenue header, so the second
// one becomes e.g. "收入.1".
func CleanHeaders(raw []string, width int) []string {
	if width < len(raw) {
		width = len(raw)
	}

	headers := make([]string, width)
	seen := make(map[string]int, width)

	for i := 0; i < width; i++ {
		header := ""
		if i < len(raw) {
			header = strings.TrimSpace(raw[i])
		}
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}

		if n, dup := seen[header]; dup {
			seen[header] = n + 1
			header = fmt.Sprintf("%s.%d", header, n+1)
		} else {
			seen[header] = 0
		}

		headers[i] = header
	}

	return headers
}

func maxWidth(rows [][]string) int {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

// records builds the data rows that follow the header row, padding every
// row to width and skipping blank rows.
func records(grid Grid, start, width int) []Record {
	out := make([]Record, 0, len(grid)-start)
	for i := start; i < len(grid); i++ {
		row := grid[i]
		if csvparser.IsRowEmpty(row) {
			continue
		}

		cells := make([]string, width)
		copy(cells, row)
		out = append(out, Record{RowNumber: i + 1, Cells: cells})
	}
	return out
}
