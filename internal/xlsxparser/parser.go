// =============================================================================
// IAP ORCAT Pipeline - XLSX Parser
// =============================================================================
//
// This module reads a worksheet from an XLSX workbook into a raw grid of
// cells, the same shape the CSV parser produces. It is used for:
//   - The SKU-to-project mapping workbook (always XLSX)
//   - Financial reports and transaction exports saved from a spreadsheet
//
// Cells are read as their formatted string values. A multi-line cell (the
// mapping workbook keeps several SKUs in one cell) keeps its line breaks.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ReadGrid opens an XLSX file and returns the rows of one sheet.
//
// PARAMETERS:
//   - filePath: The path to the XLSX file.
//   - sheet: The sheet name. Empty selects the first sheet.
//
// RETURNS:
//   - All rows of the sheet, in order.
//   - An error if the file or sheet cannot be read.
func ReadGrid(filePath, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return readSheet(f, sheet)
}

// Parse reads a workbook from r and returns the rows of one sheet.
func Parse(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return readSheet(f, sheet)
}

// readSheet extracts the rows of a sheet from an open workbook.
func readSheet(f *excelize.File, sheet string) ([][]string, error) {
	if sheet == "" {
		sheet = f.GetSheetName(0)
		if sheet == "" {
			return nil, fmt.Errorf("workbook has no sheets")
		}
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found (available: %v)", sheet, f.GetSheetList())
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of sheet %q: %w", sheet, err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	return rows, nil
}
