// =============================================================================
// IAP ORCAT Pipeline - CSV Parser Module
// =============================================================================
//
// This module reads delimited text files into a raw grid of cells. It does
// not interpret headers: store exports put banner lines above the header row,
// so header detection is left to the schema resolver in internal/table.
//
// FEATURES:
//   - Configurable delimiter (comma, pipe, tab, semicolon)
//   - Variable field counts and lazy quotes
//   - Encoding handling: UTF-8 (BOM stripped), Latin-1, Windows-1252,
//     and "auto" which falls back to Latin-1 when the bytes are not UTF-8
//
// =============================================================================

package csvparser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// utf8BOM is the byte order mark written by spreadsheet tools in front of UTF-8 CSVs.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// =============================================================================
// OPTIONS
// =============================================================================

// Options controls how a CSV file is read.
type Options struct {
	// Delimiter is the field separator. Accepts a single character or one of
	// the names "tab", "pipe", "semicolon".
	// Default: ","
	Delimiter string

	// Encoding is one of "auto", "utf-8", "latin1", "windows-1252".
	// Default: "auto"
	Encoding string
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ReadGrid reads a CSV file and returns every record as a row of cells.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - opts: Delimiter and encoding settings.
//
// RETURNS:
//   - All records, including banner and blank lines, in file order.
//   - An error if the file cannot be read or decoded.
func ReadGrid(filePath string, opts Options) ([][]string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	rows, err := Parse(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return rows, nil
}

// Parse decodes raw CSV bytes into a grid.
func Parse(data []byte, opts Options) ([][]string, error) {
	reader, err := decode(data, opts.Encoding)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(reader)
	configureReader(csvReader, opts)

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	return rows, nil
}

// decode returns a UTF-8 reader over data according to the encoding setting.
func decode(data []byte, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "auto":
		data = bytes.TrimPrefix(data, utf8BOM)
		if utf8.Valid(data) {
			return bytes.NewReader(data), nil
		}
		return transform.NewReader(bytes.NewReader(data), charmap.ISO8859_1.NewDecoder()), nil

	case "utf-8", "utf8":
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("file is not valid UTF-8; set encoding to latin1 or auto")
		}
		return bytes.NewReader(data), nil

	case "latin1", "iso-8859-1":
		return transform.NewReader(bytes.NewReader(data), charmap.ISO8859_1.NewDecoder()), nil

	case "windows-1252", "cp1252":
		return transform.NewReader(bytes.NewReader(data), charmap.Windows1252.NewDecoder()), nil

	default:
		return nil, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}

// configureReader configures the CSV reader based on the options.
func configureReader(reader *csv.Reader, opts Options) {
	switch opts.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if r, _ := utf8.DecodeRuneInString(opts.Delimiter); r != utf8.RuneError {
			reader.Comma = r
		} else {
			reader.Comma = ','
		}
	}

	// Store exports have banner lines with fewer fields than the table.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// IsRowEmpty checks if a row contains only empty values.
func IsRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
