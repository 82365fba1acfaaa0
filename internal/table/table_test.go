package table

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/iap-orcat/internal/validation"
)

var reportColumns = []ColumnSpec{
	{Name: "currency", Aliases: []string{"Country or Region (Currency)"}, Contains: []string{"currency"}, Required: true},
	{Name: "local_total", Aliases: []string{"Total Owed"}, Required: true},
	{Name: "usd_revenue", Aliases: []string{"Proceeds", "收入.1"}, Required: true},
	{Name: "adjustment", Aliases: []string{"Adjustments"}},
}

func TestResolveSkipsBannerRows(t *testing.T) {
	grid := Grid{
		{"iTunes Connect - Payments and Financial Reports"},
		{"May 2025"},
		{"Country or Region (Currency)", "Total Owed", "Proceeds"},
		{"Japan (JPY)", "10000", "66.50"},
		{"", "", ""},
		{"Euro-Zone (EUR)", "90", "100"},
	}

	frame, err := HeaderScanResolver{Source: "report", ScanRows: 6, Columns: reportColumns}.Resolve(grid)
	require.NoError(t, err)

	assert.Equal(t, 3, frame.HeaderRow)
	assert.Equal(t, map[string]int{"currency": 0, "local_total": 1, "usd_revenue": 2}, frame.Columns)
	assert.False(t, frame.Has("adjustment"))
	require.Len(t, frame.Records, 2)
	assert.Equal(t, 4, frame.Records[0].RowNumber)
	assert.Equal(t, 6, frame.Records[1].RowNumber)
	assert.Equal(t, "Japan (JPY)", frame.Value(frame.Records[0], "currency"))
	assert.Equal(t, "", frame.Value(frame.Records[0], "adjustment"))
	assert.Equal(t, "Proceeds", frame.Header("usd_revenue"))
}

func TestResolveDeduplicatedRevenueHeader(t *testing.T) {
	grid := Grid{
		{"国家或地区 (货币)", "收入", "总欠款", "收入"},
		{"中国 (CNY)", "700", "700", "97.2"},
	}
	cols := []ColumnSpec{
		{Name: "currency", Aliases: []string{"Currency"}, Contains: []string{"货币"}, Required: true},
		{Name: "usd_revenue", Aliases: []string{"收入.1"}, Required: true},
	}

	frame, err := HeaderScanResolver{Source: "report", ScanRows: 1, Columns: cols}.Resolve(grid)
	require.NoError(t, err)

	assert.Equal(t, []string{"国家或地区 (货币)", "收入", "总欠款", "收入.1"}, frame.Headers)
	assert.Equal(t, "97.2", frame.Value(frame.Records[0], "usd_revenue"))
	assert.Equal(t, "中国 (CNY)", frame.Value(frame.Records[0], "currency"))
}

func TestResolveReportsMissingColumnsOfBestRow(t *testing.T) {
	grid := Grid{
		{"banner"},
		{"Country or Region (Currency)", "Proceeds"},
		{"Japan (JPY)", "1"},
	}

	_, err := HeaderScanResolver{Source: "report", ScanRows: 3, Columns: reportColumns}.Resolve(grid)

	var integrity *validation.DataIntegrityError
	require.True(t, errors.As(err, &integrity))
	assert.Equal(t, "report", integrity.Source)
	assert.Equal(t, []string{"local_total (Total Owed)"}, integrity.MissingColumns)
}

func TestResolveOnlyBlankRows(t *testing.T) {
	_, err := HeaderScanResolver{Source: "mapping", ScanRows: 2, Columns: []ColumnSpec{
		{Name: "sku", Aliases: []string{"SKU"}, Required: true},
	}}.Resolve(Grid{{"", ""}})

	var integrity *validation.DataIntegrityError
	require.True(t, errors.As(err, &integrity))
	assert.Equal(t, []string{"sku (SKU)"}, integrity.MissingColumns)
}

func TestResolvePadsShortRowsAndWidensHeaders(t *testing.T) {
	grid := Grid{
		{"SKU", ""},
		{"a"},
		{"b", "x", "extra"},
	}

	frame, err := HeaderScanResolver{Source: "transactions", ScanRows: 1, Columns: []ColumnSpec{
		{Name: "sku", Aliases: []string{"sku"}, Required: true},
	}}.Resolve(grid)
	require.NoError(t, err)

	want := []Record{
		{RowNumber: 2, Cells: []string{"a", "", ""}},
		{RowNumber: 3, Cells: []string{"b", "x", "extra"}},
	}
	if diff := cmp.Diff(want, frame.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"SKU", "Column_2", "Column_3"}, frame.Headers)
}

func TestCleanHeaders(t *testing.T) {
	assert.Equal(t,
		[]string{"A", "A.1", "Column_3", "A.2", "Column_5"},
		CleanHeaders([]string{" A ", "A", "", "A"}, 5),
	)
}

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"1234.5":       "1234.5",
		" 1,234.50 ":   "1234.5",
		"-12":          "-12",
		"(12.00)":      "-12",
		"$1,000":       "1000",
		"1.2E+3":       "1200",
		"1\u00a0000,": "1000",
	}
	for raw, want := range cases {
		got, err := ParseAmount(raw)
		require.NoError(t, err, raw)
		require.True(t, got.Valid, raw)
		assert.Equal(t, want, got.Decimal.String(), raw)
	}

	blank, err := ParseAmount("   ")
	require.NoError(t, err)
	assert.False(t, blank.Valid)

	for _, raw := range []string{"n/a", "-", "12abc", "()"} {
		got, err := ParseAmount(raw)
		assert.Error(t, err, raw)
		assert.False(t, got.Valid, raw)
	}
}

func TestParseAmountOrZero(t *testing.T) {
	v, err := ParseAmountOrZero("")
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	v, err = ParseAmountOrZero("bad")
	assert.Error(t, err)
	assert.True(t, v.IsZero())

	v, err = ParseAmountOrZero("-3.5")
	require.NoError(t, err)
	assert.Equal(t, "-3.5", v.String())
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "tx.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("SKU,Amount\nA,1\n"), 0o644))
	grid, err := Load(csvPath, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, Grid{{"SKU", "Amount"}, {"A", "1"}}, grid)

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"SKU", "Amount"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"B", "2"}))
	xlsxPath := filepath.Join(dir, "tx.xlsx")
	require.NoError(t, f.SaveAs(xlsxPath))
	require.NoError(t, f.Close())

	grid, err = Load(xlsxPath, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, Grid{{"SKU", "Amount"}, {"B", "2"}}, grid)

	_, err = Load(filepath.Join(dir, "old.xls"), LoadOptions{})
	assert.ErrorContains(t, err, "legacy .xls")
}
