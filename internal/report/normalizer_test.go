package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/iap-orcat/internal/config"
	"github.com/ginjaninja78/iap-orcat/internal/table"
	"github.com/ginjaninja78/iap-orcat/internal/validation"
)

func TestExtractCurrency(t *testing.T) {
	cases := map[string]string{
		"Japan (JPY)":                "JPY",
		"Euro-Zone ( eur )":          "EUR",
		"中国 (CNY)":                   "CNY",
		" usd ":                      "USD",
		"Americas (US) (USD)":        "USD",
		"Total":                      "",
		"":                           "",
		"United States (US Dollars)": "",
		"US":                         "",
		"Sum":                        "",
		"All":                        "",
		"jpy":                        "JPY",
	}
	for raw, want := range cases {
		assert.Equal(t, want, ExtractCurrency(raw), raw)
	}
}

func TestNormalizeChineseReport(t *testing.T) {
	grid := table.Grid{
		{"Apple 财务报告"},
		{"国家或地区 (货币)", "收入", "调整", "预扣税", "总欠款", "汇率", "收入"},
		{"美国 (USD)", "1000", "0", "0", "1000", "1", "1000"},
		{"欧元区 (EUR)", "900", "10", "5", "900", "", "1,000.00"},
		{"合计", "", "", "", "", "", "2000"},
	}

	cfg := config.Default()
	result, err := Normalize(grid, Resolver(cfg.Report), cfg.Report.RateOrientation)
	require.NoError(t, err)

	require.Len(t, result.Rows, 2)
	assert.True(t, result.HasReportedRate)
	assert.Equal(t, 1, result.SkippedRows)

	usd := result.Rows[0]
	assert.Equal(t, "USD", usd.Currency)
	assert.Equal(t, 3, usd.RowNumber)
	assert.Equal(t, "1000", usd.LocalTotal.Decimal.String())
	assert.Equal(t, "1000", usd.USDRevenue.Decimal.String())
	assert.True(t, usd.ReportedRate.Valid)

	eur := result.Rows[1]
	assert.Equal(t, "EUR", eur.Currency)
	assert.Equal(t, "900", eur.LocalTotal.Decimal.String())
	assert.Equal(t, "1000", eur.USDRevenue.Decimal.String())
	assert.Equal(t, "10", eur.LocalAdjustment.String())
	assert.Equal(t, "5", eur.LocalWithholding.String())
	assert.False(t, eur.ReportedRate.Valid)

	assert.Equal(t, 0, result.Issues.Warnings())
}

func TestNormalizeUnparseableAmountIsUndefined(t *testing.T) {
	grid := table.Grid{
		{"Country or Region (Currency)", "Total Owed", "Proceeds", "Adjustments"},
		{"Japan (JPY)", "n/a", "66.5", "oops"},
	}

	cfg := config.Default()
	result, err := Normalize(grid, Resolver(cfg.Report), cfg.Report.RateOrientation)
	require.NoError(t, err)

	require.Len(t, result.Rows, 1)
	row := result.Rows[0]
	assert.False(t, row.LocalTotal.Valid)
	assert.True(t, row.USDRevenue.Valid)
	assert.True(t, row.LocalAdjustment.IsZero())
	assert.True(t, row.LocalWithholding.IsZero())
	assert.False(t, result.HasReportedRate)
	assert.Equal(t, 2, result.Issues.Warnings())
}

func TestNormalizeInvertsLocalPerUSDRate(t *testing.T) {
	grid := table.Grid{
		{"Currency", "Total Owed", "Proceeds", "Exchange Rate"},
		{"JPY", "15000", "100", "150"},
		{"EUR", "90", "100", "-1"},
	}

	cfg := config.Default()
	result, err := Normalize(grid, Resolver(cfg.Report), config.OrientationLocalPerUSD)
	require.NoError(t, err)

	require.Len(t, result.Rows, 2)
	jpy := result.Rows[0].ReportedRate
	require.True(t, jpy.Valid)
	assert.Equal(t, "0.00667", jpy.Decimal.StringFixed(5))

	assert.False(t, result.Rows[1].ReportedRate.Valid)
	assert.Equal(t, 1, result.Issues.Warnings())
}

func TestNormalizeNoCurrencyRows(t *testing.T) {
	grid := table.Grid{
		{"Country or Region (Currency)", "Total Owed", "Proceeds"},
		{"Total", "1", "1"},
	}

	cfg := config.Default()
	_, err := Normalize(grid, Resolver(cfg.Report), cfg.Report.RateOrientation)

	var integrity *validation.DataIntegrityError
	require.True(t, errors.As(err, &integrity))
	assert.Equal(t, "report", integrity.Source)
}

func TestNormalizeMissingColumn(t *testing.T) {
	grid := table.Grid{
		{"Country or Region (Currency)", "Total Owed"},
		{"Japan (JPY)", "1"},
	}

	cfg := config.Default()
	_, err := Normalize(grid, Resolver(cfg.Report), cfg.Report.RateOrientation)

	var integrity *validation.DataIntegrityError
	require.True(t, errors.As(err, &integrity))
	require.Len(t, integrity.MissingColumns, 1)
	assert.Contains(t, integrity.MissingColumns[0], "usd_revenue")
}

func TestLoadFromCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	content := "\ufeffCountry or Region (Currency),Total Owed,Proceeds\nEuro-Zone (EUR),\"1,800\",2000\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	result, err := Load(path, config.Default())
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "1800", result.Rows[0].LocalTotal.Decimal.String())
}

func TestNormalizeSkipsBareFooterWords(t *testing.T) {
	grid := table.Grid{
		{"Currency", "Total Owed", "Proceeds"},
		{"USD", "1000", "1000"},
		{"jpy", "150000", "1000"},
		{"Sum", "", "2000"},
		{"All", "151000", "2000"},
	}

	cfg := config.Default()
	result, err := Normalize(grid, Resolver(cfg.Report), cfg.Report.RateOrientation)
	require.NoError(t, err)

	require.Len(t, result.Rows, 2)
	assert.Equal(t, "USD", result.Rows[0].Currency)
	assert.Equal(t, "JPY", result.Rows[1].Currency)
	assert.Equal(t, 2, result.SkippedRows)
}
