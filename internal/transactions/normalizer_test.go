package transactions

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/iap-orcat/internal/config"
	"github.com/ginjaninja78/iap-orcat/internal/table"
	"github.com/ginjaninja78/iap-orcat/internal/validation"
)

func TestNormalizeKeepsEveryRow(t *testing.T) {
	grid := table.Grid{
		{"Sales report"},
		{"Start Date", "SKU", "Extended Partner Share", "Partner Share Currency"},
		{"2025-05-01", "sku.a", "500", "usd"},
		{"2025-05-02", "sku.b", "", "EUR"},
		{"2025-05-03", "sku.c", "12", "??"},
	}

	cfg := config.Default()
	result, err := Normalize(grid, Resolver(cfg.Transactions))
	require.NoError(t, err)

	assert.Equal(t, []string{"Start Date", "SKU", "Extended Partner Share", "Partner Share Currency"}, result.Headers)
	require.Len(t, result.Rows, 3)

	a := result.Rows[0]
	assert.Equal(t, 3, a.RowNumber)
	assert.Equal(t, "USD", a.Currency)
	assert.Equal(t, "sku.a", a.SKU)
	assert.Equal(t, "500", a.LocalAmount.Decimal.String())
	assert.Equal(t, []string{"2025-05-01", "sku.a", "500", "usd"}, a.Fields)

	assert.False(t, result.Rows[1].LocalAmount.Valid)
	assert.Equal(t, "", result.Rows[2].Currency)

	// One warning for the unknown currency cell, one summary for the blank amount.
	assert.Equal(t, 2, result.Issues.Warnings())
}

func TestNormalizeNoDataRows(t *testing.T) {
	grid := table.Grid{
		{"SKU", "Extended Partner Share", "Partner Share Currency"},
	}

	cfg := config.Default()
	_, err := Normalize(grid, Resolver(cfg.Transactions))

	var integrity *validation.DataIntegrityError
	require.True(t, errors.As(err, &integrity))
	assert.Equal(t, "transactions", integrity.Source)
}

func TestLoadFromWorkbook(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"SKU", "Extended Partner Share", "Partner Share Currency"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"sku.a", 450, "EUR"}))
	path := filepath.Join(t.TempDir(), "tx.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	result, err := Load(path, config.Default())
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "450", result.Rows[0].LocalAmount.Decimal.String())
	assert.Equal(t, "EUR", result.Rows[0].Currency)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"), config.Default())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
