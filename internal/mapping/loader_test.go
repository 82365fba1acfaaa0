package mapping

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/iap-orcat/internal/config"
	"github.com/ginjaninja78/iap-orcat/internal/table"
	"github.com/ginjaninja78/iap-orcat/internal/types"
	"github.com/ginjaninja78/iap-orcat/internal/validation"
)

func TestSplitSKUs(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitSKUs(" a \r\n\nb\rc\n ", nil))
	assert.Equal(t, []string{"a", "b", "c"}, SplitSKUs("a; b\nc", []string{";"}))
	assert.Nil(t, SplitSKUs("  \n ", nil))
}

func TestBuildExplodesMultiLineCells(t *testing.T) {
	grid := table.Grid{
		{"项目", "SKU"},
		{"Puzzle", "gems100\ngems500\n"},
		{"Racing", "coins"},
		{"", "orphan"},
		{"Arcade", "gems500"},
	}

	cfg := config.Default()
	result, err := Build(grid, Resolver(cfg.Mapping), nil)
	require.NoError(t, err)

	want := types.SkuProjectMap{
		"gems100": "Puzzle",
		"gems500": "Arcade",
		"coins":   "Racing",
	}
	if diff := cmp.Diff(want, result.Map); diff != "" {
		t.Errorf("map mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 4, result.Entries)
	assert.Equal(t, 1, result.Duplicates)
	// Orphan SKU and the remapped duplicate.
	assert.Equal(t, 2, result.Issues.Warnings())
}

func TestBuildMissingProjectColumn(t *testing.T) {
	cfg := config.Default()
	_, err := Build(table.Grid{{"SKU"}, {"a"}}, Resolver(cfg.Mapping), nil)

	var integrity *validation.DataIntegrityError
	require.True(t, errors.As(err, &integrity))
	assert.Equal(t, "mapping", integrity.Source)
}

func TestLoadWorkbookWithWrappedCell(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Project", "SKU"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Puzzle", "gems100\ngems500"}))
	path := filepath.Join(t.TempDir(), "mapping.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	result, err := Load(path, config.Default())
	require.NoError(t, err)
	assert.Equal(t, types.SkuProjectMap{"gems100": "Puzzle", "gems500": "Puzzle"}, result.Map)
	assert.Empty(t, result.Issues)
}
