package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orcat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, RatePolicyAuto, cfg.Rates.Policy)
	assert.Equal(t, 0.5, cfg.Reconciliation.Tolerance)
	assert.False(t, cfg.Reconciliation.Strict)
	assert.Equal(t, 6, cfg.Report.HeaderScanRows)
	assert.Equal(t, 4, cfg.Transactions.HeaderScanRows)
	assert.Equal(t, []string{"Proceeds", "收入.1"}, cfg.Report.Columns.USDRevenue)
	assert.Equal(t, "__TOTAL__", cfg.Output.TotalLabel)
	assert.Equal(t, "0.5", cfg.ToleranceDecimal().String())
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := Load(missing, true)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(missing, false)
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoadOverridesAndKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
rates:
  policy: ratio
reconciliation:
  strict: true
  tolerance: 0.01
report:
  columns:
    local_total: ["Owed"]
output:
  dir: out
`)

	cfg, err := Load(path, false)
	require.NoError(t, err)

	assert.Equal(t, RatePolicyRatio, cfg.Rates.Policy)
	assert.True(t, cfg.Reconciliation.Strict)
	assert.Equal(t, 0.01, cfg.Reconciliation.Tolerance)
	assert.Equal(t, []string{"Owed"}, cfg.Report.Columns.LocalTotal)
	assert.Equal(t, []string{"Proceeds", "收入.1"}, cfg.Report.Columns.USDRevenue)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.Equal(t, "project_summary.csv", cfg.Output.SummaryFile)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `
rates:
  policy: median
reconciliation:
  tolerance: -1
encoding: ebcdic
`)

	_, err := Load(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `rates.policy "median"`)
	assert.Contains(t, err.Error(), "reconciliation.tolerance must not be negative")
	assert.Contains(t, err.Error(), `encoding "ebcdic"`)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "rates: [unclosed")

	_, err := Load(path, false)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Reconciliation.Strict = true

	data, err := cfg.Marshal()
	require.NoError(t, err)

	var back Config
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, *cfg, back)
}

func TestLoadKeepsExplicitZeroTolerances(t *testing.T) {
	path := writeConfig(t, `
rates:
  disagreement_tolerance: 0
reconciliation:
  strict: true
  tolerance: 0
`)

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Zero(t, cfg.Reconciliation.Tolerance)
	assert.Zero(t, cfg.Rates.DisagreementTolerance)
	assert.True(t, cfg.ToleranceDecimal().IsZero())
}

func TestLoadAbsentTolerancesUseDefaults(t *testing.T) {
	path := writeConfig(t, "reconciliation:\n  strict: true\n")

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Reconciliation.Tolerance)
	assert.Equal(t, 1e-4, cfg.Rates.DisagreementTolerance)
}

func TestMarshalOmitsUnsetSeparators(t *testing.T) {
	data, err := Default().Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sku_separators")

	cfg := Default()
	cfg.Mapping.SKUSeparators = []string{";"}
	data, err = cfg.Marshal()
	require.NoError(t, err)

	var back Config
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, []string{";"}, back.Mapping.SKUSeparators)
}
