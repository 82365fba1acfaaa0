// =============================================================================
// IAP ORCAT Pipeline - Configuration Module
// =============================================================================
//
// This module loads the run configuration. A single YAML file describes:
//   1. How each input is read (column aliases, header scan depth, encoding)
//   2. Which rate-derivation policy is used
//   3. The reconciliation contract (strict mode, tolerance)
//   4. The output file set
//
// Every setting has a built-in default, so the tool runs without a config
// file. Run-level knobs can be overridden by flags and ORCAT_* environment
// variables (see cmd/root.go).
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// Rate policies.
const (
	RatePolicyAuto     = "auto"
	RatePolicyRatio    = "ratio"
	RatePolicyReported = "reported"
)

// Reported rate orientations.
const (
	OrientationUSDPerLocal = "usd_per_local"
	OrientationLocalPerUSD = "local_per_usd"
)

// Encodings understood by the CSV reader.
const (
	EncodingAuto        = "auto"
	EncodingUTF8        = "utf-8"
	EncodingLatin1      = "latin1"
	EncodingWindows1252 = "windows-1252"
)

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the full run configuration.
type Config struct {
	// Encoding is the character encoding of CSV inputs.
	// "auto" strips a UTF-8 BOM and falls back to Latin-1 on invalid UTF-8.
	Encoding string `yaml:"encoding"`

	// Delimiter separates fields in CSV inputs.
	Delimiter string `yaml:"delimiter"`

	Report         ReportConfig         `yaml:"report"`
	Transactions   TransactionsConfig   `yaml:"transactions"`
	Mapping        MappingConfig        `yaml:"mapping"`
	Rates          RatesConfig          `yaml:"rates"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	Output         OutputConfig         `yaml:"output"`
}

// ReportConfig describes the App-store financial report.
type ReportConfig struct {
	// HeaderScanRows is how many leading rows are tried as the header row.
	HeaderScanRows int `yaml:"header_scan_rows"`

	// Sheet selects an XLSX sheet by name. Empty means the first sheet.
	Sheet string `yaml:"sheet"`

	Columns ReportColumns `yaml:"columns"`

	// RateOrientation is the orientation of the report's exchange rate column.
	RateOrientation string `yaml:"rate_orientation"`
}

// ReportColumns lists the header aliases of each logical report column.
type ReportColumns struct {
	Currency     []string `yaml:"currency"`
	LocalTotal   []string `yaml:"local_total"`
	USDRevenue   []string `yaml:"usd_revenue"`
	Adjustment   []string `yaml:"adjustment"`
	Withholding  []string `yaml:"withholding"`
	ReportedRate []string `yaml:"reported_rate"`

	// CurrencyContains is the fallback for the currency column: the first
	// header containing any of these tokens (case-insensitive) is used.
	CurrencyContains []string `yaml:"currency_contains"`
}

// TransactionsConfig describes the transaction export.
type TransactionsConfig struct {
	HeaderScanRows int                `yaml:"header_scan_rows"`
	Sheet          string             `yaml:"sheet"`
	Columns        TransactionColumns `yaml:"columns"`
}

// TransactionColumns lists the header aliases of each logical transaction column.
type TransactionColumns struct {
	LocalAmount []string `yaml:"local_amount"`
	Currency    []string `yaml:"currency"`
	SKU         []string `yaml:"sku"`
}

// MappingConfig describes the SKU-to-project workbook.
type MappingConfig struct {
	HeaderScanRows int            `yaml:"header_scan_rows"`
	Sheet          string         `yaml:"sheet"`
	Columns        MappingColumns `yaml:"columns"`

	// SKUSeparators split a multi-value SKU cell in addition to line breaks.
	SKUSeparators []string `yaml:"sku_separators,omitempty"`
}

// MappingColumns lists the header aliases of each logical mapping column.
type MappingColumns struct {
	Project []string `yaml:"project"`
	SKU     []string `yaml:"sku"`
}

// RatesConfig controls rate derivation.
type RatesConfig struct {
	// Policy is "auto", "ratio" or "reported".
	Policy string `yaml:"policy"`

	// DisagreementTolerance is the relative spread ((max-min)/median) of
	// per-row reported rates above which a currency is flagged.
	DisagreementTolerance float64 `yaml:"disagreement_tolerance"`
}

// ReconciliationConfig is the reconciliation contract.
type ReconciliationConfig struct {
	// Strict fails the run when the delta exceeds Tolerance.
	Strict bool `yaml:"strict"`

	// Tolerance is the absolute USD tolerance.
	Tolerance float64 `yaml:"tolerance"`
}

// OutputConfig describes the output file set.
type OutputConfig struct {
	Dir string `yaml:"dir"`

	RatesFile        string `yaml:"rates_file"`
	TransactionsFile string `yaml:"transactions_file"`
	SummaryFile      string `yaml:"summary_file"`
	RunLogFile       string `yaml:"run_log_file"`
	ErrorFile        string `yaml:"error_file"`
	WorkbookFile     string `yaml:"workbook_file"`

	// Workbook also writes the XLSX summary workbook.
	Workbook bool `yaml:"workbook"`

	// Precision is the number of decimal places written for amounts.
	Precision int32 `yaml:"precision"`

	UnmappedLabel string `yaml:"unmapped_label"`
	TotalLabel    string `yaml:"total_label"`
}

// =============================================================================
// LOADING
// =============================================================================

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := seeded()
	applyDefaults(cfg)
	return cfg
}

// seeded returns a Config holding the defaults of fields where zero is a
// meaningful value. The file is decoded on top of it, so only an absent key
// keeps the default.
func seeded() *Config {
	cfg := &Config{}
	cfg.Rates.DisagreementTolerance = 1e-4
	cfg.Reconciliation.Tolerance = 0.5
	return cfg
}

// Load reads a YAML configuration file, applies defaults and validates it.
//
// A missing file is not an error when allowMissing is set; the defaults are
// returned instead. This lets the default --config path be optional.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := seeded()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToleranceDecimal returns the reconciliation tolerance as a decimal.
func (c *Config) ToleranceDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.Reconciliation.Tolerance)
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.Encoding == "" {
		cfg.Encoding = EncodingAuto
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = ","
	}

	// Report defaults follow the Apple financial report in English and Chinese.
	// The second "收入" column is de-duplicated to "收入.1" by the header resolver.
	r := &cfg.Report
	if r.HeaderScanRows == 0 {
		r.HeaderScanRows = 6
	}
	if r.RateOrientation == "" {
		r.RateOrientation = OrientationUSDPerLocal
	}
	setDefault(&r.Columns.Currency, "Country or Region (Currency)", "国家或地区 (货币)", "Currency", "货币")
	setDefault(&r.Columns.CurrencyContains, "currency", "货币")
	setDefault(&r.Columns.LocalTotal, "Total Owed", "总欠款")
	setDefault(&r.Columns.USDRevenue, "Proceeds", "收入.1")
	setDefault(&r.Columns.Adjustment, "Adjustments", "调整")
	setDefault(&r.Columns.Withholding, "Withholding Tax", "预扣税")
	setDefault(&r.Columns.ReportedRate, "Exchange Rate", "汇率")

	tx := &cfg.Transactions
	if tx.HeaderScanRows == 0 {
		tx.HeaderScanRows = 4
	}
	setDefault(&tx.Columns.LocalAmount, "Extended Partner Share")
	setDefault(&tx.Columns.Currency, "Partner Share Currency")
	setDefault(&tx.Columns.SKU, "SKU")

	m := &cfg.Mapping
	if m.HeaderScanRows == 0 {
		m.HeaderScanRows = 1
	}
	setDefault(&m.Columns.Project, "项目", "Project")
	setDefault(&m.Columns.SKU, "SKU")

	if cfg.Rates.Policy == "" {
		cfg.Rates.Policy = RatePolicyAuto
	}
	o := &cfg.Output
	if o.Dir == "" {
		o.Dir = "output"
	}
	if o.RatesFile == "" {
		o.RatesFile = "rates.csv"
	}
	if o.TransactionsFile == "" {
		o.TransactionsFile = "transactions_usd_net_project.csv"
	}
	if o.SummaryFile == "" {
		o.SummaryFile = "project_summary.csv"
	}
	if o.RunLogFile == "" {
		o.RunLogFile = "run_log.txt"
	}
	if o.ErrorFile == "" {
		o.ErrorFile = "run_error.txt"
	}
	if o.WorkbookFile == "" {
		o.WorkbookFile = "orcat_summary.xlsx"
	}
	if o.Precision == 0 {
		o.Precision = 6
	}
	if o.UnmappedLabel == "" {
		o.UnmappedLabel = "(unmapped)"
	}
	if o.TotalLabel == "" {
		o.TotalLabel = "__TOTAL__"
	}
}

func setDefault(target *[]string, values ...string) {
	if len(*target) == 0 {
		*target = values
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string

	switch c.Rates.Policy {
	case RatePolicyAuto, RatePolicyRatio, RatePolicyReported:
	default:
		problems = append(problems, fmt.Sprintf("rates.policy %q is not one of auto, ratio, reported", c.Rates.Policy))
	}

	switch c.Report.RateOrientation {
	case OrientationUSDPerLocal, OrientationLocalPerUSD:
	default:
		problems = append(problems, fmt.Sprintf("report.rate_orientation %q is not one of usd_per_local, local_per_usd", c.Report.RateOrientation))
	}

	switch strings.ToLower(c.Encoding) {
	case EncodingAuto, EncodingUTF8, "utf8", EncodingLatin1, "iso-8859-1", EncodingWindows1252, "cp1252":
	default:
		problems = append(problems, fmt.Sprintf("encoding %q is not supported", c.Encoding))
	}

	if c.Reconciliation.Tolerance < 0 {
		problems = append(problems, "reconciliation.tolerance must not be negative")
	}
	if c.Rates.DisagreementTolerance < 0 {
		problems = append(problems, "rates.disagreement_tolerance must not be negative")
	}
	if c.Output.Precision < 0 || c.Output.Precision > 16 {
		problems = append(problems, "output.precision must be between 0 and 16")
	}
	if c.Output.UnmappedLabel == c.Output.TotalLabel {
		problems = append(problems, "output.unmapped_label and output.total_label must differ")
	}
	if c.Report.HeaderScanRows < 1 {
		problems = append(problems, "report.header_scan_rows must be at least 1")
	}
	if c.Transactions.HeaderScanRows < 1 {
		problems = append(problems, "transactions.header_scan_rows must be at least 1")
	}
	if c.Mapping.HeaderScanRows < 1 {
		problems = append(problems, "mapping.header_scan_rows must be at least 1")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
