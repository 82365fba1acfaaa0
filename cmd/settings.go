package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ginjaninja78/iap-orcat/internal/config"
)

// defaultConfigFile is read when present; its absence means built-in defaults.
const defaultConfigFile = "orcat.yaml"

// envPrefix prefixes every environment override, e.g. ORCAT_STRICT.
const envPrefix = "ORCAT"

// Run-level settings that can be overridden by a flag or an ORCAT_<KEY>
// environment variable. Precedence is flag, environment, file, default.
const (
	keyConfig     = "config"
	keyStrict     = "strict"
	keyTolerance  = "tolerance"
	keyRatePolicy = "rate_policy"
	keyOutputDir  = "output_dir"
	keyEncoding   = "encoding"
	keyWorkbook   = "xlsx"
)

// flagNames maps each setting to the command flag that sets it.
var flagNames = map[string]string{
	keyConfig:     "config",
	keyStrict:     "strict",
	keyTolerance:  "tolerance",
	keyRatePolicy: "rate-policy",
	keyOutputDir:  "outdir",
	keyEncoding:   "encoding",
	keyWorkbook:   "xlsx",
}

// newSettings binds the environment and whichever of the override flags the
// flag set defines.
func newSettings(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	for key, name := range flagNames {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return v, nil
}

// applyOverrides copies every explicitly set override onto cfg.
func applyOverrides(cfg *config.Config, v *viper.Viper) {
	if v.IsSet(keyStrict) {
		cfg.Reconciliation.Strict = v.GetBool(keyStrict)
	}
	if v.IsSet(keyTolerance) {
		cfg.Reconciliation.Tolerance = v.GetFloat64(keyTolerance)
	}
	if v.IsSet(keyRatePolicy) {
		cfg.Rates.Policy = v.GetString(keyRatePolicy)
	}
	if v.IsSet(keyOutputDir) {
		cfg.Output.Dir = v.GetString(keyOutputDir)
	}
	if v.IsSet(keyEncoding) {
		cfg.Encoding = v.GetString(keyEncoding)
	}
	if v.IsSet(keyWorkbook) {
		cfg.Output.Workbook = v.GetBool(keyWorkbook)
	}
}

// loadSettings resolves the effective configuration from the flag set.
//
// PARAMETERS:
//   - flags: The parsed flags of the running command, global flags included.
//
// RETURNS:
//   - The validated configuration.
//   - An error if the file cannot be read or the result is invalid.
func loadSettings(flags *pflag.FlagSet) (*config.Config, error) {
	v, err := newSettings(flags)
	if err != nil {
		return nil, err
	}

	path := defaultConfigFile
	explicit := v.IsSet(keyConfig)
	if explicit {
		path = v.GetString(keyConfig)
	}

	cfg, err := config.Load(path, !explicit)
	if err != nil {
		return nil, err
	}

	applyOverrides(cfg, v)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return loadSettings(cmd.Flags())
}
