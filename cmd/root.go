// =============================================================================
// IAP ORCAT - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (orcat)
//   ├── runCmd      (orcat run)
//   ├── ratesCmd    (orcat rates)
//   ├── validateCmd (orcat validate)
//   ├── configCmd   (orcat config)
//   └── versionCmd  (orcat version)
//
// The root command owns the global flags (--config, --verbose), loads .env
// and sets up console logging before any subcommand runs.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the run configuration file.
var cfgFile string

// verbose enables debug logging.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "orcat",
	Short: "IAP ORCAT - reconcile in-app purchase revenue to projects in USD",
	Long: `IAP ORCAT converts an in-app purchase transaction export to USD using
rates derived from the store's financial report, allocates the report's
adjustments and withholding tax pro-rata across transactions, rolls the
result up by project and checks it against the report's USD total.

Example Usage:
  orcat run --tx sales.csv --report financial.csv --mapping skus.xlsx
  orcat rates --report financial.csv
  orcat validate --tx sales.csv --report financial.csv --mapping skus.xlsx
  orcat config --config ./orcat.yaml`,

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called once by main.main and exits
// with status 1 on any error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		defaultConfigFile,
		"Path to the run configuration file (built-in defaults when the default file is absent)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)

	// Errors are printed once by Execute.
	rootCmd.SilenceErrors = true

	cobra.OnInitialize(initEnvironment)
}

// initEnvironment loads .env into the process environment and configures the
// console logger.
func initEnvironment() {
	_ = godotenv.Load()

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
}
