// =============================================================================
// IAP ORCAT - Version Command
// =============================================================================
//
// COMMAND USAGE:
//   orcat version
//
// OUTPUT:
//   IAP ORCAT 0.1.0 (commit 1a2b3c4, built 2025-06-01, go1.24.0 linux/amd64)
//
// Version, Commit and BuildDate are stamped by the release build:
//
//   go build -ldflags "\
//     -X github.com/ginjaninja78/iap-orcat/cmd.Version=0.1.0 \
//     -X github.com/ginjaninja78/iap-orcat/cmd.Commit=$(git rev-parse --short HEAD) \
//     -X github.com/ginjaninja78/iap-orcat/cmd.BuildDate=$(date -u +%Y-%m-%d)"
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// versionLine renders the build stamp as one line.
func versionLine() string {
	return fmt.Sprintf("IAP ORCAT %s (commit %s, built %s, %s %s/%s)",
		Version, Commit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the build version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionLine())
	},
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.AddCommand(versionCmd)
}
