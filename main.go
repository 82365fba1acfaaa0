// =============================================================================
// IAP ORCAT - Main Entry Point
// =============================================================================
//
// IAP ORCAT reconciles an in-app purchase transaction export with the store's
// financial report: rates are derived from the report, transactions are
// converted to USD, adjustments and withholding tax are allocated pro-rata
// and the result is rolled up by project.
//
// USAGE:
//   orcat run        - Run the whole pipeline and write the output set
//   orcat rates      - Print the rate table derived from a report
//   orcat validate   - Check the inputs without writing anything
//   orcat config     - Print the effective configuration
//   orcat version    - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Core business logic (not for external import)
//   - pkg/           : Shared file-management utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/iap-orcat/cmd"
)

func main() {
	cmd.Execute()
}
