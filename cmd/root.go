package cmd

import (
	"errors"
	"os"

	"github.com/crossvenue/arbscan/internal/app"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "arbscan",
	Short: "Cross-venue prediction market arbitrage scanner",
	Long: `arbscan watches binary prediction markets across several venues,
matches listings that describe the same real-world event, and flags
cross-venue arbitrage: buying YES on one venue and NO on another for a
combined price below the 1.0 payout, net of fees.

Detected opportunities are published on a local dashboard and pushed to
the configured notification sinks. The scanner is read-only and never
places orders.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
//
// Exit code 2 means no venue was reachable; any other failure exits 1.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	if errors.Is(err, app.ErrNoVenuesReachable) {
		os.Exit(2)
	}
	os.Exit(1)
}
