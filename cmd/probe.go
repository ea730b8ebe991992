package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/crossvenue/arbscan/internal/app"
	"github.com/crossvenue/arbscan/internal/scanner"
	"github.com/crossvenue/arbscan/pkg/config"
	"github.com/crossvenue/arbscan/pkg/types"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check venue connectivity and catalog health",
	Long: `Fetches the catalog from every enabled venue once and reports each
venue's status, catalog size and a sample of its highest-volume markets.
Useful for verifying credentials and endpoints before starting the
daemon.`,
	RunE: runProbe,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().StringP("config", "c", "", "Path to the YAML config file")
	probeCmd.Flags().IntP("limit", "l", 5, "Markets to sample per venue")
}

func runProbe(cmd *cobra.Command, args []string) error {
	// Load config
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create logger
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger, &app.Options{DisableRealtime: true})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	result := application.ScanOnce(ctx)
	if result == nil {
		return fmt.Errorf("probe did not complete")
	}

	printVenueTable(os.Stdout, result)

	limit, _ := cmd.Flags().GetInt("limit")
	for _, venue := range types.AllVenues() {
		if _, ok := result.Venues[venue]; !ok {
			continue
		}
		printVenueSample(os.Stdout, venue, result, limit)
	}

	if result.AllUnreachable() {
		return app.ErrNoVenuesReachable
	}
	return nil
}

func printVenueSample(out io.Writer, venue types.Venue, result *scanner.ScanResult, limit int) {
	catalog := result.Catalogs[venue]
	if len(catalog) == 0 {
		fmt.Fprintf(out, "\n%s: no markets\n", venue)
		return
	}

	sample := make([]*types.MarketSnapshot, len(catalog))
	copy(sample, catalog)
	sort.Slice(sample, func(i, j int) bool {
		return sample[i].Volume24hUSD > sample[j].Volume24hUSD
	})
	if limit > 0 && len(sample) > limit {
		sample = sample[:limit]
	}

	fmt.Fprintf(out, "\n%s: %d markets, top %d by 24h volume\n\n", venue, len(catalog), len(sample))

	table := tablewriter.NewWriter(out)
	table.Header("Market", "Title", "Yes", "No", "Vol 24h", "Liquidity")
	for _, m := range sample {
		table.Append(
			compactTitle(m.VenueMarketID, 20),
			compactTitle(m.Title, 40),
			quoteLabel(m.YesBid, m.YesAsk),
			quoteLabel(m.NoBid, m.NoAsk),
			fmt.Sprintf("%.0f", m.Volume24hUSD),
			fmt.Sprintf("%.0f", m.LiquidityUSD),
		)
	}
	table.Render()
}

// quoteLabel renders a bid/ask pair; catalogs without quotes show "-".
func quoteLabel(bid, ask float64) string {
	if bid <= 0 && ask <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f/%.2f", bid, ask)
}
