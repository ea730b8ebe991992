package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/crossvenue/arbscan/internal/app"
	"github.com/crossvenue/arbscan/internal/scanner"
	"github.com/crossvenue/arbscan/pkg/config"
	"github.com/crossvenue/arbscan/pkg/types"
	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

const scanTimeout = 60 * time.Second

//nolint:gochecknoglobals // Cobra boilerplate
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single scan and print the results",
	Long: `Runs one catalog scan across all enabled venues, evaluates every
matched pair, prints the detected opportunities and exits. No streams
are opened and no notifications are sent.`,
	RunE: runScanOnce,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringP("config", "c", "", "Path to the YAML config file")
	scanCmd.Flags().BoolP("json", "j", false, "Print the result as JSON instead of tables")
	scanCmd.Flags().IntP("limit", "l", 20, "Maximum opportunities to print")
}

func runScanOnce(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("scan did not complete")
	}
	if result.AllUnreachable() {
		return app.ErrNoVenuesReachable
	}

	// The scan emits opportunities in pair order; readers want best first.
	opps := result.Opportunities
	sort.Slice(opps, func(i, j int) bool {
		if opps[i].EdgePct != opps[j].EdgePct {
			return opps[i].EdgePct > opps[j].EdgePct
		}
		return opps[i].Key() < opps[j].Key()
	})
	limit, _ := cmd.Flags().GetInt("limit")
	if limit > 0 && len(opps) > limit {
		opps = opps[:limit]
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		return printScanJSON(os.Stdout, result, opps)
	}

	printVenueTable(os.Stdout, result)
	printOpportunityTable(os.Stdout, opps)
	return nil
}

func printVenueTable(out io.Writer, result *scanner.ScanResult) {
	fmt.Fprintf(out, "\nScan finished in %dms\n\n", result.Duration.Milliseconds())

	table := tablewriter.NewWriter(out)
	table.Header("Venue", "Status", "Markets", "Error")
	for _, venue := range types.AllVenues() {
		vs, ok := result.Venues[venue]
		if !ok {
			continue
		}
		table.Append(string(venue), string(vs.Status), fmt.Sprintf("%d", vs.Markets), vs.Error)
	}
	table.Render()
}

func printOpportunityTable(out io.Writer, opps []*types.Opportunity) {
	if len(opps) == 0 {
		fmt.Fprintln(out, "\nNo opportunities above threshold.")
		return
	}

	fmt.Fprintf(out, "\n%d opportunities\n\n", len(opps))

	table := tablewriter.NewWriter(out)
	table.Header("#", "Edge", "Combined", "Yes Leg", "Ask", "No Leg", "Ask", "Size", "Conf")
	for i, opp := range opps {
		yes, no := opp.Legs()
		table.Append(
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.2f%%", opp.EdgePct),
			fmt.Sprintf("%.4f", opp.CombinedPrice),
			legLabel(yes),
			fmt.Sprintf("%.3f", yes.Ask(types.SideYes)),
			legLabel(no),
			fmt.Sprintf("%.3f", no.Ask(types.SideNo)),
			sizeLabel(opp.AskSizeMin),
			fmt.Sprintf("%.2f", opp.Confidence),
		)
	}
	table.Render()
}

type scanOutput struct {
	DurationMS    int64                              `json:"duration_ms"`
	Venues        map[types.Venue]scanner.VenueState `json:"venues"`
	Opportunities []*types.Opportunity               `json:"opportunities"`
}

func printScanJSON(out io.Writer, result *scanner.ScanResult, opps []*types.Opportunity) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(scanOutput{
		DurationMS:    result.Duration.Milliseconds(),
		Venues:        result.Venues,
		Opportunities: opps,
	})
}

func legLabel(m *types.MarketSnapshot) string {
	label := fmt.Sprintf("%s %s", m.Venue, compactTitle(m.Title, 32))
	if m.Derived {
		label += " (derived)"
	}
	return label
}

func sizeLabel(size float64) string {
	if size <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f", size)
}

func compactTitle(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := s[:maxLen]
	if idx := strings.LastIndex(cut, " "); idx > maxLen/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}
