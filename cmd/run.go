package cmd

import (
	"fmt"

	"github.com/crossvenue/arbscan/internal/app"
	"github.com/crossvenue/arbscan/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the scanner daemon",
	Long: `Starts the scanner daemon, which will:
1. Fetch market catalogs from every enabled venue on a fixed interval
2. Match markets across venues and evaluate cross-venue arbitrage
3. Stream live quotes for the markets that matter between scans
4. Notify the configured sinks and serve the dashboard over HTTP

Use --no-realtime to disable venue streams and rely on polling alone.`,
	RunE: runDaemon,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("config", "c", "", "Path to the YAML config file")
	runCmd.Flags().Bool("no-realtime", false, "Disable venue websocket streams, poll only")
}

func runDaemon(cmd *cobra.Command, args []string) error {
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

	// Get flags
	noRealtime, _ := cmd.Flags().GetBool("no-realtime")

	// Create app with options
	opts := &app.Options{
		DisableRealtime: noRealtime,
	}

	application, err := app.New(cfg, logger, opts)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	// Run app
	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
