// main.go - batch analytics pipeline CLI
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"atlaslens/internal/artifacts"
	"atlaslens/internal/config"
	"atlaslens/internal/database"
	"atlaslens/internal/logging"
	"atlaslens/internal/pipeline"
)

func main() {
	var (
		inputPath string
		outputDir string
		horizon   int
		threads   int
	)

	rootCmd := &cobra.Command{
		Use:   "atlaslens",
		Short: "Batch ML analytics over columnar web traffic logs",
		Long: "atlaslens reconstructs visitor sessions from a parquet traffic log and runs " +
			"forecasting, anomaly detection, and behavioral models, writing one JSON artifact per model.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetConfig()
			if cmd.Flags().Changed("input") {
				cfg.InputPath = inputPath
			}
			if cmd.Flags().Changed("output-dir") {
				cfg.OutputDirectory = outputDir
			}
			if cmd.Flags().Changed("forecast-horizon") {
				cfg.ForecastHorizonMonths = horizon
			}
			if cmd.Flags().Changed("threads") {
				cfg.Threads = threads
			}
			return run(cmd.Context(), cfg)
		},
	}

	rootCmd.Flags().StringVar(&inputPath, "input", "", "path to the parquet traffic log")
	rootCmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for the JSON artifacts")
	rootCmd.Flags().IntVar(&horizon, "forecast-horizon", 0, "months to forecast ahead")
	rootCmd.Flags().IntVar(&threads, "threads", 0, "worker and query thread count")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.NewLogger(cfg)

	db, err := database.NewManager(cfg.Threads, logger)
	if err != nil {
		return fmt.Errorf("error opening analytical database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	writer, err := artifacts.NewWriter(cfg.OutputDirectory)
	if err != nil {
		return err
	}

	meta, err := pipeline.New(cfg, config.DefaultPolicy(), db, writer, logger).Run(ctx)
	if err != nil {
		logger.Error("Pipeline failed", "error", err)
		return err
	}

	fmt.Printf("Wrote %d artifacts to %s\n", len(meta.Outputs), meta.OutputDir)
	return nil
}
