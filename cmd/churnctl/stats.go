package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/opensource-finance/churnguard/internal/config"
	"github.com/opensource-finance/churnguard/internal/dataset"
	"github.com/opensource-finance/churnguard/internal/features"
)

var (
	statsOutputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Where to write the statistics YAML (default: stdout)",
	}

	fitStatsCmd = &cli.Command{
		Name:  "fit-stats",
		Usage: "Fit frozen reference statistics (percentile caps, median charges) from labeled training data",
		UsageText: `churnctl fit-stats --input data/train.csv --output configs/reference_stats.yaml
   churnctl fit-stats -i data/train.csv                      # print to stdout`,
		Action: cmdFitStats,
		Flags: []cli.Flag{
			inputFlag,
			statsOutputFlag,
		},
	}
)

func cmdFitStats(ctx context.Context, cmd *cli.Command) error {
	records, err := dataset.ReadFile(cmd.String(inputFlag.Name))
	if err != nil {
		return err
	}

	stats, err := features.FitStats(records)
	if err != nil {
		return fmt.Errorf("fitting statistics: %w", err)
	}
	slog.Info("statistics fitted", "rows", stats.Rows, "median_monthly_charges", stats.MedianMonthlyCharges)

	out := cmd.String(statsOutputFlag.Name)
	if out == "" {
		return printOutput(os.Stdout, formatYAML, stats)
	}
	if err := config.SaveStats(out, stats); err != nil {
		return err
	}
	slog.Info("statistics written", "path", out)
	return nil
}
