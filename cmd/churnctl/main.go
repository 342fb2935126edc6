package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/churnguard/internal/config"
	"github.com/opensource-finance/churnguard/internal/domain"
	"github.com/opensource-finance/churnguard/internal/features"
	"github.com/opensource-finance/churnguard/internal/model"
	"github.com/opensource-finance/churnguard/internal/scoring"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""

	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	formatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml]",
		Value: formatJSON,
	}

	modelFlag = &cli.StringFlag{
		Name:  "model",
		Usage: "Path to the model artifact",
		Value: domain.DefaultConfig().Model.Path,
	}

	schemaFlag = &cli.StringFlag{
		Name:  "schema",
		Usage: "Feature schema the model was fit on [deployment, training]",
		Value: features.SchemaDeployment,
	}

	statsFlag = &cli.StringFlag{
		Name:  "stats",
		Usage: "Path to the frozen reference statistics (optional)",
	}

	inputFlag = &cli.StringFlag{
		Name:     "input",
		Aliases:  []string{"i"},
		Usage:    "Path to the account CSV",
		Required: true,
	}
)

func main() {
	initLogging(false)

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  "churnctl",
		Version:               fmt.Sprintf("%s (%s)", version, commit),
		Usage:                 "Offline tooling for churnguard models and datasets",
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Flags: []cli.Flag{
			debugFlag,
			formatFlag,
		},
		Commands: []*cli.Command{
			fitStatsCmd,
			scoreCmd,
			sweepCmd,
			inspectCmd,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool(debugFlag.Name) {
				initLogging(true)
			}
			return ctx, nil
		},
	}
}

func initLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadService binds the artifact at the model flag path and builds a scoring
// service over the reference statistics, if any were given.
func loadService(cmd *cli.Command) (*scoring.Service, *model.Model, error) {
	holder := model.NewHolder(cmd.String(modelFlag.Name), cmd.String(schemaFlag.Name))
	if err := holder.Load(); err != nil {
		return nil, nil, fmt.Errorf("loading model: %w", err)
	}
	m, _ := holder.Current()

	var stats domain.ReferenceStats
	if path := cmd.String(statsFlag.Name); path != "" {
		s, err := config.LoadStats(path)
		if err != nil {
			return nil, nil, err
		}
		stats = s
	} else if m.Schema.Name == features.SchemaTraining {
		slog.Warn("scoring with the training schema but no reference statistics; outliers will not be capped")
	}

	return scoring.NewService(holder, features.NewDeriver(stats)), m, nil
}

func printOutput(w io.Writer, format string, v any) error {
	if format == formatYAML || format == "yml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
