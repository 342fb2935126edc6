package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/opensource-finance/churnguard/internal/dataset"
	"github.com/opensource-finance/churnguard/internal/policy"
)

var (
	thresholdsFlag = &cli.Float64SliceFlag{
		Name:  "threshold",
		Usage: "Candidate threshold (can be specified multiple times, default: 0.10 to 0.89 by 0.01)",
	}

	sweepCmd = &cli.Command{
		Name:  "sweep",
		Usage: "Report accuracy, precision, recall and F1 across decision thresholds on labeled data",
		UsageText: `churnctl sweep --input data/test.csv
   churnctl --format yaml sweep -i data/test.csv --threshold 0.35 --threshold 0.42 --threshold 0.5`,
		Action: cmdSweep,
		Flags: []cli.Flag{
			inputFlag,
			modelFlag,
			schemaFlag,
			statsFlag,
			thresholdsFlag,
			workersFlag,
		},
	}
)

type sweepReport struct {
	Rows             int                 `json:"rows" yaml:"rows"`
	Skipped          int                 `json:"skipped" yaml:"skipped"`
	Model            string              `json:"model" yaml:"model"`
	CurrentThreshold float64             `json:"currentThreshold" yaml:"current_threshold"`
	Current          policy.SweepPoint   `json:"current" yaml:"current"`
	Best             policy.SweepPoint   `json:"best" yaml:"best"`
	Points           []policy.SweepPoint `json:"points" yaml:"points"`
}

func cmdSweep(ctx context.Context, cmd *cli.Command) error {
	svc, m, err := loadService(cmd)
	if err != nil {
		return err
	}

	records, err := dataset.ReadFile(cmd.String(inputFlag.Name))
	if err != nil {
		return err
	}

	rows, err := scoreAll(ctx, svc, records, int(cmd.Int(workersFlag.Name)))
	if err != nil {
		return err
	}

	var probs []float64
	var labels []int
	skipped := 0
	for _, row := range rows {
		churn := row.Record.Churn
		if row.Err != nil || churn == nil || (*churn != 0 && *churn != 1) {
			skipped++
			continue
		}
		probs = append(probs, row.Result.Probability)
		labels = append(labels, *churn)
	}
	if len(probs) == 0 {
		return fmt.Errorf("no labeled rows could be scored in %s", cmd.String(inputFlag.Name))
	}
	if skipped > 0 {
		slog.Warn("rows skipped", "count", skipped)
	}

	points, err := policy.Sweep(probs, labels, cmd.Float64Slice(thresholdsFlag.Name))
	if err != nil {
		return err
	}
	best, _ := policy.Best(points)

	current, err := policy.Sweep(probs, labels, []float64{m.Threshold()})
	if err != nil {
		return err
	}

	return printOutput(os.Stdout, cmd.String(formatFlag.Name), sweepReport{
		Rows:             len(probs),
		Skipped:          skipped,
		Model:            m.Artifact.Name + "@" + m.Artifact.Version,
		CurrentThreshold: m.Threshold(),
		Current:          current[0],
		Best:             best,
		Points:           points,
	})
}
