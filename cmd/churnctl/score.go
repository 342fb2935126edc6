package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/opensource-finance/churnguard/internal/dataset"
	"github.com/opensource-finance/churnguard/internal/domain"
	"github.com/opensource-finance/churnguard/internal/scoring"
)

var (
	scoreOutputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Where to write the scored CSV (default: stdout)",
	}

	workersFlag = &cli.IntFlag{
		Name:  "workers",
		Usage: "Number of concurrent scoring goroutines",
		Value: runtime.NumCPU(),
	}

	scoreCmd = &cli.Command{
		Name:  "score",
		Usage: "Score every account in a CSV and write probability, decision, tier and action per customer",
		UsageText: `churnctl score --input data/accounts.csv --output scored.csv
   churnctl score -i data/accounts.csv --model artifacts/churn_training_model.json --schema training --stats configs/reference_stats.yaml`,
		Action: cmdScore,
		Flags: []cli.Flag{
			inputFlag,
			scoreOutputFlag,
			modelFlag,
			schemaFlag,
			statsFlag,
			workersFlag,
		},
	}
)

func cmdScore(ctx context.Context, cmd *cli.Command) error {
	svc, m, err := loadService(cmd)
	if err != nil {
		return err
	}

	records, err := dataset.ReadFile(cmd.String(inputFlag.Name))
	if err != nil {
		return err
	}
	slog.Info("scoring accounts", "rows", len(records), "model", m.Artifact.Name, "version", m.Artifact.Version)

	rows, err := scoreAll(ctx, svc, records, int(cmd.Int(workersFlag.Name)))
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if path := cmd.String(scoreOutputFlag.Name); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	w := dataset.NewScoredWriter(out)
	failed := 0
	for _, row := range rows {
		if row.Err != nil {
			failed++
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	slog.Info("scoring complete", "rows", len(rows), "failed", failed)
	return nil
}

// scoreAll scores records concurrently and keeps input order. Per-row
// scoring failures are carried in the row, not returned.
func scoreAll(ctx context.Context, svc *scoring.Service, records []domain.RawAccountRecord, workers int) ([]dataset.ScoredRow, error) {
	if workers < 1 {
		workers = 1
	}

	rows := make([]dataset.ScoredRow, len(records))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, rec := range records {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := svc.ScoreRecord(ctx, rec)
			rows[i] = dataset.ScoredRow{Record: rec, Result: result, Err: err}
			if err != nil {
				slog.Debug("row failed", "customer_id", rec.CustomerID, "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}
