package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/churnguard/internal/config"
	"github.com/opensource-finance/churnguard/internal/domain"
	"github.com/opensource-finance/churnguard/internal/features"
	"github.com/opensource-finance/churnguard/internal/model"
)

const accountsCSV = `customer_id,tenure_months,monthly_charges,total_charges,contract_type,payment_method,support_ticket_count,avg_call_minutes,avg_data_usage_gb,churn
C-1,3,110,330,month-to-month,electronic check,2,120,5,1
C-2,60,25,1500,two year,credit card,0,200,20,0
C-3,12,70,840,one year,bank transfer,1,140,12,0
C-4,2,95,190,month-to-month,mailed check,4,90,3,1
`

func writeFixtures(t *testing.T) (dir, modelPath, csvPath string) {
	t.Helper()
	dir = t.TempDir()

	modelPath = filepath.Join(dir, "model.json")
	require.NoError(t, model.SaveArtifact(modelPath, &domain.ModelArtifact{
		Name:       "churn_expr",
		Version:    "t1",
		Kind:       domain.ModelKindExpression,
		Schema:     features.SchemaDeployment,
		Features:   features.Deployment.Names(),
		Threshold:  0.5,
		Expression: `contract_type == "month-to-month" ? 0.8 : 0.2`,
	}))

	csvPath = filepath.Join(dir, "accounts.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(accountsCSV), 0o644))
	return dir, modelPath, csvPath
}

func TestScoreCommand(t *testing.T) {
	dir, modelPath, csvPath := writeFixtures(t)
	out := filepath.Join(dir, "scored.csv")

	err := newApp().Run(context.Background(), []string{
		"churnctl", "score", "--input", csvPath, "--model", modelPath, "--output", out, "--workers", "2",
	})
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assert.Equal(t, "C-1", rows[1][0], "input order is kept")
	assert.Equal(t, "0.800000", rows[1][1])
	assert.Equal(t, "HIGH", rows[1][3])
	assert.Equal(t, "C-2", rows[2][0])
	assert.Equal(t, "LOW", rows[2][3])
}

func TestScoreCommandRejectsOutOfDomainRows(t *testing.T) {
	dir, modelPath, _ := writeFixtures(t)
	in := filepath.Join(dir, "mixed.csv")
	out := filepath.Join(dir, "scored.csv")
	require.NoError(t, os.WriteFile(in, []byte(`customer_id,tenure_months,monthly_charges,contract_type,payment_method,support_ticket_count
C-1,3,110,month-to-month,electronic check,2
C-9,0,60,prepaid,credit card,1
`), 0o644))

	err := newApp().Run(context.Background(), []string{
		"churnctl", "score", "--input", in, "--model", modelPath, "--output", out,
	})
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "0.800000", rows[1][1])
	assert.Empty(t, rows[1][9])

	assert.Equal(t, "C-9", rows[2][0])
	assert.Empty(t, rows[2][1], "rejected rows carry no score")
	assert.Contains(t, rows[2][9], "tenure_months")
}

func TestFitStatsCommand(t *testing.T) {
	dir, _, csvPath := writeFixtures(t)
	out := filepath.Join(dir, "stats.yaml")

	err := newApp().Run(context.Background(), []string{"churnctl", "fit-stats", "-i", csvPath, "-o", out})
	require.NoError(t, err)

	stats, err := config.LoadStats(out)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Rows)
	assert.InDelta(t, 82.5, stats.MedianMonthlyCharges, 1e-9)
	assert.Contains(t, stats.Bounds, "monthly_charges")
}

func TestSweepCommand(t *testing.T) {
	_, modelPath, csvPath := writeFixtures(t)

	stdout := captureStdout(t, func() {
		err := newApp().Run(context.Background(), []string{
			"churnctl", "sweep", "-i", csvPath, "--model", modelPath,
			"--threshold", "0.5", "--threshold", "0.9",
		})
		require.NoError(t, err)
	})

	var report sweepReport
	require.NoError(t, json.Unmarshal(stdout, &report))
	assert.Equal(t, 4, report.Rows)
	require.Len(t, report.Points, 2)
	assert.Equal(t, 0.5, report.Best.Threshold)
	assert.Equal(t, 1.0, report.Best.F1)
	assert.Equal(t, 0.5, report.CurrentThreshold)
}

func TestInspectCommand(t *testing.T) {
	_, modelPath, _ := writeFixtures(t)

	t.Run("Valid", func(t *testing.T) {
		stdout := captureStdout(t, func() {
			require.NoError(t, newApp().Run(context.Background(), []string{"churnctl", "inspect", "--model", modelPath}))
		})
		var report artifactReport
		require.NoError(t, json.Unmarshal(stdout, &report))
		assert.Equal(t, "churn_expr", report.Name)
		assert.Len(t, report.Features, 7)
	})

	t.Run("WrongSchema", func(t *testing.T) {
		err := newApp().Run(context.Background(), []string{"churnctl", "inspect", "--model", modelPath, "--schema", "training"})
		var cerr *domain.ContractError
		assert.ErrorAs(t, err, &cerr)
	})
}

func captureStdout(t *testing.T, fn func()) []byte {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)

	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	done := make(chan []byte)
	go func() {
		var buf []byte
		tmp := make([]byte, 4096)
		for {
			n, err := r.Read(tmp)
			buf = append(buf, tmp[:n]...)
			if err != nil {
				break
			}
		}
		done <- buf
	}()

	fn()
	w.Close()
	return <-done
}
