package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/opensource-finance/churnguard/internal/model"
)

var inspectCmd = &cli.Command{
	Name:      "inspect",
	Usage:     "Validate a model artifact against its feature schema and print its metadata",
	UsageText: `churnctl --format yaml inspect --model artifacts/churn_deployment_model.json`,
	Action:    cmdInspect,
	Flags: []cli.Flag{
		modelFlag,
		schemaFlag,
	},
}

type artifactReport struct {
	Name            string   `json:"name" yaml:"name"`
	Version         string   `json:"version" yaml:"version"`
	Kind            string   `json:"kind" yaml:"kind"`
	Schema          string   `json:"schema" yaml:"schema"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty"`
	Features        []string `json:"features" yaml:"features"`
	Threshold       float64  `json:"threshold" yaml:"threshold"`
	ThresholdSource string   `json:"thresholdSource,omitempty" yaml:"threshold_source,omitempty"`
	CreatedAt       string   `json:"createdAt,omitempty" yaml:"created_at,omitempty"`
	CVScore         float64  `json:"cvScore,omitempty" yaml:"cv_score,omitempty"`
	TestAUC         float64  `json:"testAuc,omitempty" yaml:"test_auc,omitempty"`
	DataSource      string   `json:"dataSource,omitempty" yaml:"data_source,omitempty"`
}

func cmdInspect(ctx context.Context, cmd *cli.Command) error {
	a, err := model.LoadArtifact(cmd.String(modelFlag.Name))
	if err != nil {
		return err
	}
	if _, err := model.Build(a, cmd.String(schemaFlag.Name)); err != nil {
		return err
	}

	return printOutput(os.Stdout, cmd.String(formatFlag.Name), artifactReport{
		Name:            a.Name,
		Version:         a.Version,
		Kind:            a.Kind,
		Schema:          a.Schema,
		Description:     a.Description,
		Features:        a.Features,
		Threshold:       a.Threshold,
		ThresholdSource: a.ThresholdSource,
		CreatedAt:       a.CreatedAt,
		CVScore:         a.CVScore,
		TestAUC:         a.TestAUC,
		DataSource:      a.DataSource,
	})
}
