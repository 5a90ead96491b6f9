package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/okian/biasaudit/internal/adapters/dataset"
	"github.com/okian/biasaudit/internal/adapters/repository"
	service "github.com/okian/biasaudit/internal/app"
	"github.com/okian/biasaudit/internal/domain/bias"
	"github.com/okian/biasaudit/internal/domain/model"
	"github.com/okian/biasaudit/pkg/logger"
)

// datasetFlags returns fresh copies of the input flags shared by evaluate
// and remote submit.
func datasetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "input",
			Aliases:  []string{"i"},
			Usage:    "Scored dataset; .jsonl and .ndjson are read as JSON lines, anything else as CSV",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "label-field",
			Usage: "Column holding the ground truth label",
			Value: "toxicity",
		},
		&cli.StringFlag{
			Name:  "score-field",
			Usage: "Column holding the model score",
			Value: "score",
		},
		&cli.StringSliceFlag{
			Name:  "subgroups",
			Usage: "Subgroups to evaluate (optional, default: every subgroup column)",
		},
		&cli.StringSliceFlag{
			Name:  "ignore",
			Usage: "Columns that are neither label, score nor subgroup",
		},
		&cli.FloatFlag{
			Name:  "threshold",
			Usage: "Soft labels and memberships at or above this count as true",
			Value: bias.DefaultLabelThreshold,
		},
		&cli.IntFlag{
			Name:  "min-size",
			Usage: "Subgroups with fewer members are skipped",
			Value: bias.DefaultMinSubgroupSize,
		},
	}
}

func (a *app) evaluateCmd() *cli.Command {
	return &cli.Command{
		Name:  "evaluate",
		Usage: "Computes the bias report of a local dataset",
		Flags: append(datasetFlags(),
			&cli.IntFlag{
				Name:  "parallelism",
				Usage: "Subgroups evaluated concurrently (optional, default: number of CPUs)",
			},
			&cli.BoolFlag{
				Name:  "save",
				Usage: "Stores the report in the local database",
			},
		),
		Action: a.evaluate,
	}
}

func (a *app) evaluate(ctx context.Context, cmd *cli.Command) error {
	ds, err := loadDataset(cmd)
	if err != nil {
		return err
	}

	var store repository.Store = repository.NewMemoryStore()
	if cmd.Bool("save") {
		if store, err = repository.NewSQLiteStore(ctx, a.dbPath); err != nil {
			return fmt.Errorf("opening %s: %w", a.dbPath, err)
		}
	}

	svc := service.New(
		service.WithStore(store),
		service.WithWorkerCount(1),
		service.WithParallelism(cmd.Int("parallelism")),
		service.WithLogger(logger.Get().Named("evaluate")),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting evaluator: %w", err)
	}
	defer func() {
		if err := svc.Stop(context.WithoutCancel(ctx)); err != nil {
			logger.Get().Warn(ctx, "stopping evaluator", logger.Error(err))
		}
	}()

	minSize := cmd.Int("min-size")
	report, err := svc.EvaluateDataset(ctx, ds, cmd.StringSlice("subgroups"), &minSize)
	if err != nil {
		return fmt.Errorf("evaluating %s: %w", cmd.String("input"), err)
	}
	logger.Get().Debug(ctx, "evaluation done",
		logger.String("id", report.ID),
		logger.Int("records", report.RecordCount),
		logger.Int("subgroups", len(report.Results)))

	return a.render(report, reportTable(report))
}

// loadDataset reads the --input file with the column flags of cmd.
func loadDataset(cmd *cli.Command) (model.Dataset, error) {
	path := cmd.String("input")
	f, err := os.Open(path)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	opts := dataset.Options{
		LabelField:   cmd.String("label-field"),
		ScoreField:   cmd.String("score-field"),
		IgnoreFields: cmd.StringSlice("ignore"),
		Threshold:    cmd.Float("threshold"),
	}

	var ds model.Dataset
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		ds, err = dataset.ReadJSONL(f, opts)
	default:
		ds, err = dataset.ReadCSV(f, opts)
	}
	if err != nil {
		return model.Dataset{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return ds, nil
}
