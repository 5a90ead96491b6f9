package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/okian/biasaudit/internal/adapters/repository"
)

const defaultListLimit = 20

func (a *app) reportsCmd() *cli.Command {
	return &cli.Command{
		Name:  "reports",
		Usage: "Reads reports saved by evaluate --save",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Lists saved reports, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of reports",
						Value: defaultListLimit,
					},
				},
				Action: a.listReports,
			},
			{
				Name:  "get",
				Usage: "Prints one saved report",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Report id",
						Required: true,
					},
				},
				Action: a.getReport,
			},
		},
	}
}

func (a *app) openStore(ctx context.Context) (*repository.SQLiteStore, error) {
	store, err := repository.NewSQLiteStore(ctx, a.dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", a.dbPath, err)
	}
	return store, nil
}

func (a *app) listReports(ctx context.Context, cmd *cli.Command) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	reports, err := store.List(ctx, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("listing reports: %w", err)
	}
	return a.render(reports, reportsTable(reports))
}

func (a *app) getReport(ctx context.Context, cmd *cli.Command) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := store.Get(ctx, cmd.String("id"))
	if err != nil {
		return fmt.Errorf("getting report %s: %w", cmd.String("id"), err)
	}
	return a.render(report, reportTable(report))
}
