package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/okian/biasaudit/internal/adapters/dataset"
	service "github.com/okian/biasaudit/internal/app"
	"github.com/okian/biasaudit/internal/client"
)

const (
	defaultServerURL = "http://localhost:9080"
	pollInterval     = 250 * time.Millisecond
)

func (a *app) remoteCmd() *cli.Command {
	return &cli.Command{
		Name:  "remote",
		Usage: "Talks to a running biasaudit server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "Server base URL",
				Value:   defaultServerURL,
				Sources: cli.EnvVars("BIAS_URL"),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per request timeout",
				Value: 30 * time.Second,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "submit",
				Usage: "Submits a local dataset for asynchronous evaluation",
				Flags: append(datasetFlags(),
					&cli.StringFlag{
						Name:  "request-id",
						Usage: "Idempotency key; copies get a -<n> suffix",
					},
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Waits for the report and prints it",
					},
					&cli.IntFlag{
						Name:  "copies",
						Usage: "Number of times the dataset is submitted",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent submissions when copies > 1",
						Value: 4,
					},
				),
				Action: a.remoteSubmit,
			},
			{
				Name:  "get",
				Usage: "Prints one report",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Report id", Required: true},
				},
				Action: a.remoteGet,
			},
			{
				Name:  "list",
				Usage: "Lists reports, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of reports", Value: defaultListLimit},
				},
				Action: a.remoteList,
			},
		},
	}
}

func newClient(cmd *cli.Command) *client.Client {
	return client.New(cmd.String("url"), client.WithTimeout(cmd.Duration("timeout")))
}

func (a *app) remoteSubmit(ctx context.Context, cmd *cli.Command) error {
	ds, err := loadDataset(cmd)
	if err != nil {
		return err
	}
	minSize := cmd.Int("min-size")
	req := service.EvaluationRequest{
		RequestID:       cmd.String("request-id"),
		Payload:         dataset.ToPayload(ds),
		Subgroups:       cmd.StringSlice("subgroups"),
		MinSubgroupSize: &minSize,
	}
	c := newClient(cmd)

	if copies := cmd.Int("copies"); copies > 1 {
		reqs := make([]service.EvaluationRequest, copies)
		for i := range reqs {
			reqs[i] = req
			if req.RequestID != "" {
				reqs[i].RequestID = fmt.Sprintf("%s-%d", req.RequestID, i)
			}
		}
		res := c.SubmitAll(ctx, reqs, cmd.Int("workers"))
		if err := a.render(res, batchTable(res)); err != nil {
			return err
		}
		if res.Failed > 0 {
			return fmt.Errorf("%d of %d submissions failed", res.Failed, copies)
		}
		return nil
	}

	ack, err := c.Submit(ctx, req)
	if err != nil {
		return fmt.Errorf("submitting %s: %w", cmd.String("input"), err)
	}
	if !cmd.Bool("wait") {
		return a.render(ack, ackTable(ack))
	}
	report, err := c.Wait(ctx, ack.ID, pollInterval)
	if err != nil {
		return err
	}
	return a.render(report, reportTable(report))
}

func (a *app) remoteGet(ctx context.Context, cmd *cli.Command) error {
	report, err := newClient(cmd).Report(ctx, cmd.String("id"))
	if err != nil {
		return fmt.Errorf("getting report %s: %w", cmd.String("id"), err)
	}
	return a.render(report, reportTable(report))
}

func (a *app) remoteList(ctx context.Context, cmd *cli.Command) error {
	reports, err := newClient(cmd).Reports(ctx, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("listing reports: %w", err)
	}
	return a.render(reports, reportsTable(reports))
}
