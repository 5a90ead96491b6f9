// Command biasctl computes bias reports from local files and talks to a
// biasaudit server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/okian/biasaudit/pkg/logger"
)

const (
	dirMode      = 0o700
	dataFileName = "reports.db"

	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTable = "table"
)

var (
	name    = "biasctl"
	version = "v0.0.1-default"
	commit  = ""
)

// app holds the state shared by all commands of one run.
type app struct {
	out    io.Writer
	format string
	dbPath string
}

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.Command {
	a := &app{out: out, format: formatJSON}
	return &cli.Command{
		Name:    name,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Usage:   "AUC-based unintended bias metrics for scored datasets",
		Writer:  out,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Prints verbose logs (optional, default: false)",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: fmt.Sprintf("Path to the Sqlite database file (optional, defaults to $HOME/.%s/%s)", name, dataFileName),
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format [json, yaml, table]",
				Value: formatJSON,
			},
		},
		Before:   a.before,
		Commands: []*cli.Command{a.evaluateCmd(), a.reportsCmd(), a.remoteCmd()},
	}
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		return ctx, fmt.Errorf("initializing logging: %w", err)
	}
	level := "warn"
	if cmd.Bool("debug") {
		level = "debug"
	}
	_ = logger.SetLevelString(level)

	switch f := strings.ToLower(cmd.String("format")); f {
	case formatJSON, formatTable:
		a.format = f
	case formatYAML, "yml":
		a.format = formatYAML
	default:
		return ctx, fmt.Errorf("unsupported format %q", f)
	}

	a.dbPath = cmd.String("db")
	if a.dbPath == "" {
		a.dbPath = filepath.Join(getHomeDir(), dataFileName)
	}
	return ctx, nil
}

// render writes v in the selected format; table formats fall back to JSON
// when table is nil.
func (a *app) render(v any, table func(w io.Writer)) error {
	switch {
	case a.format == formatYAML:
		e := yaml.NewEncoder(a.out)
		e.SetIndent(2)
		if err := e.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return e.Close()
	case a.format == formatTable && table != nil:
		w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
		table(w)
		return w.Flush()
	default:
		e := json.NewEncoder(a.out)
		e.SetIndent("", "  ")
		return e.Encode(v)
	}
}

func getHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		logger.Get().Debug(context.Background(), "error getting home dir, using current dir instead", logger.Error(err))
		return "."
	}

	dirPath := filepath.Join(home, "."+name)
	if _, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		if err := os.Mkdir(dirPath, dirMode); err != nil {
			logger.Get().Debug(context.Background(), "error creating dir, using home",
				logger.String("path", dirPath), logger.Error(err))
			return home
		}
	}
	return dirPath
}
