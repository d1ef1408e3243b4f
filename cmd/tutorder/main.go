// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/tutorder"
	"github.com/poiesic/tutorder/config"
	"github.com/poiesic/tutorder/document"
	"github.com/poiesic/tutorder/enrich"
	"github.com/poiesic/tutorder/jobs"
	"github.com/poiesic/tutorder/progress"
	"github.com/poiesic/tutorder/server"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "tutorder",
		Usage:  "Ingest, deduplicate and enrich tutoring orders",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
				EnvVars: []string{"TUTORDER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Database DSN (SQLite path or postgres:// URL)",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Extraction service API key",
				EnvVars: []string{"DEEPSEEK_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "maps-key",
				Usage:   "Google Maps API key",
				EnvVars: []string{"GOOGLE_MAPS_API_KEY"},
			},
			&cli.StringFlag{
				Name:  "exports",
				Usage: "Directory for exported spreadsheets",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Split raw order text into order records",
				ArgsUsage: "[text]",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Read orders from a .docx or .txt file (- for stdin)",
					},
					&cli.IntFlag{
						Name:  "max-chars",
						Usage: "Characters per chunk sent to the extraction service",
					},
					&cli.BoolFlag{
						Name:  "no-dedup",
						Usage: "Skip duplicate removal after ingesting",
					},
				},
			},
			{
				Name:   "dedup",
				Usage:  "Remove orders with identical text, keeping the newest",
				Action: dedupCommand,
			},
			{
				Name:   "enrich",
				Usage:  "Extract structured fields from unparsed orders and export them",
				Action: enrichCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "batch",
						Aliases: []string{"b"},
						Usage:   "Only enrich orders from this batch",
					},
				},
			},
			{
				Name:   "commute",
				Usage:  "Add commute times to a target address to an exported table",
				Action: commuteCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "table",
						Aliases:  []string{"t"},
						Usage:    "Path to an .xlsx or .csv order table",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "target",
						Usage:    "Address to compute commute times to",
						Required: true,
					},
				},
			},
			{
				Name:   "batches",
				Usage:  "List ingestion batches and their order counts",
				Action: batchesCommand,
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Maximum concurrently running jobs",
					},
				},
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration",
				Action: configCommand,
			},
		},
	}
}

// loadConfig reads the configuration file and applies flag and
// environment overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("db") {
		cfg.Database.DSN = c.String("db")
	}
	if c.IsSet("api-key") {
		cfg.LLM.APIKey = c.String("api-key")
	}
	if c.IsSet("maps-key") {
		cfg.Maps.APIKey = c.String("maps-key")
	}
	if c.IsSet("exports") {
		cfg.Artifacts.Driver = "fs"
		cfg.Artifacts.Dir = c.String("exports")
	}
	return cfg, cfg.Validate()
}

func openWorkspace(c *cli.Context) (*tutorder.Workspace, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	ws, err := tutorder.OpenWorkspace(c.Context, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}
	return ws, nil
}

func ingestCommand(c *cli.Context) error {
	text, err := readOrderText(c)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("order text is empty")
	}

	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	if n := c.Int("max-chars"); n > 0 {
		ws.Config().Ingestion.MaxChars = n
	}
	pipeline, err := ws.NewIngestionPipeline()
	if err != nil {
		return fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}

	res, err := pipeline.Run(c.Context, text, progress.NewWriter(os.Stderr))
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	fmt.Fprintln(c.App.Writer, res)

	if c.Bool("no-dedup") {
		return nil
	}
	d, err := ws.NewDeduplicator()
	if err != nil {
		return err
	}
	removed, err := d.Run(c.Context, nil)
	if err != nil {
		return fmt.Errorf("duplicate removal failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "removed %d duplicate orders\n", removed)
	return nil
}

func readOrderText(c *cli.Context) (string, error) {
	switch path := c.String("file"); path {
	case "":
		return strings.Join(c.Args().Slice(), " "), nil
	case "-":
		data, err := io.ReadAll(c.App.Reader)
		return string(data), err
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return document.ExtractText(path, data)
	}
}

func dedupCommand(c *cli.Context) error {
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	d, err := ws.NewDeduplicator()
	if err != nil {
		return err
	}
	removed, err := d.Run(c.Context, progress.NewWriter(os.Stderr))
	if err != nil {
		return fmt.Errorf("duplicate removal failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "removed %d duplicate orders\n", removed)
	return nil
}

func enrichCommand(c *cli.Context) error {
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	var opts []enrich.Option
	if batch := c.String("batch"); batch != "" {
		opts = append(opts, enrich.WithBatch(batch))
	}
	e, err := ws.NewEnricher(opts...)
	if err != nil {
		return fmt.Errorf("failed to create enricher: %w", err)
	}
	res, err := e.Run(c.Context, progress.NewWriter(os.Stderr))
	if err != nil {
		return fmt.Errorf("enrichment failed: %w", err)
	}
	fmt.Fprintln(c.App.Writer, res)
	return nil
}

func commuteCommand(c *cli.Context) error {
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	a, err := ws.NewAugmenter()
	if err != nil {
		return fmt.Errorf("failed to create commute augmenter: %w", err)
	}
	name, err := a.Run(c.Context, c.String("table"), c.String("target"), progress.NewWriter(os.Stderr))
	if err != nil {
		return fmt.Errorf("commute augmentation failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "wrote %s\n", name)
	return nil
}

func batchesCommand(c *cli.Context) error {
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	batches, err := ws.Orders().CountByBatch(c.Context)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BATCH\tORDERS\tCREATED")
	for _, b := range batches {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", b.BatchID, b.Count, b.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func serveCommand(c *cli.Context) error {
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	cfg := ws.Config()
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}
	if c.IsSet("workers") {
		cfg.Server.Workers = c.Int("workers")
	}

	runner, err := jobs.NewRunner(
		jobs.WithWorkers(cfg.Server.Workers),
		jobs.WithSinkFactory(ws.SinkFactory()),
		jobs.WithMetrics(ws.Metrics()))
	if err != nil {
		return err
	}
	defer runner.Release()

	srv, err := server.New(ws, runner)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}

func configCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.LLM.APIKey != "" {
		cfg.LLM.APIKey = "********"
	}
	if cfg.Maps.APIKey != "" {
		cfg.Maps.APIKey = "********"
	}
	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(data)
	return err
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

