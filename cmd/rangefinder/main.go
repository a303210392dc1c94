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
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/rangefinder"
	"github.com/poiesic/rangefinder/ai"
	"github.com/poiesic/rangefinder/ai/openai"
	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/ingestion"
	"github.com/poiesic/rangefinder/reembed"
	"github.com/poiesic/rangefinder/rules"
	"github.com/poiesic/rangefinder/search"
	"github.com/poiesic/rangefinder/storage/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func embeddingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:    "api-token",
			Usage:   "Bearer token for the embedding service",
			Value:   "none",
			EnvVars: []string{"RANGEFINDER_API_TOKEN"},
		},
	}
}

func dbFlag(required bool) cli.Flag {
	return &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to BadgerDB catalog directory",
		Required: required,
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "rangefinder",
		Usage: "Match obsolescence letters against a product catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "load",
				Usage:     "Load catalog rows from a JSON Lines file and embed them",
				ArgsUsage: "<file.jsonl>",
				Action:    loadCommand,
				Flags: append([]cli.Flag{
					dbFlag(true),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of rows stored per batch",
						Value: 256,
					},
				}, embeddingFlags()...),
			},
			{
				Name:   "reembed",
				Usage:  "Rebuild the vector index of every catalog row",
				Action: reembedCommand,
				Flags: append([]cli.Flag{
					dbFlag(true),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of rows to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N rows",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.StringFlag{
						Name:  "after",
						Usage: "Resume after this product ID",
					},
				}, embeddingFlags()...),
			},
			{
				Name:   "discover",
				Usage:  "Find catalog rows matching a product described in a letter",
				Action: discoverCommand,
				Flags: append([]cli.Flag{
					dbFlag(false),
					&cli.StringFlag{
						Name:    "postgres",
						Usage:   "Query a PostgreSQL catalog instead of a BadgerDB one",
						EnvVars: []string{"RANGEFINDER_POSTGRES"},
					},
					&cli.StringFlag{
						Name:  "table",
						Usage: "PostgreSQL catalog table",
						Value: "catalog",
					},
					&cli.StringFlag{Name: "range", Usage: "Range label from the letter"},
					&cli.StringFlag{Name: "subrange", Usage: "Subrange label from the letter"},
					&cli.StringFlag{Name: "line", Usage: "Product line hint"},
					&cli.StringFlag{Name: "description", Usage: "Free-text product description"},
					&cli.StringSliceFlag{
						Name:  "spec",
						Usage: "Numeric spec as attribute=value, e.g. voltage=12-17.5kV",
					},
					&cli.StringFlag{Name: "rules", Usage: "TOML business rules file"},
					&cli.StringFlag{Name: "hints", Usage: "TOML keyword hints file"},
					&cli.StringSliceFlag{
						Name:  "strategy",
						Usage: "Enable only these strategies (lexical, semantic, range, keyword)",
					},
					&cli.BoolFlag{
						Name:  "obsolescence-only",
						Usage: "Exclude rows the rules consider active (--obsolescence-only=false to disable)",
						Value: true,
					},
					&cli.Float64Flag{
						Name:  "high",
						Usage: "Primary match threshold",
						Value: search.DefaultHighThreshold,
					},
					&cli.Float64Flag{
						Name:  "medium",
						Usage: "Secondary match threshold",
						Value: search.DefaultMediumThreshold,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of matches",
						Value: search.DefaultLimit,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Per-strategy timeout",
						Value: search.DefaultPerStrategyTimeout,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the result as JSON",
					},
					&cli.StringFlag{
						Name:  "metrics-file",
						Usage: "Write Prometheus metrics to this file after discovery",
					},
				}, embeddingFlags()...),
			},
		},
	}
}

func aiConfig(c *cli.Context) (*ai.Config, error) {
	cfg := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithAPIToken(c.String("api-token")),
	)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	return cfg, nil
}

func openCatalog(c *cli.Context) (*rangefinder.Catalog, error) {
	cfg, err := aiConfig(c)
	if err != nil {
		return nil, err
	}
	catalog, err := rangefinder.OpenCatalog(c.String("db"), rangefinder.WithAIConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return catalog, nil
}

func loadCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one JSON Lines file")
	}
	if c.Int("batch-size") <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	defer f.Close()

	catalog, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer catalog.Close()

	pipeline, err := catalog.NewIngestionPipeline(ingestion.WithBatchSize(c.Int("batch-size")))
	if err != nil {
		return err
	}
	defer pipeline.Release()

	stats, err := pipeline.Load(c.Context, f)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	embedErr := pipeline.Wait()
	fmt.Fprintf(os.Stderr, "Stored %d rows, rejected %d\n", stats.Stored, stats.Rejected)
	if embedErr != nil {
		return fmt.Errorf("some rows were not embedded, run reembed: %w", embedErr)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	config := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		After:          c.String("after"),
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	catalog, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer catalog.Close()

	reembedder, err := catalog.NewReembedder(config, os.Stderr)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Catalog: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	result, err := reembedder.Run(c.Context)
	if err != nil {
		if result.LastProductID != "" {
			fmt.Fprintf(os.Stderr, "\nResume with --after %s\n", result.LastProductID)
		}
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func discoverCommand(c *cli.Context) error {
	query, err := descriptorFromFlags(c)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	engineOpts := []search.Option{search.WithMetrics(registry)}
	if path := c.String("rules"); path != "" {
		cfg, err := rules.LoadFile(path)
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, search.WithRules(cfg))
	}
	if path := c.String("hints"); path != "" {
		hints, err := search.LoadKeywordHints(path)
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, search.WithKeywordHints(hints))
	}

	engine, closeFn, err := openEngine(c, engineOpts)
	if err != nil {
		return err
	}
	defer closeFn()
	defer engine.Close()

	opts := search.DiscoverOptions{
		HighThreshold:      c.Float64("high"),
		MediumThreshold:    c.Float64("medium"),
		ObsolescenceOnly:   c.Bool("obsolescence-only"),
		PerStrategyTimeout: c.Duration("timeout"),
		Limit:              c.Int("limit"),
	}
	for _, name := range c.StringSlice("strategy") {
		opts.EnabledStrategies = append(opts.EnabledStrategies, core.StrategyName(strings.ToLower(name)))
	}

	result, err := engine.Discover(c.Context, query, opts)
	if path := c.String("metrics-file"); path != "" {
		if werr := prometheus.WriteToTextfile(path, registry); werr != nil {
			slog.Warn("failed to write metrics", "path", path, "err", werr)
		}
	}
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResult(c.App.Writer, result)
	return nil
}

// openEngine builds an engine over a PostgreSQL catalog when --postgres is
// set and over the BadgerDB catalog otherwise.
func openEngine(c *cli.Context, opts []search.Option) (*search.Engine, func(), error) {
	if conn := c.String("postgres"); conn != "" {
		cfg, err := aiConfig(c)
		if err != nil {
			return nil, nil, err
		}
		repo, err := postgres.NewRepository(c.Context, conn, 0, postgres.WithTable(strings.Split(c.String("table"), ".")...))
		if err != nil {
			return nil, nil, err
		}
		provider, err := openai.NewProvider(cfg)
		if err != nil {
			repo.Close()
			return nil, nil, err
		}
		engine, err := search.NewEngine(repo, provider, opts...)
		if err != nil {
			provider.Close()
			repo.Close()
			return nil, nil, err
		}
		return engine, func() {
			provider.Close()
			repo.Close()
		}, nil
	}

	if c.String("db") == "" {
		return nil, nil, fmt.Errorf("one of --db or --postgres is required")
	}
	catalog, err := openCatalog(c)
	if err != nil {
		return nil, nil, err
	}
	engine, err := catalog.NewEngine(opts...)
	if err != nil {
		catalog.Close()
		return nil, nil, err
	}
	return engine, func() { catalog.Close() }, nil
}

func descriptorFromFlags(c *cli.Context) (core.ProductDescriptor, error) {
	query := core.ProductDescriptor{
		RangeLabel:      c.String("range"),
		SubrangeLabel:   c.String("subrange"),
		ProductLineHint: c.String("line"),
		Description:     c.String("description"),
	}
	specs, err := parseSpecs(c.StringSlice("spec"))
	if err != nil {
		return query, err
	}
	query.NumericSpecs = specs
	return query, nil
}

// parseSpecs turns attribute=value pairs into a spec map.
func parseSpecs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	specs := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		attr, value, ok := strings.Cut(pair, "=")
		attr = strings.ToLower(strings.TrimSpace(attr))
		if !ok || attr == "" {
			return nil, fmt.Errorf("invalid spec %q: expected attribute=value", pair)
		}
		specs[attr] = strings.TrimSpace(value)
	}
	return specs, nil
}

func printResult(w io.Writer, result *core.DiscoveryResult) {
	fmt.Fprintf(w, "Found %d candidates in %v (strategies: %s)\n",
		result.TotalFound, result.Elapsed.Round(time.Millisecond), joinNames(result.StrategiesUsed))
	printTier(w, "Primary", result.PrimaryMatches)
	printTier(w, "Secondary", result.SecondaryMatches)
	for _, ex := range result.Exclusions {
		fmt.Fprintf(w, "excluded %s: %s\n", ex.ProductID, ex.Reason)
	}
	for _, f := range result.StrategyFailures {
		state := "failed"
		if f.Skipped {
			state = "skipped"
		}
		fmt.Fprintf(w, "%s %s: %s\n", f.Strategy, state, f.Reason)
	}
}

func printTier(w io.Writer, title string, matches []core.CandidateMatch) {
	if len(matches) == 0 {
		return
	}
	fmt.Fprintf(w, "%s matches:\n", title)
	for i, m := range matches {
		fmt.Fprintf(w, "%d: %s '%s' (%s, %s)[%0.3f]\n",
			i, m.ProductID(), m.Entry.RangeLabel, m.Entry.ProductLine, m.Entry.CommercialStatus, m.Confidence)
		for _, reason := range m.MatchReasons {
			fmt.Fprintf(w, "     %s\n", reason)
		}
	}
}

func joinNames(names []core.StrategyName) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
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
