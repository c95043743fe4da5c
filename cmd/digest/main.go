package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lidoDigest/internal/chart"
	"lidoDigest/internal/config"
	"lidoDigest/internal/dune"
	"lidoDigest/internal/format"
	"lidoDigest/internal/llm"
	"lidoDigest/internal/pipeline"
	"lidoDigest/internal/storage"
	"lidoDigest/internal/storage/postgres"
	"lidoDigest/internal/webhook"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "digest",
		Short:        "Weekly Lido digest generator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Build the weekly digest: load, format, compose, graph, deliver",
		RunE:  runDigest,
	}

	runCmd.Flags().String("start-date", "", "period start date (YYYY-MM-DD)")
	runCmd.Flags().String("end-date", "", "period end date (YYYY-MM-DD)")
	runCmd.Flags().Float64("sol-start", 0, "SOL deposits at period start")
	runCmd.Flags().Float64("sol-end", 0, "SOL deposits at period end")
	runCmd.Flags().String("datasets", "", "read datasets from a snapshot file instead of Dune")
	runCmd.Flags().String("threads-dir", "threads", "output directory for threads")
	runCmd.Flags().String("graphs-dir", "graphs", "output directory for charts")
	runCmd.Flags().String("model", "gpt-4o", "chat model used to compose the thread")
	runCmd.Flags().Bool("include-l2", false, "include the layer 2 wstETH breakdown")
	runCmd.Flags().String("archive", "", "append run records to this JSONL file")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for the run archive")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run the Dune queries and save a datasets snapshot",
		RunE:  runFetch,
	}

	fetchCmd.Flags().String("start-date", "", "period start date (YYYY-MM-DD)")
	fetchCmd.Flags().String("end-date", "", "period end date (YYYY-MM-DD)")
	fetchCmd.Flags().Float64("sol-start", 0, "SOL deposits at period start")
	fetchCmd.Flags().Float64("sol-end", 0, "SOL deposits at period end")
	fetchCmd.Flags().String("out", "./data/datasets.json", "output snapshot path")
	fetchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(fetchCmd)

	formatCmd := &cobra.Command{
		Use:   "format",
		Short: "Print metric summaries for a datasets snapshot",
		RunE:  runFormat,
	}

	formatCmd.Flags().String("in", "./data/datasets.json", "input snapshot path")
	formatCmd.Flags().Bool("include-l2", false, "include the layer 2 wstETH breakdown")
	formatCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(formatCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDigest(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	params, err := parseParams(cfg.StartDate, cfg.EndDate, cfg.SolStart, cfg.SolEnd)
	if err != nil {
		return err
	}
	if cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var source pipeline.Source
	if cfg.Datasets != "" {
		source = pipeline.SnapshotSource{Path: cfg.Datasets}
	} else {
		loader, err := newLoader(cfg.Dune, logger)
		if err != nil {
			return err
		}
		source = loader
	}

	var archives []storage.Archive
	if cfg.Archive != "" {
		archives = append(archives, storage.NewJsonlArchive(cfg.Archive))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		if last, ok, err := store.LastEndDate(ctx); err != nil {
			return err
		} else if ok {
			logger.Info("previous digest", zap.String("end_date", last))
		}
		archives = append(archives, store)
	}

	endDate := params.EndDate.Format(pipeline.DateLayout)
	p := pipeline.New(pipeline.Config{ThreadsDir: cfg.ThreadsDir}, pipeline.Deps{
		Source:    source,
		Formatter: format.NewRegistry(cfg.IncludeL2),
		Composer:  llm.NewOpenAIComposer(cfg.OpenAIAPIKey, cfg.Model, logger),
		Grapher:   chart.NewGrapher(cfg.GraphsDir, endDate, logger),
		Deliverer: webhook.NewClient(cfg.WebhookURL, nil, logger),
		Archives:  archives,
	}, logger)

	logger.Info("digest start",
		zap.String("start_date", cfg.StartDate),
		zap.String("end_date", cfg.EndDate),
		zap.Float64("sol_start", cfg.SolStart),
		zap.Float64("sol_end", cfg.SolEnd),
		zap.String("datasets", cfg.Datasets),
		zap.String("model", cfg.Model),
		zap.Bool("include_l2", cfg.IncludeL2),
		zap.Bool("webhook", cfg.WebhookURL != ""),
		zap.String("archive", cfg.Archive),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	run, err := p.Run(ctx, params)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), run.ThreadPath)
	return nil
}

func parseParams(startDate, endDate string, solStart, solEnd float64) (dune.Params, error) {
	start, err := config.ParseDate(startDate)
	if err != nil {
		return dune.Params{}, fmt.Errorf("start date: %w", err)
	}
	end, err := config.ParseDate(endDate)
	if err != nil {
		return dune.Params{}, fmt.Errorf("end date: %w", err)
	}
	if end.Before(start) {
		return dune.Params{}, fmt.Errorf("end date %s is before start date %s", endDate, startDate)
	}
	return dune.Params{StartDate: start, EndDate: end, SolStart: solStart, SolEnd: solEnd}, nil
}

func newLoader(cfg config.DuneConfig, logger *zap.Logger) (*dune.Loader, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("DUNE_API_KEY is required")
	}
	if len(cfg.Queries) == 0 {
		return nil, fmt.Errorf("no queries configured")
	}

	client := dune.NewClient(dune.ClientConfig{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		RequestsPerS: cfg.RequestsPerSecond,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)

	return dune.NewLoader(dune.LoaderConfig{
		Queries:      canonicalQueries(cfg.Queries),
		PollInterval: cfg.PollInterval,
		Timeout:      cfg.QueryTimeout,
	}, client, logger), nil
}

// canonicalQueries restores metric name casing lost when the query map comes from a config file.
func canonicalQueries(queries map[string]int) map[string]int {
	out := make(map[string]int, len(queries))
	for name, id := range queries {
		out[format.CanonicalName(name)] = id
	}
	return out
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}

func elapsed(start time.Time) zap.Field {
	return zap.Duration("elapsed", time.Since(start))
}
