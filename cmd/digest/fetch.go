package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lidoDigest/internal/config"
	"lidoDigest/internal/model"
)

func runFetch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFetch(cfgFile, cmd.Flags())
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

	loader, err := newLoader(cfg.Dune, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	logger.Info("fetch start",
		zap.String("start_date", cfg.StartDate),
		zap.String("end_date", cfg.EndDate),
		zap.Int("queries", len(cfg.Dune.Queries)),
		zap.String("out", cfg.Out),
	)

	datasets, err := loader.Load(ctx, params)
	if err != nil {
		return err
	}
	if err := model.WriteSnapshot(cfg.Out, datasets); err != nil {
		return err
	}

	logger.Info("fetch done", zap.Int("datasets", len(datasets)), elapsed(start))
	return nil
}
