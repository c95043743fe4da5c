package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lidoDigest/internal/config"
	"lidoDigest/internal/format"
	"lidoDigest/internal/model"
)

func runFormat(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFormat(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	datasets, err := model.ReadSnapshot(cfg.In)
	if err != nil {
		return err
	}

	summaries, err := format.NewRegistry(cfg.IncludeL2).FormatAll(datasets)
	if err != nil {
		return err
	}
	logger.Debug("formatted", zap.Int("datasets", len(datasets)), zap.Int("summaries", len(summaries)))

	names := make([]string, 0, len(summaries))
	for name := range summaries {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	for _, name := range names {
		fmt.Fprintf(out, "## %s\n%s\n\n", name, summaries[name])
	}
	return nil
}
