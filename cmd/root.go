// Package cmd defines and implements the CLI commands for the seoscope
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seoscope/crawler/internal/config"
	"github.com/seoscope/crawler/internal/logging"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seoscope",
		Short: "An SEO crawl engine for single-site audits.",
		Long: `seoscope crawls a site breadth-first from a seed URL, extracting
on-page SEO facts (titles, headings, robots directives, structured data,
readability) and the internal link graph, within configurable page and
depth limits.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newCrawlCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfigAndLogger(overrides ...func(*config.Config)) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile, overrides...)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}
