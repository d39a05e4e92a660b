package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/poitiers-events/internal/config"
	"github.com/pfrederiksen/poitiers-events/internal/logger"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

// Version is reported by --version.
var Version = "dev"

var (
	flagConfig  string
	flagFormat  string
	flagVerbose bool
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poitiers-events",
		Short: "Aggregate cultural events in and around Poitiers",
		Long: `Scrapes the programmes of Poitiers venues (cinemas, theatres, concert halls,
exhibition centres), normalizes them into one schema, removes duplicates, orders
them by date and writes the result to a JSON feed.

Running without a subcommand is the same as "poitiers-events run".`,
		SilenceUsage: true,
		Version:      Version,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", config.DefaultPath, "Configuration file (optional)")
	cmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "Output format: text or json")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	run := newRunCmd()
	cmd.AddCommand(run, newSourcesCmd(), newHistoryCmd(), newICSCmd())

	// The root shares the run command's flags and behaviour.
	cmd.Flags().AddFlagSet(run.Flags())
	cmd.RunE = run.RunE

	return cmd
}

// setup loads the configuration and installs the default logger.
func setup() (*config.Config, OutputFormat, error) {
	format := OutputFormat(strings.ToLower(flagFormat))
	if format != FormatText && format != FormatJSON {
		return nil, "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", flagFormat)
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, "", fmt.Errorf("loading configuration: %w", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, "", err
	}
	if flagVerbose {
		level = logger.LevelDebug
	}
	logger.SetDefault(logger.New(level, os.Stderr))

	return cfg, format, nil
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(ExitError)
	}
}
