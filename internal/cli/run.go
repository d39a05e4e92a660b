package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/poitiers-events/internal/aggregator"
	"github.com/pfrederiksen/poitiers-events/internal/clock"
	"github.com/pfrederiksen/poitiers-events/internal/config"
	"github.com/pfrederiksen/poitiers-events/internal/event"
	"github.com/pfrederiksen/poitiers-events/internal/history"
	"github.com/pfrederiksen/poitiers-events/internal/logger"
	"github.com/pfrederiksen/poitiers-events/internal/metrics"
	"github.com/pfrederiksen/poitiers-events/internal/notifier"
	"github.com/pfrederiksen/poitiers-events/internal/scraper"
	"github.com/pfrederiksen/poitiers-events/internal/storage"
	"github.com/pfrederiksen/poitiers-events/internal/telemetry"
)

// Announce modes.
const (
	AnnounceNone     = "none"
	AnnounceDryRun   = "dryrun"
	AnnounceTwitter  = "twitter"
	AnnounceTelegram = "telegram"
)

var (
	flagOutput   string
	flagOnly     []string
	flagAnnounce string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape every enabled venue and write the feed",
		RunE:  runPipeline,
	}

	cmd.Flags().StringVar(&flagOutput, "output", "", "Feed path (default from configuration, events.json)")
	cmd.Flags().StringSliceVar(&flagOnly, "only", nil, "Run only these sources (comma-separated names)")
	cmd.Flags().StringVar(&flagAnnounce, "announce", AnnounceNone, "Announce new events: none, dryrun, twitter or telegram")

	return cmd
}

// runPipeline is the main command logic
func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, format, err := setup()
	if err != nil {
		return err
	}
	if flagOutput != "" {
		cfg.Output = flagOutput
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tel, err := telemetry.Setup(ctx, telemetry.ServiceName, cfg.Telemetry)
	if err != nil {
		logger.Warn("Tracing disabled", nil, err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("Flushing traces failed", nil, err)
		}
	}()

	clk := clock.NewSystem()
	sources, err := selectSources(cfg, flagOnly, scraperOptions(cfg, clk))
	if err != nil {
		return err
	}

	announcer, err := newNotifier(flagAnnounce, cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	p := &pipeline{
		cfg:      cfg,
		sources:  sources,
		clock:    clk,
		notifier: announcer,
	}
	summary, err := p.run(ctx)
	if err != nil {
		return err
	}

	if err := WriteOutput(cmd.OutOrStdout(), summary, format, flagVerbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func scraperOptions(cfg *config.Config, clk clock.Clock) scraper.Options {
	return scraper.Options{
		UserAgent:    cfg.UserAgent,
		Timeout:      cfg.HTTP.Timeout,
		RetryCount:   cfg.HTTP.RetryCount,
		RetryWait:    cfg.HTTP.RetryWait,
		RetryMaxWait: cfg.HTTP.RetryMaxWait,
		Delay:        cfg.RequestDelay,
		Clock:        clk,
		Location:     cfg.Location(),
	}
}

// selectSources builds the extractors in their default order. only, when non-empty,
// restricts the run to the named sources, enabled or not.
func selectSources(cfg *config.Config, only []string, opts scraper.Options) ([]aggregator.Source, error) {
	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, ok := scraper.Homepages[name]; !ok {
			return nil, fmt.Errorf("unknown source %q (known: %s)", name, strings.Join(scraper.Names, ", "))
		}
		wanted[name] = true
	}
	for name := range cfg.Sources {
		if _, ok := scraper.Homepages[name]; !ok {
			return nil, fmt.Errorf("unknown source %q in configuration", name)
		}
	}

	sources := make([]aggregator.Source, 0, len(scraper.Names))
	for _, name := range scraper.Names {
		if len(wanted) > 0 {
			if !wanted[name] {
				continue
			}
		} else if !cfg.SourceEnabled(name) {
			logger.Debug("Source disabled", logger.Fields{"source": name})
			continue
		}

		var ex scraper.Extractor
		if name == "emf" {
			ex = scraper.NewEMF(opts, scraper.EMFWindow{Start: cfg.EMFStart(), Days: cfg.EMF.Days})
		} else {
			ex, _ = scraper.New(name, opts)
		}
		sources = append(sources, aggregator.Source{Extractor: ex, Timeout: cfg.SourceTimeout(name)})
	}
	return sources, nil
}

func newNotifier(mode string, cfg *config.Config, out io.Writer) (notifier.Notifier, error) {
	switch strings.ToLower(mode) {
	case "", AnnounceNone:
		return nil, nil
	case AnnounceDryRun:
		return notifier.NewDryRunNotifier(out), nil
	case AnnounceTwitter:
		n, err := notifier.NewTwitterNotifier(cfg.Twitter)
		if err != nil {
			return nil, fmt.Errorf("initializing Twitter: %w", err)
		}
		return n, nil
	case AnnounceTelegram:
		n, err := notifier.NewTelegramNotifier(cfg.Telegram)
		if err != nil {
			return nil, fmt.Errorf("initializing Telegram: %w", err)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("invalid announce mode: %s (must be none, dryrun, twitter or telegram)", mode)
	}
}

// pipeline runs one aggregation and its side outputs.
type pipeline struct {
	cfg      *config.Config
	sources  []aggregator.Source
	clock    clock.Clock
	notifier notifier.Notifier
}

// run writes the feed and returns the run summary. Only a cancelled context or a failed
// feed write is an error; history, metrics and announcement failures are logged.
func (p *pipeline) run(ctx context.Context) (*Summary, error) {
	var previous []event.Event
	if p.notifier != nil {
		doc, err := storage.LoadDocument(p.cfg.Output)
		if err != nil {
			logger.Warn("Previous feed unreadable, every event is new", logger.Fields{"path": p.cfg.Output}, err)
		} else {
			previous = doc.Events
		}
	}

	recorder := metrics.New()
	agg := aggregator.New(p.sources,
		aggregator.WithClock(p.clock),
		aggregator.WithNormalizer(event.NewNormalizer(p.cfg.Location(), event.FrenchMonths, p.clock)),
		aggregator.WithObserver(recorder),
	)

	result, err := agg.Run(ctx)
	if err != nil {
		return nil, err
	}

	if err := storage.WriteDocument(p.cfg.Output, result.Document); err != nil {
		return nil, err
	}
	logger.Info("Feed written", logger.Fields{"path": p.cfg.Output, "events": len(result.Document.Events)})

	summary := newSummary(result, p.cfg.Output)

	if p.cfg.HistoryDB != "" {
		id, err := recordHistory(ctx, p.cfg.HistoryDB, result, p.cfg.Output)
		if err != nil {
			logger.Warn("Recording run history failed", logger.Fields{"path": p.cfg.HistoryDB}, err)
		}
		summary.RunID = id
	}

	if p.cfg.MetricsFile != "" {
		if err := recorder.WriteTextfile(p.cfg.MetricsFile); err != nil {
			logger.Warn("Writing metrics failed", nil, err)
		}
	}

	if p.notifier != nil {
		added := event.Diff(previous, result.Document.Events)
		summary.New = len(added)
		if err := p.notifier.Notify(ctx, added); err != nil {
			logger.Warn("Announcing new events failed", logger.Fields{"new": len(added)}, err)
		}
	}

	return summary, nil
}

func recordHistory(ctx context.Context, path string, result *aggregator.Result, output string) (string, error) {
	path, err := storage.ExpandPath(path)
	if err != nil {
		return "", err
	}
	store, err := history.Open(path)
	if err != nil {
		return "", err
	}
	defer store.Close() // nolint:errcheck
	return store.Record(ctx, result, output)
}
