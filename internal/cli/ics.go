package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/poitiers-events/internal/calendar"
	"github.com/pfrederiksen/poitiers-events/internal/clock"
	"github.com/pfrederiksen/poitiers-events/internal/filter"
	"github.com/pfrederiksen/poitiers-events/internal/logger"
	"github.com/pfrederiksen/poitiers-events/internal/storage"
)

const defaultCalendarName = "Sorties à Poitiers"

var (
	flagICSEvents     string
	flagICSOut        string
	flagICSName       string
	flagICSPeriod     string
	flagICSVenues     []string
	flagICSCategories []string
	flagICSSearch     []string
	flagICSWeekends   bool
)

func newICSCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ics",
		Short: "Export the feed as an iCalendar agenda",
		RunE:  runICS,
	}
	cmd.Flags().StringVar(&flagICSEvents, "events", "", "Feed to export (default from configuration, events.json)")
	cmd.Flags().StringVar(&flagICSOut, "out", "-", "Output .ics file, - for stdout")
	cmd.Flags().StringVar(&flagICSName, "name", defaultCalendarName, "Calendar name")
	cmd.Flags().StringVar(&flagICSPeriod, "period", "", "Only events in this period: '1-15 mars', '1 mars - 15 avril', 'mars' or '2025-12-01..2025-12-31'")
	cmd.Flags().StringSliceVar(&flagICSVenues, "venue", nil, "Only events at these venues (substring, case-insensitive)")
	cmd.Flags().StringSliceVar(&flagICSCategories, "category", nil, "Only events in these categories (substring, case-insensitive)")
	cmd.Flags().StringSliceVar(&flagICSSearch, "search", nil, "Only events whose title contains one of these words")
	cmd.Flags().BoolVar(&flagICSWeekends, "weekends", false, "Only events on Saturdays and Sundays")
	return cmd
}

func runICS(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}

	path := cfg.Output
	if flagICSEvents != "" {
		path = flagICSEvents
	}

	doc, err := storage.LoadDocument(path)
	if err != nil {
		return err
	}

	now := clock.NewSystem().Now()
	f, err := buildFilter(now, cfg.Location())
	if err != nil {
		return err
	}
	events := f.Apply(doc.Events)
	if !f.IsEmpty() {
		logger.Debug("Feed filtered", logger.Fields{"filter": f.String(), "kept": len(events), "total": len(doc.Events)})
	}

	ics := calendar.GenerateICS(events, flagICSName, now)

	if flagICSOut == "" || flagICSOut == "-" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), ics)
		return err
	}

	out, err := storage.ExpandPath(flagICSOut)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, []byte(ics), 0644); err != nil {
		return fmt.Errorf("writing calendar: %w", err)
	}
	logger.Info("Calendar written", logger.Fields{
		"path":    out,
		"events":  len(events),
		"entries": calendar.Count(events),
	})
	return nil
}

func buildFilter(now time.Time, loc *time.Location) (*filter.Filter, error) {
	f := filter.NewFilter(loc)
	if flagICSPeriod != "" {
		from, to, err := filter.ParseDateRange(flagICSPeriod, now, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid --period: %w", err)
		}
		f.DateFrom, f.DateTo = from, to
	}
	f.Venues = append(f.Venues, flagICSVenues...)
	f.Categories = append(f.Categories, flagICSCategories...)
	f.Titles = append(f.Titles, flagICSSearch...)
	f.WeekendsOnly = flagICSWeekends
	return f, nil
}
