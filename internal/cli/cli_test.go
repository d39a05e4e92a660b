package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfrederiksen/poitiers-events/internal/aggregator"
	"github.com/pfrederiksen/poitiers-events/internal/clock"
	"github.com/pfrederiksen/poitiers-events/internal/config"
	"github.com/pfrederiksen/poitiers-events/internal/event"
	"github.com/pfrederiksen/poitiers-events/internal/history"
	"github.com/pfrederiksen/poitiers-events/internal/notifier"
	"github.com/pfrederiksen/poitiers-events/internal/scraper"
	"github.com/pfrederiksen/poitiers-events/internal/storage"
)

var runTime = time.Date(2025, 11, 16, 8, 0, 0, 0, time.UTC)

type fakeExtractor struct {
	name    string
	records []event.Raw
	err     error
}

func (f *fakeExtractor) Name() string  { return f.name }
func (f *fakeExtractor) Venue() string { return strings.ToUpper(f.name) }

func (f *fakeExtractor) Fetch(ctx context.Context) ([]event.Raw, error) {
	return f.records, f.err
}

func raw(title, source, release string) event.Raw {
	return event.Raw{Title: event.String(title), Source: event.String(source), Release: event.String(release)}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Output = filepath.Join(t.TempDir(), "events.json")
	cfg.Timezone = "UTC"
	return &cfg
}

func testSources() []aggregator.Source {
	return []aggregator.Source{
		{Extractor: &fakeExtractor{name: "tap", records: []event.Raw{
			raw("Concert", "https://example.com/concert", "2025-12-02T20:00:00Z"),
			raw("Gala", "https://example.com/gala", "2025-12-01T20:00:00Z"),
		}}},
		{Extractor: &fakeExtractor{name: "arena", err: errors.New("unexpected status code 503")}},
		{Extractor: &fakeExtractor{name: "m3q", records: []event.Raw{
			raw("GALA ", "https://example.com/gala", "2025-12-05T20:00:00Z"),
		}}},
	}
}

func TestPipelineRun(t *testing.T) {
	cfg := testConfig(t)
	dir := filepath.Dir(cfg.Output)
	cfg.HistoryDB = filepath.Join(dir, "history.db")
	cfg.MetricsFile = filepath.Join(dir, "poitiers.prom")

	p := &pipeline{cfg: cfg, sources: testSources(), clock: clock.NewFixed(runTime)}
	summary, err := p.run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Collected)
	assert.Equal(t, 2, summary.Written)
	assert.Equal(t, 1, summary.Failed())
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, "2025-11-16T08:00:00.000000+00:00", summary.GeneratedAt)

	doc, err := storage.LoadDocument(cfg.Output)
	require.NoError(t, err)
	require.Len(t, doc.Events, 2)
	assert.Equal(t, "Gala", doc.Events[0].Title)
	assert.Equal(t, "Concert", doc.Events[1].Title)
	assert.Equal(t, "TAP", doc.Events[0].Venue)

	store, err := history.Open(cfg.HistoryDB)
	require.NoError(t, err)
	defer store.Close() // nolint:errcheck
	runs, err := store.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].ID)
	assert.Equal(t, []string{"arena"}, runs[0].Failed())

	prom, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "poitiers_events_written 2")
	assert.Contains(t, string(prom), `poitiers_events_extractor_failures_total{source="arena"} 1`)
}

func TestPipelineRunAnnouncesNewEvents(t *testing.T) {
	cfg := testConfig(t)
	previous := event.NewDocument(runTime.Add(-24*time.Hour), []event.Event{
		{Title: "Gala", Source: "https://example.com/gala"},
	})
	require.NoError(t, storage.WriteDocument(cfg.Output, previous))

	var out bytes.Buffer
	p := &pipeline{
		cfg:      cfg,
		sources:  testSources(),
		clock:    clock.NewFixed(runTime),
		notifier: notifier.NewDryRunNotifier(&out),
	}
	summary, err := p.run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.New)
	assert.Contains(t, out.String(), "Concert")
	assert.Contains(t, out.String(), "--- Tweet 1/1 ---")
	assert.NotContains(t, out.String(), "Gala")
}

func TestPipelineRunNoSources(t *testing.T) {
	cfg := testConfig(t)

	p := &pipeline{cfg: cfg, clock: clock.NewFixed(runTime)}
	summary, err := p.run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Written)

	data, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"events": []`)
}

func TestPipelineRunWriteError(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(filepath.Dir(cfg.Output), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	cfg.Output = filepath.Join(blocker, "events.json")

	p := &pipeline{cfg: cfg, sources: testSources(), clock: clock.NewFixed(runTime)}
	_, err := p.run(context.Background())
	assert.Error(t, err)
}

func TestPipelineRunCancelled(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &pipeline{cfg: cfg, sources: testSources(), clock: clock.NewFixed(runTime)}
	_, err := p.run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(cfg.Output)
	assert.True(t, os.IsNotExist(statErr), "no feed should be written")
}

func TestSelectSources(t *testing.T) {
	opts := scraper.Options{Clock: clock.NewFixed(runTime)}
	disabled := false

	tests := []struct {
		name    string
		sources map[string]config.Source
		only    []string
		want    []string
		wantErr bool
	}{
		{
			name: "all enabled by default",
			want: scraper.Names,
		},
		{
			name:    "disabled source skipped",
			sources: map[string]config.Source{"cgr": {Enabled: &disabled}},
			want:    []string{"arena", "republic-corner", "parc-expo", "tap", "confort-moderne", "m3q", "emf"},
		},
		{
			name:    "only keeps default order and overrides enabled",
			sources: map[string]config.Source{"emf": {Enabled: &disabled}},
			only:    []string{"emf", " TAP ", ""},
			want:    []string{"tap", "emf"},
		},
		{
			name:    "unknown only",
			only:    []string{"fnac"},
			wantErr: true,
		},
		{
			name:    "unknown configured source",
			sources: map[string]config.Source{"fnac": {}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			if tt.sources != nil {
				cfg.Sources = tt.sources
			}
			sources, err := selectSources(&cfg, tt.only, opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			names := make([]string, 0, len(sources))
			for _, src := range sources {
				names = append(names, src.Extractor.Name())
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestSelectSourcesTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.Sources = map[string]config.Source{"tap": {Timeout: time.Minute}}

	sources, err := selectSources(&cfg, []string{"tap"}, scraper.Options{})
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, time.Minute, sources[0].Timeout)
}

func TestNewNotifier(t *testing.T) {
	cfg := config.Default()

	n, err := newNotifier("none", &cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = newNotifier("dryrun", &cfg, &bytes.Buffer{})
	require.NoError(t, err)
	assert.IsType(t, &notifier.DryRunNotifier{}, n)

	_, err = newNotifier("twitter", &cfg, nil)
	assert.ErrorIs(t, err, notifier.ErrMissingCredentials)

	_, err = newNotifier("telegram", &cfg, nil)
	assert.ErrorIs(t, err, notifier.ErrMissingTelegramCredentials)

	_, err = newNotifier("mastodon", &cfg, nil)
	assert.Error(t, err)
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSourcesCommand(t *testing.T) {
	out, err := executeRoot(t, "sources", "--format", "json")
	require.NoError(t, err)

	var infos []SourceInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, len(scraper.Names))
	assert.Equal(t, "cgr", infos[0].Name)
	assert.True(t, infos[0].Enabled)
	assert.Equal(t, scraper.TAPBaseURL, infos[4].URL)
}

func TestSourcesCommandText(t *testing.T) {
	out, err := executeRoot(t, "sources")
	require.NoError(t, err)
	assert.Contains(t, out, "confort-moderne")
	assert.Contains(t, out, scraper.ArenaURL)
}

func TestInvalidFormat(t *testing.T) {
	_, err := executeRoot(t, "sources", "--format", "xml")
	assert.Error(t, err)
}

func TestICSCommand(t *testing.T) {
	dir := t.TempDir()
	feed := filepath.Join(dir, "events.json")
	require.NoError(t, storage.WriteDocument(feed, event.NewDocument(runTime, []event.Event{
		{Title: "Gala", Release: event.String("2025-12-01T20:00:00Z"), Source: "https://example.com/gala"},
		{Title: "Sans date", Source: "https://example.com/nodate"},
	})))

	out := filepath.Join(dir, "agenda.ics")
	_, err := executeRoot(t, "ics", "--events", feed, "--out", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "BEGIN:VEVENT"))
	assert.Contains(t, string(data), "SUMMARY:Gala")

	stdout, err := executeRoot(t, "ics", "--events", feed)
	require.NoError(t, err)
	assert.Contains(t, stdout, "BEGIN:VCALENDAR")
}

func TestICSCommandFilters(t *testing.T) {
	dir := t.TempDir()
	feed := filepath.Join(dir, "events.json")
	require.NoError(t, storage.WriteDocument(feed, event.NewDocument(runTime, []event.Event{
		{Title: "Gala", Venue: "TAP", Release: event.String("2025-12-06T20:00:00Z"), Source: "https://example.com/gala"},
		{Title: "Concert", Venue: "M3Q", Release: event.String("2025-12-09T20:00:00Z"), Source: "https://example.com/concert"},
		{Title: "Film", Venue: "CGR Castille", Release: event.String("2026-01-10T20:00:00Z"), Source: "https://example.com/film"},
	})))

	stdout, err := executeRoot(t, "ics", "--events", feed, "--period", "2025-12-01..2025-12-31", "--weekends")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(stdout, "BEGIN:VEVENT"))
	assert.Contains(t, stdout, "SUMMARY:Gala")

	stdout, err = executeRoot(t, "ics", "--events", feed, "--venue", "m3q,cgr")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(stdout, "BEGIN:VEVENT"))

	_, err = executeRoot(t, "ics", "--events", feed, "--period", "brumaire")
	assert.Error(t, err)
}

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "history.db")

	store, err := history.Open(db)
	require.NoError(t, err)
	_, err = store.Record(context.Background(), &aggregator.Result{
		Document:   event.NewDocument(runTime, nil),
		Reports:    []aggregator.SourceReport{{Source: "tap", Error: "boom"}},
		StartedAt:  runTime,
		FinishedAt: runTime,
	}, "events.json")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := executeRoot(t, "history", "--db", db, "--format", "json")
	require.NoError(t, err)

	var runs []history.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, []string{"tap"}, runs[0].Failed())

	_, err = executeRoot(t, "history", "--db", "")
	assert.Error(t, err, "no database configured")
}
