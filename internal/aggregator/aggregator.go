package aggregator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pfrederiksen/poitiers-events/internal/clock"
	"github.com/pfrederiksen/poitiers-events/internal/event"
	"github.com/pfrederiksen/poitiers-events/internal/logger"
	"github.com/pfrederiksen/poitiers-events/internal/scraper"
)

const tracerName = "github.com/pfrederiksen/poitiers-events/internal/aggregator"

// Source is one extractor with its optional overall deadline. A zero Timeout leaves the
// extractor bounded only by its per-request HTTP timeout.
type Source struct {
	Extractor scraper.Extractor
	Timeout   time.Duration
}

// Observer receives the outcome of every extractor call and of the run.
type Observer interface {
	ObserveSource(report SourceReport)
	ObserveRun(result *Result)
}

// SourceReport is the outcome of one extractor call.
type SourceReport struct {
	Source   string        `json:"source"`
	Venue    string        `json:"venue"`
	Events   int           `json:"events"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Failed reports whether the extractor contributed nothing because of an error.
func (r SourceReport) Failed() bool {
	return r.Error != ""
}

// Result is the outcome of a run.
type Result struct {
	Document   *event.Document
	Reports    []SourceReport
	Collected  int // records returned by extractors, before dedup
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failures returns the reports of the extractors that failed.
func (r *Result) Failures() []SourceReport {
	failed := make([]SourceReport, 0)
	for _, rep := range r.Reports {
		if rep.Failed() {
			failed = append(failed, rep)
		}
	}
	return failed
}

// Aggregator runs a fixed, ordered list of sources.
type Aggregator struct {
	sources    []Source
	normalizer *event.Normalizer
	clock      clock.Clock
	log        *logger.Logger
	observers  []Observer
	tracer     trace.Tracer
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock sets the clock used for generated_at and run timings.
func WithClock(c clock.Clock) Option {
	return func(a *Aggregator) { a.clock = c }
}

// WithNormalizer replaces the default normalizer (UTC, French months).
func WithNormalizer(n *event.Normalizer) Option {
	return func(a *Aggregator) { a.normalizer = n }
}

// WithLogger sets the logger used for per-source outcomes.
func WithLogger(l *logger.Logger) Option {
	return func(a *Aggregator) { a.log = l }
}

// WithObserver adds an observer notified after every extractor and after the run.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) { a.observers = append(a.observers, o) }
}

// New creates an Aggregator over sources, run in the given order.
func New(sources []Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		sources: sources,
		clock:   clock.NewSystem(),
		log:     logger.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.normalizer == nil {
		a.normalizer = event.NewNormalizer(nil, nil, a.clock)
	}
	return a
}

// Run executes the pipeline: extract, normalize, dedup, sort. It returns an error only when
// ctx is already done before the first extractor runs; extractor failures are reported in
// Result.Reports.
func (a *Aggregator) Run(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run cancelled before start: %w", err)
	}

	ctx, span := a.tracer.Start(ctx, "aggregator.Run")
	defer span.End()

	result := &Result{
		Reports:   make([]SourceReport, 0, len(a.sources)),
		StartedAt: a.clock.Now(),
	}
	events := make([]event.Event, 0)

	for _, src := range a.sources {
		records, report := a.runSource(ctx, src)
		result.Reports = append(result.Reports, report)
		result.Collected += len(records)

		venue := src.Extractor.Venue()
		for _, raw := range records {
			events = append(events, a.normalizer.Normalize(raw, venue))
		}

		for _, o := range a.observers {
			o.ObserveSource(report)
		}
	}

	events = event.Dedup(events)
	event.Sort(events)

	result.FinishedAt = a.clock.Now()
	result.Document = event.NewDocument(result.FinishedAt, events)

	span.SetAttributes(
		attribute.Int("events.collected", result.Collected),
		attribute.Int("events.written", len(events)),
		attribute.Int("sources.failed", len(result.Failures())),
	)
	a.log.Info("Aggregation finished", logger.Fields{
		"collected": result.Collected,
		"unique":    len(events),
		"failed":    len(result.Failures()),
	})

	for _, o := range a.observers {
		o.ObserveRun(result)
	}
	return result, nil
}

// runSource calls one extractor, converting errors, deadline overruns and panics into a
// failed report with no records.
func (a *Aggregator) runSource(ctx context.Context, src Source) (records []event.Raw, report SourceReport) {
	name := src.Extractor.Name()
	report = SourceReport{Source: name, Venue: src.Extractor.Venue()}
	started := a.clock.Now()

	ctx, span := a.tracer.Start(ctx, "extract "+name, trace.WithAttributes(attribute.String("source", name)))
	defer span.End()

	defer func() {
		report.Duration = a.clock.Now().Sub(started)
		if r := recover(); r != nil {
			records = nil
			report.Events = 0
			report.Error = fmt.Sprintf("panic: %v", r)
			span.SetStatus(codes.Error, report.Error)
			a.log.Error("Extractor panicked", logger.Fields{"source": name, "stack": string(debug.Stack())}, fmt.Errorf("%v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		report.Error = err.Error()
		a.log.Warn("Extractor skipped", logger.Fields{"source": name}, err)
		return nil, report
	}

	if src.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, src.Timeout)
		defer cancel()
	}

	records, err := src.Extractor.Fetch(ctx)
	if err != nil {
		report.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "extractor failed")
		a.log.Warn("Extractor failed", logger.Fields{"source": name}, err)
		return nil, report
	}

	report.Events = len(records)
	span.SetAttributes(attribute.Int("events", len(records)))
	a.log.Info("Extractor finished", logger.Fields{"source": name, "events": len(records)})
	return records, report
}
