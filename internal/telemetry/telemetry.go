// Package telemetry installs the OpenTelemetry tracer provider used by the aggregator and the
// HTTP client. Without an endpoint nothing is installed and spans stay no-ops.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/pfrederiksen/poitiers-events/internal/logger"
)

// ServiceName is reported as service.name.
const ServiceName = "poitiers-events"

// Config selects the OTLP/HTTP trace exporter.
type Config struct {
	Endpoint string            `yaml:"otlp_endpoint"`
	Headers  map[string]string `yaml:"headers"`
}

// Enabled reports whether an exporter is configured.
func (c Config) Enabled() bool {
	return c.Endpoint != ""
}

// Telemetry owns the installed provider. The zero value is a valid no-op.
type Telemetry struct {
	TracerProvider *trace.TracerProvider
}

// Shutdown flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.TracerProvider == nil {
		return nil
	}
	errlist := []error{}
	if err := t.TracerProvider.ForceFlush(ctx); err != nil {
		errlist = append(errlist, err)
	}
	if err := t.TracerProvider.Shutdown(ctx); err != nil {
		errlist = append(errlist, err)
	}
	return errors.Join(errlist...)
}

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}

// Setup builds the exporter and installs it as the global tracer provider.
func Setup(ctx context.Context, serviceName string, config Config) (*Telemetry, error) {
	if !config.Enabled() {
		logger.Debug("tracing disabled", nil)
		return &Telemetry{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	r, err := newResource(serviceName)
	if err != nil {
		return nil, fmt.Errorf("building telemetry resource: %w", err)
	}

	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpointURL(config.Endpoint),
		otlptracehttp.WithHeaders(config.Headers),
	)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(r),
	)
	otel.SetTracerProvider(provider)

	logger.Info("tracer export initialized", logger.Fields{
		"type":     "http",
		"endpoint": config.Endpoint,
		"headers":  len(config.Headers) > 0,
	})
	return &Telemetry{TracerProvider: provider}, nil
}
