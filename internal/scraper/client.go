package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pfrederiksen/poitiers-events/internal/logger"
)

const tracerName = "github.com/pfrederiksen/poitiers-events/internal/scraper"

// newClient builds the resty client of one extractor. RetryCount 0 disables retries.
func newClient(opts Options) *resty.Client {
	return newTracedClient(opts, otel.Tracer(tracerName))
}

func newTracedClient(opts Options, tracer trace.Tracer) *resty.Client {
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept-Language", "fr-FR,fr;q=0.9").
		SetRetryCount(opts.RetryCount)

	if opts.RetryWait > 0 {
		client.SetRetryWaitTime(opts.RetryWait)
	}
	if opts.RetryMaxWait > 0 {
		client.SetRetryMaxWaitTime(opts.RetryMaxWait)
	}
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return res.StatusCode() == http.StatusTooManyRequests || res.StatusCode() >= 500
	})

	instrument(client, tracer)
	return client
}

// attemptParent keys the caller's context inside an attempt context. Every attempt of a
// retried request starts from it.
type attemptParent struct{}

// instrument opens one span per request attempt and closes it when the response or the
// error arrives. OnError fires once after the last retry, so an attempt that failed
// without a response is closed when the next one starts.
func instrument(client *resty.Client, tracer trace.Tracer) {
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		parent := req.Context()
		if p, ok := parent.Value(attemptParent{}).(context.Context); ok {
			if prev := trace.SpanFromContext(parent); prev.IsRecording() {
				prev.SetStatus(codes.Error, "retried")
				prev.End()
			}
			parent = p
		}

		ctx, _ := tracer.Start(parent, "http "+req.Method,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attribute.String("http.url", req.URL)),
		)
		req.SetContext(context.WithValue(ctx, attemptParent{}, parent))
		logger.Debug("HTTP request", logger.Fields{"method": req.Method, "url": req.URL})
		return nil
	})

	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		span := trace.SpanFromContext(res.Request.Context())
		defer span.End()

		span.SetAttributes(attribute.Int("http.status_code", res.StatusCode()))
		if !res.IsSuccess() {
			span.SetStatus(codes.Error, res.Status())
		}
		return nil
	})

	client.OnError(func(req *resty.Request, err error) {
		span := trace.SpanFromContext(req.Context())
		defer span.End()

		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
	})
}

// get fetches url and returns the body of a 2xx response.
func get(ctx context.Context, client *resty.Client, url string) ([]byte, error) {
	res, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("fetching %s: %w: %d", url, ErrUnexpectedStatus, res.StatusCode())
	}
	return res.Body(), nil
}

// getDocument fetches url and parses it as HTML.
func getDocument(ctx context.Context, client *resty.Client, url string) (*goquery.Document, error) {
	body, err := get(ctx, client, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML from %s: %w", url, err)
	}
	return doc, nil
}
