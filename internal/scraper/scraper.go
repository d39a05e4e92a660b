package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/pfrederiksen/poitiers-events/internal/clock"
	"github.com/pfrederiksen/poitiers-events/internal/event"
)

const (
	DefaultUserAgent = "poitiers-events/1.0 (github.com/pfrederiksen/poitiers-events)"
	DefaultTimeout   = 30 * time.Second
)

// ErrUnexpectedStatus is returned when a venue answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// Extractor fetches the listings of one venue.
type Extractor interface {
	// Name is the stable identifier used in configuration and reports ("tap", "emf", ...).
	Name() string
	// Venue is the display name used when a record carries none.
	Venue() string
	// Fetch downloads and parses the venue pages. An error means the whole source failed;
	// individual malformed blocks are skipped without error.
	Fetch(ctx context.Context) ([]event.Raw, error)
}

// Options configures the HTTP behaviour shared by every extractor.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	// Delay is waited between follow-up requests to the same site.
	Delay time.Duration
	Clock clock.Clock
	// Location is the venues' time zone, used to compute calendar days.
	Location *time.Location
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.RetryCount < 0 {
		o.RetryCount = 0
	}
	if o.Clock == nil {
		o.Clock = clock.NewSystem()
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// Names lists the extractors in their default run order.
var Names = []string{
	"cgr",
	"arena",
	"republic-corner",
	"parc-expo",
	"tap",
	"confort-moderne",
	"m3q",
	"emf",
}

// Homepages maps extractor names to the public page each one reads from.
var Homepages = map[string]string{
	"cgr":             "https://www.cgrcinemas.fr/",
	"arena":           ArenaURL,
	"republic-corner": RepublicCornerURL,
	"parc-expo":       ParcExpoURL,
	"tap":             TAPBaseURL,
	"confort-moderne": ConfortModerneURL,
	"m3q":             M3QURL,
	"emf":             "https://emf.fr/le-programme/",
}

// New creates the extractor registered under name, or returns false for an unknown name.
func New(name string, opts Options) (Extractor, bool) {
	switch name {
	case "cgr":
		return NewCGR(opts), true
	case "arena":
		return NewArena(opts), true
	case "republic-corner":
		return NewRepublicCorner(opts), true
	case "parc-expo":
		return NewParcExpo(opts), true
	case "tap":
		return NewTAP(opts), true
	case "confort-moderne":
		return NewConfortModerne(opts), true
	case "m3q":
		return NewM3Q(opts), true
	case "emf":
		return NewEMF(opts, EMFWindow{}), true
	}
	return nil, false
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
