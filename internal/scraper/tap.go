package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/pfrederiksen/poitiers-events/internal/clock"
	"github.com/pfrederiksen/poitiers-events/internal/event"
	"github.com/pfrederiksen/poitiers-events/internal/logger"
)

const (
	TAPBaseURL = "https://www.tap-poitiers.com"

	tapCinemaVenue    = "TAP Cinéma Poitiers"
	tapSpectacleVenue = "TAP Poitiers"
	tapUndated        = "Date à venir"
)

var tapDurationPattern = regexp.MustCompile(`Durée\s*:?\s*(.+?)\s*min`)

// TAP reads the two listings of the Théâtre Auditorium de Poitiers: films and live shows.
// The listings are fetched independently; one failing does not discard the other.
type TAP struct {
	client  *resty.Client
	clock   clock.Clock
	baseURL string
}

// NewTAP creates the TAP extractor.
func NewTAP(opts Options) *TAP {
	opts = opts.withDefaults()
	return &TAP{client: newClient(opts), clock: opts.Clock, baseURL: TAPBaseURL}
}

func (t *TAP) Name() string  { return "tap" }
func (t *TAP) Venue() string { return tapSpectacleVenue }

// Fetch downloads /cinema/ and /spectacle/. It fails only when both listings fail.
func (t *TAP) Fetch(ctx context.Context) ([]event.Raw, error) {
	listings := []struct {
		path  string
		parse func(io.Reader, string) ([]event.Raw, error)
	}{
		{"/cinema/", t.parseCinema},
		{"/spectacle/", t.parseSpectacles},
	}

	var (
		events []event.Raw
		errs   []error
	)
	for _, listing := range listings {
		pageURL := strings.TrimRight(t.baseURL, "/") + listing.path
		body, err := get(ctx, t.client, pageURL)
		if err == nil {
			var parsed []event.Raw
			parsed, err = listing.parse(bytes.NewReader(body), pageURL)
			events = append(events, parsed...)
		}
		if err != nil {
			logger.Warn("TAP listing failed", logger.Fields{"listing": listing.path}, err)
			errs = append(errs, err)
		}
	}

	if len(errs) == len(listings) {
		return nil, errors.Join(errs...)
	}
	return events, nil
}

func (t *TAP) parseCinema(r io.Reader, pageURL string) ([]event.Raw, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	now := t.clock.Now()
	films := make([]event.Raw, 0)

	doc.Find("article, .film-item, .list-item").Each(func(i int, film *goquery.Selection) {
		title := textOf(film.Find("h2, h3, .title"))
		if title == "" {
			return
		}

		raw := event.Raw{
			Title:       event.String(title),
			Venue:       event.String(tapCinemaVenue),
			Poster:      event.String(resolveURL(t.baseURL, attrOf(film.Find("img"), "src"))),
			Description: event.String(textOf(film.Find("p, .description, .excerpt"))),
			Category:    event.String("Cinéma"),
			ScrapedAt:   now,
		}
		t.setSource(&raw, film, pageURL)

		if m := tapDurationPattern.FindStringSubmatch(cleanText(film.Text())); m != nil {
			raw.Attributes = map[string]string{"duration": m[1] + " min"}
		}

		films = append(films, raw)
	})

	return films, nil
}

func (t *TAP) parseSpectacles(r io.Reader, pageURL string) ([]event.Raw, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	// Start dates published as JSON-LD, keyed by the show URL.
	starts := make(map[string]string)
	for _, ld := range linkedEvents(doc) {
		if ld.URL != "" && ld.StartDate != "" {
			starts[resolveURL(t.baseURL, ld.URL)] = ld.StartDate
		}
	}

	now := t.clock.Now()
	shows := make([]event.Raw, 0)

	doc.Find("article, .show-item, .list-item").Each(func(i int, show *goquery.Selection) {
		title := textOf(show.Find("h2, h3, .title"))
		if title == "" {
			return
		}

		date := spacedText(show.Find(".date, time"))
		if date == "" {
			date = tapUndated
		}

		raw := event.Raw{
			Title:     event.String(title),
			Date:      event.String(date),
			Venue:     event.String(tapSpectacleVenue),
			Poster:    event.String(resolveURL(t.baseURL, attrOf(show.Find("img"), "src"))),
			Category:  event.String("Spectacle"),
			ScrapedAt: now,
		}
		t.setSource(&raw, show, pageURL)

		if raw.URL != nil {
			if start, ok := starts[*raw.URL]; ok {
				raw.Release = event.String(start)
			}
		}

		booking := show.Find("a[href*='billet'], a[href*='ticket'], a[href*='resa']")
		raw.Reservation = event.String(resolveURL(t.baseURL, attrOf(booking, "href")))

		shows = append(shows, raw)
	})

	return shows, nil
}

// setSource uses the first link of the block as source and detail URL, or the listing
// page when the block has none.
func (t *TAP) setSource(raw *event.Raw, block *goquery.Selection, pageURL string) {
	if link := resolveURL(t.baseURL, attrOf(block.Find("a[href]"), "href")); link != "" {
		raw.Source = event.String(link)
		raw.URL = raw.Source
		return
	}
	raw.Source = event.String(pageURL)
}
