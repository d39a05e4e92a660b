package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/pfrederiksen/poitiers-events/internal/clock"
	"github.com/pfrederiksen/poitiers-events/internal/event"
	"github.com/pfrederiksen/poitiers-events/internal/logger"
)

const ArenaURL = "https://www.arena-futuroscope.com/la-programmation/"

// Arena reads the programme of Arena Futuroscope. Each show is a card with a title, a
// free-text date line, an optional machine-readable <time> and booking links.
type Arena struct {
	client *resty.Client
	clock  clock.Clock
	url    string
}

// NewArena creates the Arena Futuroscope extractor.
func NewArena(opts Options) *Arena {
	opts = opts.withDefaults()
	return &Arena{client: newClient(opts), clock: opts.Clock, url: ArenaURL}
}

func (a *Arena) Name() string  { return "arena" }
func (a *Arena) Venue() string { return "Arena Futuroscope" }

// Fetch downloads the programme page.
func (a *Arena) Fetch(ctx context.Context) ([]event.Raw, error) {
	body, err := get(ctx, a.client, a.url)
	if err != nil {
		return nil, err
	}
	return a.parseEvents(bytes.NewReader(body), a.url)
}

func (a *Arena) parseEvents(r io.Reader, pageURL string) ([]event.Raw, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	now := a.clock.Now()
	events := make([]event.Raw, 0)

	doc.Find("div.card.main-card").Each(func(i int, card *goquery.Selection) {
		raw := event.Raw{
			Title:     event.String(textOf(card.Find(".card__title"))),
			Date:      event.String(textOf(card.Find(".card__meta"))),
			Poster:    event.String(resolveURL(pageURL, attrOf(card.Find(".card__block-image img"), "src"))),
			ScrapedAt: now,
		}

		// Without a <time datetime>, the normalizer derives the release from the date line.
		if datetime := attrOf(card.Find("time"), "datetime"); datetime != "" {
			raw.Release = event.String(datetime)
		}

		if link := attrOf(card.Find("a.stretch-link"), "href"); link != "" {
			raw.Source = event.String(resolveURL(pageURL, link))
			raw.URL = raw.Source
		} else {
			raw.Source = event.String(pageURL)
		}

		booking := card.Find("a.btn-resa-meeting, a.btn-resa-manifestation")
		raw.Reservation = event.String(resolveURL(pageURL, attrOf(booking, "href")))

		events = append(events, raw)
	})

	logger.Debug("Parsed Arena programme", logger.Fields{"cards": len(events)})
	return events, nil
}
