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
)

const ParcExpoURL = "https://www.parcexpo-grandpoitiers.fr/les-prochains-evenements/"

// parcExpoPlaceholder is the title of blocks that carry a poster but no heading.
const parcExpoPlaceholder = "Événement"

// ParcExpo reads the upcoming events of Parc Expo Grand Poitiers. The page is built with a
// block editor and has no stable event markup, so several block shapes are accepted.
type ParcExpo struct {
	client *resty.Client
	clock  clock.Clock
	url    string
}

// NewParcExpo creates the Parc Expo extractor.
func NewParcExpo(opts Options) *ParcExpo {
	opts = opts.withDefaults()
	return &ParcExpo{client: newClient(opts), clock: opts.Clock, url: ParcExpoURL}
}

func (p *ParcExpo) Name() string  { return "parc-expo" }
func (p *ParcExpo) Venue() string { return "Parc Expo Grand Poitiers" }

// Fetch downloads the events page.
func (p *ParcExpo) Fetch(ctx context.Context) ([]event.Raw, error) {
	body, err := get(ctx, p.client, p.url)
	if err != nil {
		return nil, err
	}
	return p.parseEvents(bytes.NewReader(body), p.url)
}

func (p *ParcExpo) parseEvents(r io.Reader, pageURL string) ([]event.Raw, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	now := p.clock.Now()
	events := make([]event.Raw, 0)

	doc.Find(".event-item, .wp-block-columns, article").Each(func(i int, block *goquery.Selection) {
		title := textOf(block.Find("h2"))
		if title == "" {
			title = textOf(block.Find("h3"))
		}
		if title == "" {
			title = textOf(block.Find("strong"))
		}
		poster := resolveURL(pageURL, attrOf(block.Find("img"), "src"))

		// Layout blocks with neither a heading nor an image are not events.
		if title == "" && poster == "" {
			return
		}
		if title == "" {
			title = parcExpoPlaceholder
		}

		date := textOf(block.Find(".event-date"))
		if date == "" {
			date = textOf(block.Find("time"))
		}

		raw := event.Raw{
			Title:     event.String(title),
			Date:      event.String(date),
			Poster:    event.String(poster),
			ScrapedAt: now,
		}
		if link := resolveURL(pageURL, attrOf(block.Find("a[href]"), "href")); link != "" {
			raw.Source = event.String(link)
			raw.URL = raw.Source
		} else {
			raw.Source = event.String(pageURL)
		}

		events = append(events, raw)
	})

	return events, nil
}
