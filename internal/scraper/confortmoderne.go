package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/pfrederiksen/poitiers-events/internal/clock"
	"github.com/pfrederiksen/poitiers-events/internal/event"
)

const ConfortModerneURL = "https://www.confort-moderne.fr/fr/agenda/details"

// ConfortModerne reads the agenda table of Confort Moderne. Month names appear in header
// rows; the event rows below them only carry the day.
type ConfortModerne struct {
	client *resty.Client
	clock  clock.Clock
	url    string
}

// NewConfortModerne creates the Confort Moderne extractor.
func NewConfortModerne(opts Options) *ConfortModerne {
	opts = opts.withDefaults()
	return &ConfortModerne{client: newClient(opts), clock: opts.Clock, url: ConfortModerneURL}
}

func (c *ConfortModerne) Name() string  { return "confort-moderne" }
func (c *ConfortModerne) Venue() string { return "Confort Moderne" }

// Fetch downloads the agenda page.
func (c *ConfortModerne) Fetch(ctx context.Context) ([]event.Raw, error) {
	body, err := get(ctx, c.client, c.url)
	if err != nil {
		return nil, err
	}
	return c.parseEvents(bytes.NewReader(body), c.url)
}

func (c *ConfortModerne) parseEvents(r io.Reader, pageURL string) ([]event.Raw, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	now := c.clock.Now()
	events := make([]event.Raw, 0)
	seen := make(map[string]bool)
	currentMonth := ""

	doc.Find("table tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return
		}

		first := textOf(cells.Eq(0))
		if isMonthHeader(cells, first) {
			if first != "" {
				currentMonth = first
			}
			return
		}

		titleCell := cells.Eq(2)
		title := textOf(titleCell.Find("h1, h2, h3, h4, strong, b"))
		block := spacedText(titleCell)
		if block == "" {
			return
		}
		if title == "" {
			title = block
		}
		description := strings.TrimSpace(strings.TrimPrefix(block, title))

		date := first
		if currentMonth != "" {
			date = strings.TrimSpace(first + " " + currentMonth)
		}

		// The agenda repeats rows for multi-part evenings.
		key := title + "|" + date
		if seen[key] {
			return
		}
		seen[key] = true

		events = append(events, event.Raw{
			Title:       event.String(title),
			Date:        event.String(date),
			Poster:      event.String(resolveURL(pageURL, attrOf(cells.Eq(1).Find("img"), "src"))),
			Description: event.String(description),
			Category:    event.String(textOf(cells.Eq(3))),
			Location:    event.String(textOf(cells.Eq(4))),
			Source:      event.String(pageURL),
			URL:         event.String(resolveURL(pageURL, attrOf(titleCell.Find("a[href]"), "href"))),
			ScrapedAt:   now,
		})
	})

	return events, nil
}

// isMonthHeader reports whether a row announces the month of the rows below it: either it
// is too short to be an event, or its first cell names a month and the title cell is empty.
func isMonthHeader(cells *goquery.Selection, first string) bool {
	if cells.Length() < 5 {
		return true
	}
	if textOf(cells.Eq(2)) != "" {
		return false
	}
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return false
	}
	_, ok := event.FrenchMonths.Lookup(fields[0])
	return ok
}
