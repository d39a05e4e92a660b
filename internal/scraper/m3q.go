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

const M3QURL = "https://m3q.centres-sociaux.fr/saison-culturelle-2025-26/"

var (
	weekdays = []string{"LUNDI", "MARDI", "MERCREDI", "JEUDI", "VENDREDI", "SAMEDI", "DIMANCHE"}

	// Text blocks that belong to the page chrome rather than to an event.
	m3qChrome = []string{"AGENDA", "TÉLÉCHARGEZ", "SAMEDI", "DIMANCHE"}
)

// M3Q reads the cultural season page of the Maison des 3 Quartiers. The page is a flat
// sequence of sections: a weekday heading sets the date for the event blocks that follow.
type M3Q struct {
	client *resty.Client
	clock  clock.Clock
	url    string
}

// NewM3Q creates the Maison des 3 Quartiers extractor.
func NewM3Q(opts Options) *M3Q {
	opts = opts.withDefaults()
	return &M3Q{client: newClient(opts), clock: opts.Clock, url: M3QURL}
}

func (m *M3Q) Name() string  { return "m3q" }
func (m *M3Q) Venue() string { return "Maison des 3 quartiers" }

// Fetch downloads the season page.
func (m *M3Q) Fetch(ctx context.Context) ([]event.Raw, error) {
	body, err := get(ctx, m.client, m.url)
	if err != nil {
		return nil, err
	}
	return m.parseEvents(bytes.NewReader(body), m.url)
}

func (m *M3Q) parseEvents(r io.Reader, pageURL string) ([]event.Raw, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	now := m.clock.Now()
	events := make([]event.Raw, 0)
	currentDate := ""

	doc.Find("section.elementor-section").Each(func(i int, section *goquery.Selection) {
		if heading := textOf(section.Find("p")); startsWithAny(strings.ToUpper(heading), weekdays) {
			currentDate = heading
			return
		}

		image := attrOf(section.Find("img"), "src")
		title := textOf(section.Find("h4"))
		if image == "" || title == "" || currentDate == "" {
			return
		}

		var (
			subtitle    string
			timeInfo    string
			description []string
		)
		section.Find("div.elementor-widget-container").Each(func(_ int, block *goquery.Selection) {
			content := spacedText(block)
			switch {
			case strings.HasPrefix(content, "·"):
				subtitle = content
			case strings.Contains(content, "→"):
				timeInfo = strings.TrimSpace(strings.ReplaceAll(content, "→", ""))
			case len([]rune(content)) > 10 && !startsWithAny(strings.ToUpper(content), m3qChrome) && content != title:
				description = append(description, content)
			}
		})

		raw := event.Raw{
			Title:       event.String(title),
			Date:        event.String(currentDate),
			Release:     event.String(timeInfo),
			Poster:      event.String(resolveURL(pageURL, image)),
			Description: event.String(strings.Join(description, "\n")),
			Reservation: event.String(resolveURL(pageURL, attrOf(section.Find("a.elementor-button"), "href"))),
			Source:      event.String(pageURL),
			ScrapedAt:   now,
		}

		attrs := make(map[string]string)
		if subtitle != "" {
			attrs["subtitle"] = subtitle
		}
		if timeInfo != "" {
			attrs["time"] = timeInfo
		}
		if len(attrs) > 0 {
			raw.Attributes = attrs
		}

		events = append(events, raw)
	})

	return events, nil
}

func startsWithAny(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
