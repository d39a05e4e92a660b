package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/pfrederiksen/poitiers-events/internal/clock"
	"github.com/pfrederiksen/poitiers-events/internal/event"
	"github.com/pfrederiksen/poitiers-events/internal/logger"
)

const (
	RepublicCornerURL = "https://republic-corner.fr/espace-republic-corner/"

	republicCornerPlaceholder = "Événement Republic Corner"
	republicCornerAddress     = "Espace Republic Corner, Poitiers"
)

var errNoTicketLink = errors.New("no ticket link")

// RepublicCorner reads the Republic Corner page, which only shows posters and ticket
// buttons. Titles and dates come from the ticketing pages (Shotgun, Weezevent).
type RepublicCorner struct {
	client *resty.Client
	clock  clock.Clock
	delay  time.Duration
	url    string
}

// NewRepublicCorner creates the Republic Corner extractor.
func NewRepublicCorner(opts Options) *RepublicCorner {
	opts = opts.withDefaults()
	return &RepublicCorner{client: newClient(opts), clock: opts.Clock, delay: opts.Delay, url: RepublicCornerURL}
}

func (rc *RepublicCorner) Name() string  { return "republic-corner" }
func (rc *RepublicCorner) Venue() string { return "Republic Corner" }

// ticketDetails is what a ticketing page tells about an event.
type ticketDetails struct {
	title       string
	date        string
	description string
	poster      string
	address     string
}

// Fetch downloads the venue page, then each ticketing page in turn. A ticketing page that
// cannot be read leaves the event with its placeholder title.
func (rc *RepublicCorner) Fetch(ctx context.Context) ([]event.Raw, error) {
	body, err := get(ctx, rc.client, rc.url)
	if err != nil {
		return nil, err
	}
	events, err := rc.parseEvents(bytes.NewReader(body), rc.url)
	if err != nil {
		return nil, err
	}

	for i := range events {
		if i > 0 {
			if err := sleep(ctx, rc.delay); err != nil {
				return nil, err
			}
		}
		ticketURL := event.Value(events[i].Source)
		details, err := rc.fetchDetails(ctx, ticketURL)
		if err != nil {
			logger.Debug("Republic Corner ticket page unreadable", logger.Fields{"url": ticketURL, "error": err.Error()})
			continue
		}
		rc.apply(&events[i], details)
	}

	return events, nil
}

// parseEvents returns one record per column holding both a poster and a ticket button.
// Titles are placeholders until the ticketing page is read.
func (rc *RepublicCorner) parseEvents(r io.Reader, pageURL string) ([]event.Raw, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	now := rc.clock.Now()
	events := make([]event.Raw, 0)

	doc.Find(".et_pb_column").Each(func(i int, col *goquery.Selection) {
		img := col.Find("img")
		button := col.Find("a.et_pb_button")
		if img.Length() == 0 || button.Length() == 0 {
			return
		}

		ticket := resolveURL(pageURL, attrOf(button, "href"))
		events = append(events, event.Raw{
			Title:       event.String(republicCornerPlaceholder),
			Poster:      event.String(resolveURL(pageURL, attrOf(img, "src"))),
			Location:    event.String(republicCornerAddress),
			Source:      event.String(ticket),
			Reservation: event.String(ticket),
			ScrapedAt:   now,
		})
	})

	return events, nil
}

func (rc *RepublicCorner) fetchDetails(ctx context.Context, ticketURL string) (ticketDetails, error) {
	if ticketURL == "" {
		return ticketDetails{}, errNoTicketLink
	}
	doc, err := getDocument(ctx, rc.client, ticketURL)
	if err != nil {
		return ticketDetails{}, err
	}
	return parseTicketPage(doc), nil
}

// parseTicketPage recognises the ticketing platform by its markup: Shotgun publishes a
// JSON-LD event, Weezevent uses gemino-* classes. Unknown pages yield no details.
func parseTicketPage(doc *goquery.Document) ticketDetails {
	description := attrOf(doc.Find(`meta[name="description"]`), "content")

	if lds := linkedEvents(doc); len(lds) > 0 {
		ld := lds[0]
		return ticketDetails{
			title:       ld.Name,
			date:        ld.StartDate,
			description: description,
			poster:      ld.Image,
			address:     ld.StreetAddress,
		}
	}

	if doc.Find(".gemino-data-event-title").Length() > 0 {
		return ticketDetails{
			title:       textOf(doc.Find(".gemino-data-event-title")),
			date:        textOf(doc.Find(".gemino-data-event-date")),
			description: description,
			poster:      attrOf(doc.Find("#gemino-img-banner"), "src"),
		}
	}

	return ticketDetails{}
}

func (rc *RepublicCorner) apply(raw *event.Raw, d ticketDetails) {
	if d.title != "" {
		raw.Title = event.String(d.title)
	}
	raw.Date = event.String(d.date)
	raw.Description = event.String(d.description)
	if d.poster != "" {
		raw.Poster = event.String(d.poster)
	}
	if d.address != "" {
		raw.Location = event.String(d.address)
	}
}
