package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/pfrederiksen/poitiers-events/internal/clock"
	"github.com/pfrederiksen/poitiers-events/internal/event"
	"github.com/pfrederiksen/poitiers-events/internal/logger"
)

const (
	// EMFListingURL is formatted with a dd-mm-yyyy day.
	EMFListingURL = "https://emf.fr/le-programme/#s=&date=%s&tax="

	emfDayLayout      = "02-01-2006"
	DefaultEMFDays    = 28
	emfReservationTag = "réserv"
)

// EMFWindow is the range of days queried on the Espace Mendès France programme. A zero
// Start means today; Days counts the days after Start, so the window holds Days+1 days.
type EMFWindow struct {
	Start time.Time
	Days  int
}

// EMF reads the Espace Mendès France programme. The listing is paginated by day; an event
// running several days appears once per day and is merged into one record carrying every
// day in Occurrences. Each detail page is fetched once.
type EMF struct {
	client     *resty.Client
	clock      clock.Clock
	location   *time.Location
	delay      time.Duration
	window     EMFWindow
	listingURL string
}

// NewEMF creates the Espace Mendès France extractor.
func NewEMF(opts Options, window EMFWindow) *EMF {
	opts = opts.withDefaults()
	if window.Days <= 0 {
		window.Days = DefaultEMFDays
	}
	return &EMF{
		client:     newClient(opts),
		clock:      opts.Clock,
		location:   opts.Location,
		delay:      opts.Delay,
		window:     window,
		listingURL: EMFListingURL,
	}
}

func (e *EMF) Name() string  { return "emf" }
func (e *EMF) Venue() string { return "Espace Mendès France" }

// emfItem is one listing entry for one day.
type emfItem struct {
	url      string
	title    string
	category string
	excerpt  string
	image    string
}

type emfDetails struct {
	description string
	image       string
	reservation string
}

// Days returns the dd-mm-yyyy days of the window.
func (e *EMF) Days() []string {
	start := e.window.Start
	if start.IsZero() {
		start = e.clock.Now()
	}
	start = start.In(e.location)
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, e.location)

	days := make([]string, 0, e.window.Days+1)
	for i := 0; i <= e.window.Days; i++ {
		days = append(days, first.AddDate(0, 0, i).Format(emfDayLayout))
	}
	return days
}

// Fetch walks the window day by day. A day that fails is skipped; the source fails only
// when every day failed.
func (e *EMF) Fetch(ctx context.Context) ([]event.Raw, error) {
	days := e.Days()
	now := e.clock.Now()

	var (
		order   []string
		records = make(map[string]*event.Raw)
		details = make(map[string]emfDetails)
		errs    []error
	)

	for i, day := range days {
		if i > 0 {
			if err := sleep(ctx, e.delay); err != nil {
				return nil, err
			}
		}

		pageURL := fmt.Sprintf(e.listingURL, day)
		body, err := get(ctx, e.client, pageURL)
		if err != nil {
			logger.Warn("EMF day failed", logger.Fields{"day": day}, err)
			errs = append(errs, err)
			continue
		}
		items, err := e.parseListing(bytes.NewReader(body), pageURL)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		for _, item := range items {
			if rec, ok := records[item.url]; ok {
				rec.Occurrences = append(rec.Occurrences, day)
				continue
			}

			d, ok := details[item.url]
			if !ok {
				d = e.fetchDetails(ctx, item.url)
				details[item.url] = d
			}

			image := item.image
			if image == "" {
				image = d.image
			}
			order = append(order, item.url)
			records[item.url] = &event.Raw{
				Title:       event.String(item.title),
				Date:        event.String(day),
				URL:         event.String(item.url),
				Source:      event.String(item.url),
				Category:    event.String(item.category),
				Excerpt:     event.String(item.excerpt),
				Description: event.String(d.description),
				Poster:      event.String(image),
				Reservation: event.String(d.reservation),
				Occurrences: []string{day},
				ScrapedAt:   now,
			}
		}
	}

	if len(errs) == len(days) {
		return nil, errors.Join(errs...)
	}

	events := make([]event.Raw, 0, len(order))
	for _, u := range order {
		events = append(events, *records[u])
	}
	return events, nil
}

func (e *EMF) parseListing(r io.Reader, pageURL string) ([]emfItem, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	items := make([]emfItem, 0)
	doc.Find(".e-loop-item").Each(func(i int, card *goquery.Selection) {
		link := resolveURL(pageURL, attrOf(card.Find("a[href*='/event/']"), "href"))
		if link == "" {
			return
		}
		items = append(items, emfItem{
			url:      link,
			title:    textOf(card.Find("h3")),
			category: textOf(card.Find("span")),
			excerpt:  textOf(card.Find(".elementor-widget-theme-post-excerpt p")),
			image:    resolveURL(pageURL, imageOf(card)),
		})
	})
	return items, nil
}

// fetchDetails reads the description, image and booking link of an event page. An
// unreadable page yields empty details.
func (e *EMF) fetchDetails(ctx context.Context, pageURL string) emfDetails {
	doc, err := getDocument(ctx, e.client, pageURL)
	if err != nil {
		logger.Debug("EMF detail page unreadable", logger.Fields{"url": pageURL, "error": err.Error()})
		return emfDetails{}
	}

	d := emfDetails{
		description: spacedText(doc.Find(".elementor-widget-theme-post-content")),
		image:       resolveURL(pageURL, imageOf(doc.Selection)),
	}
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(a.Text()), emfReservationTag) {
			d.reservation = resolveURL(pageURL, attrOf(a, "href"))
			return false
		}
		return true
	})
	return d
}
