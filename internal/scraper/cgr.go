package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/go-resty/resty/v2"

	"github.com/pfrederiksen/poitiers-events/internal/clock"
	"github.com/pfrederiksen/poitiers-events/internal/event"
	"github.com/pfrederiksen/poitiers-events/internal/logger"
)

const (
	CGRMoviesAPI  = "https://www.cgrcinemas.fr/api/gatsby-source-boxofficeapi/movies"
	cgrMoviesPath = "/api/gatsby-source-boxofficeapi/movies"

	cgrRenderWait     = 8 * time.Second
	cgrBrowserTimeout = 60 * time.Second
)

// Cinema is one CGR theatre and its showtimes page.
type Cinema struct {
	Name string
	URL  string
}

// CGRCinemas are the CGR theatres around Poitiers, in run order.
var CGRCinemas = []Cinema{
	{Name: "CGR Buxerolles", URL: "https://www.cgrcinemas.fr/horaire-film/p0736-cgr-buxerolles-poitiers/"},
	{Name: "CGR Castille", URL: "https://www.cgrcinemas.fr/horaire-film/p0096-cgr-poitiers-castille/"},
	{Name: "CGR Fontaine-le-Comte", URL: "https://www.cgrcinemas.fr/horaire-film/w8624-cgr-fontaine-le-comte-poitiers/"},
}

// MovieIDFinder discovers the box-office ids of the films shown on a cinema page.
type MovieIDFinder interface {
	MovieIDs(ctx context.Context, pageURL string) ([]string, error)
}

// CGR reads the films of the CGR cinemas. The showtimes pages load their programme from a
// JSON API with ids computed client side, so the ids are discovered by rendering the page
// and the API is then called directly.
type CGR struct {
	client  *resty.Client
	clock   clock.Clock
	finder  MovieIDFinder
	cinemas []Cinema
	apiURL  string
}

// NewCGR creates the CGR extractor backed by a headless Chrome.
func NewCGR(opts Options) *CGR {
	opts = opts.withDefaults()
	return &CGR{
		client:  newClient(opts),
		clock:   opts.Clock,
		finder:  &BrowserFinder{Wait: cgrRenderWait, Timeout: cgrBrowserTimeout},
		cinemas: CGRCinemas,
		apiURL:  CGRMoviesAPI,
	}
}

func (c *CGR) Name() string  { return "cgr" }
func (c *CGR) Venue() string { return "CGR Cinémas" }

// Fetch reads every cinema in turn. It fails only when no cinema could be read.
func (c *CGR) Fetch(ctx context.Context) ([]event.Raw, error) {
	var (
		movies []event.Raw
		errs   []error
	)
	for _, cinema := range c.cinemas {
		found, err := c.fetchCinema(ctx, cinema)
		if err != nil {
			logger.Warn("CGR cinema failed", logger.Fields{"cinema": cinema.Name}, err)
			errs = append(errs, fmt.Errorf("%s: %w", cinema.Name, err))
			continue
		}
		logger.Debug("CGR cinema read", logger.Fields{"cinema": cinema.Name, "movies": len(found)})
		movies = append(movies, found...)
	}

	if len(c.cinemas) > 0 && len(errs) == len(c.cinemas) {
		return nil, errors.Join(errs...)
	}
	return movies, nil
}

func (c *CGR) fetchCinema(ctx context.Context, cinema Cinema) ([]event.Raw, error) {
	ids, err := c.finder.MovieIDs(ctx, cinema.URL)
	if err != nil {
		return nil, fmt.Errorf("discovering movie ids: %w", err)
	}
	if len(ids) == 0 {
		return []event.Raw{}, nil
	}

	params := url.Values{}
	params.Set("basic", "false")
	params.Set("castingLimit", "3")
	for _, id := range ids {
		params.Add("ids", id)
	}

	res, err := c.client.R().SetContext(ctx).SetQueryParamsFromValues(params).Get(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("fetching movies: %w", err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("fetching movies: %w: %d", ErrUnexpectedStatus, res.StatusCode())
	}

	return c.parseMovies(res.Body(), cinema)
}

// cgrMovie is the subset of a box-office API movie read here.
type cgrMovie struct {
	Title    string  `json:"title"`
	Runtime  float64 `json:"runtime"`
	Synopsis string  `json:"synopsis"`
	Locale   struct {
		Synopsis string `json:"synopsis"`
	} `json:"locale"`
	Poster      string      `json:"poster"`
	Genres      interface{} `json:"genres"`
	Certificate interface{} `json:"certificate"`
	Release     string      `json:"release"`
}

func (c *CGR) parseMovies(body []byte, cinema Cinema) ([]event.Raw, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decoding movies: %w", err)
	}

	now := c.clock.Now()
	movies := make([]event.Raw, 0, len(items))
	for i, item := range items {
		var m cgrMovie
		if err := json.Unmarshal(item, &m); err != nil {
			logger.Debug("Skipping malformed CGR movie", logger.Fields{"index": i, "cinema": cinema.Name, "error": err.Error()})
			continue
		}

		description := m.Synopsis
		if description == "" {
			description = m.Locale.Synopsis
		}

		attrs := map[string]string{"duration": formatRuntime(m.Runtime)}
		if genres := flattenValue(m.Genres); genres != "" {
			attrs["genres"] = genres
		}
		if certificate := flattenValue(m.Certificate); certificate != "" {
			attrs["certificate"] = certificate
		}

		movies = append(movies, event.Raw{
			Title:       event.String(m.Title),
			Release:     event.String(m.Release),
			Venue:       event.String(cinema.Name),
			Source:      event.String(cinema.URL),
			Poster:      event.String(m.Poster),
			Description: event.String(description),
			Category:    event.String("Cinéma"),
			Attributes:  attrs,
			ScrapedAt:   now,
		})
	}
	return movies, nil
}

// formatRuntime renders a runtime in seconds as whole minutes.
func formatRuntime(seconds float64) string {
	if seconds <= 0 {
		return "Inconnue"
	}
	return strconv.Itoa(int(seconds)/60) + " min"
}

// flattenValue renders a free-form API value: strings as is, lists joined with commas,
// objects by their name or label.
func flattenValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := flattenValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		for _, key := range []string{"name", "label", "code"} {
			if s := flattenValue(t[key]); s != "" {
				return s
			}
		}
	}
	return ""
}

var movieIDPattern = regexp.MustCompile(`ids=(\d+)`)

// movieIDsFromURL extracts every ids= parameter of a movies API request.
func movieIDsFromURL(requestURL string) []string {
	matches := movieIDPattern.FindAllStringSubmatch(requestURL, -1)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}

// BrowserFinder renders a cinema page in headless Chrome and records the ids of the first
// movies API request the page sends.
type BrowserFinder struct {
	// Wait is how long the page is left running after DOMContentLoaded.
	Wait    time.Duration
	Timeout time.Duration
}

// MovieIDs implements MovieIDFinder.
func (b *BrowserFinder) MovieIDs(ctx context.Context, pageURL string) ([]string, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
		)...,
	)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if b.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		browserCtx, cancelTimeout = context.WithTimeout(browserCtx, b.Timeout)
		defer cancelTimeout()
	}

	var (
		mu  sync.Mutex
		ids []string
	)
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		req, ok := ev.(*network.EventRequestWillBeSent)
		if !ok || !strings.Contains(req.Request.URL, cgrMoviesPath) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if len(ids) == 0 {
			ids = movieIDsFromURL(req.Request.URL)
		}
	})

	var location string
	err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.Sleep(b.Wait),
		chromedp.Location(&location),
	)

	mu.Lock()
	defer mu.Unlock()

	if !onCinemaPage(pageURL, location) {
		logger.Warn("CGR cinema redirected", logger.Fields{"page": pageURL, "location": location}, nil)
		return nil, nil
	}

	// Navigation errors are tolerated once the API request has been seen.
	if len(ids) > 0 {
		return ids, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", pageURL, err)
	}
	return nil, nil
}

// onCinemaPage reports whether the browser is still on pageURL once rendered. Closed
// theatres redirect to a maintenance page. An unknown location counts as on the page.
func onCinemaPage(pageURL, location string) bool {
	if location == "" {
		return true
	}
	if strings.Contains(strings.ToLower(location), "maintenance") {
		return false
	}
	want, err := url.Parse(pageURL)
	if err != nil {
		return true
	}
	got, err := url.Parse(location)
	if err != nil {
		return true
	}
	return strings.EqualFold(want.Host, got.Host) &&
		strings.TrimSuffix(want.Path, "/") == strings.TrimSuffix(got.Path, "/")
}
