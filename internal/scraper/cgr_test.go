package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pfrederiksen/poitiers-events/internal/event"
)

type stubFinder struct {
	ids  map[string][]string
	errs map[string]error
}

func (s stubFinder) MovieIDs(_ context.Context, pageURL string) ([]string, error) {
	if err := s.errs[pageURL]; err != nil {
		return nil, err
	}
	return s.ids[pageURL], nil
}

const cgrMoviesJSON = `[
  {
    "title": "Zootopie 2",
    "runtime": 6480,
    "synopsis": "Judy et Nick reprennent du service.",
    "poster": "https://cdn.cgrcinemas.fr/zootopie2.jpg",
    "genres": ["Animation", "Comédie"],
    "certificate": {"code": "TP", "name": "Tous publics"},
    "release": "2025-11-26T00:00:00Z"
  },
  {
    "title": "Avant-première mystère",
    "locale": {"synopsis": "Surprise !"},
    "genres": null
  },
  "not a movie"
]`

func TestCGR_Fetch(t *testing.T) {
	var gotQuery []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()["ids"]
		if r.URL.Query().Get("basic") != "false" || r.URL.Query().Get("castingLimit") != "3" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(cgrMoviesJSON)) // nolint:errcheck
	}))
	defer server.Close()

	c := NewCGR(testOptions())
	c.apiURL = server.URL + "/movies"
	c.cinemas = []Cinema{
		{Name: "CGR Castille", URL: "https://cgr.example/castille/"},
		{Name: "CGR Buxerolles", URL: "https://cgr.example/buxerolles/"},
		{Name: "CGR Vide", URL: "https://cgr.example/vide/"},
	}
	c.finder = stubFinder{
		ids:  map[string][]string{"https://cgr.example/castille/": {"101", "202"}},
		errs: map[string]error{"https://cgr.example/buxerolles/": errors.New("chrome not found")},
	}

	movies, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"101", "202"}, gotQuery); diff != "" {
		t.Errorf("ids query mismatch (-want +got):\n%s", diff)
	}
	if len(movies) != 2 {
		t.Fatalf("Fetch() returned %d movies, want 2 (malformed entry skipped)", len(movies))
	}

	zootopia := movies[0]
	if event.Value(zootopia.Title) != "Zootopie 2" {
		t.Errorf("title = %q", event.Value(zootopia.Title))
	}
	if event.Value(zootopia.Venue) != "CGR Castille" || event.Value(zootopia.Source) != "https://cgr.example/castille/" {
		t.Errorf("venue/source = %q/%q", event.Value(zootopia.Venue), event.Value(zootopia.Source))
	}
	if event.Value(zootopia.Release) != "2025-11-26T00:00:00Z" {
		t.Errorf("release = %q", event.Value(zootopia.Release))
	}
	wantAttrs := map[string]string{"duration": "108 min", "genres": "Animation, Comédie", "certificate": "Tous publics"}
	if diff := cmp.Diff(wantAttrs, zootopia.Attributes); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}

	mystery := movies[1]
	if event.Value(mystery.Description) != "Surprise !" {
		t.Errorf("description should fall back to locale synopsis, got %q", event.Value(mystery.Description))
	}
	if mystery.Attributes["duration"] != "Inconnue" {
		t.Errorf("duration = %q, want Inconnue", mystery.Attributes["duration"])
	}
	if mystery.Release != nil {
		t.Errorf("release = %q, want nil", *mystery.Release)
	}
}

func TestCGR_Fetch_AllCinemasFail(t *testing.T) {
	c := NewCGR(testOptions())
	c.cinemas = []Cinema{{Name: "CGR Castille", URL: "https://cgr.example/castille/"}}
	c.finder = stubFinder{errs: map[string]error{"https://cgr.example/castille/": errors.New("chrome not found")}}

	if _, err := c.Fetch(context.Background()); err == nil {
		t.Error("Fetch() should fail when no cinema could be read")
	}
}

func TestCGR_Fetch_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewCGR(testOptions())
	c.apiURL = server.URL
	c.cinemas = []Cinema{{Name: "CGR Castille", URL: "https://cgr.example/castille/"}}
	c.finder = stubFinder{ids: map[string][]string{"https://cgr.example/castille/": {"1"}}}

	_, err := c.Fetch(context.Background())
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("Fetch() error = %v, want ErrUnexpectedStatus", err)
	}
}

func TestMovieIDsFromURL(t *testing.T) {
	got := movieIDsFromURL("https://www.cgrcinemas.fr/api/gatsby-source-boxofficeapi/movies?basic=false&ids=123&ids=4567&castingLimit=3")
	if diff := cmp.Diff([]string{"123", "4567"}, got); diff != "" {
		t.Errorf("movieIDsFromURL() mismatch (-want +got):\n%s", diff)
	}
	if got := movieIDsFromURL("https://www.cgrcinemas.fr/"); len(got) != 0 {
		t.Errorf("movieIDsFromURL() = %v, want none", got)
	}
}

func TestOnCinemaPage(t *testing.T) {
	page := "https://www.cgrcinemas.fr/horaire-film/p0736-cgr-buxerolles-poitiers/"

	tests := []struct {
		name     string
		location string
		want     bool
	}{
		{"same page", page, true},
		{"without trailing slash", strings.TrimSuffix(page, "/"), true},
		{"unknown location", "", true},
		{"maintenance page", "https://www.cgrcinemas.fr/maintenance/", false},
		{"maintenance query", page + "?reason=Maintenance", false},
		{"moved to the home page", "https://www.cgrcinemas.fr/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := onCinemaPage(page, tt.location); got != tt.want {
				t.Errorf("onCinemaPage(%q) = %v, want %v", tt.location, got, tt.want)
			}
		})
	}
}

func TestFormatRuntime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{6480, "108 min"},
		{5999, "99 min"},
		{0, "Inconnue"},
	}
	for _, tt := range tests {
		if got := formatRuntime(tt.seconds); got != tt.want {
			t.Errorf("formatRuntime(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
