package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pfrederiksen/poitiers-events/internal/event"
)

const tapCinemaHTML = `<html><body>
<article class="film-item">
  <a href="/cinema/les-feux-sauvages/"><img src="/media/feux.jpg"></a>
  <h2>Les Feux sauvages</h2>
  <p class="description">Un film de Jia Zhang-ke.</p>
  <span>Durée : 111 min</span>
</article>
<article><p>Bandeau sans titre</p></article>
</body></html>`

const tapSpectacleHTML = `<html><head>
<script type="application/ld+json">
[{"@type": "TheaterEvent", "name": "Noël", "url": "/spectacle/noel/", "startDate": "2025-12-20T20:30:00+01:00"}]
</script>
</head><body>
<article class="show-item">
  <a href="/spectacle/noel/"><img src="https://cdn.example.com/noel.jpg"></a>
  <h3>Concert de Noël</h3>
  <div class="date"><span>sam.</span><span>20 déc.</span></div>
  <a href="https://billetterie.tap-poitiers.com/noel">Billetterie</a>
</article>
<article class="show-item">
  <h3>Création 2026</h3>
</article>
</body></html>`

func newTAPServer(t *testing.T, cinemaStatus, spectacleStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/cinema/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(cinemaStatus)
		w.Write([]byte(tapCinemaHTML)) // nolint:errcheck
	})
	mux.HandleFunc("/spectacle/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(spectacleStatus)
		w.Write([]byte(tapSpectacleHTML)) // nolint:errcheck
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestTAP_Fetch(t *testing.T) {
	server := newTAPServer(t, http.StatusOK, http.StatusOK)

	tap := NewTAP(testOptions())
	tap.baseURL = server.URL

	events, err := tap.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Fetch() returned %d events, want 3", len(events))
	}

	film := events[0]
	if event.Value(film.Title) != "Les Feux sauvages" {
		t.Errorf("film title = %q", event.Value(film.Title))
	}
	if event.Value(film.Venue) != "TAP Cinéma Poitiers" {
		t.Errorf("film venue = %q", event.Value(film.Venue))
	}
	if event.Value(film.Source) != server.URL+"/cinema/les-feux-sauvages/" {
		t.Errorf("film source = %q", event.Value(film.Source))
	}
	if event.Value(film.Poster) != server.URL+"/media/feux.jpg" {
		t.Errorf("film poster = %q", event.Value(film.Poster))
	}
	if event.Value(film.Description) != "Un film de Jia Zhang-ke." {
		t.Errorf("film description = %q", event.Value(film.Description))
	}
	if film.Attributes["duration"] != "111 min" {
		t.Errorf("film duration = %q, want '111 min'", film.Attributes["duration"])
	}

	show := events[1]
	if event.Value(show.Date) != "sam. 20 déc." {
		t.Errorf("show date = %q", event.Value(show.Date))
	}
	if event.Value(show.Release) != "2025-12-20T20:30:00+01:00" {
		t.Errorf("show release = %q, want JSON-LD start date", event.Value(show.Release))
	}
	if event.Value(show.Reservation) != "https://billetterie.tap-poitiers.com/noel" {
		t.Errorf("show reservation = %q", event.Value(show.Reservation))
	}
	if event.Value(show.Venue) != "TAP Poitiers" {
		t.Errorf("show venue = %q", event.Value(show.Venue))
	}

	undated := events[2]
	if event.Value(undated.Date) != "Date à venir" {
		t.Errorf("undated show date = %q, want 'Date à venir'", event.Value(undated.Date))
	}
	if event.Value(undated.Source) != server.URL+"/spectacle/" {
		t.Errorf("undated show source = %q, want listing URL", event.Value(undated.Source))
	}
}

func TestTAP_Fetch_ListingIsolation(t *testing.T) {
	tests := []struct {
		name            string
		cinemaStatus    int
		spectacleStatus int
		wantEvents      int
		wantErr         bool
	}{
		{"spectacle down", http.StatusOK, http.StatusInternalServerError, 1, false},
		{"cinema down", http.StatusNotFound, http.StatusOK, 2, false},
		{"both down", http.StatusInternalServerError, http.StatusInternalServerError, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTAPServer(t, tt.cinemaStatus, tt.spectacleStatus)

			tap := NewTAP(testOptions())
			tap.baseURL = server.URL

			events, err := tap.Fetch(context.Background())
			if tt.wantErr {
				if !errors.Is(err, ErrUnexpectedStatus) {
					t.Errorf("Fetch() error = %v, want ErrUnexpectedStatus", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch() unexpected error: %v", err)
			}
			if len(events) != tt.wantEvents {
				t.Errorf("Fetch() returned %d events, want %d", len(events), tt.wantEvents)
			}
		})
	}
}
