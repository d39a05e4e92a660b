package event

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pfrederiksen/poitiers-events/internal/clock"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return NewNormalizer(paris, FrenchMonths, clock.NewFixed(time.Date(2025, 11, 10, 9, 0, 0, 0, time.UTC)))
}

func TestNormalize_Defaults(t *testing.T) {
	n := newTestNormalizer(t)

	got := n.Normalize(Raw{}, "Confort Moderne")

	want := Event{
		Title:  Placeholder,
		Source: "",
		Venue:  "Confort Moderne",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize(empty) mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_CopiesFields(t *testing.T) {
	n := newTestNormalizer(t)
	scraped := time.Date(2025, 11, 10, 8, 0, 0, 0, time.UTC)

	raw := Raw{
		Title:       String("  Concert   de   Noël "),
		Date:        String("samedi 20 décembre 2025 - 20h30"),
		Source:      String(" https://www.tap-poitiers.com/spectacle/noel/ "),
		URL:         String("https://www.tap-poitiers.com/spectacle/noel/"),
		Poster:      String("https://www.tap-poitiers.com/img/noel.jpg"),
		Description: String("Un concert\n\n pour les fêtes"),
		Reservation: String("https://billetterie.tap-poitiers.com/noel"),
		Category:    String("Musique"),
		Location:    String("Grand auditorium"),
		Attributes:  map[string]string{"duration": " 90 min ", "empty": "  "},
		ScrapedAt:   scraped,
	}

	got := n.Normalize(raw, "TAP Poitiers")

	want := Event{
		Title:       "Concert de Noël",
		Date:        String("samedi 20 décembre 2025 - 20h30"),
		Release:     String("2025-12-20T20:30:00+01:00"),
		Source:      "https://www.tap-poitiers.com/spectacle/noel/",
		Venue:       "TAP Poitiers",
		URL:         "https://www.tap-poitiers.com/spectacle/noel/",
		Poster:      "https://www.tap-poitiers.com/img/noel.jpg",
		Description: "Un concert pour les fêtes",
		Reservation: "https://billetterie.tap-poitiers.com/noel",
		Category:    "Musique",
		Location:    "Grand auditorium",
		Attributes:  map[string]string{"duration": "90 min"},
		ScrapedAt:   "2025-11-10T08:00:00Z",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_Release(t *testing.T) {
	n := newTestNormalizer(t)

	tests := []struct {
		name    string
		release *string
		date    *string
		want    *string
	}{
		{
			name:    "ISO release kept verbatim",
			release: String("2025-11-20T00:00:00Z"),
			date:    String("20 novembre"),
			want:    String("2025-11-20T00:00:00Z"),
		},
		{
			name: "Derived from French date",
			date: String("16 novembre 2025"),
			want: String("2025-11-16T00:00:00+01:00"),
		},
		{
			name:    "French release text",
			release: String("16 juillet 2026 21h00"),
			want:    String("2026-07-16T21:00:00+02:00"),
		},
		{
			name:    "Unreadable release falls back to date",
			release: String("bientôt"),
			date:    String("2025-12-01"),
			want:    String("2025-12-01"),
		},
		{
			name: "Unreadable date degrades to nil",
			date: String("Date à venir"),
			want: nil,
		},
		{
			name: "Text near a month name degrades to nil",
			date: String("Concert 4 mains"),
			want: nil,
		},
		{
			name: "Range derives the first day",
			date: String("Du 12 au 15 mars 2026"),
			want: String("2026-03-12T00:00:00+01:00"),
		},
		{
			name: "Both absent",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(Raw{Title: String("x"), Release: tt.release, Date: tt.date}, "venue")
			if diff := cmp.Diff(tt.want, got.Release); diff != "" {
				t.Errorf("Release mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize_Occurrences(t *testing.T) {
	n := newTestNormalizer(t)

	got := n.Normalize(Raw{
		Title:       String("Exposition"),
		Occurrences: []string{"16-11-2025", " ", "not a date"},
	}, "Espace Mendès France")

	want := []Occurrence{
		{Date: "16-11-2025", Release: String("2025-11-16T00:00:00+01:00")},
		{Date: "not a date"},
	}
	if diff := cmp.Diff(want, got.Occurrences); diff != "" {
		t.Errorf("Occurrences mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_DoesNotShareAttributes(t *testing.T) {
	n := newTestNormalizer(t)
	attrs := map[string]string{"genres": "Drame"}

	got := n.Normalize(Raw{Attributes: attrs}, "CGR")
	attrs["genres"] = "Comédie"

	if got.Attributes["genres"] != "Drame" {
		t.Errorf("Attributes[genres] = %q, want Drame", got.Attributes["genres"])
	}
}
