package event

import (
	"strings"
	"time"

	"github.com/pfrederiksen/poitiers-events/internal/clock"
)

// Normalizer maps Raw records to Events. It has no side effects; the time zone, month table
// and reference clock used for year inference are passed in explicitly.
type Normalizer struct {
	location *time.Location
	months   MonthTable
	clock    clock.Clock
}

// NewNormalizer creates a Normalizer. A nil location means UTC and a nil table means
// FrenchMonths.
func NewNormalizer(loc *time.Location, months MonthTable, c clock.Clock) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	if months == nil {
		months = FrenchMonths
	}
	if c == nil {
		c = clock.NewSystem()
	}
	return &Normalizer{location: loc, months: months, clock: c}
}

// Normalize builds an Event from raw. venue is used when the record carries no venue name.
// Any field that cannot be read degrades to its default; Normalize never fails.
func (n *Normalizer) Normalize(raw Raw, venue string) Event {
	evt := Event{
		Title:       clean(raw.Title),
		Date:        String(clean(raw.Date)),
		Release:     n.resolveRelease(raw.Release, raw.Date),
		Source:      strings.TrimSpace(Value(raw.Source)),
		Venue:       clean(raw.Venue),
		URL:         strings.TrimSpace(Value(raw.URL)),
		Poster:      strings.TrimSpace(Value(raw.Poster)),
		Description: clean(raw.Description),
		Excerpt:     clean(raw.Excerpt),
		Reservation: strings.TrimSpace(Value(raw.Reservation)),
		Category:    clean(raw.Category),
		Location:    clean(raw.Location),
	}

	if evt.Title == "" {
		evt.Title = Placeholder
	}
	if evt.Venue == "" {
		evt.Venue = venue
	}

	for _, day := range raw.Occurrences {
		day = strings.TrimSpace(day)
		if day == "" {
			continue
		}
		evt.Occurrences = append(evt.Occurrences, Occurrence{
			Date:    day,
			Release: n.resolveRelease(nil, &day),
		})
	}

	if len(raw.Attributes) > 0 {
		evt.Attributes = make(map[string]string, len(raw.Attributes))
		for k, v := range raw.Attributes {
			if v = strings.TrimSpace(v); v != "" {
				evt.Attributes[k] = v
			}
		}
		if len(evt.Attributes) == 0 {
			evt.Attributes = nil
		}
	}

	if !raw.ScrapedAt.IsZero() {
		evt.ScrapedAt = raw.ScrapedAt.UTC().Format(time.RFC3339)
	}

	return evt
}

// resolveRelease keeps an ISO release as given, otherwise derives one from the release or
// date text read as a French date. Returns nil when neither can be read.
func (n *Normalizer) resolveRelease(release, date *string) *string {
	for _, candidate := range []string{clean(release), clean(date)} {
		if candidate == "" {
			continue
		}
		if _, ok := ParseISO(candidate); ok {
			return &candidate
		}
		if t, ok := ParseFrenchDate(candidate, n.months, n.clock.Now(), n.location); ok {
			formatted := t.Format(time.RFC3339)
			return &formatted
		}
	}
	return nil
}

// clean collapses runs of whitespace and trims the value.
func clean(p *string) string {
	if p == nil {
		return ""
	}
	return strings.Join(strings.Fields(*p), " ")
}
