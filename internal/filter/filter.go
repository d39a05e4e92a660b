// Package filter narrows a feed down to the events a reader cares about.
//
// Criteria are combined with AND; list criteria match when any entry matches:
//   - Date range (from/to, inclusive), on the resolved sort date of the event
//   - Venues (substring matching, case-insensitive)
//   - Categories (substring matching, case-insensitive)
//   - Titles (substring matching, case-insensitive)
//   - Weekends only (Saturday/Sunday in the filter's time zone)
//
// Events without a resolvable date pass the date criteria, matching how the feed keeps
// them at the end rather than dropping them.
//
// Example usage:
//
//	f := filter.NewFilter(paris)
//	f.WeekendsOnly = true
//	f.Venues = []string{"TAP"}
//	filtered := f.Apply(doc.Events)
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/poitiers-events/internal/event"
)

// Filter represents event filtering criteria
type Filter struct {
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`

	Venues     []string `json:"venues,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Titles     []string `json:"titles,omitempty"`

	WeekendsOnly bool `json:"weekends_only,omitempty"`

	// Location is the zone weekdays are computed in. Nil means UTC.
	Location *time.Location `json:"-"`
}

// NewFilter creates a new empty filter with no active criteria.
// The filter will match all events until criteria are added.
func NewFilter(loc *time.Location) *Filter {
	return &Filter{
		Venues:     []string{},
		Categories: []string{},
		Titles:     []string{},
		Location:   loc,
	}
}

// IsEmpty checks if the filter has any active criteria.
func (f *Filter) IsEmpty() bool {
	return f.DateFrom == nil &&
		f.DateTo == nil &&
		len(f.Venues) == 0 &&
		len(f.Categories) == 0 &&
		len(f.Titles) == 0 &&
		!f.WeekendsOnly
}

func (f *Filter) location() *time.Location {
	if f.Location == nil {
		return time.UTC
	}
	return f.Location
}

// eventDate returns the resolved date of evt, or nil when it has none.
func eventDate(evt event.Event) *time.Time {
	key := event.SortKey(evt)
	if key.Equal(event.MaxTime) {
		return nil
	}
	return &key
}

// Matches checks if an event matches all active filter criteria.
// An empty filter matches all events.
func (f *Filter) Matches(evt event.Event) bool {
	if f.IsEmpty() {
		return true
	}

	date := eventDate(evt)

	if f.DateFrom != nil && date != nil && date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && date != nil && date.After(*f.DateTo) {
		return false
	}

	if f.WeekendsOnly && date != nil {
		weekday := date.In(f.location()).Weekday()
		if weekday != time.Saturday && weekday != time.Sunday {
			return false
		}
	}

	venue := evt.Venue
	if evt.Location != "" {
		venue += " " + evt.Location
	}
	if !containsAny(venue, f.Venues) {
		return false
	}
	if !containsAny(evt.Category, f.Categories) {
		return false
	}
	if !containsAny(evt.Title, f.Titles) {
		return false
	}

	return true
}

// containsAny reports whether s contains one of needles, ignoring case. No needles
// always matches.
func containsAny(s string, needles []string) bool {
	if len(needles) == 0 {
		return true
	}
	lower := strings.ToLower(s)
	for _, needle := range needles {
		if strings.Contains(lower, strings.ToLower(strings.TrimSpace(needle))) {
			return true
		}
	}
	return false
}

// Apply returns the matching events in their original order.
// If the filter is empty, returns the original list unchanged.
func (f *Filter) Apply(events []event.Event) []event.Event {
	if f.IsEmpty() {
		return events
	}

	filtered := make([]event.Event, 0, len(events))
	for _, evt := range events {
		if f.Matches(evt) {
			filtered = append(filtered, evt)
		}
	}
	return filtered
}

// String returns a human-readable description of the active filter criteria.
// Format: "Du 01/12/2025 | Au 15/12/2025 | Lieux: TAP | Week-ends"
func (f *Filter) String() string {
	if f.IsEmpty() {
		return "Aucun filtre"
	}

	var parts []string

	if f.DateFrom != nil {
		parts = append(parts, fmt.Sprintf("Du %s", f.DateFrom.In(f.location()).Format("02/01/2006")))
	}
	if f.DateTo != nil {
		parts = append(parts, fmt.Sprintf("Au %s", f.DateTo.In(f.location()).Format("02/01/2006")))
	}
	if len(f.Venues) > 0 {
		parts = append(parts, fmt.Sprintf("Lieux: %s", strings.Join(f.Venues, ", ")))
	}
	if len(f.Categories) > 0 {
		parts = append(parts, fmt.Sprintf("Catégories: %s", strings.Join(f.Categories, ", ")))
	}
	if len(f.Titles) > 0 {
		parts = append(parts, fmt.Sprintf("Titres: %s", strings.Join(f.Titles, ", ")))
	}
	if f.WeekendsOnly {
		parts = append(parts, "Week-ends")
	}

	return strings.Join(parts, " | ")
}
