// Package calendar exports the feed as an iCalendar (RFC 5545) agenda.
package calendar

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pfrederiksen/poitiers-events/internal/event"
)

// DefaultDuration is the length given to timed events, which carry no end time.
const DefaultDuration = 2 * time.Hour

// uidNamespace scopes the name-based UIDs of this feed.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/pfrederiksen/poitiers-events"))

type slot struct {
	start  time.Time
	allDay bool
}

// GenerateICS renders events as one calendar named name. Events without a resolvable date
// are skipped; events with occurrences get one entry per dated occurrence. now is the
// DTSTAMP of every entry.
func GenerateICS(events []event.Event, name string, now time.Time) string {
	var ics strings.Builder

	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:-//Poitiers Events//poitiers-events//FR\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")
	if name != "" {
		writeLine(&ics, "X-WR-CALNAME:"+escapeICS(name))
	}

	for _, evt := range events {
		for i, s := range slotsOf(evt) {
			writeEvent(&ics, evt, i, s, now)
		}
	}

	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

// Count returns the number of VEVENT entries GenerateICS would write.
func Count(events []event.Event) int {
	n := 0
	for _, evt := range events {
		n += len(slotsOf(evt))
	}
	return n
}

func slotsOf(evt event.Event) []slot {
	if len(evt.Occurrences) > 0 {
		slots := make([]slot, 0, len(evt.Occurrences))
		for _, occ := range evt.Occurrences {
			if s, ok := resolve(occ.Release, event.String(occ.Date)); ok {
				slots = append(slots, s)
			}
		}
		return slots
	}
	if s, ok := resolve(evt.Release, evt.Date); ok {
		return []slot{s}
	}
	return nil
}

// resolve reads release as an instant, then a date-only release or date as an all-day
// ISO date.
func resolve(release, date *string) (slot, bool) {
	if r := strings.TrimSpace(event.Value(release)); r != "" {
		if s, ok := allDay(r); ok {
			return s, true
		}
		if t, ok := event.ParseISO(r); ok {
			return slot{start: t}, true
		}
	}
	return allDay(strings.TrimSpace(event.Value(date)))
}

func allDay(d string) (slot, bool) {
	if len(d) != len("2006-01-02") {
		return slot{}, false
	}
	t, err := time.Parse("2006-01-02", d)
	if err != nil {
		return slot{}, false
	}
	return slot{start: t, allDay: true}, true
}

func writeEvent(ics *strings.Builder, evt event.Event, index int, s slot, now time.Time) {
	key := event.KeyOf(evt)
	uid := uuid.NewSHA1(uidNamespace, []byte(fmt.Sprintf("%s|%s|%d", key.Title, key.Source, index)))

	ics.WriteString("BEGIN:VEVENT\r\n")
	writeLine(ics, fmt.Sprintf("UID:%s@poitiers-events", uid))
	writeLine(ics, "DTSTAMP:"+formatICSTime(now))

	if s.allDay {
		writeLine(ics, "DTSTART;VALUE=DATE:"+s.start.Format("20060102"))
		writeLine(ics, "DTEND;VALUE=DATE:"+s.start.AddDate(0, 0, 1).Format("20060102"))
	} else {
		writeLine(ics, "DTSTART:"+formatICSTime(s.start))
		writeLine(ics, "DTEND:"+formatICSTime(s.start.Add(DefaultDuration)))
	}

	writeLine(ics, "SUMMARY:"+escapeICS(evt.Title))

	if description := descriptionOf(evt); description != "" {
		writeLine(ics, "DESCRIPTION:"+escapeICS(description))
	}

	location := evt.Venue
	if evt.Location != "" {
		location = evt.Location
	}
	if location != "" {
		writeLine(ics, "LOCATION:"+escapeICS(location))
	}

	if link := linkOf(evt); link != "" {
		writeLine(ics, "URL:"+link)
	}
	if evt.Category != "" {
		writeLine(ics, "CATEGORIES:"+escapeICS(evt.Category))
	}

	ics.WriteString("STATUS:CONFIRMED\r\n")
	ics.WriteString("TRANSP:OPAQUE\r\n")
	ics.WriteString("END:VEVENT\r\n")
}

func descriptionOf(evt event.Event) string {
	var parts []string
	if date := event.Value(evt.Date); date != "" {
		parts = append(parts, "Date : "+date)
	}
	if evt.Description != "" {
		parts = append(parts, evt.Description)
	} else if evt.Excerpt != "" {
		parts = append(parts, evt.Excerpt)
	}
	if evt.Reservation != "" {
		parts = append(parts, "Réservation : "+evt.Reservation)
	}
	return strings.Join(parts, "\n\n")
}

func linkOf(evt event.Event) string {
	for _, candidate := range []string{evt.URL, evt.Source} {
		if strings.HasPrefix(candidate, "http://") || strings.HasPrefix(candidate, "https://") {
			return candidate
		}
	}
	return ""
}

// formatICSTime formats a time.Time as an iCalendar datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	// Replace special characters according to RFC 5545
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\r\n", "\\n")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// writeLine writes a content line folded at 75 octets without splitting UTF-8 sequences.
// Continuation lines start with a space, which counts towards their 75 octets.
func writeLine(ics *strings.Builder, line string) {
	limit := 75
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		ics.WriteString(line[:cut])
		ics.WriteString("\r\n ")
		line = line[cut:]
		limit = 74
	}
	ics.WriteString(line)
	ics.WriteString("\r\n")
}
