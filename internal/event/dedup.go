package event

import "strings"

// Key identifies an event across extractors: title and source, trimmed and lowercased.
// Dates are deliberately not part of the key.
type Key struct {
	Title  string
	Source string
}

// KeyOf returns the dedup key of evt.
func KeyOf(evt Event) Key {
	return Key{
		Title:  strings.ToLower(strings.TrimSpace(evt.Title)),
		Source: strings.ToLower(strings.TrimSpace(evt.Source)),
	}
}

// Dedup removes events whose key was already seen. The first occurrence wins and relative
// order is preserved; fields of dropped duplicates are not merged.
func Dedup(events []Event) []Event {
	seen := make(map[Key]bool, len(events))
	unique := make([]Event, 0, len(events))
	for _, evt := range events {
		key := KeyOf(evt)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, evt)
	}
	return unique
}

// Diff returns the events of current whose key does not appear in previous, in the order
// of current. A nil previous feed makes every event new.
func Diff(previous, current []Event) []Event {
	known := make(map[Key]bool, len(previous))
	for _, evt := range previous {
		known[KeyOf(evt)] = true
	}

	added := make([]Event, 0)
	for _, evt := range current {
		if !known[KeyOf(evt)] {
			added = append(added, evt)
		}
	}
	return added
}
