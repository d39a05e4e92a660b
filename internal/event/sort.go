package event

import (
	"sort"
	"time"
)

// MaxTime is the sort key of events without a parseable date; they sort last.
var MaxTime = time.Date(9999, time.December, 31, 23, 59, 59, 999999999, time.UTC)

// SortKey resolves the date used for ordering: release, then date, each read as ISO-8601
// and compared in UTC. Events with neither get MaxTime.
func SortKey(evt Event) time.Time {
	if t, ok := ParseISO(Value(evt.Release)); ok {
		return t
	}
	if t, ok := ParseISO(Value(evt.Date)); ok {
		return t
	}
	return MaxTime
}

// Sort orders events chronologically in place. The sort is stable: events with equal or
// missing dates keep their relative input order.
func Sort(events []Event) {
	keyed := make([]keyedEvent, len(events))
	for i, evt := range events {
		keyed[i] = keyedEvent{key: SortKey(evt), evt: evt}
	}

	sort.SliceStable(keyed, func(i, j int) bool {
		return keyed[i].key.Before(keyed[j].key)
	})

	for i := range keyed {
		events[i] = keyed[i].evt
	}
}

type keyedEvent struct {
	key time.Time
	evt Event
}
