package event

import (
	"sort"
	"time"
)

// SortByDate sorts events ascending by date. Events sharing a date keep their
// relative order, so source order is the tie-break.
func SortByDate(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date < events[j].Date
	})
}

// Today returns the canonical date of now's local midnight.
func Today(now time.Time) string {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).Format(DateLayout)
}

// Split partitions events around the local date of now. Future holds events
// dated today or later in ascending order; Past holds earlier events, newest
// first. An event dated today is never in Past.
func Split(events []Event, now time.Time) (future, past []Event) {
	today := Today(now)
	future = make([]Event, 0, len(events))
	past = make([]Event, 0)

	for _, evt := range events {
		// Canonical dates compare correctly as strings.
		if evt.Date >= today {
			future = append(future, evt)
		} else {
			past = append(past, evt)
		}
	}

	SortByDate(future)
	sort.SliceStable(past, func(i, j int) bool {
		return past[i].Date > past[j].Date
	})
	return future, past
}
