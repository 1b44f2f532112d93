package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pfrederiksen/wako-events/internal/event"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByDate   SortOrder = "date"
	SortBySource SortOrder = "source"
	SortByTitle  SortOrder = "title"
)

func parseSortOrder(value string) (SortOrder, error) {
	order := SortOrder(strings.ToLower(strings.TrimSpace(value)))
	switch order {
	case SortByDate, SortBySource, SortByTitle:
		return order, nil
	default:
		return "", fmt.Errorf("invalid sort order: %s (must be 'date', 'source', or 'title')", value)
	}
}

// sortEvents reorders events. SortByDate keeps the order of the view, which is
// already date-sorted; the other orders fall back to it for ties.
func sortEvents(events []event.Event, order SortOrder) {
	switch order {
	case SortBySource:
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Source < events[j].Source
		})
	case SortByTitle:
		sort.SliceStable(events, func(i, j int) bool {
			return strings.ToLower(events[i].Title) < strings.ToLower(events[j].Title)
		})
	}
}
