// Package filter narrows a snapshot down to the events a user wants to see.
//
// Criteria combine with AND:
//   - Genre (exact genre name; "all" or empty disables it)
//   - Query (case-insensitive substring of the title or any category)
//   - Bookmarked only (membership in a bookmark set)
//   - Sources (exact source labels)
//   - Date range (from/to dates, inclusive)
//   - Weekends only (Saturday/Sunday)
//
// Example usage:
//
//	f := filter.NewFilter()
//	f.Genre = "子ども・子育て"
//	f.Query = "クリスマス"
//	filtered := f.Apply(events)
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/wako-events/internal/event"
)

// AllGenres disables genre filtering.
const AllGenres = "all"

// Membership reports whether an event URL is bookmarked.
type Membership interface {
	Has(url string) bool
}

// Filter represents event filtering criteria
type Filter struct {
	Genre string `json:"genre,omitempty"`
	Query string `json:"query,omitempty"`

	BookmarkedOnly bool       `json:"bookmarked_only,omitempty"`
	Bookmarks      Membership `json:"-"`

	Sources []string `json:"sources,omitempty"`

	// Date range filtering, compared as calendar dates
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`

	WeekendsOnly bool `json:"weekends_only,omitempty"`
}

// NewFilter creates a new empty filter with no active criteria.
func NewFilter() *Filter {
	return &Filter{
		Genre:   AllGenres,
		Sources: []string{},
	}
}

func (f *Filter) genreActive() bool {
	return f.Genre != "" && f.Genre != AllGenres
}

// IsEmpty checks if the filter has any active criteria.
func (f *Filter) IsEmpty() bool {
	return !f.genreActive() &&
		strings.TrimSpace(f.Query) == "" &&
		!f.BookmarkedOnly &&
		len(f.Sources) == 0 &&
		f.DateFrom == nil &&
		f.DateTo == nil &&
		!f.WeekendsOnly
}

// Matches checks if an event matches all active filter criteria.
// An empty filter matches all events. With BookmarkedOnly set and no
// Bookmarks, nothing matches.
func (f *Filter) Matches(evt *event.Event) bool {
	if f.IsEmpty() {
		return true
	}

	if f.genreActive() && evt.Genre != f.Genre {
		return false
	}

	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" && !matchesQuery(evt, q) {
		return false
	}

	if f.BookmarkedOnly && (f.Bookmarks == nil || !f.Bookmarks.Has(evt.URL)) {
		return false
	}

	if len(f.Sources) > 0 {
		matched := false
		for _, s := range f.Sources {
			if evt.Source == s {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.DateFrom != nil || f.DateTo != nil || f.WeekendsOnly {
		date := event.ParseDate(evt.Date, time.UTC)
		if date.IsZero() {
			return false
		}
		if f.DateFrom != nil && date.Before(truncate(*f.DateFrom)) {
			return false
		}
		if f.DateTo != nil && date.After(truncate(*f.DateTo)) {
			return false
		}
		if f.WeekendsOnly {
			weekday := date.Weekday()
			if weekday != time.Saturday && weekday != time.Sunday {
				return false
			}
		}
	}

	return true
}

func matchesQuery(evt *event.Event, q string) bool {
	if strings.Contains(strings.ToLower(evt.Title), q) {
		return true
	}
	for _, c := range evt.Categories {
		if strings.Contains(strings.ToLower(c), q) {
			return true
		}
	}
	return false
}

// truncate drops the clock part, keeping the calendar date.
func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Apply returns the events matching f, preserving order. The result is never nil.
func (f *Filter) Apply(events []event.Event) []event.Event {
	filtered := make([]event.Event, 0, len(events))
	for i := range events {
		if f.Matches(&events[i]) {
			filtered = append(filtered, events[i])
		}
	}
	return filtered
}

// String returns a human-readable description of the active filter criteria.
// Format: "Genre: 文化・芸術 | Search: ピアノ | From: 2025-03-01"
func (f *Filter) String() string {
	if f.IsEmpty() {
		return "No active filters"
	}

	var parts []string

	if f.genreActive() {
		parts = append(parts, fmt.Sprintf("Genre: %s", f.Genre))
	}

	if q := strings.TrimSpace(f.Query); q != "" {
		parts = append(parts, fmt.Sprintf("Search: %s", q))
	}

	if f.BookmarkedOnly {
		parts = append(parts, "Bookmarked only")
	}

	if len(f.Sources) > 0 {
		parts = append(parts, fmt.Sprintf("Sources: %s", strings.Join(f.Sources, ", ")))
	}

	if f.DateFrom != nil {
		parts = append(parts, fmt.Sprintf("From: %s", f.DateFrom.Format(event.DateLayout)))
	}

	if f.DateTo != nil {
		parts = append(parts, fmt.Sprintf("To: %s", f.DateTo.Format(event.DateLayout)))
	}

	if f.WeekendsOnly {
		parts = append(parts, "Weekends only")
	}

	return strings.Join(parts, " | ")
}

// GenreCount is the number of events in one genre.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// GenreCounts counts events per genre, listing genres in the order of names.
// Genres not in names are appended in order of first appearance.
func GenreCounts(events []event.Event, names []string) []GenreCount {
	counts := make(map[string]int, len(names))
	for _, e := range events {
		counts[e.Genre]++
	}

	out := make([]GenreCount, 0, len(counts))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		out = append(out, GenreCount{Genre: n, Count: counts[n]})
		seen[n] = true
	}
	for _, e := range events {
		if !seen[e.Genre] {
			out = append(out, GenreCount{Genre: e.Genre, Count: counts[e.Genre]})
			seen[e.Genre] = true
		}
	}
	return out
}
