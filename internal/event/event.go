package event

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingField is returned when a raw record lacks a required field.
var ErrMissingField = errors.New("missing required field")

// RawEvent is a single record as extracted by a source adapter, before its
// date has been normalized.
type RawEvent struct {
	Title      string
	URL        string
	DateRaw    string
	DateFormat DateFormat
	Categories []string
	Source     string
	ImageURL   string
}

// Event is the canonical record stored in the snapshot.
type Event struct {
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Date       string   `json:"date"` // YYYY-MM-DD
	Categories []string `json:"categories"`
	Source     string   `json:"source"`
	Genre      string   `json:"genre"`
	ImageURL   string   `json:"imageUrl"`
}

// GenerateID creates a deterministic ID for an event from its URL and date.
// Two sources listing the same page on the same day share an ID; the pipeline
// still keeps both records.
func GenerateID(url, date string) string {
	h := sha1.New()
	h.Write([]byte(url + "|" + date))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// ID returns the deterministic identifier of the event.
func (e *Event) ID() string {
	return GenerateID(e.URL, e.Date)
}

// Normalize validates r and converts it into an unclassified Event.
func (n *Normalizer) Normalize(r RawEvent) (Event, error) {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return Event{}, fmt.Errorf("title: %w", ErrMissingField)
	}
	url := strings.TrimSpace(r.URL)
	if url == "" {
		return Event{}, fmt.Errorf("url: %w", ErrMissingField)
	}

	date, err := n.NormalizeDate(r.DateRaw, r.DateFormat)
	if err != nil {
		return Event{}, err
	}

	categories := make([]string, 0, len(r.Categories))
	for _, c := range r.Categories {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, c)
		}
	}

	return Event{
		Title:      title,
		URL:        url,
		Date:       date,
		Categories: categories,
		Source:     r.Source,
		ImageURL:   strings.TrimSpace(r.ImageURL),
	}, nil
}
