package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pfrederiksen/wako-events/internal/event"
	"github.com/pfrederiksen/wako-events/internal/filter"
	"github.com/pfrederiksen/wako-events/internal/genre"
	"github.com/pfrederiksen/wako-events/internal/pipeline"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatICS  OutputFormat = "ics"
)

const (
	titleColumnWidth = 48
	urlColumnWidth   = 60
)

// CrawlResult is the summary printed after a crawl
type CrawlResult struct {
	RunID        string                   `json:"run_id"`
	CheckedAt    time.Time                `json:"checked_at"`
	Snapshot     string                   `json:"snapshot"`
	EventCount   int                      `json:"event_count"`
	NewCount     int                      `json:"new_count"`
	RemovedCount int                      `json:"removed_count"`
	Failures     int                      `json:"failures"`
	Sources      []pipeline.SourceReport  `json:"sources"`
	NewEvents    []event.Event            `json:"new_events,omitempty"`
	ShowNew      bool                     `json:"-"`
	NewBySource  map[string][]event.Event `json:"-"`
}

// writeJSON outputs v as indented JSON
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeCrawlText outputs the crawl summary as human-readable text
func writeCrawlText(w io.Writer, result *CrawlResult) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Source", "Found", "Accepted", "Dropped", "Time", "Status"})
	for _, s := range result.Sources {
		status := "ok"
		if s.Failed() {
			status = "FAILED: " + s.Error
		}
		t.AppendRow(table.Row{
			s.Source,
			s.Found,
			s.Accepted,
			s.Dropped,
			(time.Duration(s.DurationMS) * time.Millisecond).String(),
			status,
		})
	}
	t.AppendFooter(table.Row{"Total", "", result.EventCount, "", "", fmt.Sprintf("%d failed", result.Failures)})
	t.Render()

	fmt.Fprintf(w, "\nWrote %d events to %s (%d new, %d removed)\n",
		result.EventCount, result.Snapshot, result.NewCount, result.RemovedCount)

	if !result.ShowNew || result.NewCount == 0 {
		return nil
	}

	fmt.Fprintf(w, "\nNew events:\n")
	for _, s := range result.Sources {
		events := result.NewBySource[s.Source]
		if len(events) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s (%d):\n", s.Source, len(events))
		for _, e := range events {
			fmt.Fprintf(w, "  - [NEW] %s  %s\n", e.Date, e.Title)
			fmt.Fprintf(w, "    %s\n", e.URL)
		}
	}
	return nil
}

// writeEventsTable outputs events as a table
func writeEventsTable(w io.Writer, events []event.Event, classifier *genre.Classifier, marked filter.Membership) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events found.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: titleColumnWidth},
		{Number: 6, WidthMax: urlColumnWidth},
	})
	t.AppendHeader(table.Row{"", "Date", "Genre", "Title", "Source", "URL"})

	for _, e := range events {
		mark := ""
		if marked != nil && marked.Has(e.URL) {
			mark = "★"
		}
		t.AppendRow(table.Row{
			mark,
			e.Date,
			classifier.Icon(e.Genre) + " " + e.Genre,
			e.Title,
			e.Source,
			e.URL,
		})
	}

	t.AppendFooter(table.Row{"", "Total", len(events)})
	t.Render()
}

// writeGenreTable outputs per-genre counts
func writeGenreTable(w io.Writer, counts []filter.GenreCount, classifier *genre.Classifier) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"", "Genre", "Events"})

	total := 0
	for _, c := range counts {
		t.AppendRow(table.Row{classifier.Icon(c.Genre), c.Genre, c.Count})
		total += c.Count
	}

	t.AppendFooter(table.Row{"", "Total", total})
	t.Render()
}
