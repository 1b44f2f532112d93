package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/pfrederiksen/wako-events/internal/calendar"
	"github.com/pfrederiksen/wako-events/internal/event"
	"github.com/pfrederiksen/wako-events/internal/genre"
	"github.com/pfrederiksen/wako-events/internal/storage"
	"github.com/spf13/cobra"
)

func newShowCmd(g *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <url|event-id>",
		Short: "Show one event from the snapshot",
		Long: `Prints a single snapshot event, given its URL or the ID shown by
"list --format json". With --format ics, prints it as a calendar file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format, FormatText, FormatJSON, FormatICS)
			if err != nil {
				return err
			}
			cfg, err := g.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			snapshot, err := storage.New(cfg.Output)
			if err != nil {
				return fmt.Errorf("initializing storage: %w", err)
			}
			evt, err := findEvent(snapshot, args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch outFormat {
			case FormatJSON:
				return writeJSON(w, listedEvent{ID: evt.ID(), Event: *evt})
			case FormatICS:
				_, err := io.WriteString(w, calendar.GenerateEventICS(evt, now()))
				return err
			default:
				writeEventDetail(w, evt, genre.Default())
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json, or ics")

	return cmd
}

// findEvent looks an event up by URL or by ID. A URL listed on several days
// yields its first snapshot entry.
func findEvent(snapshot *storage.Storage, target string) (*event.Event, error) {
	target = strings.TrimSpace(target)
	if !isURL(target) {
		return snapshot.FindByID(target)
	}

	events, err := snapshot.Load()
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	for i := range events {
		if events[i].URL == target {
			return &events[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, target)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func writeEventDetail(w io.Writer, e *event.Event, classifier *genre.Classifier) {
	fmt.Fprintf(w, "%s\n", e.Title)
	fmt.Fprintf(w, "  Date:       %s\n", e.Date)
	fmt.Fprintf(w, "  Genre:      %s %s\n", classifier.Icon(e.Genre), e.Genre)
	fmt.Fprintf(w, "  Source:     %s\n", e.Source)
	if len(e.Categories) > 0 {
		fmt.Fprintf(w, "  Categories: %s\n", strings.Join(e.Categories, ", "))
	}
	fmt.Fprintf(w, "  URL:        %s\n", e.URL)
	if e.ImageURL != "" {
		fmt.Fprintf(w, "  Image:      %s\n", e.ImageURL)
	}
	fmt.Fprintf(w, "  ID:         %s\n", e.ID())
}
