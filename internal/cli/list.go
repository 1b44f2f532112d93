package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/pfrederiksen/wako-events/internal/bookmarks"
	"github.com/pfrederiksen/wako-events/internal/calendar"
	"github.com/pfrederiksen/wako-events/internal/config"
	"github.com/pfrederiksen/wako-events/internal/event"
	"github.com/pfrederiksen/wako-events/internal/filter"
	"github.com/pfrederiksen/wako-events/internal/genre"
	"github.com/pfrederiksen/wako-events/internal/logger"
	"github.com/pfrederiksen/wako-events/internal/scraper"
	"github.com/pfrederiksen/wako-events/internal/storage"
	"github.com/spf13/cobra"
)

// now is the reference clock of the future/past split. Tests replace it.
var now = time.Now

type listOptions struct {
	past       bool
	genre      string
	search     string
	bookmarked bool
	sources    []string
	dates      string
	weekends   bool
	sortOrder  string
	limit      int
	format     string
}

func newListCmd(g *globalOptions) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show upcoming (or past) events from the snapshot",
		Long: `Reads the snapshot and prints the upcoming events, soonest first.
With --past, prints events before today, most recent first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, g, opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.past, "past", false, "Show past events instead of upcoming ones")
	f.StringVar(&opts.genre, "genre", filter.AllGenres, "Only this genre ('all' for every genre)")
	f.StringVar(&opts.search, "search", "", "Case-insensitive search over title and categories")
	f.BoolVar(&opts.bookmarked, "bookmarked", false, "Only bookmarked events")
	f.StringSliceVar(&opts.sources, "source", nil, "Only these sources (config name or label)")
	f.StringVar(&opts.dates, "dates", "", "Date range: 2025-03-01..2025-03-15, 2025-03-01, 2025-03, or 3月")
	f.BoolVar(&opts.weekends, "weekends", false, "Only events on Saturday or Sunday")
	f.StringVar(&opts.sortOrder, "sort", "date", "Sort order: date, source, or title")
	f.IntVar(&opts.limit, "limit", 0, "Show at most this many events (0 = all)")
	f.StringVar(&opts.format, "format", "text", "Output format: text, json, or ics")

	return cmd
}

func runList(cmd *cobra.Command, g *globalOptions, opts *listOptions) error {
	format, err := parseFormat(opts.format, FormatText, FormatJSON, FormatICS)
	if err != nil {
		return err
	}
	order, err := parseSortOrder(opts.sortOrder)
	if err != nil {
		return err
	}

	cfg, err := g.load(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	classifier := genre.Default()
	if opts.genre != "" && opts.genre != filter.AllGenres && !classifier.IsValid(opts.genre) {
		return fmt.Errorf("unknown genre: %s", opts.genre)
	}

	view, err := loadView(cfg, opts.past)
	if err != nil {
		return err
	}

	marked, err := loadBookmarks(cfg, opts.bookmarked)
	if err != nil {
		return err
	}

	f := filter.NewFilter()
	f.Genre = opts.genre
	f.Query = opts.search
	f.BookmarkedOnly = opts.bookmarked
	f.Bookmarks = marked
	f.WeekendsOnly = opts.weekends
	for _, s := range opts.sources {
		f.Sources = append(f.Sources, sourceLabel(s))
	}
	if opts.dates != "" {
		from, to, err := filter.ParseDateRange(opts.dates, now())
		if err != nil {
			return err
		}
		f.DateFrom, f.DateTo = from, to
	}

	events := f.Apply(view)
	sortEvents(events, order)
	if opts.limit > 0 && len(events) > opts.limit {
		events = events[:opts.limit]
	}

	logger.Debug("Listing events", logger.Fields{
		"filter": f.String(),
		"past":   opts.past,
		"shown":  len(events),
	})

	return writeEvents(cmd.OutOrStdout(), events, format, classifier, marked)
}

// listedEvent is an event as printed by list, with its ID for the bookmark command.
type listedEvent struct {
	ID string `json:"id"`
	event.Event
}

func writeEvents(w io.Writer, events []event.Event, format OutputFormat, classifier *genre.Classifier, marked filter.Membership) error {
	switch format {
	case FormatJSON:
		listed := make([]listedEvent, len(events))
		for i, e := range events {
			listed[i] = listedEvent{ID: e.ID(), Event: e}
		}
		return writeJSON(w, listed)
	case FormatICS:
		_, err := io.WriteString(w, calendar.GenerateICS(events, now()))
		return err
	default:
		writeEventsTable(w, events, classifier, marked)
		return nil
	}
}

// loadView reads the snapshot and returns its future or past view.
func loadView(cfg *config.Config, past bool) ([]event.Event, error) {
	store, err := storage.New(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	events, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	future, before := event.Split(events, now())
	if past {
		return before, nil
	}
	return future, nil
}

// loadBookmarks reads the bookmark set. When the set only decorates output a
// broken file is logged and ignored.
func loadBookmarks(cfg *config.Config, required bool) (bookmarks.Set, error) {
	store, err := bookmarks.NewFileStore(cfg.Bookmarks)
	if err != nil {
		return nil, err
	}
	set, err := store.Load()
	if err != nil {
		if required {
			return nil, err
		}
		logger.Warn("Ignoring unreadable bookmarks", logger.Fields{
			"path": store.Path(),
		}, err)
		return bookmarks.New(), nil
	}
	return set, nil
}

// sourceLabel accepts a config source name or a record label.
func sourceLabel(s string) string {
	if label, ok := scraper.Labels[s]; ok {
		return label
	}
	return s
}
