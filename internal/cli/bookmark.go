package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pfrederiksen/wako-events/internal/bookmarks"
	"github.com/pfrederiksen/wako-events/internal/storage"
	"github.com/spf13/cobra"
)

func newBookmarkCmd(g *globalOptions) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "bookmark [url|event-id]",
		Short: "Toggle a bookmark, or list bookmarks",
		Long: `Toggles the bookmark of an event, given its URL or the ID shown by
"list --format json". With --list, prints the bookmarked events.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !list && len(args) == 0 {
				return fmt.Errorf("an event URL or ID is required (or use --list)")
			}

			cfg, err := g.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			bstore, err := bookmarks.NewFileStore(cfg.Bookmarks)
			if err != nil {
				return err
			}
			set, err := bstore.Load()
			if err != nil {
				return err
			}

			snapshot, err := storage.New(cfg.Output)
			if err != nil {
				return fmt.Errorf("initializing storage: %w", err)
			}

			w := cmd.OutOrStdout()

			if list {
				return writeBookmarks(cmd, set, snapshot)
			}

			target := strings.TrimSpace(args[0])
			if !isURL(target) {
				evt, err := findEvent(snapshot, target)
				if err != nil {
					return err
				}
				target = evt.URL
			}

			if set.Toggle(target) {
				fmt.Fprintf(w, "Bookmarked: %s\n", target)
			} else {
				fmt.Fprintf(w, "Removed bookmark: %s\n", target)
			}

			if err := bstore.Save(set); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List bookmarked events")

	return cmd
}

func writeBookmarks(cmd *cobra.Command, set bookmarks.Set, snapshot *storage.Storage) error {
	w := cmd.OutOrStdout()
	urls := set.URLs()
	if len(urls) == 0 {
		fmt.Fprintln(w, "No bookmarks.")
		return nil
	}

	events, err := snapshot.Load()
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	type entry struct{ date, title string }
	byURL := make(map[string]entry, len(events))
	for _, e := range events {
		if _, seen := byURL[e.URL]; !seen {
			byURL[e.URL] = entry{e.Date, e.Title}
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Date", "Title", "URL"})
	for _, u := range urls {
		e, ok := byURL[u]
		if !ok {
			e = entry{"-", "(not in snapshot)"}
		}
		t.AppendRow(table.Row{e.date, e.title, u})
	}
	t.Render()
	return nil
}
