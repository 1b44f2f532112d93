package cli

import (
	"github.com/pfrederiksen/wako-events/internal/filter"
	"github.com/pfrederiksen/wako-events/internal/genre"
	"github.com/spf13/cobra"
)

func newGenresCmd(g *globalOptions) *cobra.Command {
	var (
		past   bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "genres",
		Short: "Show the genres and how many events each has",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format, FormatText, FormatJSON)
			if err != nil {
				return err
			}
			cfg, err := g.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			view, err := loadView(cfg, past)
			if err != nil {
				return err
			}

			classifier := genre.Default()
			counts := filter.GenreCounts(view, classifier.Names())

			if outFormat == FormatJSON {
				return writeJSON(cmd.OutOrStdout(), counts)
			}
			writeGenreTable(cmd.OutOrStdout(), counts, classifier)
			return nil
		},
	}

	cmd.Flags().BoolVar(&past, "past", false, "Count past events instead of upcoming ones")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")

	return cmd
}
