package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pfrederiksen/wako-events/internal/config"
	"github.com/pfrederiksen/wako-events/internal/logger"
	"github.com/spf13/cobra"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath string
	output     string
	bookmarks  string
	logLevel   string
	verbose    bool
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "wako-events",
		Short: "Collect events happening in Wako city into one snapshot",
		Long: `A CLI tool that scrapes event listings from several Wako city websites,
normalizes and classifies them, and writes a single JSON snapshot.
The snapshot can then be listed, filtered, and exported.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Config file (default: ./"+config.DefaultPath+" if present)")
	pf.StringVar(&opts.output, "output", "", "Snapshot path (overrides config)")
	pf.StringVar(&opts.bookmarks, "bookmarks", "", "Bookmark file (overrides config)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	pf.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging (same as --log-level debug)")

	cmd.AddCommand(
		newCrawlCmd(opts),
		newListCmd(opts),
		newGenresCmd(opts),
		newBookmarkCmd(opts),
		newShowCmd(opts),
	)

	return cmd
}

// load reads the configuration, applies global flag overrides and installs
// the default logger.
func (o *globalOptions) load(stderr io.Writer) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	if o.output != "" {
		cfg.Output = o.output
	}
	if o.bookmarks != "" {
		cfg.Bookmarks = o.bookmarks
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.SetDefault(logger.New(level, stderr))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseFormat validates an output format flag against the allowed values.
func parseFormat(value string, allowed ...OutputFormat) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(value)))
	names := make([]string, len(allowed))
	for i, a := range allowed {
		if format == a {
			return format, nil
		}
		names[i] = "'" + string(a) + "'"
	}
	return "", fmt.Errorf("invalid format: %s (must be %s)", value, strings.Join(names, ", "))
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		_ = logger.Default().Sync()
		os.Exit(ExitError)
	}
	_ = logger.Default().Sync()
	os.Exit(ExitSuccess)
}
