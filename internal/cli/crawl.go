package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pfrederiksen/wako-events/internal/browser"
	"github.com/pfrederiksen/wako-events/internal/config"
	"github.com/pfrederiksen/wako-events/internal/event"
	"github.com/pfrederiksen/wako-events/internal/logger"
	"github.com/pfrederiksen/wako-events/internal/metrics"
	"github.com/pfrederiksen/wako-events/internal/pipeline"
	"github.com/pfrederiksen/wako-events/internal/scraper"
	"github.com/pfrederiksen/wako-events/internal/storage"
	"github.com/spf13/cobra"
)

type crawlOptions struct {
	sources     []string
	concurrency int
	format      string
	showNew     bool
	metricsFile string
}

// buildAdapters creates the adapters for names. The returned func releases
// shared resources such as the browser. Tests replace it.
var buildAdapters = defaultAdapters

func newCrawlCmd(g *globalOptions) *cobra.Command {
	opts := &crawlOptions{}

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Fetch every enabled source and replace the snapshot",
		Long: `Runs every enabled source adapter, normalizes and classifies the records,
and atomically replaces the snapshot. A failing source is reported but does
not stop the crawl; only a snapshot read or write error fails the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, g, opts)
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&opts.sources, "source", nil, "Only crawl these sources (wako_city, sun_azalea, wako_sci, wa_kosodate)")
	f.IntVar(&opts.concurrency, "concurrency", 0, "Adapters to run at once (overrides config)")
	f.StringVar(&opts.format, "format", "text", "Output format: text or json")
	f.BoolVar(&opts.showNew, "show-new", false, "List events not present in the previous snapshot")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this path")

	return cmd
}

func runCrawl(cmd *cobra.Command, g *globalOptions, opts *crawlOptions) error {
	format, err := parseFormat(opts.format, FormatText, FormatJSON)
	if err != nil {
		return err
	}

	cfg, err := g.load(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if opts.concurrency > 0 {
		cfg.Concurrency = opts.concurrency
	}

	names, err := cfg.Enabled(opts.sources)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no sources enabled")
	}

	store, err := storage.New(cfg.Output)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	// An unreadable snapshot aborts before anything is fetched; a corrupt one
	// is only a lost baseline for the change report.
	previous, err := store.Load()
	if err != nil {
		if !errors.Is(err, storage.ErrCorrupt) {
			return fmt.Errorf("loading previous snapshot: %w", err)
		}
		logger.Warn("Previous snapshot is unreadable, reporting every event as new", logger.Fields{
			"path": store.Path(),
		}, err)
		previous = []event.Event{}
	}

	adapters, release, err := buildAdapters(cfg, names)
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := metrics.New()
	p := pipeline.New(pipeline.Options{
		Concurrency:    cfg.Concurrency,
		AdapterTimeout: cfg.AdapterTimeout,
		Metrics:        rec,
	})

	result, err := p.Run(ctx, adapters)
	if err != nil {
		return err
	}

	if err := store.Save(result.Events); err != nil {
		logger.Error("Writing snapshot failed", logger.Fields{
			"path":   store.Path(),
			"run_id": result.RunID,
		}, err)
		return fmt.Errorf("saving snapshot: %w", err)
	}
	rec.ObserveSnapshot(len(result.Events), time.Now())

	logger.Info("Saved snapshot", logger.Fields{
		"path":   store.Path(),
		"events": len(result.Events),
		"run_id": result.RunID,
	})

	if opts.metricsFile != "" {
		if err := metrics.WriteTextfile(opts.metricsFile, rec.Registry()); err != nil {
			logger.Warn("Writing metrics failed", logger.Fields{
				"path": opts.metricsFile,
			}, err)
		}
	}

	diff := event.Diff(previous, result.Events)
	out := &CrawlResult{
		RunID:        result.RunID,
		CheckedAt:    result.FinishedAt.UTC(),
		Snapshot:     store.Path(),
		EventCount:   result.Total,
		NewCount:     len(diff.NewEvents),
		RemovedCount: len(diff.RemovedEvents),
		Failures:     result.Failures(),
		Sources:      result.Sources,
		ShowNew:      opts.showNew,
		NewBySource:  diff.BySource,
	}
	if opts.showNew {
		out.NewEvents = diff.NewEvents
	}

	w := cmd.OutOrStdout()
	if format == FormatJSON {
		return writeJSON(w, out)
	}
	return writeCrawlText(w, out)
}

func defaultAdapters(cfg *config.Config, names []string) ([]scraper.Adapter, func(), error) {
	r := scraper.Renderers{
		HTTP: scraper.NewHTTPFetcher(
			scraper.WithUserAgent(cfg.HTTP.UserAgent),
			scraper.WithTimeout(cfg.HTTP.Timeout),
			scraper.WithRetries(cfg.HTTP.Retries),
		),
		Now: time.Now,
	}
	release := func() {}

	if scraper.NeedsBrowser(cfg, names) {
		session := browser.New(browser.Config{
			ExecPath:    cfg.Browser.ExecPath,
			Headless:    cfg.Browser.Headless,
			WaitTimeout: cfg.Browser.WaitTimeout,
			SettleDelay: cfg.Browser.SettleDelay,
		})
		release = session.Close
		r.Browser = session
		r.Pages = scraper.PageOpenerFunc(func(ctx context.Context, pageURL, readySelector string) (scraper.BrowserPage, error) {
			page, err := session.OpenPage(ctx, pageURL, readySelector)
			if err != nil {
				return nil, err
			}
			return page, nil
		})
	}

	adapters, err := scraper.FromConfig(cfg, names, r)
	if err != nil {
		release()
		return nil, nil, err
	}
	return adapters, release, nil
}
