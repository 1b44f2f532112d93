package scraper

import (
	"fmt"
	"time"

	"github.com/pfrederiksen/wako-events/internal/config"
	"github.com/pfrederiksen/wako-events/internal/event"
)

// Renderers supplies page access to adapters built from config. Browser and
// Pages may be nil when no enabled source needs them.
type Renderers struct {
	HTTP    PageFetcher
	Browser PageFetcher
	Pages   PageOpener
	Now     func() time.Time
}

// FromConfig builds the adapters for names, in the given order.
func FromConfig(cfg *config.Config, names []string, r Renderers) ([]Adapter, error) {
	adapters := make([]Adapter, 0, len(names))
	for _, name := range names {
		sc, ok := cfg.Sources[name]
		if !ok {
			return nil, fmt.Errorf("unknown source: %s", name)
		}
		a, err := newAdapter(name, sc, r)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", name, err)
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

func newAdapter(name string, sc config.SourceConfig, r Renderers) (Adapter, error) {
	if name == config.SourceWakoCity {
		if r.Pages == nil {
			return nil, fmt.Errorf("browser is not available")
		}
		return NewCalendarAdapter(r.Pages, sc.URL, sc.BaseURL, sc.Months)
	}

	fetcher := r.HTTP
	if sc.Renderer == config.RendererBrowser {
		fetcher = r.Browser
	}
	if fetcher == nil {
		return nil, fmt.Errorf("no fetcher for renderer %q", sc.Renderer)
	}

	switch name {
	case config.SourceSunAzalea:
		return NewListAdapter(fetcher, sc.URL)
	case config.SourceWakoSCI:
		return NewAnnouncementAdapter(fetcher, sc.URL)
	case config.SourceWaKosodate:
		dates := &event.Normalizer{Now: r.Now, RollForward: sc.RollForwardYear}
		hint := sc.TitleHint
		if hint == "" {
			hint = DefaultTitleHint
		}
		return NewLandingPageAdapter(fetcher, sc.URL, hint, dates)
	default:
		return nil, fmt.Errorf("no adapter for source %q", name)
	}
}

// NeedsBrowser reports whether any of names requires headless Chrome.
func NeedsBrowser(cfg *config.Config, names []string) bool {
	for _, name := range names {
		if name == config.SourceWakoCity || cfg.Sources[name].Renderer == config.RendererBrowser {
			return true
		}
	}
	return false
}

// Labels maps config source names to the labels written on records.
var Labels = map[string]string{
	config.SourceWakoCity:   LabelWakoCity,
	config.SourceSunAzalea:  LabelSunAzalea,
	config.SourceWakoSCI:    LabelWakoSCI,
	config.SourceWaKosodate: LabelWaKosodate,
}
