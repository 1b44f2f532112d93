package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/wako-events/internal/event"
)

// LabelSunAzalea is the source label of the civic culture center.
const LabelSunAzalea = "サンアゼリア"

const listItemSelector = "ul.index li.record"

// ListAdapter reads the culture center's event listing. Every entry carries
// its date in a data-date attribute as YYYYMMDD.
type ListAdapter struct {
	fetcher PageFetcher
	pageURL string
	base    *url.URL
}

// NewListAdapter creates an adapter for the listing at pageURL.
func NewListAdapter(fetcher PageFetcher, pageURL string) (*ListAdapter, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page url: %w", err)
	}
	return &ListAdapter{
		fetcher: fetcher,
		pageURL: pageURL,
		base:    base,
	}, nil
}

// Name returns the source label.
func (a *ListAdapter) Name() string {
	return LabelSunAzalea
}

// FetchRawEvents fetches the listing and extracts its entries.
func (a *ListAdapter) FetchRawEvents(ctx context.Context) ([]event.RawEvent, error) {
	doc, err := a.fetcher.Fetch(ctx, a.pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetching listing: %w", err)
	}
	return parseListPage(doc, a.base)
}

func parseListPage(doc *goquery.Document, base *url.URL) ([]event.RawEvent, error) {
	items := doc.Find(listItemSelector)
	if items.Length() == 0 {
		return nil, fmt.Errorf("no %s on page: %w", listItemSelector, ErrMarkupChanged)
	}

	records := make([]event.RawEvent, 0, items.Length())
	items.Each(func(_ int, item *goquery.Selection) {
		title := collapseSpace(item.Find("p.ttl .ttl_txt").First().Text())
		date := strings.TrimSpace(item.AttrOr("data-date", ""))
		href := item.Find("a").First().AttrOr("href", "")
		if title == "" || date == "" || strings.TrimSpace(href) == "" {
			return
		}

		link, err := resolveURL(base, href)
		if err != nil {
			return
		}

		categories := make([]string, 0, 1)
		if hall := collapseSpace(item.Find("p.hall .event_hall").First().Text()); hall != "" {
			categories = append(categories, hall)
		}

		var image string
		if src := item.Find("p.flyer img").First().AttrOr("src", ""); src != "" {
			if abs, err := resolveURL(base, src); err == nil {
				image = abs
			}
		}

		records = append(records, event.RawEvent{
			Title:      title,
			URL:        link,
			DateRaw:    date,
			DateFormat: event.FormatCompact,
			Categories: categories,
			Source:     LabelSunAzalea,
			ImageURL:   image,
		})
	})

	return records, nil
}
