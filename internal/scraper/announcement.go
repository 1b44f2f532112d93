package scraper

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/wako-events/internal/event"
)

// LabelWakoSCI is the source label of the chamber of commerce.
const LabelWakoSCI = "和光市商工会"

// CategoryWakoSCI is the only category the chamber's announcements carry.
const CategoryWakoSCI = "商工会"

const announcementBoxSelector = ".box4"

// announcementPattern splits "2025/1/15 title" lines. Digits and slashes may be
// full-width; the normalizer folds them.
var announcementPattern = regexp.MustCompile(`^([0-9０-９]{4}[/／][0-9０-９]{1,2}[/／][0-9０-９]{1,2}) (.+)$`)

// AnnouncementAdapter reads the dated announcement list on the chamber of
// commerce's front page.
type AnnouncementAdapter struct {
	fetcher PageFetcher
	pageURL string
	base    *url.URL
}

// NewAnnouncementAdapter creates an adapter for the page at pageURL.
func NewAnnouncementAdapter(fetcher PageFetcher, pageURL string) (*AnnouncementAdapter, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page url: %w", err)
	}
	return &AnnouncementAdapter{
		fetcher: fetcher,
		pageURL: pageURL,
		base:    base,
	}, nil
}

// Name returns the source label.
func (a *AnnouncementAdapter) Name() string {
	return LabelWakoSCI
}

// FetchRawEvents fetches the front page and extracts its announcements.
func (a *AnnouncementAdapter) FetchRawEvents(ctx context.Context) ([]event.RawEvent, error) {
	doc, err := a.fetcher.Fetch(ctx, a.pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetching announcements: %w", err)
	}
	return parseAnnouncementPage(doc, a.base)
}

func parseAnnouncementPage(doc *goquery.Document, base *url.URL) ([]event.RawEvent, error) {
	box := doc.Find(announcementBoxSelector).First()
	if box.Length() == 0 {
		return nil, fmt.Errorf("no %s on page: %w", announcementBoxSelector, ErrMarkupChanged)
	}

	records := make([]event.RawEvent, 0)
	box.Find("ul li").Each(func(_ int, item *goquery.Selection) {
		m := announcementPattern.FindStringSubmatch(collapseSpace(item.Text()))
		if m == nil {
			return
		}
		href := item.Find("a").First().AttrOr("href", "")
		if strings.TrimSpace(href) == "" {
			return
		}
		link, err := resolveURL(base, href)
		if err != nil {
			return
		}

		records = append(records, event.RawEvent{
			Title:      m[2],
			URL:        link,
			DateRaw:    m[1],
			DateFormat: event.FormatSlash,
			Categories: []string{CategoryWakoSCI},
			Source:     LabelWakoSCI,
		})
	})

	return records, nil
}
