package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/wako-events/internal/event"
	"github.com/pfrederiksen/wako-events/internal/logger"
	"golang.org/x/text/width"
)

// LabelWaKosodate is the source label of the parenting network.
const LabelWaKosodate = "和光子育てネットワーク"

// DefaultTitleHint is the event name the landing page is known to announce.
const DefaultTitleHint = "クリスマスこどもフェス"

var (
	landingDatePattern = regexp.MustCompile(`(\d{1,2})月(\d{1,2})日`)
	landingCategories  = []string{"子育て", "イベント"}
)

// LandingPageAdapter reads a single-event landing page. It yields at most one
// record whose link is the page itself.
type LandingPageAdapter struct {
	fetcher   PageFetcher
	pageURL   string
	base      *url.URL
	titleHint string
	dates     *event.Normalizer
}

// NewLandingPageAdapter creates an adapter for the page at pageURL. The page
// states only month and day; dates resolves the year.
func NewLandingPageAdapter(fetcher PageFetcher, pageURL, titleHint string, dates *event.Normalizer) (*LandingPageAdapter, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page url: %w", err)
	}
	if dates == nil {
		dates = event.NewNormalizer()
	}
	return &LandingPageAdapter{
		fetcher:   fetcher,
		pageURL:   pageURL,
		base:      base,
		titleHint: titleHint,
		dates:     dates,
	}, nil
}

// Name returns the source label.
func (a *LandingPageAdapter) Name() string {
	return LabelWaKosodate
}

// FetchRawEvents fetches the page and extracts its event, if it announces one.
func (a *LandingPageAdapter) FetchRawEvents(ctx context.Context) ([]event.RawEvent, error) {
	doc, err := a.fetcher.Fetch(ctx, a.pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetching landing page: %w", err)
	}

	rec, err := a.parse(doc)
	if errors.Is(err, event.ErrInvalidDate) {
		logger.Warn("Landing page date is not a calendar date", logger.Fields{
			"source": LabelWaKosodate,
			"url":    a.pageURL,
		}, err)
		return []event.RawEvent{}, nil
	}
	if err != nil {
		return nil, err
	}
	if rec == nil {
		logger.Debug("Landing page has no event date", logger.Fields{
			"source": LabelWaKosodate,
			"url":    a.pageURL,
		})
		return []event.RawEvent{}, nil
	}
	return []event.RawEvent{*rec}, nil
}

// parse returns nil without error when the page shows no date.
func (a *LandingPageAdapter) parse(doc *goquery.Document) (*event.RawEvent, error) {
	body := doc.Find("body").Text()
	m := landingDatePattern.FindString(width.Fold.String(body))
	if m == "" {
		return nil, nil
	}

	date, err := a.dates.NormalizeDate(m, event.FormatMonthDay)
	if err != nil {
		return nil, err
	}

	return &event.RawEvent{
		Title:      a.title(doc, body),
		URL:        a.pageURL,
		DateRaw:    date,
		DateFormat: event.FormatISO,
		Categories: append([]string(nil), landingCategories...),
		Source:     LabelWaKosodate,
		ImageURL:   a.image(doc),
	}, nil
}

// title prefers the known event name when the page mentions it, then the
// first heading, then the known name anyway.
func (a *LandingPageAdapter) title(doc *goquery.Document, body string) string {
	if a.titleHint != "" && strings.Contains(body, a.titleHint) {
		return a.titleHint
	}
	if h1 := collapseSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return a.titleHint
}

// image picks the first full-size upload on the page.
func (a *LandingPageAdapter) image(doc *goquery.Document) string {
	var image string
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := img.AttrOr("src", "")
		if !strings.Contains(src, "userData") || !strings.Contains(src, "original.jpg") {
			return true
		}
		abs, err := resolveURL(a.base, src)
		if err != nil {
			return true
		}
		image = abs
		return false
	})
	return image
}
