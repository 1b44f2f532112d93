package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/wako-events/internal/event"
	"github.com/pfrederiksen/wako-events/internal/logger"
	"golang.org/x/text/width"
)

// LabelWakoCity is the source label of the city's event calendar.
const LabelWakoCity = "和光市公式"

// HiddenAttr marks elements the browser reported as not rendered.
const HiddenAttr = "data-wako-hidden"

const (
	calendarTableSelector   = "#calendar_table"
	calendarCaptionSelector = "#calendar_table caption"
	calendarNextSelector    = ".draw_next_calendar"
	calendarRowSelector     = "tr"
)

var (
	captionPattern = regexp.MustCompile(`(\d+)年(\d+)月`)
	dayPattern     = regexp.MustCompile(`^\d+`)

	errNoCaption = fmt.Errorf("calendar caption has no year/month: %w", ErrMarkupChanged)
)

// BrowserPage is an open browser tab.
type BrowserPage interface {
	// MarkHidden sets attr on every element matching selector that is not rendered.
	MarkHidden(ctx context.Context, selector, attr string) error
	// HTML returns the current document.
	HTML(ctx context.Context) (string, error)
	// Advance clicks clickSelector and waits until the text of watchSelector changes.
	Advance(ctx context.Context, clickSelector, watchSelector string) error
	Close()
}

// PageOpener opens a browser tab on pageURL once readySelector is visible.
type PageOpener interface {
	OpenPage(ctx context.Context, pageURL, readySelector string) (BrowserPage, error)
}

// PageOpenerFunc adapts a function to PageOpener.
type PageOpenerFunc func(ctx context.Context, pageURL, readySelector string) (BrowserPage, error)

// OpenPage calls f.
func (f PageOpenerFunc) OpenPage(ctx context.Context, pageURL, readySelector string) (BrowserPage, error) {
	return f(ctx, pageURL, readySelector)
}

// CalendarAdapter reads the city's month-by-month event calendar. The
// calendar is rendered by script and paged with a "next month" control, so it
// needs a real browser.
type CalendarAdapter struct {
	opener  PageOpener
	pageURL string
	base    *url.URL
	months  int
}

// NewCalendarAdapter creates an adapter that reads months calendar pages
// starting at pageURL. Relative links are resolved against baseURL.
func NewCalendarAdapter(opener PageOpener, pageURL, baseURL string, months int) (*CalendarAdapter, error) {
	if baseURL == "" {
		baseURL = pageURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if months < 1 {
		months = 1
	}
	return &CalendarAdapter{
		opener:  opener,
		pageURL: pageURL,
		base:    base,
		months:  months,
	}, nil
}

// Name returns the source label.
func (a *CalendarAdapter) Name() string {
	return LabelWakoCity
}

// FetchRawEvents walks the calendar forward a.months times. Records from the
// months already read are returned if a later step fails.
func (a *CalendarAdapter) FetchRawEvents(ctx context.Context) ([]event.RawEvent, error) {
	page, err := a.opener.OpenPage(ctx, a.pageURL, calendarTableSelector)
	if err != nil {
		return nil, fmt.Errorf("opening calendar: %w", err)
	}
	defer page.Close()

	all := make([]event.RawEvent, 0)
	previous := ""

	for i := 0; i < a.months; i++ {
		if err := page.MarkHidden(ctx, calendarRowSelector, HiddenAttr); err != nil {
			return all, fmt.Errorf("marking hidden rows: %w", err)
		}

		html, err := page.HTML(ctx)
		if err != nil {
			return all, fmt.Errorf("reading calendar page %d: %w", i+1, err)
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return all, fmt.Errorf("parsing calendar page %d: %w", i+1, err)
		}

		caption, records, err := parseCalendarPage(doc, a.base)
		if caption != "" && caption == previous {
			return all, fmt.Errorf("calendar did not advance past %q: %w", caption, ErrMarkupChanged)
		}
		switch {
		case errors.Is(err, errNoCaption):
			logger.Warn("Skipping calendar page", logger.Fields{
				"source":  LabelWakoCity,
				"page":    i + 1,
				"caption": caption,
			}, err)
		case err != nil:
			return all, err
		default:
			logger.Debug("Read calendar page", logger.Fields{
				"source":  LabelWakoCity,
				"caption": caption,
				"records": len(records),
			})
			all = append(all, records...)
		}
		previous = caption

		if i < a.months-1 {
			if err := page.Advance(ctx, calendarNextSelector, calendarCaptionSelector); err != nil {
				return all, fmt.Errorf("advancing to calendar page %d: %w", i+2, err)
			}
		}
	}

	return all, nil
}

// parseCalendarPage extracts the records of one calendar month. It returns the
// caption even when it cannot be parsed so the caller can detect a stuck pager.
func parseCalendarPage(doc *goquery.Document, base *url.URL) (string, []event.RawEvent, error) {
	if doc.Find(calendarTableSelector).Length() == 0 {
		return "", nil, fmt.Errorf("no %s on page: %w", calendarTableSelector, ErrMarkupChanged)
	}

	caption := collapseSpace(doc.Find(calendarCaptionSelector).First().Text())
	m := captionPattern.FindStringSubmatch(width.Fold.String(caption))
	if m == nil {
		return caption, nil, errNoCaption
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])

	records := make([]event.RawEvent, 0)
	doc.Find(calendarRowSelector).Each(func(_ int, row *goquery.Selection) {
		if isHidden(row) {
			return
		}

		dayElem := row.Find("th .em").First()
		if dayElem.Length() == 0 {
			return
		}
		dayText := dayPattern.FindString(strings.TrimSpace(width.Fold.String(dayElem.Text())))
		day, err := strconv.Atoi(dayText)
		if err != nil {
			return
		}
		date := event.FormatDate(year, month, day)
		if !event.IsValidDate(date) {
			return
		}

		row.Find("td ul li").Each(func(_ int, li *goquery.Selection) {
			link := li.Find("a").First()
			if link.Length() == 0 {
				return
			}
			title := collapseSpace(link.Text())
			href, _ := link.Attr("href")
			if title == "" || strings.TrimSpace(href) == "" {
				return
			}
			abs, err := resolveURL(base, href)
			if err != nil {
				return
			}

			categories := make([]string, 0)
			li.Find("span.ecate").Each(func(_ int, span *goquery.Selection) {
				if c := collapseSpace(span.Text()); c != "" {
					categories = append(categories, c)
				}
			})

			records = append(records, event.RawEvent{
				Title:      title,
				URL:        abs,
				DateRaw:    date,
				DateFormat: event.FormatISO,
				Categories: categories,
				Source:     LabelWakoCity,
			})
		})
	})

	return caption, records, nil
}

// isHidden reports whether a row is a placeholder slot that is not shown.
func isHidden(sel *goquery.Selection) bool {
	if _, ok := sel.Attr(HiddenAttr); ok {
		return true
	}
	if _, ok := sel.Attr("hidden"); ok {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(sel.AttrOr("style", "")), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}
