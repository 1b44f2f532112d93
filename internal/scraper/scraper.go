package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/pfrederiksen/wako-events/internal/event"
	"golang.org/x/net/html/charset"
)

const (
	UserAgent = "wako-events/1.0 (github.com/pfrederiksen/wako-events)"
	Timeout   = 30 * time.Second
)

// ErrMarkupChanged is returned when a page lacks the structure an adapter
// depends on.
var ErrMarkupChanged = errors.New("page markup changed")

// Adapter extracts raw events from one origin site.
type Adapter interface {
	// Name is the fixed source label written to every record.
	Name() string
	// FetchRawEvents fetches and extracts the source's events. On error the
	// records gathered so far may be returned alongside it.
	FetchRawEvents(ctx context.Context) ([]event.RawEvent, error)
}

// PageFetcher loads a page and returns it parsed.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*goquery.Document, error)
}

// HTTPFetcher fetches pages over plain HTTP with retries.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	retries   uint64
	backoff   func() backoff.BackOff
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithRetries sets how many times a transient failure is retried.
func WithRetries(n uint64) HTTPOption {
	return func(f *HTTPFetcher) {
		f.retries = n
	}
}

// WithBackOff replaces the retry schedule. Tests use it to avoid sleeping.
func WithBackOff(b func() backoff.BackOff) HTTPOption {
	return func(f *HTTPFetcher) {
		f.backoff = b
	}
}

// NewHTTPFetcher creates a new HTTPFetcher
func NewHTTPFetcher(opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{
			Timeout: Timeout,
		},
		userAgent: UserAgent,
		retries:   2,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves pageURL and parses it. Network errors and 5xx responses are
// retried; other non-200 responses fail immediately.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document

	operation := func() error {
		d, err := f.fetchOnce(ctx, pageURL)
		if err != nil {
			return err
		}
		doc = d
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(f.backoff(), f.retries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return doc, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(fmt.Errorf("fetching page: %w", err))
		}
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		if resp.StatusCode >= 500 {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	// Older municipal sites still serve Shift_JIS.
	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decoding page: %w", err))
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("parsing HTML: %w", err))
	}
	return doc, nil
}

// resolveURL makes ref absolute against base. Protocol-relative references
// ("//host/path") take base's scheme.
func resolveURL(base *url.URL, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty url: %w", event.ErrMissingField)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", ref, err)
	}
	if base == nil {
		return u.String(), nil
	}
	return base.ResolveReference(u).String(), nil
}

// collapseSpace trims s and replaces every run of whitespace, including the
// ideographic space, with one ASCII space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
