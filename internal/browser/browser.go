// Package browser drives headless Chrome for pages that only render their
// content with script.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/pfrederiksen/wako-events/internal/logger"
)

const (
	DefaultWaitTimeout = 15 * time.Second
	DefaultSettleDelay = 2 * time.Second
)

// Config controls the Chrome process.
type Config struct {
	ExecPath    string
	Headless    bool
	WaitTimeout time.Duration
	SettleDelay time.Duration
}

// Session is one Chrome process shared by all fetches of a crawl. Chrome is
// started on first use; every fetch gets its own tab.
type Session struct {
	cfg Config

	mu            sync.Mutex
	started       bool
	startErr      error
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

// New creates a session. Chrome is not started until the first fetch.
func New(cfg Config) *Session {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	return &Session{cfg: cfg}
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("lang", "ja-JP"),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

func (s *Session) start() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return s.browserCtx, s.startErr
	}
	s.started = true

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocatorOptions(s.cfg)...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	s.cancelAlloc = cancelAlloc
	s.cancelBrowser = cancelBrowser

	if err := chromedp.Run(browserCtx); err != nil {
		s.startErr = fmt.Errorf("starting chrome: %w", err)
		return nil, s.startErr
	}
	s.browserCtx = browserCtx

	logger.Debug("Started headless Chrome", logger.Fields{
		"headless": s.cfg.Headless,
	})
	return browserCtx, nil
}

// newTab opens a tab that is closed when ctx ends or the returned cancel is
// called.
func (s *Session) newTab(ctx context.Context) (context.Context, context.CancelFunc, error) {
	browserCtx, err := s.start()
	if err != nil {
		return nil, nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	// The first Run creates the target and must not carry a timeout.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		return nil, nil, fmt.Errorf("opening tab: %w", err)
	}
	stop := context.AfterFunc(ctx, cancelTab)
	return tabCtx, func() {
		stop()
		cancelTab()
	}, nil
}

// Fetch loads pageURL in a fresh tab and returns the rendered document.
func (s *Session) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	tabCtx, cancel, err := s.newTab(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	runCtx, cancelRun := context.WithTimeout(tabCtx, s.cfg.WaitTimeout)
	defer cancelRun()

	var html string
	if err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

// OpenPage loads pageURL in a fresh tab and waits until readySelector is
// visible. The caller must Close the page.
func (s *Session) OpenPage(ctx context.Context, pageURL, readySelector string) (*Page, error) {
	tabCtx, cancel, err := s.newTab(ctx)
	if err != nil {
		return nil, err
	}

	p := &Page{ctx: tabCtx, cancel: cancel, cfg: s.cfg}
	if err := p.run(chromedp.Navigate(pageURL), chromedp.WaitVisible(readySelector, chromedp.ByQuery)); err != nil {
		cancel()
		return nil, fmt.Errorf("opening %s: %w", pageURL, err)
	}
	return p, nil
}

// Close stops Chrome. It is safe to call on a session that never started.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelBrowser != nil {
		s.cancelBrowser()
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
	}
}

// Page is an open tab.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config
}

func (p *Page) run(actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.WaitTimeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

// MarkHidden sets attr on every element matching selector that has no layout
// box, and clears it from the rest.
func (p *Page) MarkHidden(_ context.Context, selector, attr string) error {
	script, err := markHiddenScript(selector, attr)
	if err != nil {
		return err
	}
	var marked int
	if err := p.run(chromedp.Evaluate(script, &marked)); err != nil {
		return fmt.Errorf("marking hidden %s: %w", selector, err)
	}
	return nil
}

func markHiddenScript(selector, attr string) (string, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return "", err
	}
	name, err := json.Marshal(attr)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(function(sel, attr) {
	var n = 0;
	document.querySelectorAll(sel).forEach(function(el) {
		if (el.getClientRects().length === 0) {
			el.setAttribute(attr, "");
			n++;
		} else {
			el.removeAttribute(attr);
		}
	});
	return n;
})(%s, %s)`, sel, name), nil
}

// HTML returns the current document.
func (p *Page) HTML(_ context.Context) (string, error) {
	var html string
	if err := p.run(chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page: %w", err)
	}
	return html, nil
}

const textChangedFunc = `function(sel, prev) {
	var el = document.querySelector(sel);
	return el !== null && el.textContent !== prev;
}`

// Advance clicks clickSelector and polls until the text of watchSelector
// differs from what it was before the click. If the change never shows within
// the wait timeout the page is given the settle delay and Advance returns nil;
// the caller detects a page that did not move.
func (p *Page) Advance(_ context.Context, clickSelector, watchSelector string) error {
	var before string
	if err := p.run(chromedp.TextContent(watchSelector, &before, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("reading %s: %w", watchSelector, err)
	}

	if err := p.run(chromedp.Click(clickSelector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("clicking %s: %w", clickSelector, err)
	}

	var changed bool
	err := p.run(chromedp.PollFunction(textChangedFunc, &changed,
		chromedp.WithPollingArgs(watchSelector, before),
		chromedp.WithPollingTimeout(p.cfg.WaitTimeout),
	))
	if err == nil {
		return nil
	}
	if !errors.Is(err, chromedp.ErrPollingTimeout) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("waiting for %s: %w", watchSelector, err)
	}

	logger.Warn("Page did not change after click, waiting settle delay", logger.Fields{
		"selector":     watchSelector,
		"settle_delay": p.cfg.SettleDelay.String(),
	}, err)
	if err := chromedp.Run(p.ctx, chromedp.Sleep(p.cfg.SettleDelay)); err != nil {
		return fmt.Errorf("waiting for %s: %w", watchSelector, err)
	}
	return nil
}

// Close closes the tab.
func (p *Page) Close() {
	p.cancel()
}
