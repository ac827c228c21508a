// Package browser owns the headless Chromium session a run drives.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// Config controls the browser process and page.
type Config struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	ActionTimeout  time.Duration
	UserAgent      string
	// TextLimit caps the page text handed to extraction.
	TextLimit int
}

func DefaultConfig() Config {
	return Config{
		Headless:       true,
		ViewportWidth:  1280,
		ViewportHeight: 720,
		ActionTimeout:  60 * time.Second,
		TextLimit:      50000,
	}
}

// Session is a single Chromium tab. Calls are serialized.
type Session struct {
	mu            sync.Mutex
	cfg           Config
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewSession launches Chromium and opens a tab with the configured viewport.
func NewSession(cfg Config) (*Session, error) {
	if cfg.ViewportWidth <= 0 || cfg.ViewportHeight <= 0 {
		cfg.ViewportWidth, cfg.ViewportHeight = 1280, 720
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 60 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		cfg:           cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}
	if err := chromedp.Run(browserCtx, chromedp.EmulateViewport(int64(cfg.ViewportWidth), int64(cfg.ViewportHeight))); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return s, nil
}

// Close shuts the tab and the browser process down.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.browserCancel, s.allocCancel = nil, nil
	return nil
}

// run executes actions on the tab, bounded by the action timeout and by ctx.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browserCancel == nil {
		return fmt.Errorf("browser session is closed")
	}
	actionCtx, cancel := context.WithTimeout(s.browserCtx, s.cfg.ActionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(actionCtx, actions...)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

// WaitLoad waits until the document body is ready.
func (s *Session) WaitLoad(ctx context.Context) error {
	return s.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery))
}

// Screenshot resets the viewport and captures the full page as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx,
		chromedp.EmulateViewport(int64(s.cfg.ViewportWidth), int64(s.cfg.ViewportHeight)),
		chromedp.FullScreenshot(&buf, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

func (s *Session) Location(ctx context.Context) (string, error) {
	var url string
	err := s.run(ctx, chromedp.Location(&url))
	return url, err
}

// Title returns the document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, chromedp.Title(&title))
	return title, err
}

// HTML returns the outer HTML of the current document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)
	return html, err
}

// Text returns the readable text of the current page.
func (s *Session) Text(ctx context.Context) (string, error) {
	html, err := s.HTML(ctx)
	if err != nil {
		return "", err
	}
	url, err := s.Location(ctx)
	if err != nil {
		return "", err
	}
	return PageText(html, url, s.cfg.TextLimit)
}

// Elements snapshots the visible interactive elements and tags them so that
// their selectors stay valid until the next snapshot.
func (s *Session) Elements(ctx context.Context) ([]Element, error) {
	var elems []Element
	if err := s.run(ctx, chromedp.Evaluate(snapshotScript(maxElements), &elems)); err != nil {
		return nil, fmt.Errorf("element snapshot failed: %w", err)
	}
	return elems, nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
}

func (s *Session) Fill(ctx context.Context, selector, text string) error {
	return s.run(ctx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

// Press sends a key to the focused element. Named keys such as Enter are mapped.
func (s *Session) Press(ctx context.Context, key string) error {
	return s.run(ctx, chromedp.KeyEvent(keyCode(key)))
}

// Scroll brings selector into view, or scrolls one viewport down when it is empty.
func (s *Session) Scroll(ctx context.Context, selector string) error {
	if selector != "" {
		return s.run(ctx, chromedp.ScrollIntoView(selector, chromedp.ByQuery))
	}
	return s.run(ctx, chromedp.Evaluate("window.scrollBy(0, window.innerHeight)", nil))
}

// Select sets the value of a <select> element.
func (s *Session) Select(ctx context.Context, selector, value string) error {
	return s.run(ctx, chromedp.SetValue(selector, value, chromedp.ByQuery))
}

func keyCode(key string) string {
	switch strings.ToLower(key) {
	case "enter", "return":
		return kb.Enter
	case "escape", "esc":
		return kb.Escape
	case "tab":
		return kb.Tab
	case "backspace":
		return kb.Backspace
	case "arrowdown", "down":
		return kb.ArrowDown
	case "arrowup", "up":
		return kb.ArrowUp
	}
	return key
}
