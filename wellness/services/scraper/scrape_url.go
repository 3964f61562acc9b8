package scraper

import (
	"context"
	"errors"
	"sync"
	"time"

	"wellness/wellness/sources/storage"
	"wellness/wellness/utils/logging"
	"wellness/wellness/utils/textextract"
	"wellness/wellness/utils/types"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
}

// Scraper renders pages with headless Chromium. The browser starts on first use.
type Scraper struct {
	opts types.ScrapeOptions

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewScraper(opts types.ScrapeOptions) *Scraper {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 200_000
	}
	return &Scraper{opts: opts}
}

func (s *Scraper) ensureBrowser() (playwright.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser != nil && s.browser.IsConnected() {
		return s.browser, nil
	}
	if s.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return nil, err
		}
		s.pw = pw
	}
	browser, err := s.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-gpu",
			"--no-sandbox",
			"--disable-dev-shm-usage",
		},
	})
	if err != nil {
		return nil, err
	}
	s.browser = browser
	return browser, nil
}

// Fetch renders url and returns its title, cleaned text and links.
func (s *Scraper) Fetch(ctx context.Context, url string) (storage.ScrapeObject, error) {
	defer logging.LogDuration(ctx, "scraper_fetch")()
	if err := ctx.Err(); err != nil {
		return storage.ScrapeObject{}, err
	}

	content, err := s.render(ctx, url)
	if err != nil {
		return storage.ScrapeObject{}, err
	}
	return parsePage(content, url, s.opts.MaxChars)
}

// parsePage pulls the title, text and links out of rendered HTML.
func parsePage(content, pageURL string, maxChars int) (storage.ScrapeObject, error) {
	title, text := textextract.FromHTML(content)
	page := storage.ScrapeObject{URL: pageURL, Title: title, Links: textextract.Links(content, pageURL)}
	if text == "" {
		return page, errors.New("rendered page has no text")
	}
	page.Text = textextract.Truncate(text, maxChars)
	return page, nil
}

func (s *Scraper) render(ctx context.Context, url string) (string, error) {
	browser, err := s.ensureBrowser()
	if err != nil {
		return "", err
	}
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(userAgents[time.Now().UnixNano()%int64(len(userAgents))]),
		IgnoreHttpsErrors: playwright.Bool(true),
	})
	if err != nil {
		return "", err
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return "", err
	}
	defer page.Close()

	if err := page.Route("**/*.{png,jpg,jpeg,gif,svg,woff,woff2}", func(route playwright.Route) {
		_ = route.Abort()
	}); err != nil {
		return "", err
	}

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(s.opts.Timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return "", err
	}
	return page.Content()
}

// Close stops the browser and the playwright driver.
func (s *Scraper) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			logging.AppLogger.Warn("browser close failed", zap.Error(err))
		}
		s.browser = nil
	}
	if s.pw != nil {
		_ = s.pw.Stop()
		s.pw = nil
	}
}
