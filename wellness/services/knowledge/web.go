package knowledge

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"wellness/wellness/sources/psql/models"
	"wellness/wellness/sources/storage"
	"wellness/wellness/utils/logging"

	"go.uber.org/zap"
)

var ErrInvalidURL = errors.New("url must be absolute http or https")

// WebDocumentID namespaces shared chunks of a web source.
func WebDocumentID(sourceID string) string {
	return "web:" + sourceID
}

// AddWebSource registers a page to crawl on every sync. Registering the same
// URL twice returns the existing source.
func (s *Service) AddWebSource(ctx context.Context, rawURL, title string) (*models.WebSource, bool, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, false, ErrInvalidURL
	}
	normalized := u.String()

	existing, err := s.chunks.GetWebSourceByURL(ctx, normalized)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	src := &models.WebSource{URL: normalized, Title: strings.TrimSpace(title), Enabled: true}
	if err := s.chunks.CreateWebSource(ctx, src); err != nil {
		return nil, false, fmt.Errorf("create web source: %w", err)
	}
	return src, true, nil
}

func (s *Service) ListWebSources(ctx context.Context) ([]models.WebSource, error) {
	return s.chunks.ListWebSources(ctx, false)
}

func (s *Service) crawlSource(ctx context.Context, src models.WebSource) {
	defer logging.LogDuration(ctx, "knowledge_crawl")()

	n, err := s.indexWebSource(ctx, src)
	if err != nil {
		logging.ErrorLogger.Error("web source crawl failed", zap.String("url", src.URL), zap.Error(err))
	} else {
		logging.AppLogger.Info("web source indexed", zap.String("url", src.URL), zap.Int("chunks", n))
	}
	if merr := s.chunks.MarkWebSourceSynced(ctx, src.ID, n, err); merr != nil {
		logging.ErrorLogger.Error("mark web source synced", zap.String("url", src.URL), zap.Error(merr))
	}
}

func (s *Service) indexWebSource(ctx context.Context, src models.WebSource) (int, error) {
	page, err := storage.GetScrape(ctx, s.store, src.URL, s.ScrapeTTL)
	if err != nil {
		logging.AppLogger.Warn("scrape cache unreadable", zap.String("url", src.URL), zap.Error(err))
	}
	if page == nil {
		if s.crawler == nil {
			return 0, errors.New("no crawler configured")
		}
		fetched, err := s.crawler.Fetch(ctx, src.URL)
		if err != nil {
			return 0, err
		}
		fetched.URL = src.URL
		fetched.Timestamp = time.Now().UTC()
		page = &fetched
		logging.AppLogger.Debug("page fetched", zap.String("url", src.URL), zap.Int("links", len(page.Links)))
		if _, err := storage.PutScrape(ctx, s.store, *page); err != nil {
			logging.AppLogger.Warn("scrape cache write failed", zap.String("url", src.URL), zap.Error(err))
		}
	}
	if strings.TrimSpace(page.Text) == "" {
		return 0, errors.New("page has no text")
	}
	return s.indexText(ctx, "", WebDocumentID(src.ID), src.URL, page.Text)
}
