package scrape

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leadforge/leadforge/internal/lead"
	"github.com/leadforge/leadforge/internal/metrics"
	"github.com/leadforge/leadforge/internal/scrape/ratelimit"
)

// Batch policy: groups of 5 URLs scraped concurrently, with a 2s pause between
// groups to stay inside rate budgets. No pause after the final group.
const (
	defaultGroupSize  = 5
	defaultGroupDelay = 2 * time.Second
)

// Pauser abstracts the inter-group delay so tests can observe it.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauser struct{}

func (timerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// ScraperConfig controls batch behavior and optional raw-markup archival.
type ScraperConfig struct {
	GroupSize   int
	GroupDelay  time.Duration
	ArchivePath string
	ContentType string
}

// Scraper drives single-URL and batched scraping, producing ScrapingResult
// and ScrapingJob records. It never returns fetch failures to the caller;
// they are represented in the result's Success/Error fields.
type Scraper struct {
	fetcher   Fetcher
	extractor *Extractor
	limiter   *ratelimit.Limiter
	audit     lead.AuditLog
	archive   lead.BlobStore
	clock     lead.Clock
	ids       lead.IDGenerator
	pauser    Pauser
	cfg       ScraperConfig
	logger    *zap.Logger
}

// NewScraper constructs a Scraper. archive may be nil to disable raw-markup
// archival.
func NewScraper(
	fetcher Fetcher,
	extractor *Extractor,
	limiter *ratelimit.Limiter,
	audit lead.AuditLog,
	archive lead.BlobStore,
	clock lead.Clock,
	ids lead.IDGenerator,
	cfg ScraperConfig,
	logger *zap.Logger,
) *Scraper {
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = defaultGroupSize
	}
	if cfg.GroupDelay <= 0 {
		cfg.GroupDelay = defaultGroupDelay
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	if cfg.ArchivePath == "" {
		cfg.ArchivePath = "pages"
	}
	return &Scraper{
		fetcher:   fetcher,
		extractor: extractor,
		limiter:   limiter,
		audit:     audit,
		archive:   archive,
		clock:     clock,
		ids:       ids,
		pauser:    timerPauser{},
		cfg:       cfg,
		logger:    logger,
	}
}

// SetPauser overrides the inter-group pause implementation (tests).
func (s *Scraper) SetPauser(p Pauser) {
	if p != nil {
		s.pauser = p
	}
}

// ScrapeURL normalizes, rate-limits, fetches, and extracts one URL. Failures
// are folded into the result; ProcessingMs and an audit entry are always
// recorded.
func (s *Scraper) ScrapeURL(ctx context.Context, rawURL, industry string) lead.ScrapingResult {
	start := time.Now()
	normalized := Normalize(rawURL)
	result := lead.ScrapingResult{
		URL:       normalized,
		Timestamp: s.clock.Now(),
	}

	err := s.scrapeInto(ctx, &result, normalized, industry)
	result.ProcessingMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		s.logger.Warn("scrape failed",
			zap.String("url", normalized),
			zap.Int64("processing_ms", result.ProcessingMs),
			zap.Error(err),
		)
	} else {
		result.Success = true
		s.logger.Debug("scrape succeeded",
			zap.String("url", normalized),
			zap.Int64("processing_ms", result.ProcessingMs),
		)
	}

	metrics.ObserveScrape(normalized, result.Success)
	s.audit.RecordScrape(ctx, lead.AuditEntry{
		URL:          normalized,
		Success:      result.Success,
		ProcessingMs: result.ProcessingMs,
		Error:        result.Error,
		At:           s.clock.Now(),
	})
	return result
}

func (s *Scraper) scrapeInto(ctx context.Context, result *lead.ScrapingResult, url, industry string) error {
	if err := s.limiter.Wait(ctx, Hostname(url)); err != nil {
		return err
	}
	body, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return err
	}
	s.archiveMarkup(ctx, url, body)

	extracted, err := s.extractor.Extract(body, industry)
	if err != nil {
		return err
	}
	result.Content = extracted.Content
	result.Metadata = extracted.Metadata
	result.Structured = extracted.Structured
	return nil
}

func (s *Scraper) archiveMarkup(ctx context.Context, url string, body []byte) {
	if s.archive == nil {
		return
	}
	path := fmt.Sprintf("%s/%s/%d.html", s.cfg.ArchivePath, Hostname(url), s.clock.Now().UnixNano())
	if _, err := s.archive.PutObject(ctx, path, s.cfg.ContentType, body); err != nil {
		s.logger.Warn("archive raw markup failed", zap.String("url", url), zap.Error(err))
	}
}

// ScrapeBatch partitions urls into fixed-size groups, scraping each group
// concurrently with a pause between groups (not after the last). Per-URL
// failures, including panics in the scrape path, become failed results
// rather than aborting the batch. Result order matches input order.
func (s *Scraper) ScrapeBatch(ctx context.Context, urls []string, industry string) lead.ScrapingJob {
	job := lead.ScrapingJob{
		URLs:      urls,
		Industry:  industry,
		Status:    lead.JobPending,
		Results:   make([]lead.ScrapingResult, len(urls)),
		CreatedAt: s.clock.Now(),
	}
	id, err := s.ids.NewID()
	if err != nil {
		job.Status = lead.JobFailed
		s.logger.Error("batch job id generation failed", zap.Error(err))
		return job
	}
	job.ID = id
	job.Status = lead.JobRunning

	for groupStart := 0; groupStart < len(urls); groupStart += s.cfg.GroupSize {
		groupEnd := groupStart + s.cfg.GroupSize
		if groupEnd > len(urls) {
			groupEnd = len(urls)
		}

		var wg sync.WaitGroup
		for i := groupStart; i < groupEnd; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				job.Results[idx] = s.scrapeGuarded(ctx, urls[idx], industry)
			}(i)
		}
		wg.Wait()

		if groupEnd < len(urls) {
			s.pauser.Pause(ctx, s.cfg.GroupDelay)
		}
	}

	job.Status = lead.JobCompleted
	completed := s.clock.Now()
	job.CompletedAt = &completed
	return job
}

// scrapeGuarded converts an unexpected panic into a failed result so one URL
// cannot take down its batch group.
func (s *Scraper) scrapeGuarded(ctx context.Context, url, industry string) (result lead.ScrapingResult) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("scrape panicked", zap.String("url", url), zap.Any("panic", rec))
			result = lead.ScrapingResult{
				URL:       Normalize(url),
				Success:   false,
				Error:     fmt.Sprintf("unexpected failure: %v", rec),
				Timestamp: s.clock.Now(),
			}
		}
	}()
	return s.ScrapeURL(ctx, url, industry)
}
