package scrape

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/leadforge/leadforge/internal/lead"
	"github.com/leadforge/leadforge/internal/metrics"
)

// Fetcher retrieves raw page markup for a normalized URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Fetch policy knobs. Attempts beyond the first wait backoffStep × attempt.
const (
	defaultFetchTimeout = 10 * time.Second
	maxFetchAttempts    = 3
	backoffStep         = time.Second
)

// userAgents is the rotation pool; one is chosen uniformly at random per attempt.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 Edg/119.0.0.0",
}

// FetcherConfig controls the HTTP fetch behavior.
type FetcherConfig struct {
	Timeout time.Duration
}

// CollyFetcher implements Fetcher using the Colly collector with user-agent
// rotation and linear-backoff retries. HTTP 403/404 fail immediately without
// consuming retries.
type CollyFetcher struct {
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// NewCollyFetcher constructs a configured Colly-based Fetcher.
func NewCollyFetcher(cfg FetcherConfig, logger *zap.Logger) *CollyFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	// Async mode keeps Visit from reporting the HTTP error itself; the
	// classified result always arrives through the callbacks.
	base := colly.NewCollector(colly.Async(true))
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(timeout)

	return &CollyFetcher{
		baseCollector: base,
		logger:        logger,
	}
}

// Fetch retrieves a page, retrying transient failures up to three attempts
// with 1s, then 2s between them. The last observed error is surfaced when
// retries are exhausted.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		start := time.Now()
		body, err := f.fetchOnce(ctx, rawURL)
		metrics.ObserveFetch(rawURL, time.Since(start))
		if err == nil {
			return body, nil
		}
		lastErr = err
		if lead.IsNotAccessible(err) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetch canceled: %w", ctxErr)
		}
		if attempt < maxFetchAttempts {
			f.logger.Debug("fetch attempt failed, backing off",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if err := pause(ctx, backoffStep*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func (f *CollyFetcher) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	collector := f.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
	})

	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{body: append([]byte{}, r.Body...)})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		send(fetchResult{err: classifyFetchError(rawURL, status, err)})
	})

	// Visit only fails before the request launches (bad URL, filters); the
	// HTTP outcome itself lands in OnResponse/OnError during Wait. The
	// once-guarded send keeps the classified callback result authoritative.
	if err := collector.Visit(rawURL); err != nil {
		send(fetchResult{err: lead.NewScrapeError(lead.ScrapeTransient, rawURL, err)})
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return res.body, res.err
	default:
		return nil, lead.NewScrapeError(lead.ScrapeTransient, rawURL, errors.New("fetch produced no result"))
	}
}

type fetchResult struct {
	body []byte
	err  error
}

func classifyFetchError(url string, status int, err error) error {
	if status == http.StatusForbidden || status == http.StatusNotFound {
		return lead.NewScrapeError(lead.ScrapeNotAccessible, url, fmt.Errorf("http %d: %w", status, err))
	}
	return lead.NewScrapeError(lead.ScrapeTransient, url, err)
}

// pause sleeps for the given delay unless the context finishes first.
func pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("pause: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
