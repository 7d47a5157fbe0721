// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/securitytxt-crawler/internal/crawler"
)

// DefaultTimeout bounds connect plus full body read for one request.
const DefaultTimeout = 30 * time.Second

// ErrBodyTooLarge is returned when a response body exceeds Config.MaxBodySize.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// MaxBodySize caps the bytes read from a response; 0 reads the whole body.
	// A longer body fails the request with ErrBodyTooLarge instead of being cut short.
	MaxBodySize int
}

// Fetcher issues single GET requests through a shared Colly backend. Status
// codes are never treated as errors: a 404 page is returned like any other body.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponseHeaders(colly.ResponseHeadersCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(readLimit(cfg.MaxBodySize)),
	)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch retrieves http://{domain}/.well-known/security.txt. Exactly one attempt
// is made; failures are returned as *crawler.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, domain string) (crawler.FetchResult, error) {
	result, err := f.Get(ctx, crawler.SecurityTxtURL(domain))
	result.Domain = domain
	if err != nil {
		return result, &crawler.FetchError{Kind: classify(err), Domain: domain, Err: err}
	}
	return result, nil
}

// Get executes a single HTTP GET for rawURL within the configured timeout.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (crawler.FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	var (
		result   crawler.FetchResult
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(ctx)
	f.configureCollectorHooks(collector, start, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return crawler.FetchResult{URL: rawURL, Duration: time.Since(start)}, err
	}
	if f.cfg.MaxBodySize > 0 && len(result.Body) > f.cfg.MaxBodySize {
		return crawler.FetchResult{URL: rawURL, StatusCode: result.StatusCode, Duration: result.Duration},
			fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, f.cfg.MaxBodySize)
	}
	return result, nil
}

func (f *Fetcher) buildCollector(ctx context.Context) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.DetectCharset = false
	collector.MaxBodySize = readLimit(f.cfg.MaxBodySize)
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *crawler.FetchResult,
	fetchErr *error,
) {
	hooks.OnResponseHeaders(stripCharset)

	hooks.OnResponse(func(r *colly.Response) {
		*result = crawler.FetchResult{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

// stripCharset removes the charset parameter from Content-Type before the body
// is read, so colly returns the bytes as sent instead of transcoding them to UTF-8.
func stripCharset(r *colly.Response) {
	if r.Headers == nil {
		return
	}
	contentType := r.Headers.Get("Content-Type")
	if contentType == "" {
		return
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		r.Headers.Del("Content-Type")
		return
	}
	if _, ok := params["charset"]; !ok {
		return
	}
	delete(params, "charset")
	r.Headers.Set("Content-Type", mime.FormatMediaType(mediaType, params))
}

// readLimit reads one byte past the configured cap so an oversized body is
// detectable rather than silently truncated.
func readLimit(maxBody int) int {
	if maxBody <= 0 {
		return 0
	}
	return maxBody + 1
}

func classify(err error) crawler.FetchErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return crawler.FetchTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return crawler.FetchTimeout
	}
	return crawler.FetchTransport
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		// Every host is visited once per run, so pooled connections are never reused.
		DisableKeepAlives: true,
	}
}
