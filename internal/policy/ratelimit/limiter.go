// Package ratelimit caps how fast security.txt requests leave the process.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/securitytxt-crawler/internal/crawler"
)

// Config holds rate limiter configuration. A non-positive RPS disables the limit.
type Config struct {
	RPS   float64
	Burst int
}

// Fetcher wraps a crawler.Fetcher with a single token bucket shared by every
// worker. Each domain is fetched once per run, so the bucket is global rather
// than keyed by host.
type Fetcher struct {
	next    crawler.Fetcher
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New wraps next. With RPS <= 0 the bucket never blocks.
func New(next crawler.Fetcher, cfg Config, logger *zap.Logger) *Fetcher {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		next:    next,
		limiter: rate.NewLimiter(r, burst),
		logger:  logger,
	}
}

// Fetch blocks until a token is available, then delegates. A context that
// ends while waiting is reported as a transport failure for the domain.
func (f *Fetcher) Fetch(ctx context.Context, domain string) (crawler.FetchResult, error) {
	start := time.Now()
	if err := f.limiter.Wait(ctx); err != nil {
		return crawler.FetchResult{Domain: domain}, &crawler.FetchError{
			Kind:   crawler.FetchTransport,
			Domain: domain,
			Err:    fmt.Errorf("rate limit wait: %w", err),
		}
	}
	if waited := time.Since(start); waited > time.Millisecond {
		f.logger.Debug("rate limited", zap.String("domain", domain), zap.Duration("waited", waited))
	}
	return f.next.Fetch(ctx, domain)
}
