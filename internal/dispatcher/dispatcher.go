// Package dispatcher fans a domain list out to a bounded number of in-flight work items.
package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/securitytxt-crawler/internal/crawler"
	"github.com/JakeFAU/securitytxt-crawler/internal/progress"
	"github.com/JakeFAU/securitytxt-crawler/internal/worker"
)

// ErrInvalidConcurrency is returned by Run when the limit is not positive.
var ErrInvalidConcurrency = errors.New("concurrency must be > 0")

// Processor drives one domain to a terminal stage.
type Processor interface {
	Process(ctx context.Context, domain string) worker.Outcome
}

// Tracker receives one Record per finished domain and reports the totals.
type Tracker interface {
	crawler.Recorder
	Snapshot() progress.Summary
}

// Dispatcher keeps up to concurrency work items in flight. A finished item's
// slot is handed to the next domain immediately; there is no batching.
type Dispatcher struct {
	proc        Processor
	tracker     Tracker
	concurrency int
	logger      *zap.Logger
}

// New creates a Dispatcher.
func New(proc Processor, tracker Tracker, concurrency int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		proc:        proc,
		tracker:     tracker,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run processes every domain exactly once and returns after the last one is
// recorded. Item failures never cancel siblings. If ctx ends first, no new
// domains are admitted, in-flight items are awaited, and the partial summary
// is returned with the context error.
func (d *Dispatcher) Run(ctx context.Context, domains []string) (progress.Summary, error) {
	if d.concurrency <= 0 {
		return d.tracker.Snapshot(), fmt.Errorf("dispatch: %w (got %d)", ErrInvalidConcurrency, d.concurrency)
	}
	d.logger.Info("dispatch started",
		zap.Int("domains", len(domains)),
		zap.Int("concurrency", d.concurrency),
	)

	// A plain Group: a failed item must not cancel the others.
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	admitted := 0
	for _, domain := range domains {
		if ctx.Err() != nil {
			break
		}
		admitted++
		g.Go(func() error {
			out := d.proc.Process(ctx, domain)
			d.tracker.Record(out.Succeeded())
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // work items never return errors

	summary := d.tracker.Snapshot()
	if err := ctx.Err(); err != nil {
		d.logger.Warn("dispatch interrupted",
			zap.Int("admitted", admitted),
			zap.Uint64("completed", summary.Completed),
			zap.Error(err),
		)
		return summary, fmt.Errorf("dispatch interrupted: %w", err)
	}
	d.logger.Info("dispatch finished",
		zap.Uint64("completed", summary.Completed),
		zap.Uint64("succeeded", summary.Succeeded),
	)
	return summary, nil
}
