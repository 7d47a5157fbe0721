package progress

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Renderer draws progress for a human. *progressbar.ProgressBar satisfies it.
type Renderer interface {
	Add(n int) error
	Finish() error
}

type nopRenderer struct{}

func (nopRenderer) Add(int) error { return nil }
func (nopRenderer) Finish() error { return nil }

// Summary is the aggregate state of a run.
type Summary struct {
	Completed uint64 `json:"completed"`
	Succeeded uint64 `json:"succeeded"`
	Total     uint64 `json:"total"`
}

// Rate is the success percentage over the total, 0 when the run was empty.
func (s Summary) Rate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total) * 100
}

// String renders the one-line human summary printed at the end of a run.
func (s Summary) String() string {
	return fmt.Sprintf("succeeded %d/%d (%.2f%%)", s.Succeeded, s.Total, s.Rate())
}

// TrackerOption customises a Tracker.
type TrackerOption func(*Tracker)

// WithRenderer draws progress through r instead of discarding it.
func WithRenderer(r Renderer) TrackerOption {
	return func(t *Tracker) {
		if r != nil {
			t.renderer = r
		}
	}
}

// WithLogger attaches a logger for renderer failures.
func WithLogger(logger *zap.Logger) TrackerOption {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Tracker counts finished work items. Record is lock-free and safe for any
// number of concurrent callers; the renderer serialises its own drawing.
type Tracker struct {
	total     uint64
	completed atomic.Uint64
	succeeded atomic.Uint64
	renderer  Renderer
	logger    *zap.Logger

	finishOnce sync.Once
}

// NewTracker returns a Tracker expecting total items.
func NewTracker(total uint64, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		total:    total,
		renderer: nopRenderer{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record marks one item as finished. It must be called exactly once per item.
func (t *Tracker) Record(succeeded bool) {
	// completed is bumped first so a concurrent Snapshot never sees succeeded > completed.
	t.completed.Add(1)
	if succeeded {
		t.succeeded.Add(1)
	}
	if err := t.renderer.Add(1); err != nil {
		t.logger.Debug("progress render failed", zap.Error(err))
	}
}

// Snapshot reads the counters without blocking writers.
func (t *Tracker) Snapshot() Summary {
	succeeded := t.succeeded.Load()
	completed := t.completed.Load()
	return Summary{Completed: completed, Succeeded: succeeded, Total: t.total}
}

// Finish renders the completion state once and returns the final Summary.
func (t *Tracker) Finish() Summary {
	t.finishOnce.Do(func() {
		if err := t.renderer.Finish(); err != nil {
			t.logger.Debug("progress render finish failed", zap.Error(err))
		}
	})
	return t.Snapshot()
}
