package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/securitytxt-crawler/internal/crawler"
	"github.com/JakeFAU/securitytxt-crawler/internal/progress"
	"github.com/JakeFAU/securitytxt-crawler/internal/storage/memory"
	"github.com/JakeFAU/securitytxt-crawler/internal/worker"
)

// TestDispatcherBoundsInFlight checks no more than the limit run at once and every domain finishes.
func TestDispatcherBoundsInFlight(t *testing.T) {
	t.Parallel()

	for _, limit := range []int{1, 3, 16} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			t.Parallel()

			proc := &gaugeProcessor{delay: 2 * time.Millisecond}
			domains := makeDomains(60)
			tracker := progress.NewTracker(uint64(len(domains)))

			summary, err := New(proc, tracker, limit, zap.NewNop()).Run(context.Background(), domains)
			require.NoError(t, err)
			require.Equal(t, uint64(len(domains)), summary.Completed)
			require.Equal(t, summary.Completed, summary.Total)
			require.LessOrEqual(t, proc.peak.Load(), int64(limit))
			require.Equal(t, int64(len(domains)), proc.calls.Load())
		})
	}
}

// TestDispatcherKeepsSlotsFull verifies the limit is actually reached rather than batching below it.
func TestDispatcherKeepsSlotsFull(t *testing.T) {
	t.Parallel()

	proc := &gaugeProcessor{delay: 20 * time.Millisecond}
	tracker := progress.NewTracker(8)
	_, err := New(proc, tracker, 4, nil).Run(context.Background(), makeDomains(8))
	require.NoError(t, err)
	require.Equal(t, int64(4), proc.peak.Load())
}

// TestDispatcherSingleSlotWithOneFailure runs two domains serially where the first fails to connect.
func TestDispatcherSingleSlotWithOneFailure(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{
		failures: map[string]error{
			"down.test": &crawler.FetchError{Kind: crawler.FetchTransport, Domain: "down.test", Err: errors.New("connection refused")},
		},
	}
	store := memory.NewBlobStore()
	w := worker.New(fetcher, store, nil, nil, worker.Config{RunID: uuid.New()}, zap.NewNop())
	tracker := progress.NewTracker(2)

	summary, err := New(w, tracker, 1, zap.NewNop()).Run(context.Background(), []string{"down.test", "up.test"})
	require.NoError(t, err)
	require.Equal(t, progress.Summary{Completed: 2, Succeeded: 1, Total: 2}, summary)
	require.Equal(t, "succeeded 1/2 (50.00%)", summary.String())
	require.Equal(t, 1, store.Len())
	_, ok := store.Get("up.test")
	require.True(t, ok)
}

func TestDispatcherEmptyList(t *testing.T) {
	t.Parallel()

	summary, err := New(&gaugeProcessor{}, progress.NewTracker(0), 5, nil).Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, progress.Summary{}, summary)
	require.InDelta(t, 0.0, summary.Rate(), 1e-9)
}

func TestDispatcherRejectsNonPositiveConcurrency(t *testing.T) {
	t.Parallel()

	proc := &gaugeProcessor{}
	_, err := New(proc, progress.NewTracker(1), 0, nil).Run(context.Background(), []string{"a.test"})
	require.ErrorIs(t, err, ErrInvalidConcurrency)
	require.Zero(t, proc.calls.Load())
}

// TestDispatcherCancellationReturnsPartialSummary stops admission once the context ends.
func TestDispatcherCancellationReturnsPartialSummary(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := &gaugeProcessor{delay: 5 * time.Millisecond, after: 3, onAfter: cancel}
	domains := makeDomains(200)
	tracker := progress.NewTracker(uint64(len(domains)))

	summary, err := New(proc, tracker, 2, zap.NewNop()).Run(ctx, domains)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, summary.Completed, summary.Total)
	require.Equal(t, uint64(proc.calls.Load()), summary.Completed)
	require.Equal(t, uint64(200), summary.Total)
}

func makeDomains(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("d%03d.test", i)
	}
	return out
}

type gaugeProcessor struct {
	delay   time.Duration
	after   int64
	onAfter func()

	inFlight atomic.Int64
	peak     atomic.Int64
	calls    atomic.Int64
	once     sync.Once
}

func (p *gaugeProcessor) Process(_ context.Context, domain string) worker.Outcome {
	n := p.inFlight.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(p.delay)
	p.inFlight.Add(-1)
	if calls := p.calls.Add(1); p.onAfter != nil && calls >= p.after {
		p.once.Do(p.onAfter)
	}
	return worker.Outcome{Domain: domain, Stage: worker.StagePersisted}
}

type scriptedFetcher struct {
	failures map[string]error
}

func (f *scriptedFetcher) Fetch(_ context.Context, domain string) (crawler.FetchResult, error) {
	if err, ok := f.failures[domain]; ok {
		return crawler.FetchResult{Domain: domain}, err
	}
	return crawler.FetchResult{Domain: domain, StatusCode: http.StatusOK, Body: []byte("Contact: x")}, nil
}
