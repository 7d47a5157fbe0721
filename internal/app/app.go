// Package app wires the configured components into a single run: output
// directory, domain list, progress reporting, bounded dispatch, and summary.
package app

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/securitytxt-crawler/internal/api"
	"github.com/JakeFAU/securitytxt-crawler/internal/clock/system"
	"github.com/JakeFAU/securitytxt-crawler/internal/config"
	"github.com/JakeFAU/securitytxt-crawler/internal/crawler"
	"github.com/JakeFAU/securitytxt-crawler/internal/dispatcher"
	"github.com/JakeFAU/securitytxt-crawler/internal/domains"
	collyfetcher "github.com/JakeFAU/securitytxt-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/securitytxt-crawler/internal/hash/sha256"
	idgen "github.com/JakeFAU/securitytxt-crawler/internal/id/uuid"
	"github.com/JakeFAU/securitytxt-crawler/internal/metrics"
	"github.com/JakeFAU/securitytxt-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/securitytxt-crawler/internal/progress"
	progresssinks "github.com/JakeFAU/securitytxt-crawler/internal/progress/sinks"
	"github.com/JakeFAU/securitytxt-crawler/internal/storage/local"
	"github.com/JakeFAU/securitytxt-crawler/internal/storage/memory"
	"github.com/JakeFAU/securitytxt-crawler/internal/worker"
)

const hubCloseTimeout = 10 * time.Second

// SetupError reports a failure before any domain was dispatched.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup %s: %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Deps overrides the components a Runner builds from its Config. Zero fields
// get production defaults.
type Deps struct {
	Fetcher     crawler.Fetcher
	Downloader  domains.Downloader
	Registry    *prometheus.Registry
	Clock       crawler.Clock
	IDs         crawler.IDGenerator
	Rand        *rand.Rand
	Out         io.Writer // run summary line
	ProgressOut io.Writer // progress bar
}

// Runner executes one fetch-and-persist run.
type Runner struct {
	cfg    config.Config
	deps   Deps
	logger *zap.Logger
}

// NewRunner fills in default dependencies.
func NewRunner(cfg config.Config, deps Deps, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Fetcher == nil {
		deps.Fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent:   cfg.Crawler.UserAgent,
			Timeout:     cfg.FetchTimeout(),
			MaxBodySize: cfg.HTTP.MaxBodyBytes,
		})
	}
	if deps.Downloader == nil {
		deps.Downloader = collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Crawler.UserAgent,
			Timeout:   cfg.SourceTimeout(),
		})
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.IDs == nil {
		deps.IDs = idgen.New()
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.ProgressOut == nil {
		deps.ProgressOut = os.Stderr
	}
	return &Runner{cfg: cfg, deps: deps, logger: logger}
}

// Prefetch acquires the domain list, downloading and caching it if needed,
// and returns how many domains it holds.
func (r *Runner) Prefetch(ctx context.Context) (int, error) {
	list, err := r.source().Acquire(ctx, r.cfg.Crawler.DomainsPath)
	if err != nil {
		return 0, &SetupError{Op: "acquire domain list", Err: err}
	}
	return len(list), nil
}

// Run creates the output directory, acquires the domain list, and processes
// every domain. It returns a *SetupError if nothing could be dispatched. When
// ctx ends mid-run the partial summary is returned with the context error.
func (r *Runner) Run(ctx context.Context) (progress.Summary, error) {
	started := r.deps.Clock.Now()
	runID, err := r.deps.IDs.NewRunID()
	if err != nil {
		return progress.Summary{}, &SetupError{Op: "generate run id", Err: err}
	}
	logger := r.logger.With(zap.Stringer("run_id", runID))

	store, err := r.openStore()
	if err != nil {
		return progress.Summary{}, err
	}

	list, err := r.source().Acquire(ctx, r.cfg.Crawler.DomainsPath)
	if err != nil {
		return progress.Summary{}, &SetupError{Op: "acquire domain list", Err: err}
	}
	total := uint64(len(list))

	hub, err := r.openHub(logger)
	if err != nil {
		return progress.Summary{}, err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hubCloseTimeout)
		defer cancel()
		if cerr := hub.Close(closeCtx); cerr != nil {
			logger.Warn("progress hub close failed", zap.Error(cerr))
		}
		if dropped := hub.Dropped(); dropped > 0 {
			logger.Warn("progress events dropped", zap.Int64("dropped", dropped))
		}
	}()

	opts := []progress.TrackerOption{progress.WithLogger(logger)}
	if r.cfg.Progress.Enabled {
		opts = append(opts, progress.WithRenderer(progress.NewBar(total, r.deps.ProgressOut)))
	}
	tracker := progress.NewTracker(total, opts...)
	if err := metrics.RegisterRunGauges(r.deps.Registry, tracker.Snapshot); err != nil {
		return progress.Summary{}, &SetupError{Op: "register metrics", Err: err}
	}

	stopServer, err := r.startStatusServer(ctx, tracker, api.RunInfo{ID: runID, Started: started}, logger)
	if err != nil {
		return progress.Summary{}, err
	}
	defer stopServer()

	hub.Emit(progress.Event{RunID: runID, TS: started, Stage: progress.StageRunStart})
	logger.Info("run started",
		zap.Uint64("domains", total),
		zap.Int("concurrency", r.cfg.Crawler.Concurrency),
		zap.Bool("dry_run", r.cfg.Output.DryRun),
	)

	var fetcher crawler.Fetcher = r.deps.Fetcher
	if r.cfg.HTTP.RequestsPerSecond > 0 {
		fetcher = ratelimit.New(fetcher, ratelimit.Config{
			RPS:   r.cfg.HTTP.RequestsPerSecond,
			Burst: r.cfg.HTTP.RateBurst,
		}, logger.Named("ratelimit"))
	}
	w := worker.New(fetcher, store, hub, r.deps.Clock, worker.Config{
		RunID:  runID,
		Hasher: sha256.New(),
	}, logger.Named("worker"))
	_, runErr := dispatcher.New(w, tracker, r.cfg.Crawler.Concurrency, logger.Named("dispatcher")).Run(ctx, list)

	summary := tracker.Finish()
	elapsed := r.deps.Clock.Now().Sub(started)
	hub.Emit(progress.Event{
		RunID: runID,
		TS:    r.deps.Clock.Now(),
		Stage: progress.StageRunDone,
		Dur:   max(elapsed, 0),
		Note:  summary.String(),
	})

	if _, err := fmt.Fprintln(r.deps.Out, summary.String()); err != nil {
		logger.Warn("write summary failed", zap.Error(err))
	}
	logger.Info("run finished",
		zap.Uint64("completed", summary.Completed),
		zap.Uint64("succeeded", summary.Succeeded),
		zap.Uint64("total", summary.Total),
		zap.Float64("success_rate", summary.Rate()),
		zap.Duration("elapsed", elapsed),
	)
	return summary, runErr
}

func (r *Runner) source() *domains.Source {
	return domains.NewSource(domains.Config{
		RemoteURL: r.cfg.Source.RemoteURL,
		Rand:      r.deps.Rand,
	}, r.deps.Downloader, r.logger.Named("domains"))
}

func (r *Runner) openStore() (crawler.BlobStore, error) {
	if r.cfg.Output.DryRun {
		r.logger.Info("dry run: bodies are kept in memory")
		return memory.NewBlobStore(), nil
	}
	store, err := local.Create(local.Config{BaseDir: r.cfg.Output.Dir})
	if err != nil {
		return nil, &SetupError{Op: "create output directory", Err: err}
	}
	return store, nil
}

func (r *Runner) openHub(logger *zap.Logger) (*progress.Hub, error) {
	promSink, err := progresssinks.NewPrometheusSink(r.deps.Registry)
	if err != nil {
		return nil, &SetupError{Op: "register metrics", Err: err}
	}
	return progress.NewHub(progress.HubConfig{
		BufferSize: r.cfg.Progress.BufferSize,
		Logger:     logger.Named("progress_hub"),
	},
		progresssinks.NewLogSink(logger.Named("progress_log")),
		promSink,
	), nil
}

// startStatusServer listens on server.addr when set and returns a func that
// stops the server and waits for it to exit.
func (r *Runner) startStatusServer(
	ctx context.Context,
	tracker *progress.Tracker,
	info api.RunInfo,
	logger *zap.Logger,
) (func(), error) {
	if r.cfg.Server.Addr == "" {
		return func() {}, nil
	}
	srv, err := api.NewServer(tracker, r.deps.Registry, info, r.deps.Clock, logger.Named("api"))
	if err != nil {
		return nil, &SetupError{Op: "start status server", Err: err}
	}
	ln, err := net.Listen("tcp", r.cfg.Server.Addr)
	if err != nil {
		return nil, &SetupError{Op: "start status server", Err: err}
	}

	serveCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(serveCtx, ln); err != nil {
			logger.Warn("status server stopped", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}, nil
}
