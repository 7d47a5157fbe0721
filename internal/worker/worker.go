// Package worker runs the per-domain fetch-then-persist state machine.
package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/securitytxt-crawler/internal/crawler"
	"github.com/JakeFAU/securitytxt-crawler/internal/progress"
)

// Stage is the terminal state of one work item.
type Stage string

// Terminal stages.
const (
	StagePersisted     Stage = "persisted"
	StageFetchFailed   Stage = "fetch_failed"
	StagePersistFailed Stage = "persist_failed"
)

// Outcome records how one domain finished.
type Outcome struct {
	Domain     string
	Stage      Stage
	Err        error
	URI        string
	StatusCode int
	Bytes      int
	Duration   time.Duration
	// SHA256 is the hex digest of the stored body when a Hasher is configured.
	SHA256 string
}

// Succeeded reports whether the body reached storage.
func (o Outcome) Succeeded() bool {
	return o.Stage == StagePersisted
}

// Config controls Worker behavior.
type Config struct {
	RunID  uuid.UUID
	Hasher crawler.Hasher
}

// Worker fetches a domain's security.txt and stores the body under the domain name.
// A Worker holds no per-item state and is safe for concurrent use.
type Worker struct {
	fetcher crawler.Fetcher
	store   crawler.BlobStore
	emitter progress.Emitter
	clock   crawler.Clock
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Worker. A nil emitter discards events and a nil clock uses time.Now.
func New(
	fetcher crawler.Fetcher,
	store crawler.BlobStore,
	emitter progress.Emitter,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if clock == nil {
		clock = wallClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		fetcher: fetcher,
		store:   store,
		emitter: emitter,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
}

// Process drives one domain to a terminal stage. Errors are carried on the
// Outcome, never returned, so one domain cannot affect another.
func (w *Worker) Process(ctx context.Context, domain string) Outcome {
	out := Outcome{Domain: domain}

	res, err := w.fetcher.Fetch(ctx, domain)
	out.StatusCode = res.StatusCode
	out.Duration = res.Duration
	if err != nil {
		out.Stage = StageFetchFailed
		out.Err = err
		w.emit(out)
		return out
	}
	out.Bytes = len(res.Body)

	uri, err := w.store.PutObject(ctx, domain, res.Body)
	if err != nil {
		out.Stage = StagePersistFailed
		out.Err = err
		w.logger.Debug("persist failed", zap.String("domain", domain), zap.Error(err))
		w.emit(out)
		return out
	}
	out.Stage = StagePersisted
	out.URI = uri
	if w.cfg.Hasher != nil {
		digest, err := w.cfg.Hasher.Hash(res.Body)
		if err != nil {
			w.logger.Debug("digest failed", zap.String("domain", domain), zap.Error(err))
		} else {
			out.SHA256 = digest
		}
	}
	w.logger.Debug("persisted",
		zap.String("domain", domain),
		zap.String("uri", uri),
		zap.Int("bytes", out.Bytes),
		zap.String("sha256", out.SHA256),
	)
	w.emit(out)
	return out
}

func (w *Worker) emit(out Outcome) {
	evt := progress.Event{
		RunID:       w.cfg.RunID,
		TS:          w.clock.Now(),
		Stage:       progress.StageItemDone,
		Domain:      out.Domain,
		Result:      string(out.Stage),
		StatusClass: progress.ClassifyStatus(out.StatusCode),
		Bytes:       int64(out.Bytes),
		Dur:         out.Duration,
	}
	if out.Err != nil {
		evt.Note = out.Err.Error()
	}
	w.emitter.Emit(evt)
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }
