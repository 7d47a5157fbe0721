package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/securitytxt-crawler/internal/progress"
)

// LogSink writes progress events through zap. Failed items are logged at debug
// level with their error text; run milestones are logged at info.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageItemDone:
			if evt.Note == "" {
				continue
			}
			s.logger.Debug("domain failed",
				zap.String("domain", evt.Domain),
				zap.String("result", evt.Result),
				zap.String("status_class", string(evt.StatusClass)),
				zap.Duration("dur", evt.Dur),
				zap.String("error", evt.Note),
			)
		default:
			s.logger.Info("run progress",
				zap.Stringer("run_id", evt.RunID),
				zap.String("stage", string(evt.Stage)),
				zap.Duration("dur", evt.Dur),
				zap.String("note", evt.Note),
			)
		}
	}
	return nil
}

// Close implements the Sink interface; it flushes nothing.
func (s *LogSink) Close(context.Context) error {
	return nil
}
