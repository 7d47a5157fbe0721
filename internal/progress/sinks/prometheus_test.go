package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/securitytxt-crawler/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := uuid.New()
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart},
		{
			RunID:       runID,
			TS:          now,
			Stage:       progress.StageItemDone,
			Domain:      "example.com",
			Result:      "persisted",
			StatusClass: progress.Status2xx,
			Bytes:       1024,
			Dur:         200 * time.Millisecond,
		},
		{
			RunID:  runID,
			TS:     now,
			Stage:  progress.StageItemDone,
			Domain: "down.test",
			Result: "fetch_failed",
			Note:   "connection refused",
		},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.InDelta(t, 1.0, testutil.ToFloat64(sink.runsStarted), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.runsRunning), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.items.WithLabelValues("persisted")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.items.WithLabelValues("fetch_failed")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.responses.WithLabelValues("2xx")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.responses.WithLabelValues("none")), 1e-9)
	require.InDelta(t, 1024.0, testutil.ToFloat64(sink.fetchBytes), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.fetchDuration, "securitytxt_fetch_duration_seconds"))

	done := []progress.Event{{RunID: runID, TS: now, Stage: progress.StageRunDone, Dur: 2 * time.Minute}}
	require.NoError(t, sink.Consume(context.Background(), done))
	require.InDelta(t, 0.0, testutil.ToFloat64(sink.runsRunning), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.runDuration))
	require.NoError(t, sink.Close(context.Background()))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.ErrorContains(t, err, "register progress collector")
}
