package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/securitytxt-crawler/internal/metrics"
	"github.com/JakeFAU/securitytxt-crawler/internal/progress"
)

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, progress.NewTracker(1))
	rec := serve(server, http.MethodGet, "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_RequestIDIsEchoed(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, progress.NewTracker(1))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestServer_Progress(t *testing.T) {
	t.Parallel()

	tracker := progress.NewTracker(4)
	tracker.Record(true)
	tracker.Record(true)
	tracker.Record(false)

	runID := uuid.MustParse("01890a5d-ac96-774b-bcce-b302099a8057")
	started := time.Unix(1_000, 0).UTC()
	server, err := NewServer(tracker, prometheus.NewRegistry(), RunInfo{ID: runID, Started: started},
		&fakeClock{now: started.Add(90 * time.Second)}, zap.NewNop())
	require.NoError(t, err)

	rec := serve(server, http.MethodGet, "/v1/progress")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body progressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, progressResponse{
		RunID:          runID.String(),
		Completed:      3,
		Succeeded:      2,
		Total:          4,
		SuccessRate:    50,
		Done:           false,
		ElapsedSeconds: 90,
	}, body)
}

func TestServer_ProgressWithoutRun(t *testing.T) {
	t.Parallel()

	server, err := NewServer(nil, prometheus.NewRegistry(), RunInfo{}, nil, nil)
	require.NoError(t, err)

	rec := serve(server, http.MethodGet, "/v1/progress")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "no run in progress")
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	tracker := progress.NewTracker(3)
	require.NoError(t, metrics.RegisterRunGauges(reg, tracker.Snapshot))
	tracker.Record(true)

	server, err := NewServer(tracker, reg, RunInfo{ID: uuid.New()}, nil, zap.NewNop())
	require.NoError(t, err)

	_ = serve(server, http.MethodGet, "/healthz")
	rec := serve(server, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "securitytxt_domains_completed 1")
	require.Contains(t, body, "securitytxt_domains_total 3")
	require.Contains(t, body, `http_requests_total{code="200",method="GET"}`)
}

func TestServer_DuplicateRegistry(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewServer(nil, reg, RunInfo{}, nil, nil)
	require.NoError(t, err)
	_, err = NewServer(nil, reg, RunInfo{}, nil, nil)
	require.ErrorContains(t, err, "status server metrics")
}

func TestServer_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	server, err := NewServer(nil, prometheus.NewRegistry(), RunInfo{}, nil, zap.New(core))
	require.NoError(t, err)
	server.router.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})

	rec := serve(server, http.MethodGet, "/boom")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestServer_ServeShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, progress.NewTracker(0))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, ln)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("status server did not stop after context cancel")
	}
}

func newTestServer(t *testing.T, src ProgressSource) *Server {
	t.Helper()
	server, err := NewServer(src, prometheus.NewRegistry(), RunInfo{ID: uuid.New()}, nil, zap.NewNop())
	require.NoError(t, err)
	return server
}

func serve(server *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}
