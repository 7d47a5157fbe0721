// Package api hosts the optional status server that exposes a running crawl to
// operators. Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for a JSON snapshot of the run counters.
package api
