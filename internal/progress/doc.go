// Package progress tracks how far a run has come. Tracker owns the completed and
// succeeded counters plus the terminal bar, and Hub batches per-domain events on a
// background goroutine, fanning them out to pluggable sinks such as Prometheus
// metrics or the debug log.
package progress
