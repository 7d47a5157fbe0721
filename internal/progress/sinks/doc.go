// Package sinks implements concrete progress consumers: Prometheus collectors and
// structured debug logging. Each sink satisfies progress.Sink.
package sinks
