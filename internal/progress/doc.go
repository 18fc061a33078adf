// Package progress provides the snapshot primitives, non-blocking hub, and
// emitter interfaces the scheduler uses to report crawl progress. The hub
// coalesces snapshots on a background goroutine and fans the newest one out to
// pluggable sinks such as structured logs, Prometheus metrics, or the API
// server's latest-snapshot store.
package progress
