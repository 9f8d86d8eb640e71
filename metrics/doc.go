// Package metrics exposes the bridge's Prometheus collectors: a per-command
// call counter with outcome labels, a round-trip latency histogram, the
// pending-collection gauge, and a confirmed-release counter.
//
// A nil *Metrics is a valid no-op instance, so callers never branch on
// whether instrumentation is configured.
package metrics
