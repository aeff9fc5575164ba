// Package metrics exposes Prometheus collectors for the order lifecycle,
// event fan-out, control connections and worker builds, plus an optional
// HTTP endpoint serving them.
package metrics
