// Package metrics exposes expvar-published counters and gauges for workflow
// runs, node executions, the event log and undo/redo history. It avoids
// external dependencies and is consumed by flowcanvas-server for its
// /debug/vars and /metrics endpoints.
package metrics
