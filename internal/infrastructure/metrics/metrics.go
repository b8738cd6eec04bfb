package metrics

import (
	"expvar"
	"sort"
	"time"
)

// Node metrics keyed by node type or status.
var (
	nodeExecutions = expvar.NewMap("flowcanvas_node_executions_total")
	nodeResults    = expvar.NewMap("flowcanvas_node_results_total")
	logEntries     = expvar.NewMap("flowcanvas_log_entries_total")
	historyOps     = expvar.NewMap("flowcanvas_history_operations_total")
	storeOps       = expvar.NewMap("flowcanvas_store_operations_total")
)

// Run metrics.
var (
	runsTotal          = new(expvar.Int)
	runsRejectedTotal  = new(expvar.Int)
	runsInProgress     = new(expvar.Int)
	cyclesDetected     = new(expvar.Int)
	lastRunDurationMS  = new(expvar.Int)
	runDurationTotalMS = new(expvar.Int)
)

func init() {
	expvar.Publish("flowcanvas_runs_total", runsTotal)
	expvar.Publish("flowcanvas_runs_rejected_total", runsRejectedTotal)
	expvar.Publish("flowcanvas_runs_in_progress", runsInProgress)
	expvar.Publish("flowcanvas_cycles_detected_total", cyclesDetected)
	expvar.Publish("flowcanvas_last_run_duration_ms", lastRunDurationMS)
	expvar.Publish("flowcanvas_run_duration_ms_total", runDurationTotalMS)
}

// Run helpers
func RunStarted() {
	runsTotal.Add(1)
	runsInProgress.Add(1)
}
func RunRejected()   { runsRejectedTotal.Add(1) }
func CycleDetected() { cyclesDetected.Add(1) }
func RunFinished(d time.Duration) {
	runsInProgress.Add(-1)
	ms := d.Milliseconds()
	lastRunDurationMS.Set(ms)
	runDurationTotalMS.Add(ms)
}

// Node helpers
func NodeExecuted(nodeType string) { nodeExecutions.Add(nodeType, 1) }
func NodeSettled(status string)    { nodeResults.Add(status, 1) }
func LogEntry(severity string)     { logEntries.Add(severity, 1) }
func HistoryOperation(op string)   { historyOps.Add(op, 1) }
func StoreOperation(op string)     { storeOps.Add(op, 1) }

// Snapshot returns the current value of every published flowcanvas metric,
// flattened as name or name{key}.
func Snapshot() map[string]int64 {
	out := map[string]int64{
		"flowcanvas_runs_total":            runsTotal.Value(),
		"flowcanvas_runs_rejected_total":   runsRejectedTotal.Value(),
		"flowcanvas_runs_in_progress":      runsInProgress.Value(),
		"flowcanvas_cycles_detected_total": cyclesDetected.Value(),
		"flowcanvas_last_run_duration_ms":  lastRunDurationMS.Value(),
		"flowcanvas_run_duration_ms_total": runDurationTotalMS.Value(),
	}
	for name, m := range maps() {
		m.Do(func(kv expvar.KeyValue) {
			if v, ok := kv.Value.(*expvar.Int); ok {
				out[name+"{"+kv.Key+"}"] = v.Value()
			}
		})
	}
	return out
}

// MapNames returns the published map names in lexical order.
func MapNames() []string {
	names := make([]string, 0, len(maps()))
	for n := range maps() {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func maps() map[string]*expvar.Map {
	return map[string]*expvar.Map{
		"flowcanvas_node_executions_total":    nodeExecutions,
		"flowcanvas_node_results_total":       nodeResults,
		"flowcanvas_log_entries_total":        logEntries,
		"flowcanvas_history_operations_total": historyOps,
		"flowcanvas_store_operations_total":   storeOps,
	}
}
