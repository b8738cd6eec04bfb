package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := Snapshot()

	RunStarted()
	NodeExecuted("ai_gemini")
	NodeSettled("success")
	LogEntry("info")
	HistoryOperation("undo")
	StoreOperation("save")
	RunRejected()
	CycleDetected()
	RunFinished(1500 * time.Millisecond)

	after := Snapshot()
	delta := func(k string) int64 { return after[k] - before[k] }

	assert.Equal(t, int64(1), delta("flowcanvas_runs_total"))
	assert.Equal(t, int64(0), delta("flowcanvas_runs_in_progress"))
	assert.Equal(t, int64(1), delta("flowcanvas_runs_rejected_total"))
	assert.Equal(t, int64(1), delta("flowcanvas_cycles_detected_total"))
	assert.Equal(t, int64(1500), after["flowcanvas_last_run_duration_ms"])
	assert.Equal(t, int64(1), delta("flowcanvas_node_executions_total{ai_gemini}"))
	assert.Equal(t, int64(1), delta("flowcanvas_node_results_total{success}"))
	assert.Equal(t, int64(1), delta("flowcanvas_log_entries_total{info}"))
	assert.Equal(t, int64(1), delta("flowcanvas_history_operations_total{undo}"))
	assert.Equal(t, int64(1), delta("flowcanvas_store_operations_total{save}"))
}

func TestMapNames(t *testing.T) {
	names := MapNames()
	assert.Len(t, names, 5)
	assert.Equal(t, "flowcanvas_history_operations_total", names[0])
}
