package main

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

type metricMeta struct {
	typ, help string
	isMap     bool
	label     string
}

var metricMetas = map[string]metricMeta{
	"flowcanvas_runs_total":               {typ: "counter", help: "Workflow runs started"},
	"flowcanvas_runs_rejected_total":      {typ: "counter", help: "Runs refused because one was in progress"},
	"flowcanvas_runs_in_progress":         {typ: "gauge", help: "Runs currently executing"},
	"flowcanvas_cycles_detected_total":    {typ: "counter", help: "Runs refused because the graph had a cycle"},
	"flowcanvas_last_run_duration_ms":     {typ: "gauge", help: "Duration of the most recent run in milliseconds"},
	"flowcanvas_run_duration_ms_total":    {typ: "counter", help: "Cumulative run duration in milliseconds"},
	"flowcanvas_node_executions_total":    {typ: "counter", help: "Node executions started", isMap: true, label: "type"},
	"flowcanvas_node_results_total":       {typ: "counter", help: "Node executions settled", isMap: true, label: "status"},
	"flowcanvas_log_entries_total":        {typ: "counter", help: "Execution log entries appended", isMap: true, label: "severity"},
	"flowcanvas_history_operations_total": {typ: "counter", help: "Undo history operations", isMap: true, label: "op"},
	"flowcanvas_store_operations_total":   {typ: "counter", help: "Store operations", isMap: true, label: "op"},
}

// promMetricsHandler renders expvar-published metrics in Prometheus text
// exposition format. Unknown integer vars are emitted as untyped gauges.
// nolint:funlen // Straightforward formatter; long but simple
func promMetricsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Collect variable names deterministically
	varNames := make([]string, 0, 64)
	expvar.Do(func(kv expvar.KeyValue) {
		varNames = append(varNames, kv.Key)
	})
	sort.Strings(varNames)

	for _, name := range varNames {
		v := expvar.Get(name)
		m, known := metricMetas[name]
		if !known {
			if iv, ok := v.(*expvar.Int); ok {
				_, _ = fmt.Fprintf(w, "# TYPE %s gauge\n", name)
				_, _ = fmt.Fprintf(w, "%s %s\n", name, iv.String())
			}
			continue
		}
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, sanitizeHelp(m.help))
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, m.typ)
		if !m.isMap {
			_, _ = fmt.Fprintf(w, "%s %s\n", name, v.String())
			continue
		}
		mp, ok := v.(*expvar.Map)
		if !ok {
			continue
		}
		sub := make([]expvar.KeyValue, 0, 8)
		mp.Do(func(kv expvar.KeyValue) { sub = append(sub, kv) })
		sort.Slice(sub, func(i, j int) bool { return sub[i].Key < sub[j].Key })
		for _, kv := range sub {
			_, _ = fmt.Fprintf(w, "%s{%s=\"%s\"} %s\n", name, m.label, escapeLabel(kv.Key), kv.Value.String())
		}
	}
}

func sanitizeHelp(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// escapeLabel escapes backslash, double-quote and newline.
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
