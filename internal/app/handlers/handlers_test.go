package handlers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcanvas/flowcanvas/internal/adapters/llm"
	"github.com/flowcanvas/flowcanvas/internal/core/eventlog"
	"github.com/flowcanvas/flowcanvas/internal/core/graph"
)

type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

type promptRecorder struct {
	prompts []string
	reply   string
}

func (p *promptRecorder) Generate(_ context.Context, prompt string) string {
	p.prompts = append(p.prompts, prompt)
	return p.reply
}

func newNode(t graph.NodeType, config map[string]interface{}) graph.Node {
	return graph.Node{ID: "n1", Type: t, Data: graph.NodeData{Label: string(t), Config: config}}
}

func TestDefaultRegistry_Canned(t *testing.T) {
	tests := []struct {
		nodeType graph.NodeType
		delay    time.Duration
		output   string
		log      string
	}{
		{graph.NodeTypeTriggerManual, 500 * time.Millisecond, "Success", "Manual trigger activated."},
		{graph.NodeTypeTriggerWebhook, 200 * time.Millisecond, OutputWebhook, "Webhook received payload: " + OutputWebhook},
		{graph.NodeTypeGoogleDocs, time.Second, "https://docs.google.com/document/d/mock-id", "Document created: https://docs.google.com/document/d/mock-id"},
		{graph.NodeTypeGoogleSheetsCreate, time.Second, OutputSheetURL, "Spreadsheet created: " + OutputSheetURL},
		{graph.NodeTypeGoogleSheets, 800 * time.Millisecond, "Success", "Row appended to sheet."},
		{graph.NodeTypeGoogleCalendarEvent, time.Second, OutputEventURL, "Event created: 'Sync Meeting' " + OutputEventURL},
		{graph.NodeTypeWhatsApp, 800 * time.Millisecond, "Success", "Message sent to +123456789"},
		{graph.NodeTypeWhatsAppTemplate, 800 * time.Millisecond, OutputTemplate, OutputTemplate},
		{graph.NodeTypeGitHubIssue, time.Second, "Issue #101", "GitHub Issue #101 created successfully."},
		{graph.NodeTypeGitHubAction, 1200 * time.Millisecond, "Success", "GitHub Action workflow dispatched successfully."},
		{graph.NodeTypeScrape, 1500 * time.Millisecond, OutputScrape, "Scraped 45kb from URL"},
		{graph.NodeTypeIf, 200 * time.Millisecond, "Condition evaluated", "Condition evaluated."},
		{graph.NodeTypeTerminator, 500 * time.Millisecond, "Success", "Step completed successfully."},
		{"custom_unregistered", 500 * time.Millisecond, "Success", "Step completed successfully."},
	}

	for _, tt := range tests {
		t.Run(string(tt.nodeType), func(t *testing.T) {
			sleeper := &recordingSleeper{}
			r := NewDefaultRegistry(Deps{Sleeper: sleeper, Text: &promptRecorder{}})

			res, err := r.Lookup(tt.nodeType).Execute(context.Background(), newNode(tt.nodeType, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.output, res.Output)
			require.Len(t, res.Logs, 1)
			assert.Equal(t, tt.log, res.Logs[0].Message)
			assert.Equal(t, eventlog.SeveritySuccess, res.Logs[0].Severity)
			assert.Equal(t, []time.Duration{tt.delay}, sleeper.waits)
		})
	}
}

func TestDefaultRegistry_Configured(t *testing.T) {
	tests := []struct {
		name     string
		nodeType graph.NodeType
		config   map[string]interface{}
		output   string
		log      string
		wantErr  error
	}{
		{"email default", graph.NodeTypeEmail, nil, "Email sent to user@example.com", "Email sent to user@example.com", nil},
		{"email to", graph.NodeTypeEmail, map[string]interface{}{"to": "ops@acme.io"}, "Email sent to ops@acme.io", "Email sent to ops@acme.io", nil},
		{"email invalid", graph.NodeTypeEmail, map[string]interface{}{"to": "nobody"}, "", "", ErrInvalidConfig},
		{"slack", graph.NodeTypeSlack, map[string]interface{}{"channel": "#alerts"}, "Message posted to #alerts", "Message posted to #alerts", nil},
		{"slack invalid", graph.NodeTypeSlack, map[string]interface{}{"channel": "alerts"}, "", "", ErrInvalidConfig},
		{"math default", graph.NodeTypeMathAdd, nil, "42", "Calculated result: 42", nil},
		{"math sum", graph.NodeTypeMathAdd, map[string]interface{}{"a": 2.5, "b": 4}, "6.5", "Calculated result: 6.5", nil},
		{"math bad operand", graph.NodeTypeMathAdd, map[string]interface{}{"a": "two"}, "", "", ErrInvalidConfig},
		{"schedule", graph.NodeTypeTriggerSchedule, map[string]interface{}{"cron": "*/5 * * * *"}, "*/5 * * * *", "Schedule fired (*/5 * * * *)", nil},
		{"forms", graph.NodeTypeGoogleFormsResponse, map[string]interface{}{"limit": 2}, "", "Retrieved 2 form responses.", nil},
		{"forms limit too high", graph.NodeTypeGoogleFormsResponse, map[string]interface{}{"limit": 500}, "", "", ErrInvalidConfig},
		{"http", graph.NodeTypeHTTPRequest, map[string]interface{}{"method": "post", "url": "https://example.com/hook"}, "", "HTTP POST https://example.com/hook -> 200", nil},
		{"http bad method", graph.NodeTypeHTTPRequest, map[string]interface{}{"method": "TRACE"}, "", "", ErrInvalidConfig},
		{"http bad url", graph.NodeTypeHTTPRequest, map[string]interface{}{"url": "not a url"}, "", "", ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewDefaultRegistry(Deps{Sleeper: NoDelay, Text: &promptRecorder{}})
			res, err := r.Lookup(tt.nodeType).Execute(context.Background(), newNode(tt.nodeType, tt.config))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.output != "" {
				assert.Equal(t, tt.output, res.Output)
			}
			require.NotEmpty(t, res.Logs)
			assert.Equal(t, tt.log, res.Logs[0].Message)
		})
	}
}

func TestDelayHandler(t *testing.T) {
	sleeper := &recordingSleeper{}
	r := NewDefaultRegistry(Deps{Sleeper: sleeper, Text: &promptRecorder{}})
	h := r.Lookup(graph.NodeTypeDelay)

	res, err := h.Execute(context.Background(), newNode(graph.NodeTypeDelay, nil))
	require.NoError(t, err)
	assert.Equal(t, "Success", res.Output)
	require.Len(t, res.Logs, 1)
	assert.Equal(t, "Waiting 2 seconds...", res.Logs[0].Message)
	assert.Equal(t, eventlog.SeverityWarning, res.Logs[0].Severity)

	res, err = h.Execute(context.Background(), newNode(graph.NodeTypeDelay, map[string]interface{}{"ms": 1500}))
	require.NoError(t, err)
	assert.Equal(t, "Waiting 1.5 seconds...", res.Logs[0].Message)
	assert.Equal(t, []time.Duration{2 * time.Second, 1500 * time.Millisecond}, sleeper.waits)

	_, err = h.Execute(context.Background(), newNode(graph.NodeTypeDelay, map[string]interface{}{"ms": 90000}))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSwitchHandler(t *testing.T) {
	for i, want := range []string{"default", "case1", "case2"} {
		pick := i
		r := NewDefaultRegistry(Deps{Sleeper: NoDelay, Text: &promptRecorder{}, Rand: RandFunc(func(n int) int {
			assert.Equal(t, 3, n)
			return pick
		})})
		res, err := r.Lookup(graph.NodeTypeSwitch).Execute(context.Background(), newNode(graph.NodeTypeSwitch, nil))
		require.NoError(t, err)
		assert.Equal(t, want, res.Output)
		assert.Equal(t, "Switch routed to "+want, res.Logs[0].Message)
	}
}

func TestGeminiHandler(t *testing.T) {
	gen := &promptRecorder{reply: "Try caching the doc id."}
	r := NewDefaultRegistry(Deps{Sleeper: NoDelay, Text: gen})
	h := r.Lookup(graph.NodeTypeGemini)

	res, err := h.Execute(context.Background(), newNode(graph.NodeTypeGemini, nil))
	require.NoError(t, err)
	assert.Equal(t, "Try caching the doc id.", res.Output)
	require.Len(t, res.Logs, 2)
	assert.Equal(t, "Processing with Gemini...", res.Logs[0].Message)
	assert.Equal(t, eventlog.SeverityInfo, res.Logs[0].Severity)
	assert.Equal(t, "Gemini generated content.", res.Logs[1].Message)

	_, err = h.Execute(context.Background(), newNode(graph.NodeTypeGemini, map[string]interface{}{"prompt": "Summarize"}))
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultPrompt, "Summarize"}, gen.prompts)
}

func TestGeminiHandler_OfflineDefault(t *testing.T) {
	r := NewDefaultRegistry(Deps{Sleeper: NoDelay})
	res, err := r.Lookup(graph.NodeTypeGemini).Execute(context.Background(), newNode(graph.NodeTypeGemini, nil))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Output, llm.OfflineMarker))
	assert.Contains(t, res.Output, DefaultPrompt)
}

func TestFailureInjection(t *testing.T) {
	r := NewDefaultRegistry(Deps{Sleeper: NoDelay, Text: &promptRecorder{}})

	_, err := r.Lookup(graph.NodeTypeGoogleDocs).Execute(context.Background(),
		newNode(graph.NodeTypeGoogleDocs, map[string]interface{}{"fail": true}))
	assert.ErrorIs(t, err, ErrSimulatedFailure)

	_, err = r.Lookup("custom").Execute(context.Background(),
		newNode("custom", map[string]interface{}{"fail": "quota exceeded"}))
	require.Error(t, err)
	assert.Equal(t, "quota exceeded", err.Error())

	_, err = r.Lookup(graph.NodeTypeGoogleDocs).Execute(context.Background(),
		newNode(graph.NodeTypeGoogleDocs, map[string]interface{}{"fail": false}))
	assert.NoError(t, err)
}

func TestHandlers_ContextCancelled(t *testing.T) {
	r := NewDefaultRegistry(Deps{Sleeper: RealTime, Text: &promptRecorder{}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Lookup(graph.NodeTypeScrape).Execute(ctx, newNode(graph.NodeTypeScrape, nil))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRegistry(t *testing.T) {
	fallback := HandlerFunc(func(context.Context, graph.Node) (Result, error) { return Result{Output: "fallback"}, nil })
	r := NewRegistry(fallback)

	custom := HandlerFunc(func(context.Context, graph.Node) (Result, error) { return Result{Output: "custom"}, nil })
	r.Register("b_type", custom)
	r.Register("a_type", custom)

	assert.True(t, r.Has("a_type"))
	assert.False(t, r.Has("c_type"))
	assert.Equal(t, []graph.NodeType{"a_type", "b_type"}, r.Types())

	res, err := r.Lookup("c_type").Execute(context.Background(), graph.Node{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", res.Output)

	// without failure injection the config key is ignored
	res, err = r.Lookup("a_type").Execute(context.Background(), newNode("a_type", map[string]interface{}{"fail": true}))
	require.NoError(t, err)
	assert.Equal(t, "custom", res.Output)
}

func TestDefaultRegistry_CoversCatalogue(t *testing.T) {
	r := NewDefaultRegistry(Deps{Sleeper: NoDelay, Text: &promptRecorder{}})
	var missing []graph.NodeType
	for _, d := range graph.Definitions() {
		if !r.Has(d.Type) {
			missing = append(missing, d.Type)
		}
	}
	// these fall through to the default handler
	assert.ElementsMatch(t, []graph.NodeType{
		graph.NodeTypeErrorHandler, graph.NodeTypeTextInput, graph.NodeTypeFileUpload,
		graph.NodeTypeFolder, graph.NodeTypeTerminator,
	}, missing)
}

func TestScaledSleeper(t *testing.T) {
	start := time.Now()
	require.NoError(t, ScaledSleeper{Factor: 0.001}.Sleep(context.Background(), time.Second))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	require.NoError(t, NoDelay.Sleep(context.Background(), time.Hour))
}
