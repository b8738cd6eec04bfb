package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flowcanvas/flowcanvas/internal/adapters/llm"
	"github.com/flowcanvas/flowcanvas/internal/core/eventlog"
	"github.com/flowcanvas/flowcanvas/internal/core/graph"
)

// Canned outputs shared with callers that assert on them.
const (
	OutputSuccess     = "Success"
	OutputWebhook     = `{ "event": "user_signup", "id": 123 }`
	OutputDocURL      = "https://docs.google.com/document/d/mock-id"
	OutputSheetURL    = "https://docs.google.com/spreadsheets/d/mock-sheet-id"
	OutputEventURL    = "https://calendar.google.com/event?id=mock-event-id"
	OutputTemplate    = "Template: 'order_update' sent to +123456789"
	OutputIssue       = "Issue #101"
	OutputScrape      = "<html><body>Mock Scraped Data</body></html>"
	OutputCondition   = "Condition evaluated"
	DefaultPrompt     = "Analyze the previous step and suggest an improvement."
	DefaultDelayMS    = 2000
	DefaultMathResult = 42
)

// SwitchLabels is the fixed three-way partition of logic_switch.
var SwitchLabels = []graph.BranchLabel{graph.LabelDefault, graph.LabelCase1, graph.LabelCase2}

type canned struct {
	delay   time.Duration
	output  string
	message string
}

var cannedHandlers = map[graph.NodeType]canned{
	graph.NodeTypeTriggerManual:       {500 * time.Millisecond, OutputSuccess, "Manual trigger activated."},
	graph.NodeTypeTriggerWebhook:      {200 * time.Millisecond, OutputWebhook, "Webhook received payload: " + OutputWebhook},
	graph.NodeTypeGoogleDocs:          {1000 * time.Millisecond, OutputDocURL, "Document created: " + OutputDocURL},
	graph.NodeTypeGoogleSheetsCreate:  {1000 * time.Millisecond, OutputSheetURL, "Spreadsheet created: " + OutputSheetURL},
	graph.NodeTypeGoogleSheets:        {800 * time.Millisecond, OutputSuccess, "Row appended to sheet."},
	graph.NodeTypeGoogleCalendarEvent: {1000 * time.Millisecond, OutputEventURL, "Event created: 'Sync Meeting' " + OutputEventURL},
	graph.NodeTypeWhatsApp:            {800 * time.Millisecond, OutputSuccess, "Message sent to +123456789"},
	graph.NodeTypeWhatsAppTemplate:    {800 * time.Millisecond, OutputTemplate, OutputTemplate},
	graph.NodeTypeGitHubIssue:         {1000 * time.Millisecond, OutputIssue, "GitHub Issue #101 created successfully."},
	graph.NodeTypeGitHubAction:        {1200 * time.Millisecond, OutputSuccess, "GitHub Action workflow dispatched successfully."},
	graph.NodeTypeScrape:              {1500 * time.Millisecond, OutputScrape, "Scraped 45kb from URL"},
}

// NewDefaultRegistry returns a registry holding every built-in handler,
// with failure injection enabled.
func NewDefaultRegistry(deps Deps) *Registry {
	deps = deps.withDefaults()
	if deps.Text == nil {
		deps.Text = llm.NewClient(llm.Config{OfflineDelay: time.Second},
			llm.WithLogger(deps.Logger), llm.WithSleep(deps.Sleeper.Sleep))
	}
	b := builtins{deps: deps}

	r := NewRegistry(b.cannedHandler(canned{500 * time.Millisecond, OutputSuccess, "Step completed successfully."}),
		WithFailureInjection())
	for t, c := range cannedHandlers {
		r.Register(t, b.cannedHandler(c))
	}
	r.Register(graph.NodeTypeTriggerSchedule, HandlerFunc(b.schedule))
	r.Register(graph.NodeTypeGoogleFormsResponse, HandlerFunc(b.formResponses))
	r.Register(graph.NodeTypeEmail, HandlerFunc(b.email))
	r.Register(graph.NodeTypeSlack, HandlerFunc(b.slack))
	r.Register(graph.NodeTypeHTTPRequest, HandlerFunc(b.httpRequest))
	r.Register(graph.NodeTypeMathAdd, HandlerFunc(b.mathAdd))
	r.Register(graph.NodeTypeDelay, HandlerFunc(b.delay))
	r.Register(graph.NodeTypeIf, HandlerFunc(b.condition))
	r.Register(graph.NodeTypeSwitch, HandlerFunc(b.switchCase))
	r.Register(graph.NodeTypeGemini, HandlerFunc(b.gemini))
	return r
}

type builtins struct {
	deps Deps
}

func (b builtins) cannedHandler(c canned) Handler {
	return HandlerFunc(func(ctx context.Context, _ graph.Node) (Result, error) {
		if err := b.deps.Sleeper.Sleep(ctx, c.delay); err != nil {
			return Result{}, err
		}
		return success(c.output, c.message), nil
	})
}

type scheduleConfig struct {
	Cron string `json:"cron" validate:"max=100"`
}

func (b builtins) schedule(ctx context.Context, node graph.Node) (Result, error) {
	var cfg scheduleConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return Result{}, err
	}
	if cfg.Cron == "" {
		cfg.Cron = "0 9 * * *"
	}
	if err := b.deps.Sleeper.Sleep(ctx, 300*time.Millisecond); err != nil {
		return Result{}, err
	}
	return success(cfg.Cron, fmt.Sprintf("Schedule fired (%s)", cfg.Cron)), nil
}

type formsConfig struct {
	FormID string `json:"formId" validate:"max=200"`
	Limit  int    `json:"limit" validate:"min=0,max=50"`
}

type formResponse struct {
	ResponseID string `json:"responseId"`
	Email      string `json:"email"`
	Answer     string `json:"answer"`
}

func (b builtins) formResponses(ctx context.Context, node graph.Node) (Result, error) {
	var cfg formsConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return Result{}, err
	}
	if cfg.Limit == 0 {
		cfg.Limit = 3
	}
	if err := b.deps.Sleeper.Sleep(ctx, 700*time.Millisecond); err != nil {
		return Result{}, err
	}
	responses := make([]formResponse, cfg.Limit)
	for i := range responses {
		responses[i] = formResponse{
			ResponseID: fmt.Sprintf("resp-%d", i+1),
			Email:      fmt.Sprintf("user%d@example.com", i+1),
			Answer:     "Mock answer",
		}
	}
	out, err := json.Marshal(responses)
	if err != nil {
		return Result{}, err
	}
	return success(string(out), fmt.Sprintf("Retrieved %d form responses.", cfg.Limit)), nil
}

type emailConfig struct {
	To      string `json:"to" validate:"omitempty,email"`
	Subject string `json:"subject" validate:"max=200"`
}

func (b builtins) email(ctx context.Context, node graph.Node) (Result, error) {
	var cfg emailConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return Result{}, err
	}
	if cfg.To == "" {
		cfg.To = "user@example.com"
	}
	if err := b.deps.Sleeper.Sleep(ctx, 600*time.Millisecond); err != nil {
		return Result{}, err
	}
	msg := "Email sent to " + cfg.To
	return success(msg, msg), nil
}

type slackConfig struct {
	Channel string `json:"channel" validate:"omitempty,startswith=#,max=80"`
}

func (b builtins) slack(ctx context.Context, node graph.Node) (Result, error) {
	var cfg slackConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return Result{}, err
	}
	if cfg.Channel == "" {
		cfg.Channel = "#general"
	}
	if err := b.deps.Sleeper.Sleep(ctx, 600*time.Millisecond); err != nil {
		return Result{}, err
	}
	msg := "Message posted to " + cfg.Channel
	return success(msg, msg), nil
}

type httpConfig struct {
	Method string `json:"method" validate:"omitempty,oneof=GET POST PUT PATCH DELETE"`
	URL    string `json:"url" validate:"omitempty,url"`
}

type httpEcho struct {
	Status int    `json:"status"`
	Method string `json:"method"`
	URL    string `json:"url"`
	Body   string `json:"body"`
}

func (b builtins) httpRequest(ctx context.Context, node graph.Node) (Result, error) {
	var cfg httpConfig
	if raw, ok := node.Data.Config["method"].(string); ok {
		node = node.Clone()
		node.Data.Config["method"] = strings.ToUpper(raw)
	}
	if err := decodeConfig(node, &cfg); err != nil {
		return Result{}, err
	}
	if cfg.Method == "" {
		cfg.Method = "GET"
	}
	if cfg.URL == "" {
		cfg.URL = "https://api.example.com/data"
	}
	if err := b.deps.Sleeper.Sleep(ctx, 500*time.Millisecond); err != nil {
		return Result{}, err
	}
	out, err := json.Marshal(httpEcho{Status: 200, Method: cfg.Method, URL: cfg.URL, Body: "OK"})
	if err != nil {
		return Result{}, err
	}
	return success(string(out), fmt.Sprintf("HTTP %s %s -> 200", cfg.Method, cfg.URL)), nil
}

type mathConfig struct {
	A *float64 `json:"a"`
	B *float64 `json:"b"`
}

func (b builtins) mathAdd(ctx context.Context, node graph.Node) (Result, error) {
	var cfg mathConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return Result{}, err
	}
	sum := float64(DefaultMathResult)
	if cfg.A != nil || cfg.B != nil {
		sum = 0
		if cfg.A != nil {
			sum += *cfg.A
		}
		if cfg.B != nil {
			sum += *cfg.B
		}
	}
	if err := b.deps.Sleeper.Sleep(ctx, 300*time.Millisecond); err != nil {
		return Result{}, err
	}
	out := strconv.FormatFloat(sum, 'f', -1, 64)
	return success(out, "Calculated result: "+out), nil
}

type delayConfig struct {
	MS *int `json:"ms" validate:"omitempty,min=0,max=60000"`
}

func (b builtins) delay(ctx context.Context, node graph.Node) (Result, error) {
	var cfg delayConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return Result{}, err
	}
	ms := DefaultDelayMS
	if cfg.MS != nil {
		ms = *cfg.MS
	}
	seconds := strconv.FormatFloat(float64(ms)/1000, 'f', -1, 64)
	waiting := LogDraft{Message: fmt.Sprintf("Waiting %s seconds...", seconds), Severity: eventlog.SeverityWarning}
	if err := b.deps.Sleeper.Sleep(ctx, time.Duration(ms)*time.Millisecond); err != nil {
		return Result{}, err
	}
	return Result{Output: OutputSuccess, Logs: []LogDraft{waiting}}, nil
}

func (b builtins) condition(ctx context.Context, _ graph.Node) (Result, error) {
	if err := b.deps.Sleeper.Sleep(ctx, 200*time.Millisecond); err != nil {
		return Result{}, err
	}
	return success(OutputCondition, "Condition evaluated."), nil
}

func (b builtins) switchCase(ctx context.Context, _ graph.Node) (Result, error) {
	if err := b.deps.Sleeper.Sleep(ctx, 200*time.Millisecond); err != nil {
		return Result{}, err
	}
	label := SwitchLabels[b.deps.Rand.IntN(len(SwitchLabels))]
	return success(string(label), fmt.Sprintf("Switch routed to %s", label)), nil
}

type geminiConfig struct {
	Prompt string `json:"prompt" validate:"max=8000"`
}

func (b builtins) gemini(ctx context.Context, node graph.Node) (Result, error) {
	var cfg geminiConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(cfg.Prompt) == "" {
		cfg.Prompt = DefaultPrompt
	}
	text := b.deps.Text.Generate(ctx, cfg.Prompt)
	return Result{
		Output: text,
		Logs: []LogDraft{
			{Message: "Processing with Gemini...", Severity: eventlog.SeverityInfo},
			{Message: "Gemini generated content.", Severity: eventlog.SeveritySuccess},
		},
	}, nil
}
