package prebuilt

import (
	"context"

	"github.com/flowcanvas/flowcanvas/internal/core/graph"
	"github.com/flowcanvas/flowcanvas/pkg/flowcanvas"
	"github.com/flowcanvas/flowcanvas/pkg/validation"
)

// Template names.
const (
	Demo      = "demo"
	Branching = "branching"
	Routing   = "routing"
)

func init() {
	DefaultRegistry.MustRegister(NewBuildFunc(Demo,
		"Manual Start -> Gemini AI -> Create Doc, the starter canvas", buildDemo))
	DefaultRegistry.MustRegister(NewBuildFunc(Branching,
		"Webhook -> If/Else -> Slack on true, Email on false", buildBranching))
	DefaultRegistry.MustRegister(NewBuildFunc(Routing,
		"Manual Start -> Switch/Case fanning out to three integrations", buildRouting))
}

// DemoGraph returns the starter canvas.
func DemoGraph() *flowcanvas.Graph {
	g, _ := buildDemo(context.Background(), Options{})
	return g
}

func buildDemo(_ context.Context, opts Options) (*flowcanvas.Graph, error) {
	g := &flowcanvas.Graph{
		ID:   "demo",
		Name: "Starter workflow",
		Nodes: []flowcanvas.Node{
			node("1", graph.NodeTypeTriggerManual, "Manual Start", 250, 50),
			node("2", graph.NodeTypeGemini, "Gemini AI", 250, 200),
			node("3", graph.NodeTypeGoogleDocs, "Create Doc", 250, 350),
		},
		Edges: []flowcanvas.Edge{
			{ID: "e1-2", Source: "1", Target: "2"},
			{ID: "e2-3", Source: "2", Target: "3"},
		},
	}
	return finish(g, opts)
}

func buildBranching(_ context.Context, opts Options) (*flowcanvas.Graph, error) {
	cond := node("check", graph.NodeTypeIf, "Is VIP?", 250, 200)
	cond.Data.Config = map[string]interface{}{"logicMode": "random"}
	g := &flowcanvas.Graph{
		ID:   "branching",
		Name: "Branch on signup",
		Nodes: []flowcanvas.Node{
			node("hook", graph.NodeTypeTriggerWebhook, "Signup Webhook", 250, 50),
			cond,
			node("notify", graph.NodeTypeSlack, "Notify Sales", 100, 350),
			node("mail", graph.NodeTypeEmail, "Welcome Email", 400, 350),
		},
		Edges: []flowcanvas.Edge{
			{ID: "e-hook-check", Source: "hook", Target: "check"},
			{ID: "e-check-notify", Source: "check", Target: "notify"},
			{ID: "e-check-mail", Source: "check", Target: "mail", SourceHandle: graph.LabelFalse},
		},
	}
	return finish(g, opts)
}

func buildRouting(_ context.Context, opts Options) (*flowcanvas.Graph, error) {
	g := &flowcanvas.Graph{
		ID:   "routing",
		Name: "Route by priority",
		Nodes: []flowcanvas.Node{
			node("start", graph.NodeTypeTriggerManual, "Manual Start", 250, 50),
			node("route", graph.NodeTypeSwitch, "Priority", 250, 200),
			node("issue", graph.NodeTypeGitHubIssue, "Create Issue", 50, 350),
			node("wa", graph.NodeTypeWhatsApp, "Page On-call", 250, 350),
			node("sheet", graph.NodeTypeGoogleSheets, "Log to Sheet", 450, 350),
			node("end", graph.NodeTypeTerminator, "End Workflow", 250, 500),
		},
		Edges: []flowcanvas.Edge{
			{ID: "e-start-route", Source: "start", Target: "route"},
			{ID: "e-route-issue", Source: "route", Target: "issue", SourceHandle: graph.LabelCase1},
			{ID: "e-route-wa", Source: "route", Target: "wa", SourceHandle: graph.LabelCase2},
			{ID: "e-route-sheet", Source: "route", Target: "sheet", SourceHandle: graph.LabelDefault},
			{ID: "e-sheet-end", Source: "sheet", Target: "end"},
		},
	}
	return finish(g, opts)
}

func node(id string, t graph.NodeType, label string, x, y float64) flowcanvas.Node {
	return flowcanvas.Node{
		ID:       id,
		Type:     t,
		Position: flowcanvas.Position{X: x, Y: y},
		Data:     flowcanvas.NodeData{Label: label, Status: graph.StatusIdle},
	}
}

func finish(g *flowcanvas.Graph, opts Options) (*flowcanvas.Graph, error) {
	if opts.ID != "" {
		g.ID = opts.ID
	}
	if opts.Name != "" {
		g.Name = opts.Name
	}
	if err := validation.ValidateGraph(g, validation.GraphValidationOptions{CheckCycles: true, KnownTypesOnly: true}); err != nil {
		return nil, err
	}
	return g, nil
}
