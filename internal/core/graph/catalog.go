package graph

import "sort"

// Category groups node definitions in the palette.
type Category string

const (
	CategoryTrigger     Category = "Trigger"
	CategoryGoogle      Category = "Google Workspace"
	CategoryIntegration Category = "Integrations"
	CategoryLogic       Category = "Logic & Math"
	CategoryAI          Category = "Artificial Intelligence"
	CategoryUtility     Category = "Utility"
)

// Definition describes a node type offered by the palette.
type Definition struct {
	Type        NodeType `json:"type"`
	Label       string   `json:"label"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Inputs      int      `json:"inputs"`
	Outputs     int      `json:"outputs"`
}

var definitions = []Definition{
	{NodeTypeTriggerManual, "Manual Start", CategoryTrigger, "Triggers the flow on button click", 0, 1},
	{NodeTypeTriggerSchedule, "Schedule", CategoryTrigger, "Runs at a specific time (CRON)", 0, 1},
	{NodeTypeTriggerWebhook, "Webhook", CategoryTrigger, "Start flow via HTTP request", 0, 1},

	{NodeTypeGoogleDocs, "Create Doc", CategoryGoogle, "Create a new Google Doc", 1, 1},
	{NodeTypeGoogleSheetsCreate, "Create Sheet", CategoryGoogle, "Create a new Google Sheet", 1, 1},
	{NodeTypeGoogleSheets, "Update Sheet", CategoryGoogle, "Append row to Google Sheet", 1, 1},
	{NodeTypeGoogleCalendarEvent, "Create Event", CategoryGoogle, "Schedule a Google Calendar event", 1, 1},
	{NodeTypeGoogleFormsResponse, "Get Form Responses", CategoryGoogle, "Retrieve latest responses from a Form", 1, 1},

	{NodeTypeEmail, "Send Email", CategoryIntegration, "Send an email to a recipient", 1, 1},
	{NodeTypeSlack, "Send Slack", CategoryIntegration, "Send a message to a Slack channel", 1, 1},
	{NodeTypeWhatsApp, "Send WhatsApp", CategoryIntegration, "Send a message via WhatsApp API", 1, 1},
	{NodeTypeWhatsAppTemplate, "WA Template", CategoryIntegration, "Send pre-approved template", 1, 1},
	{NodeTypeGitHubIssue, "Create Issue", CategoryIntegration, "Create a GitHub Issue", 1, 1},
	{NodeTypeGitHubAction, "Trigger Workflow", CategoryIntegration, "Dispatch a GitHub Action", 1, 1},
	{NodeTypeScrape, "Web Scraper", CategoryIntegration, "Extract content from URL", 1, 1},
	{NodeTypeHTTPRequest, "HTTP Request", CategoryIntegration, "Make a generic HTTP request", 1, 1},

	{NodeTypeGemini, "Gemini AI", CategoryAI, "Generate text or analyze data", 1, 1},

	{NodeTypeIf, "Condition (If/Else)", CategoryLogic, "Branch flow based on data", 1, 2},
	{NodeTypeSwitch, "Switch/Case", CategoryLogic, "Route flow based on value", 1, 3},
	{NodeTypeDelay, "Delay", CategoryLogic, "Pause execution for a duration", 1, 1},
	{NodeTypeErrorHandler, "Error Handler", CategoryLogic, "Catch errors from previous nodes", 1, 1},
	{NodeTypeMathAdd, "Arithmetic", CategoryLogic, "Perform math operations", 2, 1},

	{NodeTypeTextInput, "Text Input", CategoryUtility, "Provide text input to the workflow", 0, 1},
	{NodeTypeFileUpload, "File Upload", CategoryUtility, "Upload a file to the workflow", 0, 1},
	{NodeTypeFolder, "Folder", CategoryUtility, "Group nodes visually", 0, 0},
	{NodeTypeTerminator, "End Workflow", CategoryUtility, "Stop execution", 1, 0},
}

var definitionsByType = func() map[NodeType]Definition {
	m := make(map[NodeType]Definition, len(definitions))
	for _, d := range definitions {
		m[d.Type] = d
	}
	return m
}()

// Definitions returns the palette catalogue in display order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup returns the definition for t.
func Lookup(t NodeType) (Definition, bool) {
	d, ok := definitionsByType[t]
	return d, ok
}

// Known reports whether t is part of the catalogue.
func Known(t NodeType) bool {
	_, ok := definitionsByType[t]
	return ok
}

// Categories returns the catalogue grouped by category, each group in
// display order.
func Categories() map[Category][]Definition {
	out := make(map[Category][]Definition)
	for _, d := range definitions {
		out[d.Category] = append(out[d.Category], d)
	}
	return out
}

// SortedCategories returns the category names in lexical order.
func SortedCategories() []Category {
	seen := make(map[Category]struct{})
	var out []Category
	for _, d := range definitions {
		if _, ok := seen[d.Category]; ok {
			continue
		}
		seen[d.Category] = struct{}{}
		out = append(out, d.Category)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
