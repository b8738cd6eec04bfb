// Package graph provides node definitions
package graph

// NodeType is the type tag that selects a node's handler.
type NodeType string

const (
	NodeTypeTriggerManual       NodeType = "trigger_manual"
	NodeTypeTriggerSchedule     NodeType = "trigger_schedule"
	NodeTypeTriggerWebhook      NodeType = "trigger_webhook"
	NodeTypeGoogleDocs          NodeType = "action_g_docs"
	NodeTypeGoogleSheets        NodeType = "action_g_sheets"
	NodeTypeGoogleSheetsCreate  NodeType = "action_g_sheets_create"
	NodeTypeGoogleCalendarEvent NodeType = "action_g_calendar_event"
	NodeTypeGoogleFormsResponse NodeType = "action_g_forms_response"
	NodeTypeEmail               NodeType = "action_email"
	NodeTypeSlack               NodeType = "action_slack"
	NodeTypeWhatsApp            NodeType = "action_whatsapp"
	NodeTypeWhatsAppTemplate    NodeType = "action_whatsapp_template"
	NodeTypeGitHubIssue         NodeType = "action_github_issue"
	NodeTypeGitHubAction        NodeType = "action_github_action"
	NodeTypeScrape              NodeType = "action_scrape"
	NodeTypeHTTPRequest         NodeType = "action_http_request"
	NodeTypeIf                  NodeType = "logic_if"
	NodeTypeSwitch              NodeType = "logic_switch"
	NodeTypeDelay               NodeType = "logic_delay"
	NodeTypeErrorHandler        NodeType = "logic_error_handler"
	NodeTypeMathAdd             NodeType = "math_add"
	NodeTypeGemini              NodeType = "ai_gemini"
	NodeTypeTextInput           NodeType = "utility_text_input"
	NodeTypeFileUpload          NodeType = "utility_file_upload"
	NodeTypeFolder              NodeType = "utility_folder"
	NodeTypeTerminator          NodeType = "terminator"
)

// Status is the execution lifecycle state of a node.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusRunning, StatusSuccess, StatusError:
		return true
	}
	return false
}

// Settled reports whether s is a terminal status for the current run.
func (s Status) Settled() bool {
	return s == StatusSuccess || s == StatusError
}

// Position is the canvas location of a node. Display only.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData holds the mutable record rendered by the canvas.
type NodeData struct {
	Label       string                 `json:"label"`
	Description string                 `json:"description,omitempty"`
	Status      Status                 `json:"status,omitempty"`
	Config      map[string]interface{} `json:"config,omitempty"`
	Result      *string                `json:"result,omitempty"`
}

// Node represents a step on the canvas
// PRINCIPLES:
// - KISS: Plain value type, copied on every read from the Model
// - SRP: Only responsible for node data
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Validate ensures node integrity
func (n *Node) Validate() error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if n.Type == "" {
		return ErrInvalidNodeType
	}
	if n.Data.Status != "" && !n.Data.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// StatusOrIdle returns the node status, treating an unset status as idle.
func (n Node) StatusOrIdle() Status {
	if n.Data.Status == "" {
		return StatusIdle
	}
	return n.Data.Status
}

// ResultText returns the stored result or an empty string.
func (n Node) ResultText() string {
	if n.Data.Result == nil {
		return ""
	}
	return *n.Data.Result
}

// Clone returns a deep copy of the node. Config values are copied
// recursively for nested maps and slices; other values are shared.
func (n Node) Clone() Node {
	out := n
	if n.Data.Config != nil {
		out.Data.Config = cloneMap(n.Data.Config)
	}
	if n.Data.Result != nil {
		r := *n.Data.Result
		out.Data.Result = &r
	}
	return out
}

func cloneMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneMap(t)
	case []interface{}:
		s := make([]interface{}, len(t))
		for i := range t {
			s[i] = cloneValue(t[i])
		}
		return s
	default:
		return v
	}
}
