// Package eventlog provides the append-only execution log shared by the
// engine and the editor.
package eventlog

import "time"

// Severity classifies a log entry.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// Entries written by the engine itself rather than by a node carry these.
const (
	SystemNodeID = "system"
	SystemLabel  = "System"
)

// Entry is an immutable log record. It is only created by Log.Append.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"nodeId"`
	NodeLabel string    `json:"nodeLabel"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"type"`
}

// IsSystem reports whether the entry was written by the engine.
func (e Entry) IsSystem() bool { return e.NodeID == SystemNodeID }

// Draft is the caller-supplied part of an entry.
type Draft struct {
	NodeID    string
	NodeLabel string
	Message   string
	Severity  Severity
}

// System returns a draft attributed to the engine.
func System(message string, severity Severity) Draft {
	return Draft{NodeID: SystemNodeID, NodeLabel: SystemLabel, Message: message, Severity: severity}
}
