package models

import "time"

// CapabilityType classifies executable or active content found in a document
type CapabilityType string

const (
	CapabilityExecutableCode CapabilityType = "executable_code"
	CapabilityShellCommand   CapabilityType = "shell_command"
	CapabilityEmbeddedHTML   CapabilityType = "embedded_html"
	CapabilityRemoteResource CapabilityType = "remote_resource"
	CapabilityTaskList       CapabilityType = "task_list"
)

// Capability describes something the document could make an agent or renderer do
type Capability struct {
	Type        CapabilityType `json:"type"`
	Language    string         `json:"language,omitempty"`
	Description string         `json:"description"`
	Location    Location       `json:"location"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	DetectedAt  time.Time      `json:"detected_at"`
}

// Transformation records a content rewrite applied by the sanitizer
type Transformation struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Occurrences int       `json:"occurrences"`
	BytesBefore int       `json:"bytes_before"`
	BytesAfter  int       `json:"bytes_after"`
	AppliedAt   time.Time `json:"applied_at"`
}

// Issue is an error or warning recorded during a scan
type Issue struct {
	Message  string         `json:"message"`
	Severity Severity       `json:"severity,omitempty"`
	Source   string         `json:"source,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}
