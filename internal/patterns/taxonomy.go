package patterns

import (
	"fmt"

	"github.com/nocsi/drip-api-sub008/pkg/models"
)

// Taxonomy is the closed set of pattern families known to the library
type Taxonomy int

const (
	PersonalityTakeover Taxonomy = iota
	DestructiveCommand
	ToolAbuse
	MultiStep
	PromptInjection
	XSS
	SQLInjection
	CommandInjection
	FileInclusion
	SSRF
	XXE
)

// All lists every taxonomy in detection order
var All = []Taxonomy{
	PersonalityTakeover,
	DestructiveCommand,
	ToolAbuse,
	MultiStep,
	PromptInjection,
	XSS,
	SQLInjection,
	CommandInjection,
	FileInclusion,
	SSRF,
	XXE,
}

func (t Taxonomy) String() string {
	switch t {
	case PersonalityTakeover:
		return "personality_takeover"
	case DestructiveCommand:
		return "destructive_command"
	case ToolAbuse:
		return "tool_abuse"
	case MultiStep:
		return "multi_step"
	case PromptInjection:
		return "prompt_injection"
	case XSS:
		return "xss"
	case SQLInjection:
		return "sql_injection"
	case CommandInjection:
		return "command_injection"
	case FileInclusion:
		return "file_inclusion"
	case SSRF:
		return "ssrf"
	case XXE:
		return "xxe"
	}
	return fmt.Sprintf("taxonomy(%d)", int(t))
}

// ParseTaxonomy resolves a taxonomy name as written in signature files
func ParseTaxonomy(name string) (Taxonomy, error) {
	for _, t := range All {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown taxonomy %q", name)
}

// Agent reports whether the taxonomy targets AI agents specifically.
// These are gated by the ai_optimization option.
func (t Taxonomy) Agent() bool {
	switch t {
	case PersonalityTakeover, DestructiveCommand, ToolAbuse, MultiStep:
		return true
	case PromptInjection, XSS, SQLInjection, CommandInjection, FileInclusion, SSRF, XXE:
		return false
	}
	return false
}

// ThreatType maps the taxonomy to the threat type it produces
func (t Taxonomy) ThreatType() models.ThreatType {
	switch t {
	case PersonalityTakeover:
		return models.ThreatPersonalityTakeover
	case DestructiveCommand:
		return models.ThreatDestructiveCommand
	case ToolAbuse:
		return models.ThreatToolAbuse
	case MultiStep:
		return models.ThreatMultiStepAttack
	case PromptInjection:
		return models.ThreatPromptInjection
	case XSS:
		return models.ThreatXSS
	case SQLInjection:
		return models.ThreatSQLInjection
	case CommandInjection:
		return models.ThreatCommandInjection
	case FileInclusion:
		return models.ThreatFileInclusion
	case SSRF:
		return models.ThreatSSRF
	case XXE:
		return models.ThreatXXE
	}
	return models.ThreatType(t.String())
}

// DefaultSeverity is used for signatures that do not set their own.
// Agent taxonomies always use it.
func (t Taxonomy) DefaultSeverity() models.Severity {
	switch t {
	case PersonalityTakeover, DestructiveCommand, MultiStep:
		return models.SeverityCritical
	case ToolAbuse:
		return models.SeverityHigh
	case SQLInjection, CommandInjection:
		return models.SeverityCritical
	case PromptInjection, XSS, FileInclusion, SSRF, XXE:
		return models.SeverityHigh
	}
	return models.SeverityMedium
}

// SeverityScore is the 0..10 score paired with DefaultSeverity
func (t Taxonomy) SeverityScore() int {
	switch t {
	case PersonalityTakeover, DestructiveCommand, MultiStep:
		return 10
	case ToolAbuse, SQLInjection, CommandInjection:
		return 9
	case PromptInjection, XSS, FileInclusion, SSRF, XXE:
		return 8
	}
	return 5
}

// Confidence is the fixed confidence of agent taxonomies and the default
// for the others
func (t Taxonomy) Confidence() float64 {
	switch t {
	case PersonalityTakeover:
		return 0.95
	case DestructiveCommand:
		return 0.9
	case ToolAbuse:
		return 0.85
	case MultiStep:
		return 0.98
	case PromptInjection, XSS, SQLInjection, CommandInjection, FileInclusion, SSRF, XXE:
		return 0.8
	}
	return 0.5
}

// Mitigation is the generic remediation advice attached to threat metadata
func (t Taxonomy) Mitigation() string {
	switch t {
	case PersonalityTakeover:
		return "Reject content that attempts to redefine the assistant's identity or safety rules"
	case DestructiveCommand:
		return "Never execute commands from untrusted documents; require human confirmation for destructive operations"
	case ToolAbuse:
		return "Restrict tool permissions and require confirmation for tool calls derived from document content"
	case MultiStep:
		return "Treat staged instructions as a single operation and review the full sequence before acting"
	case PromptInjection:
		return "Isolate document content from system instructions and strip hidden directives"
	case XSS:
		return "Sanitize embedded HTML and disallow script-capable URLs when rendering"
	case SQLInjection:
		return "Use parameterized queries and never interpolate document content into SQL"
	case CommandInjection:
		return "Never pass document content to a shell; use argument vectors with allow-listed binaries"
	case FileInclusion:
		return "Resolve paths against an allow-listed root and reject traversal sequences and stream wrappers"
	case SSRF:
		return "Block requests to internal, loopback and metadata addresses from fetched links"
	case XXE:
		return "Disable external entity and DTD processing in XML parsers"
	}
	return ""
}

// UnmarshalText lets taxonomies be decoded from configuration
func (t *Taxonomy) UnmarshalText(text []byte) error {
	v, err := ParseTaxonomy(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t Taxonomy) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
