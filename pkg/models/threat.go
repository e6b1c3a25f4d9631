package models

import (
	"encoding/json"
	"time"
)

// Threat is a single detected issue in scanned content
type Threat struct {
	Type           ThreatType     `json:"type"`
	Severity       Severity       `json:"severity"`
	SeverityScore  int            `json:"severity_score"`
	Pattern        string         `json:"pattern"`
	Location       Location       `json:"location"`
	MatchedText    MatchedText    `json:"matched_text"`
	Description    string         `json:"description"`
	Recommendation string         `json:"recommendation,omitempty"`
	Metadata       ThreatMetadata `json:"metadata"`
	Detector       string         `json:"detector,omitempty"`
	DetectedAt     time.Time      `json:"detected_at"`
}

// Span is a half-open byte range [Start, End) into the scanned content
type Span struct {
	Start  int `json:"start"`
	End    int `json:"end"`
	Length int `json:"length"`
}

// NewSpan builds a span, clamping End so that End >= Start
func NewSpan(start, end int) Span {
	if end < start {
		end = start
	}
	return Span{Start: start, End: end, Length: end - start}
}

// Location points at the matched region. Sequence threats also carry the
// spans of both steps; the outer span then covers step1.start..step2.end.
type Location struct {
	Span
	Line  int   `json:"line"`
	Step1 *Span `json:"step1,omitempty"`
	Step2 *Span `json:"step2,omitempty"`
}

// MatchedText is either the plain matched substring or, for sequence threats,
// the text of both steps. It marshals to a JSON string or {"step1","step2"}.
type MatchedText struct {
	Text  string
	Step1 string
	Step2 string
}

// IsSequence reports whether the text was produced by a two-step match
func (m MatchedText) IsSequence() bool {
	return m.Step1 != "" || m.Step2 != ""
}

// String returns a single-line rendering
func (m MatchedText) String() string {
	if m.IsSequence() {
		return m.Step1 + " ... " + m.Step2
	}
	return m.Text
}

func (m MatchedText) MarshalJSON() ([]byte, error) {
	if m.IsSequence() {
		return json.Marshal(map[string]string{"step1": m.Step1, "step2": m.Step2})
	}
	return json.Marshal(m.Text)
}

func (m *MatchedText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = MatchedText{Text: s}
		return nil
	}
	var steps struct {
		Step1 string `json:"step1"`
		Step2 string `json:"step2"`
	}
	if err := json.Unmarshal(data, &steps); err != nil {
		return err
	}
	*m = MatchedText{Step1: steps.Step1, Step2: steps.Step2}
	return nil
}

// ThreatMetadata carries classification details for a threat
type ThreatMetadata struct {
	AttackCategory string         `json:"attack_category,omitempty"`
	Confidence     float64        `json:"confidence"`
	Mitigation     string         `json:"mitigation,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// ThreatType represents the type of threat detected
type ThreatType string

const (
	ThreatPersonalityTakeover ThreatType = "ai_personality_takeover"
	ThreatDestructiveCommand  ThreatType = "destructive_command"
	ThreatToolAbuse           ThreatType = "tool_abuse"
	ThreatMultiStepAttack     ThreatType = "multi_step_attack"
	ThreatXSS                 ThreatType = "xss"
	ThreatSQLInjection        ThreatType = "sql_injection"
	ThreatCommandInjection    ThreatType = "command_injection"
	ThreatPromptInjection     ThreatType = "prompt_injection"
	ThreatFileInclusion       ThreatType = "file_inclusion"
	ThreatSSRF                ThreatType = "ssrf"
	ThreatXXE                 ThreatType = "xxe"
	ThreatPolyglotFile        ThreatType = "polyglot_file"
	ThreatHomographAttack     ThreatType = "homograph_attack"
)

// Severity represents the severity level of a threat
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityNone     Severity = "none"
)

// SeverityRank returns numeric rank for severity (higher = more severe).
// Unrecognised values rank as low.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	case SeverityNone:
		return 0
	default:
		return 1
	}
}

// ParseSeverity maps a user supplied level to a Severity
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(s) {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityNone:
		return Severity(s), true
	}
	return "", false
}
