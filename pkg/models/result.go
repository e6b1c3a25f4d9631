package models

import "time"

// Metadata describes the scanned content and the scan itself
type Metadata struct {
	ContentLength       int       `json:"content_length"`
	ProcessingStartedAt time.Time `json:"processing_started_at"`
	CompletedAt         time.Time `json:"completed_at,omitempty"`
	PipelineMode        Mode      `json:"pipeline_mode"`
	ChunkNumber         int       `json:"chunk_number"`
	ContentModified     bool      `json:"content_modified"`
}

// Metrics are counters accumulated while a scan runs
type Metrics struct {
	ProcessingTimeMs      int64 `json:"processing_time_ms"`
	TotalProcessingTimeMs int64 `json:"total_processing_time_ms"`
	BytesProcessed        int64 `json:"bytes_processed"`
	MiddlewareCount       int   `json:"middleware_count"`
}

// Result is the immutable outcome of one scan
type Result struct {
	Safe            bool              `json:"safe"`
	ThreatLevel     Severity          `json:"threat_level"`
	Mode            Mode              `json:"mode"`
	Content         string            `json:"content"`
	OriginalContent string            `json:"original_content,omitempty"`
	Threats         []*Threat         `json:"threats"`
	Capabilities    []*Capability     `json:"capabilities"`
	Transformations []*Transformation `json:"transformations"`
	Errors          []Issue           `json:"errors"`
	Warnings        []Issue           `json:"warnings"`
	Metadata        Metadata          `json:"metadata"`
	Metrics         Metrics           `json:"metrics"`
}

// CountBySeverity returns how many threats carry the given severity
func (r *Result) CountBySeverity(s Severity) int {
	n := 0
	for _, t := range r.Threats {
		if t.Severity == s {
			n++
		}
	}
	return n
}

// HasType reports whether any threat has the given type
func (r *Result) HasType(tt ThreatType) bool {
	for _, t := range r.Threats {
		if t.Type == tt {
			return true
		}
	}
	return false
}

// ThreatTypes returns distinct threat types in order of first appearance
func (r *Result) ThreatTypes() []ThreatType {
	seen := make(map[ThreatType]bool)
	var types []ThreatType
	for _, t := range r.Threats {
		if !seen[t.Type] {
			seen[t.Type] = true
			types = append(types, t.Type)
		}
	}
	return types
}

// SanitizeView is the serialized shape of a sanitize-mode result
type SanitizeView struct {
	Safe                   bool         `json:"safe"`
	ThreatLevel            Severity     `json:"threat_level"`
	ThreatCount            int          `json:"threat_count"`
	ThreatTypes            []ThreatType `json:"threat_types"`
	Content                string       `json:"content"`
	TransformationsApplied int          `json:"transformations_applied"`
}

// DetectView is the serialized shape of a detect-mode result
type DetectView struct {
	Safe             bool      `json:"safe"`
	ThreatLevel      Severity  `json:"threat_level"`
	Threats          []*Threat `json:"threats"`
	Errors           []Issue   `json:"errors"`
	Warnings         []Issue   `json:"warnings"`
	ContentUnchanged bool      `json:"content_unchanged"`
}

// View returns the mode-specific serialization of the result. Analyze mode
// returns the full result.
func (r *Result) View() any {
	switch r.Mode {
	case ModeSanitize:
		return &SanitizeView{
			Safe:                   r.Safe,
			ThreatLevel:            r.ThreatLevel,
			ThreatCount:            len(r.Threats),
			ThreatTypes:            r.ThreatTypes(),
			Content:                r.Content,
			TransformationsApplied: len(r.Transformations),
		}
	case ModeDetect:
		return &DetectView{
			Safe:             r.Safe,
			ThreatLevel:      r.ThreatLevel,
			Threats:          r.Threats,
			Errors:           r.Errors,
			Warnings:         r.Warnings,
			ContentUnchanged: !r.Metadata.ContentModified,
		}
	default:
		return r
	}
}
