package ai

// Verdict represents the AI's classification of a threat
type Verdict string

const (
	VerdictMalicious     Verdict = "malicious"
	VerdictSuspicious    Verdict = "suspicious"
	VerdictFalsePositive Verdict = "false_positive"
	VerdictBenign        Verdict = "benign"
	VerdictUnknown       Verdict = "unknown"
)

// ParseVerdict normalizes a verdict returned by the model
func ParseVerdict(s string) Verdict {
	switch v := Verdict(s); v {
	case VerdictMalicious, VerdictSuspicious, VerdictFalsePositive, VerdictBenign:
		return v
	}
	return VerdictUnknown
}

// TriageRequest contains data sent to the AI for one threat
type TriageRequest struct {
	ThreatID    string `json:"threat_id"`
	Pattern     string `json:"pattern"`
	Description string `json:"description"`
	ThreatType  string `json:"threat_type"`
	Severity    string `json:"severity"`
	Category    string `json:"category,omitempty"`
	LineNumber  int    `json:"line_number"`
	MatchedText string `json:"matched_text"`
	Context     string `json:"context"`
	Confidence  int    `json:"confidence"`
}

// TriageResponse contains the AI's verdict for one threat
type TriageResponse struct {
	ThreatID    string   `json:"threat_id"`
	Verdict     Verdict  `json:"verdict"`
	Confidence  int      `json:"confidence"` // 0-100
	Explanation string   `json:"explanation"`
	Indicators  []string `json:"indicators,omitempty"`
	TokensUsed  int      `json:"tokens_used"`
}
