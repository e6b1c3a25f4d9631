package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/nocsi/drip-api-sub008/internal/pipeline"
	"github.com/nocsi/drip-api-sub008/pkg/models"
)

// ScannerVersion is stamped into report metadata
const ScannerVersion = "0.3.0"

// Options control report building
type Options struct {
	// MinSeverity hides listed threats below this level. Risk score,
	// summary and compliance always use every threat.
	MinSeverity models.Severity
	// Source names the scanned document
	Source string
}

// Report is the derived risk summary of a scan result
type Report struct {
	RiskScore       int                  `json:"risk_score"`
	Summary         string               `json:"summary"`
	Threats         []FormattedThreat    `json:"threats"`
	Statistics      Statistics           `json:"statistics"`
	Recommendations []string             `json:"recommendations"`
	Compliance      Compliance           `json:"compliance"`
	Capabilities    []*models.Capability `json:"capabilities,omitempty"`
	Metadata        Metadata             `json:"metadata"`
}

// FormattedThreat is a threat enriched with OWASP and CWE references
type FormattedThreat struct {
	Type           models.ThreatType `json:"type"`
	Severity       models.Severity   `json:"severity"`
	SeverityScore  int               `json:"severity_score"`
	Pattern        string            `json:"pattern"`
	Description    string            `json:"description"`
	Recommendation string            `json:"recommendation"`
	MatchedText    string            `json:"matched_text"`
	Line           int               `json:"line"`
	Start          int               `json:"start"`
	End            int               `json:"end"`
	Confidence     float64           `json:"confidence"`
	AttackCategory string            `json:"attack_category,omitempty"`
	OWASPCategory  string            `json:"owasp_category"`
	CWE            string            `json:"cwe"`
	AIVerdict      string            `json:"ai_verdict,omitempty"`
	AIExplanation  string            `json:"ai_explanation,omitempty"`
}

// Statistics summarise the listed threats
type Statistics struct {
	TotalThreats    int            `json:"total_threats"`
	ByType          map[string]int `json:"by_type"`
	BySeverity      map[string]int `json:"by_severity"`
	UniquePatterns  int            `json:"unique_patterns"`
	AffectedLines   int            `json:"affected_lines"`
	CapabilityCount int            `json:"capability_count"`
}

// ComplianceCheck is the outcome of one framework check
type ComplianceCheck struct {
	Compliant     bool     `json:"compliant"`
	Informational bool     `json:"informational,omitempty"`
	Issues        []string `json:"issues"`
	Requirement   string   `json:"requirement"`
}

// Compliance groups the framework checks
type Compliance struct {
	PCIDSS     ComplianceCheck `json:"pci_dss"`
	HIPAA      ComplianceCheck `json:"hipaa"`
	GDPR       ComplianceCheck `json:"gdpr"`
	OWASPTop10 ComplianceCheck `json:"owasp_top_10"`
}

// Metadata describes the report itself
type Metadata struct {
	ScanDate         time.Time       `json:"scan_date"`
	ScannerVersion   string          `json:"scanner_version"`
	TotalThreats     int             `json:"total_threats"`
	Mode             models.Mode     `json:"mode"`
	Source           string          `json:"source,omitempty"`
	Safe             bool            `json:"safe"`
	ThreatLevel      models.Severity `json:"threat_level"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
}

var severityPenalty = map[models.Severity]int{
	models.SeverityCritical: 30,
	models.SeverityHigh:     20,
	models.SeverityMedium:   10,
	models.SeverityLow:      5,
}

var typePenalty = map[models.ThreatType]int{
	models.ThreatCommandInjection: 10,
	models.ThreatSQLInjection:     8,
	models.ThreatXSS:              8,
	models.ThreatPromptInjection:  5,
}

var owaspCategories = map[models.ThreatType]string{
	models.ThreatXSS:                 "A03:2021 - Injection",
	models.ThreatSQLInjection:        "A03:2021 - Injection",
	models.ThreatCommandInjection:    "A03:2021 - Injection",
	models.ThreatPromptInjection:     "A03:2021 - Injection",
	models.ThreatFileInclusion:       "A01:2021 - Broken Access Control",
	models.ThreatSSRF:                "A10:2021 - Server-Side Request Forgery",
	models.ThreatXXE:                 "A05:2021 - Security Misconfiguration",
	models.ThreatPolyglotFile:        "A04:2021 - Insecure Design",
	models.ThreatHomographAttack:     "A07:2021 - Identification and Authentication Failures",
	models.ThreatPersonalityTakeover: "A03:2021 - Injection",
	models.ThreatDestructiveCommand:  "A03:2021 - Injection",
	models.ThreatToolAbuse:           "A01:2021 - Broken Access Control",
	models.ThreatMultiStepAttack:     "A04:2021 - Insecure Design",
}

var cweIDs = map[models.ThreatType]string{
	models.ThreatXSS:                 "CWE-79",
	models.ThreatSQLInjection:        "CWE-89",
	models.ThreatCommandInjection:    "CWE-78",
	models.ThreatPromptInjection:     "CWE-1427",
	models.ThreatFileInclusion:       "CWE-98",
	models.ThreatSSRF:                "CWE-918",
	models.ThreatXXE:                 "CWE-611",
	models.ThreatPolyglotFile:        "CWE-434",
	models.ThreatHomographAttack:     "CWE-1007",
	models.ThreatPersonalityTakeover: "CWE-1427",
	models.ThreatDestructiveCommand:  "CWE-78",
	models.ThreatToolAbuse:           "CWE-749",
	models.ThreatMultiStepAttack:     "CWE-1427",
}

var recommendations = map[models.ThreatType]string{
	models.ThreatXSS:                 "Strip or escape raw HTML and script URLs before rendering markdown",
	models.ThreatSQLInjection:        "Never interpolate document text into SQL; use parameterized queries",
	models.ThreatCommandInjection:    "Do not pass document text to a shell; validate and quote arguments",
	models.ThreatPromptInjection:     "Treat document text as data and keep it out of the instruction channel",
	models.ThreatFileInclusion:       "Resolve referenced paths against an allowlist and reject traversal",
	models.ThreatSSRF:                "Block requests to internal and metadata addresses from fetched links",
	models.ThreatXXE:                 "Disable external entity resolution in XML parsers",
	models.ThreatPolyglotFile:        "Reject embedded binaries and decode data URIs only for allowed media types",
	models.ThreatHomographAttack:     "Normalize text with NFKC and flag mixed-script identifiers",
	models.ThreatPersonalityTakeover: "Do not feed this document to an agent without isolating its instructions",
	models.ThreatDestructiveCommand:  "Require human confirmation before an agent runs destructive commands",
	models.ThreatToolAbuse:           "Restrict agent tool permissions and block exfiltration targets",
	models.ThreatMultiStepAttack:     "Review staged instructions as a whole; require approval for each step",
}

// OWASPCategory returns the OWASP Top 10 2021 category for a threat type
func OWASPCategory(t models.ThreatType) string {
	if c, ok := owaspCategories[t]; ok {
		return c
	}
	return "Uncategorized"
}

// CWE returns the CWE identifier for a threat type
func CWE(t models.ThreatType) string {
	if c, ok := cweIDs[t]; ok {
		return c
	}
	return "N/A"
}

// RiskScore returns 100 minus severity and type-diversity penalties,
// floored at 0
func RiskScore(threats []*models.Threat) int {
	score := 100
	seen := make(map[models.ThreatType]bool)
	for _, t := range threats {
		score -= severityPenalty[t.Severity]
		if !seen[t.Type] {
			seen[t.Type] = true
			if p, ok := typePenalty[t.Type]; ok {
				score -= p
			} else {
				score -= 2
			}
		}
	}
	if score < 0 {
		return 0
	}
	return score
}

// Summary returns the headline verdict for a set of threats
func Summary(threats []*models.Threat) string {
	var critical, high int
	for _, t := range threats {
		switch t.Severity {
		case models.SeverityCritical:
			critical++
		case models.SeverityHigh:
			high++
		}
	}
	switch {
	case critical > 0:
		return plural("CRITICAL: %d critical threat%s found, immediate attention required", critical)
	case high > 0:
		return plural("HIGH RISK: %d high severity threat%s found", high)
	case len(threats) > 0:
		return plural("MODERATE RISK: %d threat%s found", len(threats))
	}
	return "SECURE: No security threats detected"
}

// Build derives a report from a result. It never fails.
func Build(result *models.Result, opts Options) *Report {
	if result == nil {
		result = &models.Result{Safe: true, ThreatLevel: models.SeverityNone}
	}

	rep := &Report{
		RiskScore:    RiskScore(result.Threats),
		Summary:      Summary(result.Threats),
		Threats:      formatThreats(result.Threats, opts.MinSeverity),
		Compliance:   checkCompliance(result.Threats),
		Capabilities: result.Capabilities,
		Metadata: Metadata{
			ScanDate:         time.Now(),
			ScannerVersion:   ScannerVersion,
			TotalThreats:     len(result.Threats),
			Mode:             result.Mode,
			Source:           opts.Source,
			Safe:             result.Safe,
			ThreatLevel:      result.ThreatLevel,
			ProcessingTimeMs: result.Metrics.ProcessingTimeMs,
		},
	}
	if !result.Metadata.CompletedAt.IsZero() {
		rep.Metadata.ScanDate = result.Metadata.CompletedAt
	}
	if rep.Metadata.ThreatLevel == "" {
		rep.Metadata.ThreatLevel = models.SeverityNone
	}
	rep.Statistics = statistics(rep.Threats, len(result.Capabilities))
	rep.Recommendations = recommend(rep.Threats)
	return rep
}

func formatThreats(threats []*models.Threat, minSeverity models.Severity) []FormattedThreat {
	floor := 0
	if minSeverity != "" {
		floor = models.SeverityRank(minSeverity)
	}

	out := make([]FormattedThreat, 0, len(threats))
	for _, t := range threats {
		if t == nil || models.SeverityRank(t.Severity) < floor {
			continue
		}
		ft := FormattedThreat{
			Type:           t.Type,
			Severity:       t.Severity,
			SeverityScore:  t.SeverityScore,
			Pattern:        t.Pattern,
			Description:    t.Description,
			Recommendation: t.Recommendation,
			MatchedText:    t.MatchedText.String(),
			Line:           t.Location.Line,
			Start:          t.Location.Start,
			End:            t.Location.End,
			Confidence:     t.Metadata.Confidence,
			AttackCategory: t.Metadata.AttackCategory,
			OWASPCategory:  OWASPCategory(t.Type),
			CWE:            CWE(t.Type),
		}
		ft.AIVerdict, ft.AIExplanation = verdict(t.Metadata.Extra["ai_verdict"])
		out = append(out, ft)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SeverityScore > out[j].SeverityScore
	})
	return out
}

// verdict reads a triage verdict from a live result or one decoded from JSON
func verdict(v any) (string, string) {
	switch r := v.(type) {
	case pipeline.Review:
		return r.Verdict, r.Explanation
	case *pipeline.Review:
		return r.Verdict, r.Explanation
	case map[string]any:
		verdict, _ := r["verdict"].(string)
		explanation, _ := r["explanation"].(string)
		return verdict, explanation
	}
	return "", ""
}

func statistics(threats []FormattedThreat, capabilities int) Statistics {
	st := Statistics{
		TotalThreats:    len(threats),
		ByType:          make(map[string]int),
		BySeverity:      make(map[string]int),
		CapabilityCount: capabilities,
	}
	patterns := make(map[string]bool)
	lines := make(map[int]bool)
	for _, t := range threats {
		st.ByType[string(t.Type)]++
		st.BySeverity[string(t.Severity)]++
		if t.Pattern != "" {
			patterns[t.Pattern] = true
		}
		if t.Line > 0 {
			lines[t.Line] = true
		}
	}
	st.UniquePatterns = len(patterns)
	st.AffectedLines = len(lines)
	return st
}

func recommend(threats []FormattedThreat) []string {
	seen := make(map[models.ThreatType]bool)
	out := []string{}
	for _, t := range threats {
		if seen[t.Type] {
			continue
		}
		seen[t.Type] = true
		if r, ok := recommendations[t.Type]; ok {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		out = append(out, "No action required; keep scanning documents before they reach agents")
	}
	return out
}

func checkCompliance(threats []*models.Threat) Compliance {
	var pci, hipaa, gdpr, owasp []string
	addOnce := func(list []string, v string) []string {
		for _, s := range list {
			if s == v {
				return list
			}
		}
		return append(list, v)
	}

	for _, t := range threats {
		if t.Severity == models.SeverityCritical || t.Severity == models.SeverityHigh {
			pci = addOnce(pci, string(t.Type))
		}
		switch t.Type {
		case models.ThreatXSS, models.ThreatSQLInjection, models.ThreatFileInclusion:
			hipaa = addOnce(hipaa, string(t.Type))
		}
		if t.SeverityScore >= 7 {
			gdpr = addOnce(gdpr, string(t.Type))
		}
		if c, ok := owaspCategories[t.Type]; ok {
			owasp = addOnce(owasp, c)
		}
	}

	return Compliance{
		PCIDSS: ComplianceCheck{
			Compliant:   len(pci) == 0,
			Issues:      nonNil(pci),
			Requirement: "PCI-DSS 6.5: no critical or high severity vulnerabilities",
		},
		HIPAA: ComplianceCheck{
			Compliant:   len(hipaa) == 0,
			Issues:      nonNil(hipaa),
			Requirement: "HIPAA 164.312: no injection or file inclusion exposure of protected data",
		},
		GDPR: ComplianceCheck{
			Compliant:   len(gdpr) == 0,
			Issues:      nonNil(gdpr),
			Requirement: "GDPR Art. 32: no threats with severity score 7 or higher",
		},
		// Informational: lists categories, never fails
		OWASPTop10: ComplianceCheck{
			Compliant:     true,
			Informational: true,
			Issues:        nonNil(owasp),
			Requirement:   fmt.Sprintf("OWASP Top 10 2021 categories covered: %d", len(owasp)),
		},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
