package report

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders the report as a Markdown document
func RenderMarkdown(rep *Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# mdguard Security Report v%s\n\n", rep.Metadata.ScannerVersion))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	if rep.Metadata.Source != "" {
		sb.WriteString(fmt.Sprintf("| Source | `%s` |\n", mdCell(rep.Metadata.Source)))
	}
	sb.WriteString(fmt.Sprintf("| Scan Date | %s |\n", rep.Metadata.ScanDate.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("| Mode | %s |\n", rep.Metadata.Mode))
	sb.WriteString(fmt.Sprintf("| Threat Level | %s |\n", strings.ToUpper(string(rep.Metadata.ThreatLevel))))
	sb.WriteString(fmt.Sprintf("| **Risk Score** | **%d/100** |\n", rep.RiskScore))
	sb.WriteString(fmt.Sprintf("| **Threats Found** | **%d** |\n", rep.Metadata.TotalThreats))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("> %s\n\n", rep.Summary))

	if len(rep.Threats) > 0 {
		sb.WriteString("## Threats by Severity\n\n")
		sb.WriteString("| Severity | Count |\n")
		sb.WriteString("|----------|-------|\n")
		for _, sev := range severityOrder() {
			if n := rep.Statistics.BySeverity[string(sev)]; n > 0 {
				sb.WriteString(fmt.Sprintf("| %s %s | %d |\n", getSeverityEmoji(sev), strings.ToUpper(string(sev)), n))
			}
		}
		sb.WriteString("\n")

		sb.WriteString("## Detailed Findings\n\n")
		for i, t := range rep.Threats {
			sb.WriteString(fmt.Sprintf("### %d. %s %s\n\n", i+1, getSeverityEmoji(t.Severity), mdCell(t.Description)))
			sb.WriteString("| Field | Value |\n")
			sb.WriteString("|-------|-------|\n")
			sb.WriteString(fmt.Sprintf("| Type | %s |\n", t.Type))
			sb.WriteString(fmt.Sprintf("| Severity | %s (%d/10) |\n", strings.ToUpper(string(t.Severity)), t.SeverityScore))
			sb.WriteString(fmt.Sprintf("| Line | %s |\n", lineLabel(t.Line)))
			sb.WriteString(fmt.Sprintf("| Pattern | `%s` |\n", mdCell(t.Pattern)))
			sb.WriteString(fmt.Sprintf("| OWASP | %s |\n", t.OWASPCategory))
			sb.WriteString(fmt.Sprintf("| CWE | %s |\n", t.CWE))
			sb.WriteString(fmt.Sprintf("| Confidence | %.0f%% |\n", t.Confidence*100))
			if t.AIVerdict != "" {
				sb.WriteString(fmt.Sprintf("| AI Verdict | %s |\n", mdCell(t.AIVerdict)))
			}
			sb.WriteString("\n")

			if t.MatchedText != "" {
				sb.WriteString("**Matched Text:**\n\n")
				sb.WriteString(fence(t.MatchedText))
			}
			if t.Recommendation != "" {
				sb.WriteString(fmt.Sprintf("**Recommendation:** %s\n\n", t.Recommendation))
			}
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("## Compliance\n\n")
	sb.WriteString("| Framework | Status | Issues | Requirement |\n")
	sb.WriteString("|-----------|--------|--------|-------------|\n")
	for _, row := range complianceRows(rep.Compliance) {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			row.Name, complianceLabel(row.Check), mdCell(strings.Join(row.Check.Issues, ", ")), row.Check.Requirement))
	}
	sb.WriteString("\n")

	sb.WriteString("## Recommendations\n\n")
	for _, r := range rep.Recommendations {
		sb.WriteString(fmt.Sprintf("- %s\n", r))
	}
	sb.WriteString("\n---\n\n")
	sb.WriteString("*Generated by mdguard*\n")

	return sb.String()
}

// mdCell keeps untrusted text inside a table cell
func mdCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "`", "'")
	return strings.Join(strings.Fields(s), " ")
}

// fence wraps text in a code fence longer than any backtick run inside it
func fence(s string) string {
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	marker := strings.Repeat("`", max(3, longest+1))
	return marker + "text\n" + s + "\n" + marker + "\n\n"
}
