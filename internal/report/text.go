package report

import (
	"fmt"
	"strings"
)

// RenderText renders the report as plain text
func RenderText(rep *Report) string {
	var sb strings.Builder

	sb.WriteString(strings.Repeat("=", 79) + "\n")
	sb.WriteString(fmt.Sprintf("  MDGUARD SECURITY REPORT v%s\n", rep.Metadata.ScannerVersion))
	sb.WriteString(strings.Repeat("=", 79) + "\n\n")

	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 79) + "\n")
	if rep.Metadata.Source != "" {
		sb.WriteString(fmt.Sprintf("Source:           %s\n", rep.Metadata.Source))
	}
	sb.WriteString(fmt.Sprintf("Scan Date:        %s\n", rep.Metadata.ScanDate.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("Mode:             %s\n", rep.Metadata.Mode))
	sb.WriteString(fmt.Sprintf("Threat Level:     %s\n", strings.ToUpper(string(rep.Metadata.ThreatLevel))))
	sb.WriteString(fmt.Sprintf("Risk Score:       %d/100\n", rep.RiskScore))
	sb.WriteString(fmt.Sprintf("THREATS FOUND:    %d\n", rep.Metadata.TotalThreats))
	sb.WriteString(fmt.Sprintf("Verdict:          %s\n", rep.Summary))
	sb.WriteString("\n")

	if len(rep.Threats) > 0 {
		sb.WriteString("THREATS BY SEVERITY\n")
		sb.WriteString(strings.Repeat("-", 79) + "\n")
		for _, sev := range severityOrder() {
			if n := rep.Statistics.BySeverity[string(sev)]; n > 0 {
				sb.WriteString(fmt.Sprintf("  %-10s: %d\n", strings.ToUpper(string(sev)), n))
			}
		}
		sb.WriteString("\n")

		sb.WriteString("DETAILED FINDINGS\n")
		sb.WriteString(strings.Repeat("=", 79) + "\n\n")
		for i, t := range rep.Threats {
			sb.WriteString(fmt.Sprintf("[%d] %s\n", i+1, t.Description))
			sb.WriteString(strings.Repeat("-", 79) + "\n")
			sb.WriteString(fmt.Sprintf("Type:        %s\n", t.Type))
			sb.WriteString(fmt.Sprintf("Severity:    %s (%d/10)\n", strings.ToUpper(string(t.Severity)), t.SeverityScore))
			sb.WriteString(fmt.Sprintf("Line:        %s\n", lineLabel(t.Line)))
			sb.WriteString(fmt.Sprintf("Pattern:     %s\n", t.Pattern))
			sb.WriteString(fmt.Sprintf("OWASP:       %s (%s)\n", t.OWASPCategory, t.CWE))
			sb.WriteString(fmt.Sprintf("Confidence:  %.0f%%\n", t.Confidence*100))
			if t.AIVerdict != "" {
				sb.WriteString(fmt.Sprintf("AI Verdict:  %s\n", t.AIVerdict))
			}
			sb.WriteString(fmt.Sprintf("\nMatched Text:\n%s\n", t.MatchedText))
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("No threats detected.\n\n")
	}

	sb.WriteString("COMPLIANCE\n")
	sb.WriteString(strings.Repeat("-", 79) + "\n")
	for _, row := range complianceRows(rep.Compliance) {
		sb.WriteString(fmt.Sprintf("  %-13s %s  %s\n", row.Name+":", complianceLabel(row.Check), strings.Join(row.Check.Issues, ", ")))
	}
	sb.WriteString("\n")

	sb.WriteString("RECOMMENDATIONS\n")
	sb.WriteString(strings.Repeat("-", 79) + "\n")
	for _, r := range rep.Recommendations {
		sb.WriteString("  * " + r + "\n")
	}
	sb.WriteString("\n")

	sb.WriteString(strings.Repeat("=", 79) + "\n")
	sb.WriteString("End of Report\n")
	sb.WriteString(strings.Repeat("=", 79) + "\n")

	return sb.String()
}
