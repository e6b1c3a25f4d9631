package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/nocsi/drip-api-sub008/pkg/models"
)

// plural fills a format holding a count and an "s" suffix verb
func plural(format string, n int) string {
	suffix := "s"
	if n == 1 {
		suffix = ""
	}
	return fmt.Sprintf(format, n, suffix)
}

// FormatDuration formats a duration with at most 2 decimal places
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	mins := int(d.Minutes())
	return fmt.Sprintf("%dm%.2fs", mins, d.Seconds()-float64(mins*60))
}

// lineLabel renders a missing line as N/A
func lineLabel(line int) string {
	if line <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%d", line)
}

// cleanFragment flattens whitespace and truncates text for one-line output
func cleanFragment(fragment string, maxLen int) string {
	fragment = strings.Join(strings.Fields(fragment), " ")
	if len([]rune(fragment)) > maxLen {
		fragment = string([]rune(fragment)[:maxLen]) + "..."
	}
	return fragment
}

func severityOrder() []models.Severity {
	return []models.Severity{
		models.SeverityCritical,
		models.SeverityHigh,
		models.SeverityMedium,
		models.SeverityLow,
	}
}

func getSeverityEmoji(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return "🔴"
	case models.SeverityHigh:
		return "🟠"
	case models.SeverityMedium:
		return "🟡"
	case models.SeverityLow:
		return "🟢"
	default:
		return "⚪"
	}
}

func complianceRows(c Compliance) []struct {
	Name  string
	Check ComplianceCheck
} {
	return []struct {
		Name  string
		Check ComplianceCheck
	}{
		{"PCI-DSS", c.PCIDSS},
		{"HIPAA", c.HIPAA},
		{"GDPR", c.GDPR},
		{"OWASP Top 10", c.OWASPTop10},
	}
}

func complianceLabel(c ComplianceCheck) string {
	switch {
	case c.Informational:
		return "INFO"
	case c.Compliant:
		return "PASS"
	}
	return "FAIL"
}
