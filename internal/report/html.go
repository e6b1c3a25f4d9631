package report

import (
	"fmt"
	"html"
	"strings"
)

const htmlStyle = `    <style>
        :root {
            --bg-primary: #0C0C0C;
            --bg-secondary: #161616;
            --bg-tertiary: #1C1C1C;
            --text-primary: #ECECEC;
            --text-secondary: #A0A0A0;
            --text-muted: #6B6B6B;
            --accent: #D97706;
            --border-color: #2A2A2A;
            --critical-color: #EF4444;
            --critical-bg: #2A1515;
            --high-color: #F97316;
            --high-bg: #2A1D15;
            --medium-color: #EAB308;
            --medium-bg: #2A2515;
            --low-color: #22C55E;
            --low-bg: #152A1A;
            --code-bg: #0A0A0A;
        }
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            padding: 32px 24px;
            line-height: 1.5;
        }
        .container { max-width: 1100px; margin: 0 auto; }
        .header { margin-bottom: 32px; }
        .header h1 { font-size: 32px; font-weight: 700; color: var(--accent); }
        .header p { color: var(--text-secondary); font-size: 15px; }
        .card {
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 12px;
            margin-bottom: 24px;
        }
        .card-header {
            padding: 16px 20px;
            border-bottom: 1px solid var(--border-color);
            font-weight: 600;
        }
        .card-body { padding: 20px; }
        .summary-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 16px; }
        .stat-box { background: var(--bg-tertiary); border-radius: 8px; padding: 16px; }
        .stat-box .label { color: var(--text-muted); font-size: 12px; text-transform: uppercase; }
        .stat-box .value { font-size: 24px; font-weight: 700; }
        .stat-box.danger .value { color: var(--critical-color); }
        .stat-box.safe .value { color: var(--low-color); }
        .verdict { margin-top: 16px; color: var(--text-secondary); }
        .finding {
            border-left: 4px solid var(--border-color);
            background: var(--bg-tertiary);
            border-radius: 8px;
            padding: 16px;
            margin-bottom: 16px;
        }
        .finding.critical { border-color: var(--critical-color); background: var(--critical-bg); }
        .finding.high { border-color: var(--high-color); background: var(--high-bg); }
        .finding.medium { border-color: var(--medium-color); background: var(--medium-bg); }
        .finding.low { border-color: var(--low-color); background: var(--low-bg); }
        .finding-header { display: flex; justify-content: space-between; gap: 12px; }
        .finding-title { font-weight: 600; }
        .badge {
            display: inline-block;
            padding: 2px 8px;
            border-radius: 999px;
            font-size: 12px;
            font-weight: 600;
            background: var(--bg-primary);
            color: var(--text-secondary);
        }
        .badge.critical { color: var(--critical-color); }
        .badge.high { color: var(--high-color); }
        .badge.medium { color: var(--medium-color); }
        .badge.low, .badge.pass { color: var(--low-color); }
        .badge.fail { color: var(--critical-color); }
        .finding-meta { color: var(--text-secondary); font-size: 13px; margin: 8px 0; }
        .finding-meta span { margin-right: 16px; }
        pre {
            background: var(--code-bg);
            border-radius: 6px;
            padding: 12px;
            overflow-x: auto;
            font-family: 'JetBrains Mono', monospace;
            font-size: 13px;
            white-space: pre-wrap;
            word-break: break-all;
        }
        .recommendation { color: var(--text-secondary); font-size: 14px; margin-top: 8px; }
        table { width: 100%; border-collapse: collapse; }
        td, th { text-align: left; padding: 8px; border-bottom: 1px solid var(--border-color); font-size: 14px; }
        ul { padding-left: 20px; }
        .no-threats { text-align: center; padding: 32px; color: var(--low-color); font-size: 18px; }
        .footer { color: var(--text-muted); font-size: 13px; text-align: center; margin-top: 32px; }
    </style>
`

// RenderHTML renders a self-contained HTML document. Every value taken from
// the scanned document is escaped.
func RenderHTML(rep *Report) string {
	esc := html.EscapeString
	var sb strings.Builder

	sb.WriteString(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <meta http-equiv="Content-Security-Policy" content="default-src 'none'; style-src 'unsafe-inline'">
    <title>mdguard Security Report</title>
`)
	sb.WriteString(htmlStyle)
	sb.WriteString(`</head>
<body>
    <div class="container">
        <div class="header">
            <h1>mdguard</h1>
`)
	sb.WriteString(fmt.Sprintf("            <p>Security report v%s · %s</p>\n", esc(rep.Metadata.ScannerVersion), rep.Metadata.ScanDate.Format("2006-01-02 15:04:05")))
	sb.WriteString(`        </div>
        <div class="card">
            <div class="card-header">Summary</div>
            <div class="card-body">
                <div class="summary-grid">
`)

	riskClass := "safe"
	if rep.RiskScore < 70 {
		riskClass = "danger"
	}
	if rep.Metadata.Source != "" {
		sb.WriteString(statBox("", "Source", esc(rep.Metadata.Source)))
	}
	sb.WriteString(statBox(riskClass, "Risk Score", fmt.Sprintf("%d/100", rep.RiskScore)))
	sb.WriteString(statBox("", "Threat Level", esc(strings.ToUpper(string(rep.Metadata.ThreatLevel)))))
	threatClass := "safe"
	if rep.Metadata.TotalThreats > 0 {
		threatClass = "danger"
	}
	sb.WriteString(statBox(threatClass, "Threats Found", fmt.Sprintf("%d", rep.Metadata.TotalThreats)))
	sb.WriteString(statBox("", "Mode", esc(string(rep.Metadata.Mode))))
	sb.WriteString("                </div>\n")
	sb.WriteString(fmt.Sprintf("                <div class=\"verdict\">%s</div>\n", esc(rep.Summary)))
	sb.WriteString("            </div>\n        </div>\n")

	sb.WriteString(`        <div class="card">
            <div class="card-header">Detected Threats</div>
            <div class="card-body">
`)
	if len(rep.Threats) == 0 {
		sb.WriteString("                <div class=\"no-threats\">✓ No threats detected</div>\n")
	}
	for i, t := range rep.Threats {
		sev := esc(string(t.Severity))
		sb.WriteString(fmt.Sprintf("                <div class=\"finding %s\">\n", sev))
		sb.WriteString("                    <div class=\"finding-header\">\n")
		sb.WriteString(fmt.Sprintf("                        <div class=\"finding-title\">#%d %s</div>\n", i+1, esc(t.Description)))
		sb.WriteString(fmt.Sprintf("                        <span class=\"badge %s\">%s %d/10</span>\n", sev, esc(strings.ToUpper(string(t.Severity))), t.SeverityScore))
		sb.WriteString("                    </div>\n")
		sb.WriteString("                    <div class=\"finding-meta\">")
		sb.WriteString(fmt.Sprintf("<span>Type: %s</span>", esc(string(t.Type))))
		sb.WriteString(fmt.Sprintf("<span>Line: %s</span>", lineLabel(t.Line)))
		sb.WriteString(fmt.Sprintf("<span>Pattern: <code>%s</code></span>", esc(t.Pattern)))
		sb.WriteString(fmt.Sprintf("<span>%s · %s</span>", esc(t.OWASPCategory), esc(t.CWE)))
		if t.AIVerdict != "" {
			sb.WriteString(fmt.Sprintf("<span>AI: %s</span>", esc(t.AIVerdict)))
		}
		sb.WriteString("</div>\n")
		if t.MatchedText != "" {
			sb.WriteString(fmt.Sprintf("                    <pre>%s</pre>\n", esc(t.MatchedText)))
		}
		if t.Recommendation != "" {
			sb.WriteString(fmt.Sprintf("                    <div class=\"recommendation\">%s</div>\n", esc(t.Recommendation)))
		}
		sb.WriteString("                </div>\n")
	}
	sb.WriteString("            </div>\n        </div>\n")

	sb.WriteString(`        <div class="card">
            <div class="card-header">Compliance</div>
            <div class="card-body">
                <table>
                    <tr><th>Framework</th><th>Status</th><th>Issues</th><th>Requirement</th></tr>
`)
	for _, row := range complianceRows(rep.Compliance) {
		label := complianceLabel(row.Check)
		sb.WriteString(fmt.Sprintf("                    <tr><td>%s</td><td><span class=\"badge %s\">%s</span></td><td>%s</td><td>%s</td></tr>\n",
			esc(row.Name), strings.ToLower(label), label, esc(strings.Join(row.Check.Issues, ", ")), esc(row.Check.Requirement)))
	}
	sb.WriteString("                </table>\n            </div>\n        </div>\n")

	sb.WriteString(`        <div class="card">
            <div class="card-header">Recommendations</div>
            <div class="card-body">
                <ul>
`)
	for _, r := range rep.Recommendations {
		sb.WriteString(fmt.Sprintf("                    <li>%s</li>\n", esc(r)))
	}
	sb.WriteString("                </ul>\n            </div>\n        </div>\n")

	sb.WriteString("        <div class=\"footer\">Generated by mdguard</div>\n")
	sb.WriteString("    </div>\n</body>\n</html>\n")
	return sb.String()
}

func statBox(class, label, value string) string {
	return fmt.Sprintf(`                    <div class="stat-box %s">
                        <div class="label">%s</div>
                        <div class="value">%s</div>
                    </div>
`, class, label, value)
}
