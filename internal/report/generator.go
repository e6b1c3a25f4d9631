package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nocsi/drip-api-sub008/pkg/models"
	"go.uber.org/zap"
)

// ANSI color codes
const (
	colorReset   = "\033[0m"
	colorBold    = "\033[1m"
	colorDim     = "\033[2m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorMagenta = "\033[35m"
	colorWhite   = "\033[37m"
	colorOrange  = "\033[38;5;208m"
	colorGray    = "\033[38;5;245m"
)

// Supported output formats
const (
	FormatJSON     = "json"
	FormatHTML     = "html"
	FormatSARIF    = "sarif"
	FormatMarkdown = "md"
	FormatText     = "txt"
)

// Generator writes reports in various formats
type Generator struct {
	logger *zap.Logger
	stdout io.Writer
}

// NewGenerator creates a new report generator
func NewGenerator(logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{logger: logger, stdout: os.Stdout}
}

// SetOutput redirects console output
func (g *Generator) SetOutput(w io.Writer) {
	g.stdout = w
}

// NormalizeFormat maps format aliases to their canonical name
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(format) {
	case "json":
		return FormatJSON, nil
	case "html":
		return FormatHTML, nil
	case "sarif":
		return FormatSARIF, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown report format: %s", format)
}

// Render returns the report encoded in format
func Render(rep *Report, format string) ([]byte, error) {
	f, err := NormalizeFormat(format)
	if err != nil {
		return nil, err
	}
	switch f {
	case FormatJSON:
		return RenderJSON(rep)
	case FormatHTML:
		return []byte(RenderHTML(rep)), nil
	case FormatSARIF:
		return RenderSARIF(rep)
	case FormatMarkdown:
		return []byte(RenderMarkdown(rep)), nil
	default:
		return []byte(RenderText(rep)), nil
	}
}

// Generate writes the report to outputFile, or prints it to the console when
// format is empty. It returns the absolute path of the written file.
func (g *Generator) Generate(rep *Report, format, outputFile string) (string, error) {
	if format == "" {
		g.PrintConsole(rep)
		return "", nil
	}

	f, err := NormalizeFormat(format)
	if err != nil {
		return "", err
	}

	if outputFile == "" {
		timestamp := time.Now().Format("20060102-150405")
		outputFile = fmt.Sprintf("MDGUARD-REPORT-%s.%s", timestamp, f)
	}

	g.logger.Info("Generating report",
		zap.String("format", f),
		zap.String("output", outputFile))

	data, err := Render(rep, f)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s report: %w", f, err)
	}
	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s report: %w", f, err)
	}

	absPath, _ := filepath.Abs(outputFile)
	return absPath, nil
}

// PrintConsole prints the report with colors
func (g *Generator) PrintConsole(rep *Report) {
	w := g.stdout
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%sSCAN COMPLETE%s\n", colorBold, colorOrange, colorReset)
	fmt.Fprintln(w)

	if rep.Metadata.Source != "" {
		fmt.Fprintf(w, "  %sSource:%s    %s\n", colorGray, colorReset, rep.Metadata.Source)
	}
	fmt.Fprintf(w, "  %sMode:%s      %s\n", colorGray, colorReset, rep.Metadata.Mode)
	fmt.Fprintf(w, "  %sDuration:%s  %s\n", colorGray, colorReset, FormatDuration(time.Duration(rep.Metadata.ProcessingTimeMs)*time.Millisecond))
	fmt.Fprintf(w, "  %sRisk:%s      %s%d/100%s\n", colorGray, colorReset, getRiskColor(rep.RiskScore), rep.RiskScore, colorReset)
	fmt.Fprintln(w)

	if len(rep.Threats) == 0 {
		fmt.Fprintf(w, "  %s%s✓ %s%s\n", colorBold, colorGreen, rep.Summary, colorReset)
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintf(w, "  %s%s⚠ %s%s\n", colorBold, colorRed, rep.Summary, colorReset)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s───────────────────────────────────────────────────────────────%s\n", colorGray, colorReset)

	for i, t := range rep.Threats {
		fmt.Fprintf(w, "\n  %s%s[%d]%s %s%s%s\n", colorBold, colorWhite, i+1, colorReset, colorBold, t.Description, colorReset)
		fmt.Fprintf(w, "      %sSeverity:%s  %s%s%s (%d/10)\n", colorGray, colorReset, getSeverityColor(t.Severity), strings.ToUpper(string(t.Severity)), colorReset, t.SeverityScore)
		fmt.Fprintf(w, "      %sType:%s      %s\n", colorGray, colorReset, t.Type)
		fmt.Fprintf(w, "      %sLine:%s      %s%s%s\n", colorGray, colorReset, colorRed, lineLabel(t.Line), colorReset)
		fmt.Fprintf(w, "      %sOWASP:%s     %s · %s\n", colorGray, colorReset, t.OWASPCategory, t.CWE)
		if t.MatchedText != "" {
			fmt.Fprintf(w, "      %sMatch:%s     %s%s%s\n", colorGray, colorReset, colorDim, cleanFragment(t.MatchedText, 120), colorReset)
		}
		if t.AIVerdict != "" {
			fmt.Fprintf(w, "      %sAI:%s        %s%s%s\n", colorGray, colorReset, colorMagenta, strings.ToUpper(t.AIVerdict), colorReset)
			if t.AIExplanation != "" {
				fmt.Fprintf(w, "      %sReason:%s    %s%s%s\n", colorGray, colorReset, colorDim, cleanFragment(t.AIExplanation, 100), colorReset)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s───────────────────────────────────────────────────────────────%s\n", colorGray, colorReset)
	fmt.Fprintln(w)
	for _, row := range complianceRows(rep.Compliance) {
		color := colorGreen
		if complianceLabel(row.Check) == "FAIL" {
			color = colorRed
		}
		fmt.Fprintf(w, "  %s%-13s%s %s%s%s\n", colorGray, row.Name+":", colorReset, color, complianceLabel(row.Check), colorReset)
	}
	fmt.Fprintln(w)
}

func getSeverityColor(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return colorRed + colorBold
	case models.SeverityHigh:
		return colorOrange
	case models.SeverityMedium:
		return colorYellow
	case models.SeverityLow:
		return colorGreen
	default:
		return colorWhite
	}
}

func getRiskColor(score int) string {
	switch {
	case score >= 90:
		return colorGreen
	case score >= 60:
		return colorYellow
	}
	return colorRed
}
