package report

import (
	"bytes"
	"fmt"

	"github.com/nocsi/drip-api-sub008/pkg/models"
	"github.com/owenrumney/go-sarif/v2/sarif"
)

const informationURI = "https://owasp.org/www-project-top-ten/"

// RenderSARIF encodes the report as a SARIF 2.1.0 log
func RenderSARIF(rep *Report) ([]byte, error) {
	log, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	uri := rep.Metadata.Source
	if uri == "" {
		uri = "document.md"
	}

	run := sarif.NewRunWithInformationURI("mdguard", informationURI)
	for _, t := range rep.Threats {
		ruleID := t.Pattern
		if ruleID == "" {
			ruleID = string(t.Type)
		}
		level := toSarifLevel(t.Severity)

		rule := run.AddRule(ruleID).
			WithDescription(fmt.Sprintf("%s (%s, %s)", t.Description, t.OWASPCategory, t.CWE)).
			WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: level})

		region := sarif.NewRegion()
		if t.Line > 0 {
			region = region.WithStartLine(t.Line)
		}
		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(uri)).
				WithRegion(region),
		)

		message := t.Description
		if t.Recommendation != "" {
			message += ". " + t.Recommendation
		}
		result := sarif.NewRuleResult(rule.ID).
			WithMessage(sarif.NewTextMessage(message)).
			WithLevel(level).
			WithLocations([]*sarif.Location{location})
		run.AddResult(result)
	}
	log.AddRun(run)

	var buf bytes.Buffer
	if err := log.PrettyWrite(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toSarifLevel(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical, models.SeverityHigh:
		return "error"
	case models.SeverityMedium:
		return "warning"
	case models.SeverityLow:
		return "note"
	default:
		return "none"
	}
}
