package detectors

import (
	"time"

	"github.com/nocsi/drip-api-sub008/internal/patterns"
	"github.com/nocsi/drip-api-sub008/pkg/models"
)

// NewThreat builds a threat from a signature match
func NewThreat(detector string, sig *patterns.Signature, content string, m patterns.Match) *models.Threat {
	return &models.Threat{
		Type:          sig.Taxonomy.ThreatType(),
		Severity:      sig.Severity,
		SeverityScore: sig.Score,
		Pattern:       sig.ID,
		Location: models.Location{
			Span: models.NewSpan(m.Start, m.End),
			Line: patterns.LineNumber(content, m.Start),
		},
		MatchedText:    models.MatchedText{Text: m.Text},
		Description:    sig.Description,
		Recommendation: sig.Recommendation,
		Metadata: models.ThreatMetadata{
			AttackCategory: sig.Category,
			Confidence:     sig.Confidence,
			Mitigation:     sig.Taxonomy.Mitigation(),
			Extra: map[string]any{
				"signature": sig.Name,
				"taxonomy":  sig.Taxonomy.String(),
			},
		},
		Detector:   detector,
		DetectedAt: time.Now(),
	}
}

// NewSequenceThreat builds a multi-step threat from a paired match
func NewSequenceThreat(detector string, seq *patterns.Sequence, content string, m patterns.SequenceMatch) *models.Threat {
	s1 := models.NewSpan(m.Step1.Start, m.Step1.End)
	s2 := models.NewSpan(m.Step2.Start, m.Step2.End)
	end := m.Step2.End
	if m.Step1.End > end {
		end = m.Step1.End
	}

	return &models.Threat{
		Type:          patterns.MultiStep.ThreatType(),
		Severity:      patterns.MultiStep.DefaultSeverity(),
		SeverityScore: patterns.MultiStep.SeverityScore(),
		Pattern:       seq.ID,
		Location: models.Location{
			Span:  models.NewSpan(m.Step1.Start, end),
			Line:  patterns.LineNumber(content, m.Step1.Start),
			Step1: &s1,
			Step2: &s2,
		},
		MatchedText:    models.MatchedText{Step1: m.Step1.Text, Step2: m.Step2.Text},
		Description:    seq.Description,
		Recommendation: seq.Recommendation,
		Metadata: models.ThreatMetadata{
			AttackCategory: "multi_step",
			Confidence:     patterns.MultiStep.Confidence(),
			Mitigation:     patterns.MultiStep.Mitigation(),
			Extra: map[string]any{
				"sequence":   seq.Name,
				"step2_line": patterns.LineNumber(content, m.Step2.Start),
			},
		},
		Detector:   detector,
		DetectedAt: time.Now(),
	}
}
