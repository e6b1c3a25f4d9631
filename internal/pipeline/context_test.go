package pipeline

import (
	"testing"
	"time"

	"github.com/nocsi/drip-api-sub008/pkg/models"
)

func threatWith(sev models.Severity) *models.Threat {
	return &models.Threat{Type: models.ThreatXSS, Severity: sev}
}

func TestMaxSeverity(t *testing.T) {
	tests := []struct {
		name    string
		threats []*models.Threat
		want    models.Severity
	}{
		{"empty", nil, models.SeverityNone},
		{"single low", []*models.Threat{threatWith(models.SeverityLow)}, models.SeverityLow},
		{"mixed", []*models.Threat{threatWith(models.SeverityMedium), threatWith(models.SeverityCritical), threatWith(models.SeverityHigh)}, models.SeverityCritical},
		{"unknown ranks low", []*models.Threat{threatWith("weird")}, models.SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaxSeverity(tt.threats); got != tt.want {
				t.Errorf("MaxSeverity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestThreatLevelMonotonic(t *testing.T) {
	pc := NewContext("x", Config{Mode: models.ModeDetect})
	levels := []models.Severity{models.SeverityLow, models.SeverityHigh, models.SeverityMedium, models.SeverityCritical, models.SeverityLow}

	prev := models.SeverityRank(pc.ThreatLevel())
	for _, sev := range levels {
		pc.AddThreat(threatWith(sev))
		cur := models.SeverityRank(pc.ThreatLevel())
		if cur < prev {
			t.Fatalf("ThreatLevel decreased from %d to %d after adding %s", prev, cur, sev)
		}
		prev = cur
	}
	if pc.ThreatLevel() != models.SeverityCritical {
		t.Errorf("ThreatLevel() = %v, want critical", pc.ThreatLevel())
	}
}

func TestDropBelow(t *testing.T) {
	pc := NewContext("x", Config{})
	pc.AddThreat(threatWith(models.SeverityLow))
	pc.AddThreat(threatWith(models.SeverityHigh))
	pc.AddThreat(threatWith(models.SeverityMedium))

	if n := pc.DropBelow(models.SeverityNone); n != 0 {
		t.Errorf("DropBelow(none) = %d, want 0", n)
	}
	if n := pc.DropBelow(models.SeverityMedium); n != 1 {
		t.Errorf("DropBelow(medium) = %d, want 1", n)
	}
	if len(pc.Threats) != 2 || pc.Threats[0].Severity != models.SeverityHigh {
		t.Errorf("remaining threats out of order: %+v", pc.Threats)
	}

	pc.DropBelow(models.SeverityCritical)
	res := pc.ToResult()
	if len(res.Threats) != 0 || res.Safe {
		t.Errorf("ToResult() = %d threats, safe %v; want 0, false", len(res.Threats), res.Safe)
	}

	pc.ResetForNextChunk()
	if !pc.ToResult().Safe {
		t.Error("suppressed count survived ResetForNextChunk()")
	}
}

func TestContentTracking(t *testing.T) {
	pc := NewContext("h\u00e9llo", Config{Mode: models.ModeSanitize})
	if pc.Metadata.ContentLength != 5 {
		t.Errorf("ContentLength = %d, want 5", pc.Metadata.ContentLength)
	}

	pc.UpdateContent("hello")
	if !pc.Metadata.ContentModified {
		t.Error("UpdateContent() should flag the content as modified")
	}
	if pc.OriginalContent != "h\u00e9llo" {
		t.Errorf("OriginalContent = %q, want unchanged", pc.OriginalContent)
	}

	pc.AppendContent(" world")
	if pc.Content != "hello world" {
		t.Errorf("Content = %q", pc.Content)
	}
	if pc.Metrics.BytesProcessed != 6 {
		t.Errorf("BytesProcessed = %d, want 6", pc.Metrics.BytesProcessed)
	}
}

func TestToResult(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	pc := NewContext("content", Config{Mode: models.ModeAnalyze})
	pc.now = func() time.Time { return base.Add(250 * time.Millisecond) }
	pc.Metadata.ProcessingStartedAt = base

	pc.AddTransformation(&models.Transformation{Type: "strip"})
	pc.AddWarning("careful")
	pc.IncrementMiddlewareCount()

	res := pc.ToResult()
	if !res.Safe {
		t.Error("Safe = false, want true with no threats and no errors")
	}
	if res.ThreatLevel != models.SeverityNone {
		t.Errorf("ThreatLevel = %v, want none", res.ThreatLevel)
	}
	if res.Metrics.ProcessingTimeMs != 250 {
		t.Errorf("ProcessingTimeMs = %d, want 250", res.Metrics.ProcessingTimeMs)
	}
	if res.Metrics.MiddlewareCount != 1 {
		t.Errorf("MiddlewareCount = %d, want 1", res.Metrics.MiddlewareCount)
	}
	if !res.Transformations[0].AppliedAt.Equal(base.Add(250 * time.Millisecond)) {
		t.Errorf("AppliedAt = %v", res.Transformations[0].AppliedAt)
	}

	// The result must not alias the context
	pc.AddError("late")
	if len(res.Errors) != 0 {
		t.Error("result errors changed after ToResult()")
	}

	pc.AddThreat(threatWith(models.SeverityLow))
	if pc.ToResult().Safe {
		t.Error("Safe = true with a threat present")
	}
}

func TestResetForNextChunk(t *testing.T) {
	pc := NewContext("chunk one", Config{Mode: models.ModeDetect})
	pc.AddThreat(threatWith(models.SeverityHigh))
	pc.AddError("boom")
	pc.IncrementMiddlewareCount()

	pc.ResetForNextChunk()

	if pc.Content != "" || pc.HasThreats() || pc.HasErrors() {
		t.Error("ResetForNextChunk() left per-chunk state behind")
	}
	if pc.Metrics.MiddlewareCount != 0 {
		t.Errorf("MiddlewareCount = %d, want 0", pc.Metrics.MiddlewareCount)
	}
	if pc.Metadata.PipelineMode != models.ModeDetect {
		t.Errorf("PipelineMode = %v, want detect", pc.Metadata.PipelineMode)
	}
	if pc.Metadata.ChunkNumber != 1 {
		t.Errorf("ChunkNumber = %d, want 1", pc.Metadata.ChunkNumber)
	}
}
