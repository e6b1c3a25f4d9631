package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSeverityRank(t *testing.T) {
	tests := []struct {
		severity Severity
		expected int
	}{
		{SeverityNone, 0},
		{SeverityLow, 1},
		{SeverityMedium, 2},
		{SeverityHigh, 3},
		{SeverityCritical, 4},
		{Severity("bogus"), 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			if got := SeverityRank(tt.severity); got != tt.expected {
				t.Errorf("SeverityRank(%q) = %v, want %v", tt.severity, got, tt.expected)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []string{"sanitize", "detect", "analyze"} {
		if _, err := ParseMode(m); err != nil {
			t.Errorf("ParseMode(%q) unexpected error: %v", m, err)
		}
	}
	if _, err := ParseMode("explode"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("ParseMode(explode) error = %v, want ErrUnknownMode", err)
	}
}

func TestMatchedTextJSON(t *testing.T) {
	plain, _ := json.Marshal(MatchedText{Text: "rm -rf /"})
	if string(plain) != `"rm -rf /"` {
		t.Errorf("plain marshal = %s", plain)
	}

	seq, _ := json.Marshal(MatchedText{Step1: "first disable logging", Step2: "then delete"})
	var m map[string]string
	if err := json.Unmarshal(seq, &m); err != nil {
		t.Fatalf("sequence marshal is not an object: %s", seq)
	}
	if m["step1"] != "first disable logging" || m["step2"] != "then delete" {
		t.Errorf("sequence marshal = %v", m)
	}

	var back MatchedText
	if err := json.Unmarshal(seq, &back); err != nil || !back.IsSequence() {
		t.Errorf("unmarshal sequence = %+v, %v", back, err)
	}
}

func TestResultViews(t *testing.T) {
	r := &Result{
		Mode:    ModeSanitize,
		Content: "clean",
		Threats: []*Threat{{Type: ThreatXSS}, {Type: ThreatXSS}, {Type: ThreatSSRF}},
	}

	sv, ok := r.View().(*SanitizeView)
	if !ok {
		t.Fatalf("View() for sanitize = %T", r.View())
	}
	if sv.ThreatCount != 3 || len(sv.ThreatTypes) != 2 {
		t.Errorf("SanitizeView = %+v", sv)
	}

	r.Mode = ModeDetect
	if dv, ok := r.View().(*DetectView); !ok || !dv.ContentUnchanged {
		t.Errorf("View() for detect = %+v", r.View())
	}

	r.Mode = ModeAnalyze
	if _, ok := r.View().(*Result); !ok {
		t.Errorf("View() for analyze = %T, want *Result", r.View())
	}
}

func TestNewSpanClamps(t *testing.T) {
	s := NewSpan(10, 4)
	if s.End != 10 || s.Length != 0 {
		t.Errorf("NewSpan(10, 4) = %+v", s)
	}
}
