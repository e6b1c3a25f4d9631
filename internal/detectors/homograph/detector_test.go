package homograph

import (
	"context"
	"testing"

	"github.com/nocsi/drip-api-sub008/pkg/models"
)

func TestDetector(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		category string
	}{
		{"cyrillic a in paypal", "Log in at p\u0430ypal.com", "mixed_script"},
		{"greek omicron", "visit g\u03bfogle.com", "mixed_script"},
		{"fullwidth", "run \uff53\uff55\uff44\uff4f now", "compatibility_spoof"},
		{"zero width", "pass\u200bword", "invisible_character"},
		{"bidi override", "file\u202egnp.exe", "bidi_override"},
	}

	d := NewDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			threats, err := d.Detect(context.Background(), tt.content, models.DefaultOptions())
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			found := false
			for _, th := range threats {
				if th.Type != models.ThreatHomographAttack {
					t.Errorf("Type = %v", th.Type)
				}
				if th.Metadata.AttackCategory == tt.category {
					found = true
				}
			}
			if !found {
				t.Errorf("Detect(%q) missing %s, got %d threats", tt.content, tt.category, len(threats))
			}
		})
	}
}

func TestDetectorBenign(t *testing.T) {
	content := "\ufeff# \u041f\u0440\u0438\u0432\u0435\u0442\n\nThis is English. Caf\u00e9 na\u00efve r\u00e9sum\u00e9.\n"
	threats, err := NewDetector().Detect(context.Background(), content, models.DefaultOptions())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(threats) != 0 {
		t.Errorf("Detect() = %d threats on single-script text, want 0", len(threats))
	}
}

func TestInvisibleRunsAreGrouped(t *testing.T) {
	threats, err := NewDetector().Detect(context.Background(), "a\u200b\u200c\u200db", models.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(threats) != 1 {
		t.Fatalf("Detect() = %d threats, want 1", len(threats))
	}
	if got := threats[0].Metadata.Extra["count"]; got != 3 {
		t.Errorf("count = %v, want 3", got)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"\uff53\uff55\uff44\uff4f", "sudo"},
		{"pass\u200bword", "password"},
		{"line\nnext\ttab", "line\nnext\ttab"},
		{"x\u202ey", "xy"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
