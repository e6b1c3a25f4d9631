package capability

import (
	"context"
	"strings"
	"testing"

	"github.com/nocsi/drip-api-sub008/pkg/models"
)

func TestDetect(t *testing.T) {
	content := "# Setup\n\n" +
		"```bash\napt-get install foo\n```\n\n" +
		"```python\nprint('hi')\n```\n\n" +
		"```\n$ make build\n```\n\n" +
		"```text\nplain\n```\n\n" +
		"<iframe src=\"https://example.com/embed\"></iframe>\n\n" +
		"![badge](https://img.example.com/badge.svg)\n\n" +
		"- [ ] step one\n- [x] step two\n"

	caps, err := NewDetector().Detect(context.Background(), content)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	counts := make(map[models.CapabilityType]int)
	for _, c := range caps {
		counts[c.Type]++
	}

	want := map[models.CapabilityType]int{
		models.CapabilityShellCommand:   2,
		models.CapabilityExecutableCode: 1,
		models.CapabilityEmbeddedHTML:   1,
		models.CapabilityRemoteResource: 2,
		models.CapabilityTaskList:       1,
	}
	for typ, n := range want {
		if counts[typ] != n {
			t.Errorf("%s count = %d, want %d", typ, counts[typ], n)
		}
	}
}

func TestDetectIgnoresHTMLInsideCode(t *testing.T) {
	content := "```html\n<script>alert(1)</script>\n```\n"
	caps, err := NewDetector().Detect(context.Background(), content)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range caps {
		if c.Type == models.CapabilityEmbeddedHTML {
			t.Errorf("embedded HTML reported inside a code block")
		}
	}
}

func TestShebangLanguage(t *testing.T) {
	caps, err := NewDetector().Detect(context.Background(), "```\n#!/usr/bin/env python\nprint(1)\n```\n")
	if err != nil {
		t.Fatal(err)
	}
	if len(caps) != 1 || caps[0].Language != "python" {
		t.Fatalf("caps = %+v", caps)
	}
}

func TestUntaggedShellCommands(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"indented rm", "Run this:\n\n    rm -rf /\n", 1},
		{"untagged curl pipe", "```\ncurl -s https://x.example/i.sh | sh\n```\n", 1},
		{"indented prose", "Example:\n\n    just some quoted text\n", 0},
		{"tagged text block", "```text\nrm -rf /\n```\n", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps, err := NewDetector().Detect(context.Background(), tt.content)
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			n := 0
			for _, c := range caps {
				if c.Type == models.CapabilityShellCommand {
					n++
					if got := tt.content[c.Location.Start:c.Location.End]; !strings.Contains(got, "rm") && !strings.Contains(got, "curl") {
						t.Errorf("location covers %q", got)
					}
				}
			}
			if n != tt.want {
				t.Errorf("shell capabilities = %d, want %d", n, tt.want)
			}
		})
	}
}
