package capability

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/nocsi/drip-api-sub008/internal/markdown"
	"github.com/nocsi/drip-api-sub008/internal/patterns"
	"github.com/nocsi/drip-api-sub008/pkg/models"
)

// Detector inventories what a document could make an agent or renderer do
type Detector struct{}

// NewDetector creates a new capability detector
func NewDetector() *Detector {
	return &Detector{}
}

// Languages that run when an agent executes a fenced block
var executableLanguages = map[string]string{
	"bash":       "shell",
	"sh":         "shell",
	"shell":      "shell",
	"zsh":        "shell",
	"console":    "shell",
	"powershell": "shell",
	"ps1":        "shell",
	"bat":        "shell",
	"cmd":        "shell",
	"python":     "script",
	"py":         "script",
	"javascript": "script",
	"js":         "script",
	"typescript": "script",
	"ts":         "script",
	"ruby":       "script",
	"rb":         "script",
	"perl":       "script",
	"php":        "script",
	"lua":        "script",
	"go":         "compiled",
	"rust":       "compiled",
	"c":          "compiled",
	"cpp":        "compiled",
	"java":       "compiled",
	"sql":        "query",
}

// Shebang interpreters that indicate executable scripts
var shebangRe = regexp.MustCompile(`^#!\s*/(?:usr/)?(?:local/)?bin/(?:env\s+)?(\w+)`)

var (
	shellPromptRe  = regexp.MustCompile(`(?m)^\s*(?:\$|#|>|PS [A-Z]:\\[^>]*>)\s+(?:sudo\s+)?[a-z][\w.-]*(?:\s|$)`)
	shellCommandRe = regexp.MustCompile(`(?m)^\s*(?:sudo\s+)?(?:rm|curl|wget|chmod|chown|dd|mkfs(?:\.\w+)?|apt(?:-get)?|yum|brew|pip3?|npm|npx|git|docker|kubectl|ssh|scp|nc|systemctl|kill|export|source)(?:\s+\S|\s*$)`)
	embeddedHTMLRe = regexp.MustCompile(`(?i)<(script|iframe|object|embed|form|style|link|meta|svg)\b`)
	remoteRe       = regexp.MustCompile(`(?i)<(?:img|iframe|script|link|source|video|audio)\b[^>]*\b(?:src|href)\s*=\s*["']?(https?://[^"'\s>]+)`)
)

// Name returns the detector name
func (d *Detector) Name() string {
	return "capabilities"
}

// Detect lists code blocks, shell sessions, embedded HTML, remote resources and task lists
func (d *Detector) Detect(ctx context.Context, content string) ([]*models.Capability, error) {
	doc := markdown.Analyze(content)
	now := time.Now()
	var caps []*models.Capability

	for _, cb := range doc.CodeBlocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lang := cb.Language
		if lang == "" {
			if m := shebangRe.FindStringSubmatch(cb.Content); m != nil {
				lang = m[1]
			}
		}
		kind, ok := executableLanguages[lang]
		if !ok {
			continue
		}

		capType := models.CapabilityExecutableCode
		if kind == "shell" {
			capType = models.CapabilityShellCommand
		}
		caps = append(caps, &models.Capability{
			Type:        capType,
			Language:    lang,
			Description: "Code block in " + lang + " (" + kind + ")",
			Location:    location(content, cb.Start, cb.End),
			Metadata: map[string]any{
				"kind":       kind,
				"lines":      strings.Count(cb.Content, "\n"),
				"start_line": cb.StartLine,
				"end_line":   cb.EndLine,
			},
			DetectedAt: now,
		})
	}

	// Shell prompts or commands in untagged and indented blocks
	for _, cb := range doc.CodeBlocks {
		if cb.Language != "" || shebangRe.MatchString(cb.Content) {
			continue
		}
		desc := ""
		switch {
		case shellPromptRe.MatchString(cb.Content):
			desc = "Untagged block containing shell prompts"
		case shellCommandRe.MatchString(cb.Content):
			desc = "Untagged block containing shell commands"
		default:
			continue
		}
		caps = append(caps, &models.Capability{
			Type:        models.CapabilityShellCommand,
			Language:    "shell",
			Description: desc,
			Location:    location(content, cb.Start, cb.End),
			Metadata:    map[string]any{"start_line": cb.StartLine, "end_line": cb.EndLine},
			DetectedAt:  now,
		})
	}

	for _, m := range embeddedHTMLRe.FindAllStringSubmatchIndex(content, -1) {
		if insideCode(doc, m[0]) {
			continue
		}
		tag := strings.ToLower(content[m[2]:m[3]])
		caps = append(caps, &models.Capability{
			Type:        models.CapabilityEmbeddedHTML,
			Language:    "html",
			Description: "Embedded <" + tag + "> element",
			Location:    location(content, m[0], m[1]),
			Metadata:    map[string]any{"tag": tag},
			DetectedAt:  now,
		})
	}

	for _, m := range remoteRe.FindAllStringSubmatchIndex(content, -1) {
		if insideCode(doc, m[0]) {
			continue
		}
		caps = append(caps, &models.Capability{
			Type:        models.CapabilityRemoteResource,
			Description: "Element loads a remote resource",
			Location:    location(content, m[0], m[1]),
			Metadata:    map[string]any{"url": content[m[2]:m[3]]},
			DetectedAt:  now,
		})
	}
	for _, l := range doc.Links {
		if !l.Image || !strings.HasPrefix(strings.ToLower(l.URL), "http") {
			continue
		}
		caps = append(caps, &models.Capability{
			Type:        models.CapabilityRemoteResource,
			Description: "Image loaded from a remote host",
			Location:    location(content, l.Start, l.End),
			Metadata:    map[string]any{"url": l.URL},
			DetectedAt:  now,
		})
	}

	if len(doc.Tasks) > 0 {
		open := 0
		for _, t := range doc.Tasks {
			if !t.Done {
				open++
			}
		}
		caps = append(caps, &models.Capability{
			Type:        models.CapabilityTaskList,
			Description: "Checklist an agent may treat as instructions",
			Location:    models.Location{Line: doc.Tasks[0].Line},
			Metadata:    map[string]any{"total": len(doc.Tasks), "open": open},
			DetectedAt:  now,
		})
	}

	return caps, nil
}

func location(content string, start, end int) models.Location {
	return models.Location{
		Span: models.NewSpan(start, end),
		Line: patterns.LineNumber(content, start),
	}
}

func insideCode(doc *markdown.Document, pos int) bool {
	for _, cb := range doc.CodeBlocks {
		if pos >= cb.Start && pos < cb.End {
			return true
		}
	}
	return false
}
