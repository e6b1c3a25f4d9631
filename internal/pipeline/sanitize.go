package pipeline

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/nocsi/drip-api-sub008/internal/detectors/homograph"
	"github.com/nocsi/drip-api-sub008/pkg/models"
)

//go:embed default_policy.toml
var defaultPolicyTOML []byte

// Transform kinds
const (
	KindRedact  = "redact"
	KindRegex   = "regex"
	KindUnicode = "unicode"
)

// SanitizePolicy decides how detected threats are neutralized
type SanitizePolicy struct {
	Placeholder string          `toml:"placeholder"`
	Transforms  []TransformRule `toml:"transform"`
}

// TransformRule is one rewrite step
type TransformRule struct {
	Name        string   `toml:"name"`
	Kind        string   `toml:"kind"`
	Description string   `toml:"description"`
	Pattern     string   `toml:"pattern"`
	Replacement string   `toml:"replacement"`
	ThreatTypes []string `toml:"threat_types"`
	Categories  []string `toml:"categories"`

	re *regexp.Regexp
}

var (
	defaultPolicyOnce sync.Once
	defaultPolicy     *SanitizePolicy
	defaultPolicyErr  error
)

// DefaultPolicy returns the embedded sanitize policy
func DefaultPolicy() (*SanitizePolicy, error) {
	defaultPolicyOnce.Do(func() {
		defaultPolicy, defaultPolicyErr = ParsePolicy(defaultPolicyTOML)
	})
	return defaultPolicy, defaultPolicyErr
}

// LoadPolicy reads a policy file, or returns the default when path is empty
func LoadPolicy(path string) (*SanitizePolicy, error) {
	if path == "" {
		return DefaultPolicy()
	}
	var p SanitizePolicy
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return nil, fmt.Errorf("failed to decode policy %s: %w", path, err)
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParsePolicy decodes and validates a TOML policy
func ParsePolicy(data []byte) (*SanitizePolicy, error) {
	var p SanitizePolicy
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode policy: %w", err)
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *SanitizePolicy) compile() error {
	if p.Placeholder == "" {
		p.Placeholder = "[REDACTED:{type}]"
	}
	for i := range p.Transforms {
		r := &p.Transforms[i]
		switch r.Kind {
		case KindRegex:
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return fmt.Errorf("transform %s: %w", r.Name, err)
			}
			r.re = re
		case KindRedact, KindUnicode:
		default:
			return fmt.Errorf("transform %s: unknown kind %q", r.Name, r.Kind)
		}
	}
	return nil
}

// applies reports whether any threat triggers the rule
func (r *TransformRule) applies(threats []*models.Threat) bool {
	for _, t := range threats {
		if r.matches(t) {
			return true
		}
	}
	return false
}

func (r *TransformRule) matches(t *models.Threat) bool {
	if len(r.ThreatTypes) > 0 && !contains(r.ThreatTypes, string(t.Type)) {
		return false
	}
	return len(r.Categories) == 0 || contains(r.Categories, t.Metadata.AttackCategory)
}

// Apply rewrites content according to the threats found in it and returns
// the new content with one transformation per rule that changed something
func (p *SanitizePolicy) Apply(content string, threats []*models.Threat) (string, []*models.Transformation) {
	var out []*models.Transformation

	// Redactions use offsets into the unmodified content
	var spans []redaction
	counts := make(map[string]int)
	for i := range p.Transforms {
		r := &p.Transforms[i]
		if r.Kind != KindRedact {
			continue
		}
		for _, t := range threats {
			if !r.matches(t) {
				continue
			}
			for _, s := range threatSpans(t) {
				spans = append(spans, redaction{start: s.Start, end: s.End, typ: string(t.Type), rule: r.Name})
				counts[r.Name]++
			}
		}
	}
	if len(spans) > 0 {
		before := len(content)
		content = p.redact(content, spans)
		for i := range p.Transforms {
			r := &p.Transforms[i]
			if counts[r.Name] == 0 {
				continue
			}
			out = append(out, &models.Transformation{
				Type:        r.Name,
				Description: r.Description,
				Occurrences: counts[r.Name],
				BytesBefore: before,
				BytesAfter:  len(content),
			})
		}
	}

	for i := range p.Transforms {
		r := &p.Transforms[i]
		if r.Kind == KindRedact || !r.applies(threats) {
			continue
		}
		before := len(content)
		var n int
		switch r.Kind {
		case KindRegex:
			n = len(r.re.FindAllStringIndex(content, -1))
			if n > 0 {
				content = r.re.ReplaceAllString(content, r.Replacement)
			}
		case KindUnicode:
			normalized := homograph.Normalize(content)
			if normalized != content {
				n = 1
				content = normalized
			}
		}
		if n == 0 {
			continue
		}
		out = append(out, &models.Transformation{
			Type:        r.Name,
			Description: r.Description,
			Occurrences: n,
			BytesBefore: before,
			BytesAfter:  len(content),
		})
	}

	return content, out
}

type redaction struct {
	start, end int
	typ        string
	rule       string
}

// threatSpans returns the byte ranges to redact. Sequence threats redact
// each step rather than the text between them.
func threatSpans(t *models.Threat) []models.Span {
	if t.Location.Step1 != nil && t.Location.Step2 != nil {
		return []models.Span{*t.Location.Step1, *t.Location.Step2}
	}
	return []models.Span{t.Location.Span}
}

func (p *SanitizePolicy) redact(content string, spans []redaction) string {
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	// Merge overlapping spans; the earliest threat names the placeholder
	merged := spans[:0:0]
	for _, s := range spans {
		if s.start < 0 || s.end > len(content) || s.end <= s.start {
			continue
		}
		if n := len(merged); n > 0 && s.start < merged[n-1].end {
			if s.end > merged[n-1].end {
				merged[n-1].end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}

	var b strings.Builder
	last := 0
	for _, s := range merged {
		b.WriteString(content[last:s.start])
		b.WriteString(strings.ReplaceAll(p.Placeholder, "{type}", s.typ))
		last = s.end
	}
	b.WriteString(content[last:])
	return b.String()
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
