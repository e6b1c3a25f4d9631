package detectors

import (
	"context"

	"github.com/nocsi/drip-api-sub008/internal/patterns"
	"github.com/nocsi/drip-api-sub008/pkg/models"
)

// PatternDetector reports every non-overlapping match of one taxonomy's signatures
type PatternDetector struct {
	*BaseDetector
	lib      *patterns.Library
	taxonomy patterns.Taxonomy
}

// NewPatternDetector creates a detector for a single-pattern taxonomy
func NewPatternDetector(lib *patterns.Library, taxonomy patterns.Taxonomy, priority int) *PatternDetector {
	category := CategoryInjection
	if taxonomy.Agent() {
		category = CategoryAgent
	}
	return &PatternDetector{
		BaseDetector: NewBaseDetector(taxonomy.String(), priority, category),
		lib:          lib,
		taxonomy:     taxonomy,
	}
}

// NewPersonalityDetector detects attempts to override an agent's identity or safety rules
func NewPersonalityDetector(lib *patterns.Library) *PatternDetector {
	return NewPatternDetector(lib, patterns.PersonalityTakeover, 100)
}

// NewDestructiveDetector detects destructive shell, system and database commands
func NewDestructiveDetector(lib *patterns.Library) *PatternDetector {
	return NewPatternDetector(lib, patterns.DestructiveCommand, 95)
}

// NewToolAbuseDetector detects instructions that misuse agent tools
func NewToolAbuseDetector(lib *patterns.Library) *PatternDetector {
	return NewPatternDetector(lib, patterns.ToolAbuse, 90)
}

// Taxonomy returns the taxonomy this detector reports
func (d *PatternDetector) Taxonomy() patterns.Taxonomy {
	return d.taxonomy
}

// Detect scans content with every signature in table order
func (d *PatternDetector) Detect(ctx context.Context, content string, opts models.Options) ([]*models.Threat, error) {
	var threats []*models.Threat

	for _, sig := range d.lib.Signatures(d.taxonomy, opts.StrictMode) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, m := range patterns.FindAll(sig, content) {
			threats = append(threats, NewThreat(d.Name(), sig, content, m))
		}
	}

	return threats, nil
}

// NewInjectionDetectors returns one detector per classic injection taxonomy,
// highest priority first
func NewInjectionDetectors(lib *patterns.Library) []*PatternDetector {
	order := []patterns.Taxonomy{
		patterns.PromptInjection,
		patterns.XSS,
		patterns.SQLInjection,
		patterns.CommandInjection,
		patterns.FileInclusion,
		patterns.SSRF,
		patterns.XXE,
	}
	list := make([]*PatternDetector, 0, len(order))
	for i, t := range order {
		list = append(list, NewPatternDetector(lib, t, 80-5*i))
	}
	return list
}
