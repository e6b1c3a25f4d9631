package detectors

import (
	"context"

	"github.com/nocsi/drip-api-sub008/pkg/models"
)

// Category groups detectors so the pipeline can gate them by option
type Category int

const (
	// CategoryAgent detectors target AI agents; gated by ai_optimization
	CategoryAgent Category = iota
	// CategoryInjection detectors cover classic web and shell injection
	CategoryInjection
	// CategoryEncoding detectors inspect characters rather than phrases
	CategoryEncoding
	// CategoryPolyglot detectors look for embedded binaries; gated by include_polyglot
	CategoryPolyglot
)

func (c Category) String() string {
	switch c {
	case CategoryAgent:
		return "agent"
	case CategoryInjection:
		return "injection"
	case CategoryEncoding:
		return "encoding"
	case CategoryPolyglot:
		return "polyglot"
	}
	return "unknown"
}

// Detector is the interface that all threat detectors must implement
type Detector interface {
	// Name returns the detector name
	Name() string

	// Priority returns the detector priority (higher = earlier execution)
	Priority() int

	// Category returns the detector family
	Category() Category

	// Detect scans content and returns threats in match order. It must not
	// modify content.
	Detect(ctx context.Context, content string, opts models.Options) ([]*models.Threat, error)

	// IsEnabled returns whether this detector is enabled
	IsEnabled() bool

	// SetEnabled enables or disables this detector
	SetEnabled(enabled bool)
}

// CapabilityDetector finds executable or active content
type CapabilityDetector interface {
	Name() string
	Detect(ctx context.Context, content string) ([]*models.Capability, error)
}

// BaseDetector provides common functionality for detectors
type BaseDetector struct {
	name     string
	priority int
	category Category
	enabled  bool
}

// NewBaseDetector creates a new base detector
func NewBaseDetector(name string, priority int, category Category) *BaseDetector {
	return &BaseDetector{
		name:     name,
		priority: priority,
		category: category,
		enabled:  true,
	}
}

// Name returns the detector name
func (d *BaseDetector) Name() string {
	return d.name
}

// Priority returns the detector priority
func (d *BaseDetector) Priority() int {
	return d.priority
}

// Category returns the detector family
func (d *BaseDetector) Category() Category {
	return d.category
}

// IsEnabled returns whether this detector is enabled
func (d *BaseDetector) IsEnabled() bool {
	return d.enabled
}

// SetEnabled enables or disables this detector
func (d *BaseDetector) SetEnabled(enabled bool) {
	d.enabled = enabled
}
