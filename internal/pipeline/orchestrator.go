package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nocsi/drip-api-sub008/internal/detectors"
	"github.com/nocsi/drip-api-sub008/internal/detectors/capability"
	"github.com/nocsi/drip-api-sub008/internal/detectors/homograph"
	"github.com/nocsi/drip-api-sub008/internal/detectors/polyglot"
	"github.com/nocsi/drip-api-sub008/internal/patterns"
	"github.com/nocsi/drip-api-sub008/pkg/models"
	"go.uber.org/zap"
)

// DefaultMaxContentSize is the largest document accepted by Process
const DefaultMaxContentSize = 10 * 1024 * 1024

// Review is a second opinion on one detected threat
type Review struct {
	Index       int     `json:"index"`
	Verdict     string  `json:"verdict"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// Reviewer triages threats after detection in analyze mode
type Reviewer interface {
	Review(ctx context.Context, content string, threats []*models.Threat) ([]Review, error)
}

// Orchestrator runs the detector chain over content
type Orchestrator struct {
	logger       *zap.Logger
	detectors    []detectors.Detector
	capabilities []detectors.CapabilityDetector
	policy       *SanitizePolicy
	reviewer     Reviewer
	maxSize      int
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithPolicy replaces the default sanitize policy
func WithPolicy(p *SanitizePolicy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithReviewer enables threat triage in analyze mode
func WithReviewer(r Reviewer) Option {
	return func(o *Orchestrator) { o.reviewer = r }
}

// WithMaxContentSize overrides the content size limit in bytes
func WithMaxContentSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxSize = n
		}
	}
}

// WithCapabilityDetectors replaces the analyze-mode capability detectors
func WithCapabilityDetectors(ds ...detectors.CapabilityDetector) Option {
	return func(o *Orchestrator) { o.capabilities = ds }
}

// New creates an orchestrator over the given detectors, ordered by priority
func New(logger *zap.Logger, ds []detectors.Detector, opts ...Option) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		logger:       logger,
		capabilities: []detectors.CapabilityDetector{capability.NewDetector()},
		maxSize:      DefaultMaxContentSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.policy == nil {
		p, err := DefaultPolicy()
		if err != nil {
			return nil, fmt.Errorf("failed to load sanitize policy: %w", err)
		}
		o.policy = p
	}
	for _, d := range ds {
		o.RegisterDetector(d)
	}
	return o, nil
}

// NewDefault creates an orchestrator with the full built-in detector chain
func NewDefault(logger *zap.Logger, lib *patterns.Library, opts ...Option) (*Orchestrator, error) {
	return New(logger, DefaultDetectors(lib), opts...)
}

// DefaultDetectors returns the built-in detector chain backed by lib
func DefaultDetectors(lib *patterns.Library) []detectors.Detector {
	ds := []detectors.Detector{
		detectors.NewPersonalityDetector(lib),
		detectors.NewDestructiveDetector(lib),
		detectors.NewToolAbuseDetector(lib),
		detectors.NewMultiStepDetector(lib),
	}
	for _, d := range detectors.NewInjectionDetectors(lib) {
		ds = append(ds, d)
	}
	return append(ds, homograph.NewDetector(), polyglot.NewDetector())
}

// RegisterDetector adds a detector, keeping the chain ordered by priority.
// Detectors with equal priority keep registration order.
func (o *Orchestrator) RegisterDetector(d detectors.Detector) {
	o.detectors = append(o.detectors, d)
	sort.SliceStable(o.detectors, func(i, j int) bool {
		return o.detectors[i].Priority() > o.detectors[j].Priority()
	})
	o.logger.Debug("Registered detector",
		zap.String("name", d.Name()),
		zap.Int("priority", d.Priority()))
}

// Detectors returns the chain in execution order
func (o *Orchestrator) Detectors() []detectors.Detector {
	return append([]detectors.Detector{}, o.detectors...)
}

// Validate checks content against the input constraints
func (o *Orchestrator) Validate(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if !utf8.ValidString(content) {
		return ErrInvalidEncoding
	}
	if len(content) > o.maxSize {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrContentTooLarge, len(content), o.maxSize)
	}
	return nil
}

// Process validates content and scans it in the given mode
func (o *Orchestrator) Process(ctx context.Context, content string, mode models.Mode, opts models.Options) (*models.Result, error) {
	if _, err := models.ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if err := o.Validate(content); err != nil {
		return nil, err
	}

	pc := NewContext(content, Config{Mode: mode, Options: opts.OrDefault()})
	pc.Metrics.BytesProcessed = int64(len(content))
	if err := o.Run(ctx, pc); err != nil {
		return nil, err
	}
	return pc.ToResult(), nil
}

// Run executes the pipeline on a caller-owned context
func (o *Orchestrator) Run(ctx context.Context, pc *Context) error {
	start := time.Now()
	pc.Config.Options = pc.Config.Options.OrDefault()
	var err error
	switch pc.Config.Mode {
	case models.ModeDetect:
		err = o.detect(ctx, pc)
	case models.ModeAnalyze:
		err = o.analyze(ctx, pc)
	case models.ModeSanitize:
		err = o.sanitize(ctx, pc)
	default:
		return fmt.Errorf("%w: %q", models.ErrUnknownMode, pc.Config.Mode)
	}
	if err != nil {
		o.logger.Debug("Pipeline aborted",
			zap.String("mode", string(pc.Config.Mode)),
			zap.Error(err))
		return err
	}

	floor := pc.Config.Options.ThreatLevel
	if n := pc.DropBelow(floor); n > 0 {
		pc.AddWarningIssue(models.Issue{
			Message:  fmt.Sprintf("%d threats below %s suppressed", n, floor),
			Severity: models.SeverityLow,
			Source:   "pipeline",
		})
	}

	o.logger.Debug("Pipeline complete",
		zap.String("mode", string(pc.Config.Mode)),
		zap.Int("threats", len(pc.Threats)),
		zap.Int("errors", len(pc.Errors)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (o *Orchestrator) detect(ctx context.Context, pc *Context) error {
	opts := pc.Config.Options
	for _, d := range o.detectors {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !o.shouldRun(d, opts) {
			continue
		}

		pc.IncrementMiddlewareCount()
		threats, err := d.Detect(ctx, pc.Content, opts)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			o.logger.Warn("Detector failed",
				zap.String("detector", d.Name()),
				zap.Error(err))
			pc.AddErrorIssue(models.Issue{
				Message:  fmt.Sprintf("detector %s failed: %v", d.Name(), err),
				Severity: models.SeverityHigh,
				Source:   d.Name(),
			})
			continue
		}
		for _, t := range threats {
			pc.AddThreat(t)
		}
	}
	return ctx.Err()
}

func (o *Orchestrator) shouldRun(d detectors.Detector, opts models.Options) bool {
	if !d.IsEnabled() {
		return false
	}
	switch d.Category() {
	case detectors.CategoryAgent:
		return opts.AIOptimization
	case detectors.CategoryPolyglot:
		return opts.IncludePolyglot
	}
	return true
}

func (o *Orchestrator) analyze(ctx context.Context, pc *Context) error {
	if err := o.detect(ctx, pc); err != nil {
		return err
	}
	if err := o.RunCapabilities(ctx, pc); err != nil {
		return err
	}
	if o.reviewer != nil && pc.HasThreats() {
		o.review(ctx, pc)
	}
	return ctx.Err()
}

// RunCapabilities runs only the capability detectors on pc
func (o *Orchestrator) RunCapabilities(ctx context.Context, pc *Context) error {
	for _, cd := range o.capabilities {
		if err := ctx.Err(); err != nil {
			return err
		}
		pc.IncrementMiddlewareCount()
		caps, err := cd.Detect(ctx, pc.Content)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			o.logger.Warn("Capability detector failed",
				zap.String("detector", cd.Name()),
				zap.Error(err))
			pc.AddErrorIssue(models.Issue{
				Message:  fmt.Sprintf("detector %s failed: %v", cd.Name(), err),
				Severity: models.SeverityHigh,
				Source:   cd.Name(),
			})
			continue
		}
		for _, c := range caps {
			pc.AddCapability(c)
		}
	}
	return nil
}

// review attaches triage verdicts; failures degrade to a warning
func (o *Orchestrator) review(ctx context.Context, pc *Context) {
	pc.IncrementMiddlewareCount()
	reviews, err := o.reviewer.Review(ctx, pc.Content, pc.Threats)
	if err != nil {
		o.logger.Debug("Threat review failed", zap.Error(err))
		pc.AddWarningIssue(models.Issue{
			Message:  fmt.Sprintf("threat review unavailable: %v", err),
			Severity: models.SeverityLow,
			Source:   "reviewer",
		})
		return
	}
	for _, r := range reviews {
		if r.Index < 0 || r.Index >= len(pc.Threats) {
			continue
		}
		t := pc.Threats[r.Index]
		if t.Metadata.Extra == nil {
			t.Metadata.Extra = make(map[string]any)
		}
		t.Metadata.Extra["ai_verdict"] = r
	}
}

func (o *Orchestrator) sanitize(ctx context.Context, pc *Context) error {
	probe := NewContext(pc.Content, pc.Config)
	if err := o.detect(ctx, probe); err != nil {
		return err
	}

	if probe.HasThreats() {
		pc.IncrementMiddlewareCount()
		sanitized, transforms := o.policy.Apply(pc.Content, probe.Threats)
		for _, t := range transforms {
			pc.AddTransformation(t)
		}
		if sanitized != pc.Content {
			pc.UpdateContent(sanitized)
		}
		o.logger.Debug("Sanitized content",
			zap.Int("threats", len(probe.Threats)),
			zap.Int("transformations", len(transforms)))
	}

	// Re-detect so that safe reflects the rewritten content
	if err := o.detect(ctx, pc); err != nil {
		return err
	}
	pc.UpdateMetrics(func(m *models.Metrics) {
		m.MiddlewareCount += probe.Metrics.MiddlewareCount
	})
	return nil
}
