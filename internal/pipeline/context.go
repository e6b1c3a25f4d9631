package pipeline

import (
	"time"
	"unicode/utf8"

	"github.com/nocsi/drip-api-sub008/pkg/models"
)

// Config is the per-scan configuration carried by a Context
type Config struct {
	Mode    models.Mode
	Options models.Options
}

// Context accumulates everything one scan learns about a piece of content.
// It belongs to a single scan or stream session and is not safe for
// concurrent use. Slices keep detection order.
type Context struct {
	Content         string
	OriginalContent string
	Metadata        models.Metadata
	Threats         []*models.Threat
	Capabilities    []*models.Capability
	Transformations []*models.Transformation
	Metrics         models.Metrics
	Config          Config
	Errors          []models.Issue
	Warnings        []models.Issue

	// suppressed counts threats removed by DropBelow; they still make the
	// result unsafe
	suppressed int
	now        func() time.Time
}

// NewContext creates a context for content
func NewContext(content string, cfg Config) *Context {
	c := &Context{
		Content:         content,
		OriginalContent: content,
		Config:          cfg,
		now:             time.Now,
	}
	c.Metadata = models.Metadata{
		ContentLength:       utf8.RuneCountInString(content),
		ProcessingStartedAt: c.now(),
		PipelineMode:        cfg.Mode,
	}
	return c
}

// AddThreat appends a threat
func (c *Context) AddThreat(t *models.Threat) {
	c.Threats = append(c.Threats, t)
}

// AddCapability appends a capability
func (c *Context) AddCapability(cp *models.Capability) {
	c.Capabilities = append(c.Capabilities, cp)
}

// AddTransformation stamps and appends a transformation
func (c *Context) AddTransformation(t *models.Transformation) {
	t.AppliedAt = c.now()
	c.Transformations = append(c.Transformations, t)
}

// AddError records an error message
func (c *Context) AddError(msg string) {
	c.Errors = append(c.Errors, models.Issue{Message: msg})
}

// AddErrorIssue records a structured error
func (c *Context) AddErrorIssue(issue models.Issue) {
	c.Errors = append(c.Errors, issue)
}

// AddWarning records a warning message
func (c *Context) AddWarning(msg string) {
	c.Warnings = append(c.Warnings, models.Issue{Message: msg})
}

// AddWarningIssue records a structured warning
func (c *Context) AddWarningIssue(issue models.Issue) {
	c.Warnings = append(c.Warnings, issue)
}

// UpdateContent replaces the working content and flags it as modified
func (c *Context) UpdateContent(content string) {
	c.Content = content
	c.Metadata.ContentModified = true
}

// AppendContent adds streamed text to the working content
func (c *Context) AppendContent(chunk string) {
	c.Content += chunk
	c.OriginalContent += chunk
	c.Metadata.ContentLength += utf8.RuneCountInString(chunk)
	c.Metrics.BytesProcessed += int64(len(chunk))
}

// IncrementMiddlewareCount records one executed pipeline stage
func (c *Context) IncrementMiddlewareCount() {
	c.Metrics.MiddlewareCount++
}

// UpdateMetrics applies fn to the metrics
func (c *Context) UpdateMetrics(fn func(*models.Metrics)) {
	fn(&c.Metrics)
}

// HasErrors reports whether any error was recorded
func (c *Context) HasErrors() bool {
	return len(c.Errors) > 0
}

// HasThreats reports whether any threat was recorded
func (c *Context) HasThreats() bool {
	return len(c.Threats) > 0
}

// HasCapabilities reports whether any capability was recorded
func (c *Context) HasCapabilities() bool {
	return len(c.Capabilities) > 0
}

// ThreatLevel returns the highest severity among threats, or none
func (c *Context) ThreatLevel() models.Severity {
	return MaxSeverity(c.Threats)
}

// MaxSeverity returns the highest severity in threats, or none when empty.
// Unrecognised severities rank as low.
func MaxSeverity(threats []*models.Threat) models.Severity {
	best := 0
	for _, t := range threats {
		if r := models.SeverityRank(t.Severity); r > best {
			best = r
		}
	}
	switch best {
	case 4:
		return models.SeverityCritical
	case 3:
		return models.SeverityHigh
	case 2:
		return models.SeverityMedium
	case 1:
		return models.SeverityLow
	}
	return models.SeverityNone
}

// DropBelow removes threats ranked below min and returns how many were removed
func (c *Context) DropBelow(min models.Severity) int {
	if min == "" || min == models.SeverityNone {
		return 0
	}
	floor := models.SeverityRank(min)
	kept := c.Threats[:0]
	dropped := 0
	for _, t := range c.Threats {
		if models.SeverityRank(t.Severity) < floor {
			dropped++
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(c.Threats); i++ {
		c.Threats[i] = nil
	}
	c.Threats = kept
	c.suppressed += dropped
	return dropped
}

// ToResult snapshots the context into an immutable result
func (c *Context) ToResult() *models.Result {
	now := c.now()
	var elapsed int64
	if !c.Metadata.ProcessingStartedAt.IsZero() {
		elapsed = now.Sub(c.Metadata.ProcessingStartedAt).Milliseconds()
	}

	metrics := c.Metrics
	metrics.ProcessingTimeMs = elapsed
	metrics.TotalProcessingTimeMs += elapsed

	meta := c.Metadata
	meta.CompletedAt = now

	return &models.Result{
		Safe:            !c.HasThreats() && c.suppressed == 0 && !c.HasErrors(),
		ThreatLevel:     c.ThreatLevel(),
		Mode:            c.Config.Mode,
		Content:         c.Content,
		OriginalContent: c.OriginalContent,
		Threats:         append([]*models.Threat{}, c.Threats...),
		Capabilities:    append([]*models.Capability{}, c.Capabilities...),
		Transformations: append([]*models.Transformation{}, c.Transformations...),
		Errors:          append([]models.Issue{}, c.Errors...),
		Warnings:        append([]models.Issue{}, c.Warnings...),
		Metadata:        meta,
		Metrics:         metrics,
	}
}

// ResetForNextChunk clears per-chunk state, keeps the pipeline mode and
// advances the chunk number
func (c *Context) ResetForNextChunk() {
	mode := c.Metadata.PipelineMode
	chunk := c.Metadata.ChunkNumber + 1

	c.Content = ""
	c.OriginalContent = ""
	c.Threats = nil
	c.Capabilities = nil
	c.Transformations = nil
	c.Errors = nil
	c.Warnings = nil
	c.suppressed = 0
	c.Metrics = models.Metrics{}
	c.Metadata = models.Metadata{
		ProcessingStartedAt: c.now(),
		PipelineMode:        mode,
		ChunkNumber:         chunk,
	}
}
