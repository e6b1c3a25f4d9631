package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/nocsi/drip-api-sub008/internal/config"
	"github.com/nocsi/drip-api-sub008/internal/patterns"
	"github.com/nocsi/drip-api-sub008/internal/pipeline"
	"github.com/nocsi/drip-api-sub008/pkg/models"
	"go.uber.org/zap"
)

// Analyzer triages detected threats with a language model. It implements
// pipeline.Reviewer.
type Analyzer struct {
	completer Completer
	config    *config.AIConfig
	logger    *zap.Logger
}

// NewAnalyzer creates an analyzer backed by the Anthropic API
func NewAnalyzer(cfg *config.AIConfig, logger *zap.Logger) (*Analyzer, error) {
	client, err := NewClient(*cfg)
	if err != nil {
		return nil, err
	}
	a := NewAnalyzerWithCompleter(client, cfg, logger)
	a.logger.Debug("AI triage enabled", zap.String("model", client.Model()))
	return a, nil
}

// NewAnalyzerWithCompleter creates an analyzer with a custom model backend
func NewAnalyzerWithCompleter(c Completer, cfg *config.AIConfig, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{completer: c, config: cfg, logger: logger}
}

// group is a set of threats that share a pattern and matched text and so
// get one verdict
type group struct {
	indices []int
	threat  *models.Threat
}

// Review implements pipeline.Reviewer. Identical matches are analyzed once,
// the most severe first, up to the configured limit.
func (a *Analyzer) Review(ctx context.Context, content string, threats []*models.Threat) ([]pipeline.Review, error) {
	groups := groupThreats(threats)

	if limit := a.config.MaxThreats; limit > 0 && len(groups) > limit {
		a.logger.Info("Limiting threats for AI triage",
			zap.Int("total", len(groups)),
			zap.Int("limit", limit))
		groups = groups[:limit]
	}

	var reviews []pipeline.Review
	var failures int
	tokens := 0
	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			a.logger.Warn("Triage cancelled", zap.Int("analyzed", i))
			return reviews, err
		}

		req := buildTriageRequest(content, g.threat, g.indices[0])
		resp, err := a.triage(ctx, req)
		if err != nil {
			failures++
			a.logger.Warn("Triage failed for threat",
				zap.String("threat_id", req.ThreatID),
				zap.Error(err))
			continue
		}
		tokens += resp.TokensUsed

		for _, idx := range g.indices {
			reviews = append(reviews, pipeline.Review{
				Index:       idx,
				Verdict:     string(resp.Verdict),
				Confidence:  float64(resp.Confidence) / 100,
				Explanation: resp.Explanation,
			})
		}
	}

	a.logger.Debug("Triage complete",
		zap.Int("groups", len(groups)),
		zap.Int("reviews", len(reviews)),
		zap.Int("tokens", tokens))

	if failures > 0 && failures == len(groups) {
		return nil, errors.New("AI triage failed for every threat")
	}
	sort.SliceStable(reviews, func(i, j int) bool { return reviews[i].Index < reviews[j].Index })
	return reviews, nil
}

func (a *Analyzer) triage(ctx context.Context, req *TriageRequest) (*TriageResponse, error) {
	text, tokens, err := a.completer.Complete(ctx, TriageSystemPrompt, BuildTriagePrompt(req, a.config.Language), 1024)
	if err != nil {
		return nil, err
	}
	resp, err := parseTriageResponse(text, req.ThreatID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	resp.TokensUsed = tokens
	return resp, nil
}

// groupThreats dedupes identical matches, ordered by severity score
func groupThreats(threats []*models.Threat) []*group {
	byKey := make(map[string]*group)
	var groups []*group
	for i, t := range threats {
		key := t.Pattern + "\x00" + t.MatchedText.String()
		if g, ok := byKey[key]; ok {
			g.indices = append(g.indices, i)
			continue
		}
		g := &group{indices: []int{i}, threat: t}
		byKey[key] = g
		groups = append(groups, g)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].threat.SeverityScore > groups[j].threat.SeverityScore
	})
	return groups
}

func buildTriageRequest(content string, t *models.Threat, index int) *TriageRequest {
	return &TriageRequest{
		ThreatID:    fmt.Sprintf("T%03d", index),
		Pattern:     t.Pattern,
		Description: t.Description,
		ThreatType:  string(t.Type),
		Severity:    string(t.Severity),
		Category:    t.Metadata.AttackCategory,
		LineNumber:  t.Location.Line,
		MatchedText: t.MatchedText.String(),
		Context:     patterns.Fragment(content, t.Location.Start, 300),
		Confidence:  int(t.Metadata.Confidence * 100),
	}
}
