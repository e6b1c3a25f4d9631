package detectors

import (
	"context"

	"github.com/nocsi/drip-api-sub008/internal/patterns"
	"github.com/nocsi/drip-api-sub008/pkg/models"
)

// MultiStepDetector correlates two-step attack sequences. Every (step1, step2)
// pairing with step2 starting after step1 is reported.
type MultiStepDetector struct {
	*BaseDetector
	lib *patterns.Library
}

// NewMultiStepDetector creates a new multi-step detector
func NewMultiStepDetector(lib *patterns.Library) *MultiStepDetector {
	return &MultiStepDetector{
		BaseDetector: NewBaseDetector(patterns.MultiStep.String(), 85, CategoryAgent),
		lib:          lib,
	}
}

// Detect pairs step matches for every known sequence
func (d *MultiStepDetector) Detect(ctx context.Context, content string, opts models.Options) ([]*models.Threat, error) {
	var threats []*models.Threat

	for _, seq := range d.lib.Sequences(opts.StrictMode) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, m := range patterns.MatchSequence(seq, content) {
			threats = append(threats, NewSequenceThreat(d.Name(), seq, content, m))
		}
	}

	return threats, nil
}
