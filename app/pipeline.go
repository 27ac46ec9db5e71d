// Package app wires the generation pipeline: strategy, constraint
// enforcement, and treatment-effect injection, in that fixed order.
package app

import (
	"context"

	"vitalsynth/adapters/generate"
	"vitalsynth/domain/vitals"
	"vitalsynth/internal/constraint"
	"vitalsynth/internal/effect"
)

// PipelineService runs one generation request end to end. It holds only
// configuration, never per-request state, so one instance serves
// concurrent callers.
type PipelineService struct {
	rules generate.RuleTable
	onset effect.OnsetCurve
}

// Option configures a PipelineService
type Option func(*PipelineService)

// WithRuleTable overrides the rule-based strategy's distribution table
func WithRuleTable(table generate.RuleTable) Option {
	return func(s *PipelineService) { s.rules = table }
}

// WithOnsetCurve overrides the pre-endpoint effect interpolation policy
func WithOnsetCurve(curve effect.OnsetCurve) Option {
	return func(s *PipelineService) { s.onset = curve }
}

// NewPipelineService creates the pipeline with default configuration
func NewPipelineService(opts ...Option) *PipelineService {
	s := &PipelineService{onset: effect.OnsetLinear}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate produces a complete synthetic dataset: strategy output (already
// constraint-enforced), then treatment-effect injection at Week12, then a
// second enforcement pass and a final audit.
func (s *PipelineService) Generate(ctx context.Context, req vitals.GenerationRequest, ref vitals.ReferenceDataset) ([]vitals.Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	gen, err := generate.New(req.Method, s.rules)
	if err != nil {
		return nil, err
	}

	records, err := gen.Generate(ctx, req, ref)
	if err != nil {
		return nil, err
	}

	if req.TargetEffect != 0 {
		cfg := effect.DefaultConfig(req.TargetEffect)
		cfg.Onset = s.onset
		records, err = effect.Inject(records, cfg)
		if err != nil {
			return nil, err
		}
	}

	records = constraint.Enforce(records)
	if err := constraint.Audit(records); err != nil {
		return nil, err
	}
	return records, nil
}
