// Package effect deterministically injects a controlled treatment signal
// into the Active arm of a generated dataset.
package effect

import (
	"vitalsynth/domain/vitals"
	"vitalsynth/internal/constraint"
)

// OnsetCurve selects how much of the target effect applies before the
// endpoint visit. The exact pre-endpoint policy is an assumption, so it is
// configurable rather than hard-coded.
type OnsetCurve string

const (
	// OnsetLinear applies visit_index / endpoint_index of the effect at
	// each earlier visit, a plausible gradual onset.
	OnsetLinear OnsetCurve = "linear"
	// OnsetStep applies the full effect at the endpoint visit only.
	OnsetStep OnsetCurve = "step"
)

// Config controls the injection
type Config struct {
	TargetEffect  float64      `json:"target_effect"`
	EndpointVisit vitals.Visit `json:"endpoint_visit"`
	Onset         OnsetCurve   `json:"onset"`
}

// DefaultConfig injects at Week12 with linear onset
func DefaultConfig(targetEffect float64) Config {
	return Config{
		TargetEffect:  targetEffect,
		EndpointVisit: vitals.VisitWeek12,
		Onset:         OnsetLinear,
	}
}

// Inject shifts Active-arm SystolicBP values toward the target effect (a
// negative effect is a reduction) and re-runs constraint enforcement, since
// an additive shift can break range or differential invariants. The input
// slice is never mutated.
func Inject(records []vitals.Record, cfg Config) ([]vitals.Record, error) {
	endpointIdx := vitals.VisitIndex(cfg.EndpointVisit)
	if endpointIdx < 0 {
		return nil, vitals.NewSchemaError("endpoint_visit", "unknown visit %q", cfg.EndpointVisit)
	}

	out := make([]vitals.Record, len(records))
	copy(out, records)
	for i := range out {
		if out[i].TreatmentArm != vitals.ArmActive {
			continue
		}
		frac := onsetFraction(cfg.Onset, vitals.VisitIndex(out[i].VisitName), endpointIdx)
		if frac == 0 {
			continue
		}
		out[i].SetValue(vitals.ColSystolicBP, float64(out[i].SystolicBP)+frac*cfg.TargetEffect)
	}

	out = constraint.Enforce(out)
	if err := constraint.Audit(out); err != nil {
		return nil, err
	}
	return out, nil
}

// onsetFraction returns the share of the target effect applied at a visit
func onsetFraction(curve OnsetCurve, visitIdx, endpointIdx int) float64 {
	if visitIdx < 0 || visitIdx > endpointIdx {
		// Visits after the endpoint keep the full effect.
		if visitIdx > endpointIdx {
			return 1
		}
		return 0
	}
	if visitIdx == endpointIdx {
		return 1
	}
	switch curve {
	case OnsetStep:
		return 0
	default: // linear
		if endpointIdx == 0 {
			return 0
		}
		return float64(visitIdx) / float64(endpointIdx)
	}
}
