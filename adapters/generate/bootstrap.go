package generate

import (
	"context"
	"fmt"

	"github.com/montanaflynn/stats"

	"vitalsynth/domain/vitals"
	"vitalsynth/internal/constraint"
)

// BootstrapGenerator resamples reference rows with replacement per
// (visit, arm) stratum, perturbing each numeric field with Gaussian jitter
// scaled by jitter_frac x column std.
type BootstrapGenerator struct{}

// NewBootstrapGenerator creates the bootstrap strategy
func NewBootstrapGenerator() *BootstrapGenerator {
	return &BootstrapGenerator{}
}

// Name returns the method this strategy serves
func (g *BootstrapGenerator) Name() vitals.Method {
	return vitals.MethodBootstrap
}

// Generate draws resampled, jittered records. Jitter can push values past
// range bounds or break the BP differential, so constraints are re-applied
// after sampling.
func (g *BootstrapGenerator) Generate(ctx context.Context, req vitals.GenerationRequest, ref vitals.ReferenceDataset) ([]vitals.Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	strata := stratify(ref.Records)
	cols := vitals.Columns()

	// Per-stratum jitter scale, fixed before sampling so draw order is the
	// only consumer of the random stream.
	type stratumScale map[vitals.Column]float64
	scales := make(map[stratumKey]stratumScale, len(strata))
	for _, visit := range vitals.Visits() {
		for _, arm := range vitals.Arms() {
			key := stratumKey{visit: visit, arm: arm}
			rows := strata[key]
			if len(rows) == 0 {
				return nil, vitals.NewInsufficientDataError(
					fmt.Sprintf("bootstrap stratum %s/%s", visit, arm), 0, 1)
			}
			scale := make(stratumScale, len(cols))
			for _, c := range cols {
				scale[c] = jitterScale(rows, c, req.JitterFrac)
			}
			scales[key] = scale
		}
	}

	rng := newRand(req)
	records := make([]vitals.Record, 0, req.ExpectedCount())
	for armIdx, arm := range vitals.Arms() {
		for i := 0; i < req.NPerArm; i++ {
			id := subjectID(armIdx*req.NPerArm + i + 1)
			for _, visit := range vitals.Visits() {
				key := stratumKey{visit: visit, arm: arm}
				rows := strata[key]
				src := rows[rng.Intn(len(rows))]

				rec := vitals.Record{SubjectID: id, VisitName: visit, TreatmentArm: arm}
				for _, c := range cols {
					v := src.Value(c)
					if s := scales[key][c]; s > 0 {
						v += rng.NormFloat64() * s
					}
					rec.SetValue(c, v)
				}
				records = append(records, rec)
			}
		}
	}

	records = constraint.Enforce(records)
	if err := constraint.Audit(records); err != nil {
		return nil, err
	}
	return records, nil
}

// jitterScale returns jitter_frac x sample std for one stratum column.
// A single-row stratum has no spread to estimate, so it gets zero jitter
// rather than an error.
func jitterScale(rows []vitals.Record, c vitals.Column, frac float64) float64 {
	if frac == 0 || len(rows) < 2 {
		return 0
	}
	sd, err := stats.StandardDeviationSample(columnVector(rows, c))
	if err != nil {
		return 0
	}
	return frac * sd
}
