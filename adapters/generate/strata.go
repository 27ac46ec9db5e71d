// Package generate implements the interchangeable vitals generation
// strategies (mvn, bootstrap, rules) behind the ports.Generator contract.
package generate

import (
	"fmt"
	"math/rand"
	"time"

	"vitalsynth/domain/vitals"
)

// stratumKey identifies one (visit, arm) cell of the reference dataset
type stratumKey struct {
	visit vitals.Visit
	arm   vitals.Arm
}

// stratify splits reference records into (visit, arm) cells. Iteration over
// the result must use the canonical visit/arm order, never map order.
func stratify(records []vitals.Record) map[stratumKey][]vitals.Record {
	strata := make(map[stratumKey][]vitals.Record)
	for _, rec := range records {
		key := stratumKey{visit: rec.VisitName, arm: rec.TreatmentArm}
		strata[key] = append(strata[key], rec)
	}
	return strata
}

// columnVector extracts one column from a stratum as a float slice
func columnVector(records []vitals.Record, c vitals.Column) []float64 {
	out := make([]float64, len(records))
	for i, rec := range records {
		out[i] = rec.Value(c)
	}
	return out
}

// newRand builds the per-call random source. A nil request seed falls back
// to wall-clock nanoseconds; callers wanting reproducibility supply a seed.
func newRand(req vitals.GenerationRequest) *rand.Rand {
	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}
	return rand.New(rand.NewSource(seed))
}

// subjectID names a synthetic subject. Numbering runs across both arms
// (Active 1..n, Placebo n+1..2n) so ids stay unique within one dataset.
func subjectID(n int) string {
	return fmt.Sprintf("SYN-%04d", n)
}
