// Package analysis computes the two-arm treatment-effect hypothesis test
// used by end users and by the fidelity scorer's sanity checks.
package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"vitalsynth/domain/vitals"
)

// significanceAlpha is the fixed two-sided threshold; a convention of the
// analysis, not a configuration knob.
const significanceAlpha = 0.05

// ArmStats summarizes one treatment arm at a visit
type ArmStats struct {
	N             int     `json:"n"`
	Mean          float64 `json:"mean"`
	Std           float64 `json:"std"`
	StandardError float64 `json:"standard_error"`
}

// TreatmentEffectResult is the full Welch two-sample comparison between
// the Active and Placebo arms at one visit.
type TreatmentEffectResult struct {
	Visit        vitals.Visit  `json:"visit"`
	Column       vitals.Column `json:"column"`
	Active       ArmStats      `json:"active"`
	Placebo      ArmStats      `json:"placebo"`
	Difference   float64       `json:"difference"`
	SEDifference float64       `json:"se_difference"`
	TStatistic   float64       `json:"t_statistic"`
	PValue       float64       `json:"p_value"`
	CI95Lower    float64       `json:"ci_95_lower"`
	CI95Upper    float64       `json:"ci_95_upper"`
	Significant  bool          `json:"significant"`
}

// WeekNEffect splits records by arm at the given visit and runs Welch's
// two-sample t-test on the chosen column (Active minus Placebo), with an
// exact Student's t p-value and a 95% confidence interval.
func WeekNEffect(records []vitals.Record, visit vitals.Visit, column vitals.Column) (TreatmentEffectResult, error) {
	if vitals.VisitIndex(visit) < 0 {
		return TreatmentEffectResult{}, vitals.NewSchemaError("visit", "unknown visit %q", visit)
	}

	var active, placebo []float64
	for _, rec := range records {
		if rec.VisitName != visit {
			continue
		}
		v := rec.Value(column)
		switch rec.TreatmentArm {
		case vitals.ArmActive:
			active = append(active, v)
		case vitals.ArmPlacebo:
			placebo = append(placebo, v)
		}
	}

	if len(active) < 2 {
		return TreatmentEffectResult{}, vitals.NewInsufficientDataError(
			fmt.Sprintf("t-test Active arm at %s", visit), len(active), 2)
	}
	if len(placebo) < 2 {
		return TreatmentEffectResult{}, vitals.NewInsufficientDataError(
			fmt.Sprintf("t-test Placebo arm at %s", visit), len(placebo), 2)
	}

	result := TreatmentEffectResult{
		Visit:   visit,
		Column:  column,
		Active:  armStats(active),
		Placebo: armStats(placebo),
	}

	nA, nP := float64(len(active)), float64(len(placebo))
	varA := result.Active.Std * result.Active.Std
	varP := result.Placebo.Std * result.Placebo.Std

	result.Difference = result.Active.Mean - result.Placebo.Mean
	result.SEDifference = math.Sqrt(varA/nA + varP/nP)

	if result.SEDifference == 0 {
		// Two constant arms: either identical (no effect) or trivially
		// separated. Degenerate but not an error.
		result.PValue = 1
		if result.Difference != 0 {
			result.PValue = 0
		}
		result.CI95Lower = result.Difference
		result.CI95Upper = result.Difference
		result.Significant = result.PValue < significanceAlpha
		return result, nil
	}

	result.TStatistic = result.Difference / result.SEDifference

	// Welch-Satterthwaite degrees of freedom.
	df := math.Pow(varA/nA+varP/nP, 2) /
		(math.Pow(varA/nA, 2)/(nA-1) + math.Pow(varP/nP, 2)/(nP-1))

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	result.PValue = 2 * (1 - tDist.CDF(math.Abs(result.TStatistic)))
	tCrit := tDist.Quantile(1 - significanceAlpha/2)
	result.CI95Lower = result.Difference - tCrit*result.SEDifference
	result.CI95Upper = result.Difference + tCrit*result.SEDifference
	result.Significant = result.PValue < significanceAlpha

	return result, nil
}

func armStats(values []float64) ArmStats {
	mean := stat.Mean(values, nil)
	sd := math.Sqrt(stat.Variance(values, nil))
	return ArmStats{
		N:             len(values),
		Mean:          mean,
		Std:           sd,
		StandardError: sd / math.Sqrt(float64(len(values))),
	}
}
