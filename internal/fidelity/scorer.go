// Package fidelity scores how faithfully a synthetic vitals dataset
// reproduces the reference distribution, combining per-column Wasserstein
// distances, correlation preservation, quantile RMSE, and a k-NN
// imputation probe into one composite quality score.
package fidelity

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"vitalsynth/domain/vitals"
)

// Composite weights and classification thresholds. Fixed by convention;
// the report's summary string explains the classification to humans.
const (
	weightWasserstein = 0.30
	weightCorrelation = 0.30
	weightRMSE        = 0.15
	weightKNN         = 0.25

	thresholdExcellent = 0.85
	thresholdGood      = 0.70
)

// rmseQuantiles are the matched quantiles compared per column
var rmseQuantiles = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90}

// Config controls one scoring run. MaskFrac and MaskSeed parameterize the
// k-NN probe; the seed is explicit so the report is bit-for-bit
// reproducible for the same inputs.
type Config struct {
	K        int     `json:"k"`
	MaskFrac float64 `json:"mask_frac"`
	MaskSeed int64   `json:"mask_seed"`
}

// DefaultConfig returns the standard scoring configuration for a given k
func DefaultConfig(k int) Config {
	return Config{K: k, MaskFrac: 0.2, MaskSeed: 1}
}

// ColumnSummary is a compact per-column descriptive table included for the
// presentation layer.
type ColumnSummary struct {
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Q25    float64 `json:"q25"`
	Median float64 `json:"median"`
	Q75    float64 `json:"q75"`
}

// QualityReport is the immutable result of one scoring run
type QualityReport struct {
	WassersteinDistances    map[vitals.Column]float64       `json:"wasserstein_distances"`
	CorrelationPreservation float64                         `json:"correlation_preservation"`
	RMSEByColumn            map[vitals.Column]float64       `json:"rmse_by_column"`
	KNNImputationScore      float64                         `json:"knn_imputation_score"`
	OverallQualityScore     float64                         `json:"overall_quality_score"`
	Summary                 string                          `json:"summary"`
	ReferenceSummary        map[vitals.Column]ColumnSummary `json:"reference_summary,omitempty"`
	SyntheticSummary        map[vitals.Column]ColumnSummary `json:"synthetic_summary,omitempty"`
}

// Score compares a synthetic dataset against the reference using the
// default configuration for k.
func Score(reference, synthetic []vitals.Record, k int) (QualityReport, error) {
	return ScoreWithConfig(reference, synthetic, DefaultConfig(k))
}

// ScoreWithConfig runs the four metric families, in parallel, and folds
// them into the composite score. Deterministic for fixed inputs and config.
func ScoreWithConfig(reference, synthetic []vitals.Record, cfg Config) (QualityReport, error) {
	if cfg.K < 1 {
		return QualityReport{}, vitals.NewSchemaError("k", "must be positive, got %d", cfg.K)
	}
	if len(reference) < cfg.K {
		return QualityReport{}, vitals.NewInsufficientDataError("k-NN scoring of reference", len(reference), cfg.K)
	}
	if len(synthetic) < cfg.K {
		return QualityReport{}, vitals.NewInsufficientDataError("k-NN scoring of synthetic", len(synthetic), cfg.K)
	}
	if len(reference) < 2 || len(synthetic) < 2 {
		return QualityReport{}, vitals.NewInsufficientDataError("correlation estimation", min(len(reference), len(synthetic)), 2)
	}

	report := QualityReport{}

	// Each goroutine owns disjoint report fields, so the parallelism
	// cannot perturb the result.
	var g errgroup.Group
	g.Go(func() error {
		report.WassersteinDistances = wassersteinByColumn(reference, synthetic)
		return nil
	})
	g.Go(func() error {
		report.CorrelationPreservation = correlationPreservation(reference, synthetic)
		return nil
	})
	g.Go(func() error {
		var err error
		report.RMSEByColumn, err = rmseByColumn(reference, synthetic)
		if err != nil {
			return err
		}
		report.ReferenceSummary = summarize(reference)
		report.SyntheticSummary = summarize(synthetic)
		return nil
	})
	g.Go(func() error {
		report.KNNImputationScore = knnImputationScore(reference, synthetic, cfg)
		return nil
	})
	if err := g.Wait(); err != nil {
		return QualityReport{}, err
	}

	report.OverallQualityScore = composite(report)
	report.Summary = classify(report.OverallQualityScore)
	return report, nil
}

func wassersteinByColumn(reference, synthetic []vitals.Record) map[vitals.Column]float64 {
	out := make(map[vitals.Column]float64, len(vitals.Columns()))
	for _, c := range vitals.Columns() {
		out[c] = wasserstein(column(reference, c), column(synthetic, c))
	}
	return out
}

// correlationPreservation compares the two pairwise correlation matrices
// and reports 1 minus the mean absolute entry difference, clamped to [0,1].
func correlationPreservation(reference, synthetic []vitals.Record) float64 {
	corrRef := correlationMatrix(reference)
	corrSyn := correlationMatrix(synthetic)

	cols := len(vitals.Columns())
	var totalDiff float64
	var pairs int
	for i := 0; i < cols; i++ {
		for j := i + 1; j < cols; j++ {
			a, b := corrRef.At(i, j), corrSyn.At(i, j)
			switch {
			case math.IsNaN(a) && math.IsNaN(b):
				// Both undefined (constant column in both); no penalty.
			case math.IsNaN(a) || math.IsNaN(b):
				totalDiff += 1
			default:
				totalDiff += math.Abs(a - b)
			}
			pairs++
		}
	}
	if pairs == 0 {
		return 1
	}
	return clamp01(1 - totalDiff/float64(pairs))
}

func correlationMatrix(records []vitals.Record) *mat.SymDense {
	cols := vitals.Columns()
	data := mat.NewDense(len(records), len(cols), nil)
	for ri, rec := range records {
		for ci, c := range cols {
			data.Set(ri, ci, rec.Value(c))
		}
	}
	corr := mat.NewSymDense(len(cols), nil)
	stat.CorrelationMatrix(corr, data, nil)
	return corr
}

// rmseByColumn measures root-mean-square deviation between matched decile
// values of the two marginals, a coarse accuracy signal per column.
func rmseByColumn(reference, synthetic []vitals.Record) (map[vitals.Column]float64, error) {
	out := make(map[vitals.Column]float64, len(vitals.Columns()))
	for _, c := range vitals.Columns() {
		refCol := column(reference, c)
		synCol := column(synthetic, c)
		sumSq := 0.0
		for _, q := range rmseQuantiles {
			qr, err := stats.Percentile(refCol, q)
			if err != nil {
				return nil, fmt.Errorf("percentile %s: %w", c, err)
			}
			qs, err := stats.Percentile(synCol, q)
			if err != nil {
				return nil, fmt.Errorf("percentile %s: %w", c, err)
			}
			d := qr - qs
			sumSq += d * d
		}
		out[c] = math.Sqrt(sumSq / float64(len(rmseQuantiles)))
	}
	return out, nil
}

func summarize(records []vitals.Record) map[vitals.Column]ColumnSummary {
	out := make(map[vitals.Column]ColumnSummary, len(vitals.Columns()))
	for _, c := range vitals.Columns() {
		values := column(records, c)
		mean := stat.Mean(values, nil)
		sd := math.Sqrt(stat.Variance(values, nil))
		q25, _ := stats.Percentile(values, 25)
		median, _ := stats.Median(values)
		q75, _ := stats.Percentile(values, 75)
		out[c] = ColumnSummary{Mean: mean, Std: sd, Q25: q25, Median: median, Q75: q75}
	}
	return out
}

// composite folds the metric families into one [0,1] score. Wasserstein
// and RMSE are normalized by each column's valid range width before they
// become "higher is better" components.
func composite(report QualityReport) float64 {
	wassComp := 0.0
	rmseComp := 0.0
	for _, c := range vitals.Columns() {
		width := vitals.ColumnRange(c).Max - vitals.ColumnRange(c).Min
		wassComp += clamp01(1 - report.WassersteinDistances[c]/width)
		rmseComp += clamp01(1 - report.RMSEByColumn[c]/width)
	}
	n := float64(len(vitals.Columns()))
	wassComp /= n
	rmseComp /= n

	score := weightWasserstein*wassComp +
		weightCorrelation*report.CorrelationPreservation +
		weightRMSE*rmseComp +
		weightKNN*report.KNNImputationScore
	return clamp01(score)
}

func classify(score float64) string {
	switch {
	case score >= thresholdExcellent:
		return fmt.Sprintf("excellent: synthetic data closely reproduces the reference distribution (score %.3f)", score)
	case score >= thresholdGood:
		return fmt.Sprintf("good: synthetic data broadly matches the reference distribution (score %.3f)", score)
	default:
		return fmt.Sprintf("needs improvement: synthetic data diverges from the reference distribution (score %.3f)", score)
	}
}

func column(records []vitals.Record, c vitals.Column) []float64 {
	out := make([]float64, len(records))
	for i, rec := range records {
		out[i] = rec.Value(c)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
