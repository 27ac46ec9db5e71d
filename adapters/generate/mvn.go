package generate

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"vitalsynth/domain/vitals"
	"vitalsynth/internal/constraint"
)

// minStratumRows is the floor for covariance estimation per (visit, arm)
const minStratumRows = 2

// mvnModel holds the fitted multivariate normal for one stratum
type mvnModel struct {
	mean []float64
	// chol is the lower Cholesky factor of the (possibly regularized)
	// covariance matrix
	chol *mat.TriDense
}

// MVNGenerator samples correlated vitals from per-stratum multivariate
// normal distributions fitted to the reference dataset.
type MVNGenerator struct{}

// NewMVNGenerator creates the mvn strategy
func NewMVNGenerator() *MVNGenerator {
	return &MVNGenerator{}
}

// Name returns the method this strategy serves
func (g *MVNGenerator) Name() vitals.Method {
	return vitals.MethodMVN
}

// Generate fits one MVN per (visit, arm) and draws n_per_arm correlated
// samples per stratum, rounding to native precision and enforcing
// constraints before returning.
func (g *MVNGenerator) Generate(ctx context.Context, req vitals.GenerationRequest, ref vitals.ReferenceDataset) ([]vitals.Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	strata := stratify(ref.Records)
	models := make(map[stratumKey]mvnModel, len(strata))
	for _, visit := range vitals.Visits() {
		for _, arm := range vitals.Arms() {
			key := stratumKey{visit: visit, arm: arm}
			rows := strata[key]
			if len(rows) < minStratumRows {
				return nil, vitals.NewInsufficientDataError(
					fmt.Sprintf("mvn covariance for %s/%s", visit, arm), len(rows), minStratumRows)
			}
			model, err := fitMVN(rows, req)
			if err != nil {
				return nil, err
			}
			models[key] = model
		}
	}

	rng := newRand(req)
	cols := vitals.Columns()
	records := make([]vitals.Record, 0, req.ExpectedCount())
	for armIdx, arm := range vitals.Arms() {
		for i := 0; i < req.NPerArm; i++ {
			id := subjectID(armIdx*req.NPerArm + i + 1)
			for _, visit := range vitals.Visits() {
				model := models[stratumKey{visit: visit, arm: arm}]
				sample := drawMVN(rng, model)
				rec := vitals.Record{SubjectID: id, VisitName: visit, TreatmentArm: arm}
				for ci, c := range cols {
					rec.SetValue(c, sample[ci])
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

// fitMVN estimates mean and covariance for one stratum, applying any
// caller overrides and regularizing until the covariance factorizes.
func fitMVN(rows []vitals.Record, req vitals.GenerationRequest) (mvnModel, error) {
	cols := vitals.Columns()
	n, d := len(rows), len(cols)

	data := mat.NewDense(n, d, nil)
	for ri, rec := range rows {
		for ci, c := range cols {
			data.Set(ri, ci, rec.Value(c))
		}
	}

	mean := make([]float64, d)
	for ci, c := range cols {
		mean[ci] = stat.Mean(mat.Col(nil, ci, data), nil)
		if m, ok := req.Override(c, "mean"); ok {
			mean[ci] = m
		}
	}

	cov := mat.NewSymDense(d, nil)
	stat.CovarianceMatrix(cov, data, nil)

	// Scale a row/column pair when the caller overrides a std, keeping the
	// correlation structure intact.
	for ci, c := range cols {
		s, ok := req.Override(c, "std")
		if !ok {
			continue
		}
		cur := cov.At(ci, ci)
		if cur <= 0 {
			cov.SetSym(ci, ci, s*s)
			continue
		}
		factor := s / math.Sqrt(cur)
		for cj := 0; cj < d; cj++ {
			if cj == ci {
				continue
			}
			cov.SetSym(ci, cj, cov.At(ci, cj)*factor)
		}
		cov.SetSym(ci, ci, s*s)
	}

	chol, err := factorizeWithRegularization(cov)
	if err != nil {
		return mvnModel{}, err
	}
	return mvnModel{mean: mean, chol: chol}, nil
}

// factorizeWithRegularization attempts a Cholesky factorization, adding an
// escalating small positive value to the diagonal when the estimated
// covariance is not positive-definite. Sparse strata commonly need this;
// it is a recoverable condition, not an error.
func factorizeWithRegularization(cov *mat.SymDense) (*mat.TriDense, error) {
	d, _ := cov.Dims()

	traceMean := 0.0
	for i := 0; i < d; i++ {
		traceMean += cov.At(i, i)
	}
	traceMean /= float64(d)
	if traceMean <= 0 {
		traceMean = 1.0
	}

	eps := 0.0
	var chol mat.Cholesky
	for attempt := 0; attempt < 8; attempt++ {
		work := mat.NewSymDense(d, nil)
		work.CopySym(cov)
		for i := 0; i < d; i++ {
			work.SetSym(i, i, work.At(i, i)+eps)
		}
		if chol.Factorize(work) {
			tri := mat.NewTriDense(d, mat.Lower, nil)
			chol.LTo(tri)
			return tri, nil
		}
		if eps == 0 {
			eps = 1e-6 * traceMean
		} else {
			eps *= 10
		}
	}
	return nil, fmt.Errorf("covariance matrix not factorizable after regularization")
}

// drawMVN samples x = mean + L*z with z ~ N(0, I)
func drawMVN(rng *rand.Rand, model mvnModel) []float64 {
	d := len(model.mean)
	z := make([]float64, d)
	for i := range z {
		z[i] = rng.NormFloat64()
	}
	x := make([]float64, d)
	for i := 0; i < d; i++ {
		sum := model.mean[i]
		for j := 0; j <= i; j++ {
			sum += model.chol.At(i, j) * z[j]
		}
		x[i] = sum
	}
	return x
}
