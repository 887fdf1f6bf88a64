// Package bandit implements the contextual bandit that ranks candidate
// actions: one Bayesian linear regression model per action, scored by
// upper confidence bound or Thompson sampling.
package bandit

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/breaking-byts/lifeos/core/features"
)

// Default hyperparameters for the Gaussian prior and observation noise.
const (
	DefaultPriorPrecision = 1.0
	DefaultNoisePrecision = 1.0
	DefaultBeta           = 2.0

	// Step size for the gradient fallback when the precision matrix
	// cannot be inverted.
	gradientStep = 0.01
)

// Model holds the posterior over one action's linear reward function:
// weights w ~ N(mu, precision⁻¹).
type Model struct {
	mu             *mat.VecDense
	precision      *mat.Dense
	priorPrecision float64
	noisePrecision float64
}

// NewModel returns a fresh prior: zero mean, precision = priorPrecision·I.
func NewModel(priorPrecision, noisePrecision float64) *Model {
	dim := features.Dim
	precision := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		precision.Set(i, i, priorPrecision)
	}
	return &Model{
		mu:             mat.NewVecDense(dim, nil),
		precision:      precision,
		priorPrecision: priorPrecision,
		noisePrecision: noisePrecision,
	}
}

// Predict returns the posterior mean reward estimate mu·x.
func (m *Model) Predict(x []float64) float64 {
	return mat.Dot(m.mu, mat.NewVecDense(len(x), x))
}

// Uncertainty returns the posterior predictive standard deviation
// sqrt(xᵀ Λ⁻¹ x / noisePrecision). A singular precision matrix reads as
// maximal uncertainty rather than an error.
func (m *Model) Uncertainty(x []float64) float64 {
	var cov mat.Dense
	if err := cov.Inverse(m.precision); err != nil {
		return 1.0
	}

	xv := mat.NewVecDense(len(x), x)
	var tmp mat.VecDense
	tmp.MulVec(&cov, xv)
	variance := mat.Dot(xv, &tmp) / m.noisePrecision
	if variance < 0 {
		return 0
	}
	return math.Sqrt(variance)
}

// ThompsonSample draws weights from the posterior and scores the context
// with them. Falls back to the mean prediction when the covariance cannot
// be factorized.
func (m *Model) ThompsonSample(x []float64, rng *rand.Rand) float64 {
	var cov mat.Dense
	if err := cov.Inverse(m.precision); err != nil {
		return m.Predict(x)
	}

	dim := features.Dim
	sym := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			sym.SetSym(i, j, (cov.At(i, j)+cov.At(j, i))/2)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return m.Predict(x)
	}

	var lower mat.TriDense
	chol.LTo(&lower)

	z := mat.NewVecDense(dim, nil)
	for i := 0; i < dim; i++ {
		z.SetVec(i, rng.NormFloat64())
	}

	var noise mat.VecDense
	noise.MulVec(&lower, z)

	var w mat.VecDense
	w.AddVec(m.mu, &noise)

	return mat.Dot(&w, mat.NewVecDense(len(x), x))
}

// Update folds one (context, reward) observation into the posterior:
//
//	Λ ← Λ + noisePrecision·x·xᵀ
//	mu ← Λ⁻¹·(Λ_old·mu_old + noisePrecision·reward·x)
//
// If the updated precision cannot be inverted, degrade to a small gradient
// step on the mean instead of aborting.
func (m *Model) Update(x []float64, reward float64) {
	xv := mat.NewVecDense(len(x), x)

	var oldTerm mat.VecDense
	oldTerm.MulVec(m.precision, m.mu)

	var outer mat.Dense
	outer.Outer(m.noisePrecision, xv, xv)
	m.precision.Add(m.precision, &outer)

	var cov mat.Dense
	if err := cov.Inverse(m.precision); err != nil {
		pred := m.Predict(x)
		var step mat.VecDense
		step.ScaleVec(gradientStep*(reward-pred), xv)
		m.mu.AddVec(m.mu, &step)
		return
	}

	var rewardTerm mat.VecDense
	rewardTerm.ScaleVec(m.noisePrecision*reward, xv)
	oldTerm.AddVec(&oldTerm, &rewardTerm)

	var newMu mat.VecDense
	newMu.MulVec(&cov, &oldTerm)
	m.mu.CopyVec(&newMu)
}

// Contribution is one feature's share of the mean prediction.
type Contribution struct {
	Index int
	Name  string
	Value float64
}

// Contributions returns per-feature terms x_i·mu_i ordered by absolute
// magnitude descending. Summed, they equal Predict(x).
func (m *Model) Contributions(x []float64) []Contribution {
	out := make([]Contribution, len(x))
	for i, f := range x {
		out[i] = Contribution{
			Index: i,
			Name:  features.Name(i),
			Value: f * m.mu.AtVec(i),
		}
	}
	sortByAbs(out)
	return out
}

func sortByAbs(cs []Contribution) {
	sort.SliceStable(cs, func(i, j int) bool {
		return math.Abs(cs[i].Value) > math.Abs(cs[j].Value)
	})
}
