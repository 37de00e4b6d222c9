package forecast

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// scaler standardizes features to zero mean and unit variance. Constant
// columns keep a unit scale so transform stays defined.
type scaler struct {
	mean []float64
	std  []float64
}

func fitScaler(X [][]float64) *scaler {
	p := len(X[0])
	s := &scaler{mean: make([]float64, p), std: make([]float64, p)}
	col := make([]float64, len(X))
	for j := 0; j < p; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		s.mean[j] = stat.Mean(col, nil)
		s.std[j] = popStdDev(col, s.mean[j])
		if s.std[j] == 0 {
			s.std[j] = 1
		}
	}
	return s
}

func (s *scaler) transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j := range x {
		out[j] = (x[j] - s.mean[j]) / s.std[j]
	}
	return out
}

func (s *scaler) transformAll(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i := range X {
		out[i] = s.transform(X[i])
	}
	return out
}

// ridge is an L2-regularized least squares fit. The intercept is not
// penalized: with standardized features it is simply the mean response, and
// the coefficients solve (XᵀX + αI)β = Xᵀ(y − ȳ).
type ridge struct {
	alpha     float64
	coef      []float64
	intercept float64
}

func (r *ridge) fit(X [][]float64, y []float64) error {
	n := len(X)
	p := len(X[0])

	ybar := stat.Mean(y, nil)
	centered := make([]float64, n)
	flat := make([]float64, 0, n*p)
	for i := range X {
		centered[i] = y[i] - ybar
		flat = append(flat, X[i]...)
	}

	xm := mat.NewDense(n, p, flat)

	var xtx mat.Dense
	xtx.Mul(xm.T(), xm)
	for j := 0; j < p; j++ {
		xtx.Set(j, j, xtx.At(j, j)+r.alpha)
	}

	var xty mat.VecDense
	xty.MulVec(xm.T(), mat.NewVecDense(n, centered))

	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		return err
	}

	r.coef = make([]float64, p)
	for j := 0; j < p; j++ {
		r.coef[j] = beta.AtVec(j)
	}
	r.intercept = ybar
	return nil
}

func (r *ridge) predict(x []float64) float64 {
	pred := r.intercept
	for j, c := range r.coef {
		pred += c * x[j]
	}
	return pred
}

// seasonalFeatures encodes a calendar month on the unit circle.
func seasonalFeatures(month int) (sin, cos float64) {
	angle := 2 * math.Pi * float64(month) / 12
	return math.Sin(angle), math.Cos(angle)
}

func popStdDev(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
