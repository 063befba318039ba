package squid

import (
	"github.com/YimingQiao/blitzcrank/bitio"
	"github.com/YimingQiao/blitzcrank/numeric"
)

// defaultARDOrder is the auto-regressive order used when fitting
// coefficients over a time-series array (§4.9).
const defaultARDOrder = 5

// maxARFitSamples bounds how many leading samples the coefficient fit uses.
const maxARFitSamples = 5000

// TimeSeriesModel holds the AR coefficients and a numerical residual model
// (§3, §4.9). Coefficients are fit once from the training data, written to
// the stream as f32, and read back by the decoder, which does not refit (it
// only needs them to reconstruct values from residuals).
type TimeSeriesModel struct {
	order    int
	residual *NumericalModel
}

// NewTimeSeriesModel allocates a model with the given AR order and a
// residual numerical sub-model sized for one row.
func NewTimeSeriesModel(order int, binSize float64) *TimeSeriesModel {
	if order <= 0 {
		order = defaultARDOrder
	}
	return &TimeSeriesModel{order: order, residual: NewNumericalModel(1, binSize, false)}
}

// FitCoefficients solves the normal equations X^T X a = X^T y for the AR(d)
// coefficient vector via Gaussian elimination (Open Question: OLS, not
// Yule-Walker, restores coefficients - see DESIGN.md).
func FitCoefficients(series []float64, order int) []float64 {
	n := len(series)
	if n <= order {
		return make([]float64, order)
	}
	if n > maxARFitSamples {
		n = maxARFitSamples
	}
	rows := n - order
	if rows <= 0 {
		return make([]float64, order)
	}

	xtx := make([][]float64, order)
	for i := range xtx {
		xtx[i] = make([]float64, order)
	}
	xty := make([]float64, order)

	for t := order; t < n; t++ {
		x := make([]float64, order)
		for j := 0; j < order; j++ {
			x[j] = series[t-1-j]
		}
		y := series[t]
		for i := 0; i < order; i++ {
			xty[i] += x[i] * y
			for j := 0; j < order; j++ {
				xtx[i][j] += x[i] * x[j]
			}
		}
	}
	coeffs := gaussianSolve(xtx, xty)
	for i := range coeffs {
		coeffs[i] = numeric.NarrowF32(coeffs[i])
	}
	return coeffs
}

// gaussianSolve solves Ax=b via Gauss-Jordan elimination with partial
// pivoting, returning a zero vector if A is singular.
func gaussianSolve(a [][]float64, b []float64) []float64 {
	n := len(b)
	aug := make([][]float64, n)
	for i := range aug {
		aug[i] = append(append([]float64(nil), a[i]...), b[i])
	}
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if abs(aug[r][col]) > abs(aug[pivot][col]) {
				pivot = r
			}
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]
		if abs(aug[col][col]) < 1e-12 {
			return make([]float64, n)
		}
		pv := aug[col][col]
		for k := col; k <= n; k++ {
			aug[col][k] /= pv
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := aug[r][col]
			for k := col; k <= n; k++ {
				aug[r][k] -= factor * aug[col][k]
			}
		}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = aug[i][n]
	}
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Residuals applies coefficients to series and returns the residual array
// the numerical sub-model actually codes.
func Residuals(series []float64, coeffs []float64) []float64 {
	order := len(coeffs)
	out := make([]float64, len(series))
	for t := range series {
		pred := 0.0
		for j := 0; j < order && t-1-j >= 0; j++ {
			pred += coeffs[j] * series[t-1-j]
		}
		out[t] = series[t] - pred
	}
	return out
}

// Reconstruct inverts Residuals given the same coefficients, rebuilding the
// original array value by value.
func Reconstruct(residuals []float64, coeffs []float64) []float64 {
	order := len(coeffs)
	out := make([]float64, len(residuals))
	for t := range residuals {
		pred := 0.0
		for j := 0; j < order && t-1-j >= 0; j++ {
			pred += coeffs[j] * out[t-1-j]
		}
		out[t] = residuals[t] + pred
	}
	return out
}

func (m *TimeSeriesModel) Residual() *NumericalModel { return m.residual }
func (m *TimeSeriesModel) Order() int                { return m.order }

// SetResidual replaces the residual sub-model, used when reconstructing a
// TimeSeriesModel from a NumericalModel already read off the wire.
func (m *TimeSeriesModel) SetResidual(r *NumericalModel) { m.residual = r }

// WriteCoefficients writes one AR coefficient vector as four bytes each
// (IEEE-754 single precision, §4.9).
func WriteCoefficients(w *bitio.Writer, coeffs []float64) {
	for _, c := range coeffs {
		w.WriteU32(numeric.PackF32(c))
	}
}

// ReadCoefficients is WriteCoefficients's inverse.
func ReadCoefficients(r *bitio.Reader, order int) ([]float64, error) {
	out := make([]float64, order)
	for i := range out {
		bits, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		out[i] = numeric.UnpackF32(bits)
	}
	return out, nil
}
