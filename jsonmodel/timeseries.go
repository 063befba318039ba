package jsonmodel

import (
	"fmt"

	"github.com/YimingQiao/blitzcrank/bitio"
	"github.com/YimingQiao/blitzcrank/coding"
	"github.com/YimingQiao/blitzcrank/squid"
)

// tsLeaf wraps one time-series JSON leaf (§4.9, §4.11): the shared AR
// model's coefficients are fit once, on the longest training array, and
// every array's residuals are fed through the shared numerical sub-model.
type tsLeaf struct {
	order  int
	ts     *squid.TimeSeriesModel
	series [][]float64 // retained across Feed calls to refit coefficients once in EndOfData
	coeffs []float64
}

func newTSLeaf(order int, binSize float64) *tsLeaf {
	return &tsLeaf{order: order, ts: squid.NewTimeSeriesModel(order, binSize)}
}

func (t *tsLeaf) feed(series []float64) {
	t.series = append(t.series, append([]float64(nil), series...))
}

func (t *tsLeaf) endOfData() {
	var longest []float64
	for _, s := range t.series {
		if len(s) > len(longest) {
			longest = s
		}
	}
	t.coeffs = squid.FitCoefficients(longest, t.order)
	for _, s := range t.series {
		res := squid.Residuals(s, t.coeffs)
		for _, r := range res {
			t.ts.Residual().FeedRow(0, r, 1)
		}
	}
	t.ts.Residual().EndOfData()
}

func (t *tsLeaf) encode(enc *coding.Encoder, series []float64) error {
	res := squid.Residuals(series, t.coeffs)
	for _, r := range res {
		bin := t.ts.Residual().Bin(0, r)
		if err := enc.Encode(t.ts.Residual().BinInterval(0, bin)); err != nil {
			return fmt.Errorf("jsonmodel: encode time-series residual: %w", err)
		}
	}
	return nil
}

func (t *tsLeaf) writeModel(w *bitio.Writer) {
	squid.WriteCoefficients(w, t.coeffs)
	t.ts.Residual().WriteModel(w)
}

func (t *tsLeaf) decode(dec *coding.Decoder, n int) ([]float64, error) {
	res := make([]float64, n)
	for i := range res {
		table := t.ts.Residual().RowTable(0)
		code := dec.ScaledValue(table.Total())
		bin := table.Locate(code)
		if err := dec.Consume(table.Interval(bin)); err != nil {
			return nil, fmt.Errorf("jsonmodel: consume time-series residual: %w", err)
		}
		res[i] = t.ts.Residual().BinValue(0, bin)
	}
	return squid.Reconstruct(res, t.coeffs), nil
}

func readTSLeaf(r *bitio.Reader, order int) (*tsLeaf, error) {
	coeffs, err := squid.ReadCoefficients(r, order)
	if err != nil {
		return nil, fmt.Errorf("jsonmodel: read AR coefficients: %w", err)
	}
	m, err := squid.ReadNumericalModel(r, 1, false)
	if err != nil {
		return nil, fmt.Errorf("jsonmodel: read time-series residual model: %w", err)
	}
	t := &tsLeaf{order: order, coeffs: coeffs}
	t.ts = squid.NewTimeSeriesModel(order, m.BinSizeValue())
	t.ts.SetResidual(m)
	return t, nil
}
