// Package compressor wires the registry, learner, and squid packages into
// end-to-end relational and JSON compressors, matching the compressed file
// layout and CLI surface described by the external interfaces.
package compressor

import (
	"fmt"

	"github.com/YimingQiao/blitzcrank/bitio"
	"github.com/YimingQiao/blitzcrank/coding"
	"github.com/YimingQiao/blitzcrank/registry"
	"github.com/YimingQiao/blitzcrank/schema"
	"github.com/YimingQiao/blitzcrank/squid"
)

// attrModel is the uniform interface the relational driver needs over one
// column's model, whatever attribute family it belongs to. registry.SquIDModel
// covers categorical and categorical-Markov directly; numerical, string, and
// time-series each need their own adapter since their underlying squid types
// don't share that exact shape (numerical is row-indexed externally, string
// codes a whole value with no predictor cross-product at all, time-series
// needs running history instead of a predictor tuple).
type attrModel interface {
	Feed(t schema.Tuple, count int)
	EndOfData()
	Cost() float64
	DescriptionLength() int
	WriteModel(w *bitio.Writer)
	Encode(enc *coding.Encoder, t schema.Tuple) error
	Decode(dec *coding.Decoder, t *schema.Tuple) error
	Predictors() []int
}

// resettable is implemented by attrModels that carry running state across
// tuples (categorical-Markov, time-series); the relational driver calls
// Reset at the start of every block so blocks stay independently decodable.
type resettable interface {
	Reset()
}

// categoricalAttrModel adapts squid.CategoricalModel, used for both
// Categorical and Int attribute types (Int tuples carry zero-based codes by
// the time they reach here).
type categoricalAttrModel struct {
	target int
	m      *squid.CategoricalModel
}

func newCategoricalAttrModel(reg *registry.Registry, s schema.Schema, predictors []int, target, targetRange int) *categoricalAttrModel {
	return &categoricalAttrModel{target: target, m: squid.NewCategoricalModel(reg, s, predictors, target, targetRange)}
}

func (a *categoricalAttrModel) Feed(t schema.Tuple, count int) { a.m.Feed(t, count) }
func (a *categoricalAttrModel) EndOfData()                     { a.m.EndOfData() }
func (a *categoricalAttrModel) Cost() float64                  { return a.m.Cost() }
func (a *categoricalAttrModel) DescriptionLength() int         { return a.m.DescriptionLength() }
func (a *categoricalAttrModel) WriteModel(w *bitio.Writer)     { a.m.WriteModel(w) }
func (a *categoricalAttrModel) Predictors() []int              { return a.m.Predictors() }

func (a *categoricalAttrModel) Encode(enc *coding.Encoder, t schema.Tuple) error {
	v := int(t.Values[a.target].Int())
	iv, skip := a.m.Interval(t, v)
	if skip {
		return nil
	}
	if err := enc.Encode(iv); err != nil {
		return fmt.Errorf("compressor: encode categorical column %d: %w", a.target, err)
	}
	return nil
}

func (a *categoricalAttrModel) Decode(dec *coding.Decoder, t *schema.Tuple) error {
	row := a.m.RowIndexFor(*t)
	if v, ok := a.m.IsSingleValue(row); ok {
		t.Values[a.target] = schema.IntValue(int32(v))
		return nil
	}
	table := a.m.RowTable(row)
	if table == nil {
		t.Values[a.target] = schema.IntValue(0)
		return nil
	}
	code := dec.ScaledValue(table.Total())
	idx := table.Locate(code)
	if err := dec.Consume(table.Interval(idx)); err != nil {
		return fmt.Errorf("compressor: decode categorical column %d: %w", a.target, err)
	}
	t.Values[a.target] = schema.IntValue(int32(idx))
	return nil
}

// markovAttrModel adapts squid.MarkovCategoricalModel, self-conditioned on
// the column's own previous value rather than searched as a general
// predictor: predictors is fixed to []int{target}, and Feed/Encode/Decode
// swap the column's own slot in a scratch tuple for the running previous
// value before delegating to the wrapped CategoricalModel.
type markovAttrModel struct {
	target int
	m      *squid.MarkovCategoricalModel
}

func newMarkovAttrModel(reg *registry.Registry, s schema.Schema, target, targetRange int) *markovAttrModel {
	base := squid.NewCategoricalModel(reg, s, []int{target}, target, targetRange)
	return &markovAttrModel{target: target, m: squid.NewMarkovCategoricalModel(base)}
}

func (a *markovAttrModel) contextTuple(t schema.Tuple) schema.Tuple {
	ct := schema.Tuple{Values: append([]schema.Value(nil), t.Values...)}
	prev, have := a.m.PrevContext()
	if !have {
		prev = 0
	}
	ct.Values[a.target] = schema.IntValue(prev)
	return ct
}

func (a *markovAttrModel) Feed(t schema.Tuple, count int) {
	a.m.Feed(a.contextTuple(t), count)
	a.m.Advance(t.Values[a.target])
}

func (a *markovAttrModel) EndOfData()                 { a.m.EndOfData() }
func (a *markovAttrModel) Cost() float64              { return a.m.Cost() }
func (a *markovAttrModel) DescriptionLength() int     { return a.m.DescriptionLength() }
func (a *markovAttrModel) WriteModel(w *bitio.Writer) { a.m.WriteModel(w) }
func (a *markovAttrModel) Predictors() []int          { return []int{a.target} }
func (a *markovAttrModel) Reset()                     { a.m.Reset() }

func (a *markovAttrModel) Encode(enc *coding.Encoder, t schema.Tuple) error {
	ct := a.contextTuple(t)
	v := int(t.Values[a.target].Int())
	iv, skip := a.m.Interval(ct, v)
	if !skip {
		if err := enc.Encode(iv); err != nil {
			return fmt.Errorf("compressor: encode categorical-markov column %d: %w", a.target, err)
		}
	}
	a.m.Advance(t.Values[a.target])
	return nil
}

func (a *markovAttrModel) Decode(dec *coding.Decoder, t *schema.Tuple) error {
	ct := a.contextTuple(*t)
	row := a.m.RowIndexFor(ct)
	var v int32
	if sv, ok := a.m.IsSingleValue(row); ok {
		v = int32(sv)
	} else if table := a.m.RowTable(row); table != nil {
		code := dec.ScaledValue(table.Total())
		idx := table.Locate(code)
		if err := dec.Consume(table.Interval(idx)); err != nil {
			return fmt.Errorf("compressor: decode categorical-markov column %d: %w", a.target, err)
		}
		v = int32(idx)
	}
	t.Values[a.target] = schema.IntValue(v)
	a.m.Advance(t.Values[a.target])
	return nil
}

// numericalAttrModel adapts squid.NumericalModel, which is row-indexed by
// the caller rather than conditioning internally on a registry, so the
// predictor cross-product index is computed here exactly as
// categoricalAttrModel leaves to the wrapped model directly.
type numericalAttrModel struct {
	reg        *registry.Registry
	s          schema.Schema
	predictors []int
	target     int
	m          *squid.NumericalModel
}

func newNumericalAttrModel(reg *registry.Registry, s schema.Schema, predictors []int, target int, binSize float64, isInt bool) *numericalAttrModel {
	cap, ok := reg.PredictorCapacity(s, predictors)
	if !ok || cap == 0 {
		cap = 1
	}
	return &numericalAttrModel{reg: reg, s: s, predictors: predictors, target: target, m: squid.NewNumericalModel(cap, binSize, isInt)}
}

func (a *numericalAttrModel) rowIndex(t schema.Tuple) int {
	idx, err := a.reg.PredictorIndex(a.s, a.predictors, t)
	if err != nil {
		return 0
	}
	return idx
}

func (a *numericalAttrModel) Feed(t schema.Tuple, count int) {
	a.m.FeedRow(a.rowIndex(t), t.Values[a.target].Float(), count)
}

func (a *numericalAttrModel) EndOfData()                 { a.m.EndOfData() }
func (a *numericalAttrModel) Cost() float64              { return a.m.Cost() }
func (a *numericalAttrModel) DescriptionLength() int     { return a.m.DescriptionLength() }
func (a *numericalAttrModel) WriteModel(w *bitio.Writer) { a.m.WriteModel(w) }
func (a *numericalAttrModel) Predictors() []int          { return a.predictors }

func (a *numericalAttrModel) Encode(enc *coding.Encoder, t schema.Tuple) error {
	row := a.rowIndex(t)
	bin := a.m.Bin(row, t.Values[a.target].Float())
	if err := enc.Encode(a.m.BinInterval(row, bin)); err != nil {
		return fmt.Errorf("compressor: encode numerical column %d: %w", a.target, err)
	}
	return nil
}

func (a *numericalAttrModel) Decode(dec *coding.Decoder, t *schema.Tuple) error {
	row := a.rowIndex(*t)
	table := a.m.RowTable(row)
	if table == nil {
		t.Values[a.target] = schema.FloatValue(0)
		return nil
	}
	code := dec.ScaledValue(table.Total())
	bin := table.Locate(code)
	if err := dec.Consume(table.Interval(bin)); err != nil {
		return fmt.Errorf("compressor: decode numerical column %d: %w", a.target, err)
	}
	t.Values[a.target] = schema.FloatValue(a.m.BinValue(row, bin))
	return nil
}

// stringAttrModel adapts squid.StringModel, unconditioned: string columns
// are never enum-interpretable predictors (squid.NonEnumInterpreter), so
// there is no cross-product row to index into.
type stringAttrModel struct {
	target int
	m      *squid.StringModel
}

func newStringAttrModel(target, markovOrder int) *stringAttrModel {
	return &stringAttrModel{target: target, m: squid.NewStringModel(markovOrder)}
}

func (a *stringAttrModel) Feed(t schema.Tuple, count int) { a.m.Feed(t.Values[a.target].Str(), count) }
func (a *stringAttrModel) EndOfData()                     { a.m.EndOfData() }
func (a *stringAttrModel) Cost() float64                  { return a.m.Cost() }
func (a *stringAttrModel) DescriptionLength() int         { return a.m.DescriptionLength() }
func (a *stringAttrModel) WriteModel(w *bitio.Writer)     { a.m.WriteModel(w) }
func (a *stringAttrModel) Predictors() []int              { return nil }

func (a *stringAttrModel) Encode(enc *coding.Encoder, t schema.Tuple) error {
	if err := a.m.Encode(enc, t.Values[a.target].Str()); err != nil {
		return fmt.Errorf("compressor: encode string column %d: %w", a.target, err)
	}
	return nil
}

func (a *stringAttrModel) Decode(dec *coding.Decoder, t *schema.Tuple) error {
	s, err := a.m.Decode(dec)
	if err != nil {
		return fmt.Errorf("compressor: decode string column %d: %w", a.target, err)
	}
	t.Values[a.target] = schema.StringValue(s)
	return nil
}

// timeSeriesAttrModel adapts squid.TimeSeriesModel. The AR coefficients are
// fit once, over the full ordered sequence of fed values (EndOfData), then
// encode/decode apply the same recurrence one value at a time using a
// running history window - the incremental form of squid.Residuals and
// squid.Reconstruct, which needs the whole array at once and so can't be
// used directly against a block-segmented bitstream.
type timeSeriesAttrModel struct {
	target  int
	order   int
	series  []float64
	coeffs  []float64
	history []float64
	m       *squid.TimeSeriesModel
}

func newTimeSeriesAttrModel(target, order int, binSize float64) *timeSeriesAttrModel {
	m := squid.NewTimeSeriesModel(order, binSize)
	return &timeSeriesAttrModel{target: target, order: m.Order(), m: m}
}

func (a *timeSeriesAttrModel) Feed(t schema.Tuple, count int) {
	v := t.Values[a.target].Float()
	for i := 0; i < count; i++ {
		a.series = append(a.series, v)
	}
}

func (a *timeSeriesAttrModel) EndOfData() {
	a.coeffs = squid.FitCoefficients(a.series, a.m.Order())
	residuals := squid.Residuals(a.series, a.coeffs)
	for _, r := range residuals {
		a.m.Residual().FeedRow(0, r, count1)
	}
	a.m.Residual().EndOfData()
}

func (a *timeSeriesAttrModel) Cost() float64 {
	return a.m.Residual().Cost() + float64(len(a.coeffs)*32)
}

func (a *timeSeriesAttrModel) DescriptionLength() int {
	return a.m.Residual().DescriptionLength() + len(a.coeffs)*32
}

func (a *timeSeriesAttrModel) Predictors() []int { return nil }
func (a *timeSeriesAttrModel) Reset()            { a.history = nil }

func (a *timeSeriesAttrModel) WriteModel(w *bitio.Writer) {
	squid.WriteCoefficients(w, a.coeffs)
	a.m.Residual().WriteModel(w)
}

func (a *timeSeriesAttrModel) predict() float64 {
	pred := 0.0
	n := len(a.history)
	for j := 0; j < len(a.coeffs) && n-1-j >= 0; j++ {
		pred += a.coeffs[j] * a.history[n-1-j]
	}
	return pred
}

func (a *timeSeriesAttrModel) pushHistory(v float64) {
	a.history = append(a.history, v)
	if len(a.history) > a.order {
		a.history = a.history[len(a.history)-a.order:]
	}
}

func (a *timeSeriesAttrModel) Encode(enc *coding.Encoder, t schema.Tuple) error {
	v := t.Values[a.target].Float()
	residual := v - a.predict()
	bin := a.m.Residual().Bin(0, residual)
	if err := enc.Encode(a.m.Residual().BinInterval(0, bin)); err != nil {
		return fmt.Errorf("compressor: encode time-series column %d: %w", a.target, err)
	}
	a.pushHistory(v)
	return nil
}

func (a *timeSeriesAttrModel) Decode(dec *coding.Decoder, t *schema.Tuple) error {
	table := a.m.Residual().RowTable(0)
	code := dec.ScaledValue(table.Total())
	bin := table.Locate(code)
	if err := dec.Consume(table.Interval(bin)); err != nil {
		return fmt.Errorf("compressor: decode time-series column %d: %w", a.target, err)
	}
	residual := a.m.Residual().BinValue(0, bin)
	v := residual + a.predict()
	t.Values[a.target] = schema.FloatValue(v)
	a.pushHistory(v)
	return nil
}

// count1 is FeedRow's count argument for residuals, which are derived
// one-for-one from already-counted series samples rather than carrying
// their own repeat weight.
const count1 = 1

// readCategoricalAttrModel reconstructs a categoricalAttrModel from its
// serialized form (predictors and target range are carried in the wire
// format itself).
func readCategoricalAttrModel(r *bitio.Reader, reg *registry.Registry, s schema.Schema, target int) (*categoricalAttrModel, error) {
	m, err := squid.ReadCategoricalModel(r, reg, s, target)
	if err != nil {
		return nil, fmt.Errorf("compressor: read categorical column %d: %w", target, err)
	}
	return &categoricalAttrModel{target: target, m: m}, nil
}

func readMarkovAttrModel(r *bitio.Reader, reg *registry.Registry, s schema.Schema, target int) (*markovAttrModel, error) {
	base, err := squid.ReadCategoricalModel(r, reg, s, target)
	if err != nil {
		return nil, fmt.Errorf("compressor: read categorical-markov column %d: %w", target, err)
	}
	return &markovAttrModel{target: target, m: squid.NewMarkovCategoricalModel(base)}, nil
}

func readNumericalAttrModel(r *bitio.Reader, reg *registry.Registry, s schema.Schema, predictors []int, target int, isInt bool) (*numericalAttrModel, error) {
	cap, ok := reg.PredictorCapacity(s, predictors)
	if !ok || cap == 0 {
		cap = 1
	}
	m, err := squid.ReadNumericalModel(r, cap, isInt)
	if err != nil {
		return nil, fmt.Errorf("compressor: read numerical column %d: %w", target, err)
	}
	return &numericalAttrModel{reg: reg, s: s, predictors: predictors, target: target, m: m}, nil
}

func readStringAttrModel(r *bitio.Reader, target, markovOrder int) (*stringAttrModel, error) {
	m, err := squid.ReadStringModel(r, markovOrder)
	if err != nil {
		return nil, fmt.Errorf("compressor: read string column %d: %w", target, err)
	}
	return &stringAttrModel{target: target, m: m}, nil
}

func readTimeSeriesAttrModel(r *bitio.Reader, target, order int, binSize float64) (*timeSeriesAttrModel, error) {
	m := squid.NewTimeSeriesModel(order, binSize)
	coeffs, err := squid.ReadCoefficients(r, m.Order())
	if err != nil {
		return nil, fmt.Errorf("compressor: read time-series column %d coefficients: %w", target, err)
	}
	residual, err := squid.ReadNumericalModel(r, 1, false)
	if err != nil {
		return nil, fmt.Errorf("compressor: read time-series column %d residual model: %w", target, err)
	}
	m.SetResidual(residual)
	return &timeSeriesAttrModel{target: target, order: m.Order(), coeffs: coeffs, m: m}, nil
}
