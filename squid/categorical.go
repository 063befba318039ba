// Package squid implements the per-attribute probabilistic models: the
// categorical, numerical, string, time-series, and categorical-Markov
// families (the categorical ones implement registry.SquIDModel), each
// routing its branch picks through coding.Interval/CumTable.
package squid

import (
	"math"

	"github.com/YimingQiao/blitzcrank/bitio"
	"github.com/YimingQiao/blitzcrank/coding"
	"github.com/YimingQiao/blitzcrank/numeric"
	"github.com/YimingQiao/blitzcrank/registry"
	"github.com/YimingQiao/blitzcrank/schema"
)

// categoricalRow is one row of the predictor cross-product: frequency
// counts during learning, then the finalized quantized table.
type categoricalRow struct {
	counts  []uint64
	weights []uint32
	table   *coding.CumTable
	rare    *coding.RarePool
	single  int // >=0 if this row always produced exactly one outcome
}

// CategoricalModel is the conditioned categorical SquID (§4.6). Rows are
// indexed by the dense predictor cross-product index from
// registry.PredictorIndex.
type CategoricalModel struct {
	reg         *registry.Registry
	s           schema.Schema
	predictors  []int
	target      int
	targetRange int
	rows        []categoricalRow
	cost        float64
}

// NewCategoricalModel allocates a fresh model, one row per predictor
// cross-product value, with targetRange distinct outcomes.
func NewCategoricalModel(reg *registry.Registry, s schema.Schema, predictors []int, target, targetRange int) *CategoricalModel {
	cap, _ := reg.PredictorCapacity(s, predictors)
	if cap == 0 {
		cap = 1
	}
	rows := make([]categoricalRow, cap)
	for i := range rows {
		rows[i] = categoricalRow{counts: make([]uint64, targetRange), single: -1}
	}
	return &CategoricalModel{reg: reg, s: s, predictors: predictors, target: target, targetRange: targetRange, rows: rows}
}

func (m *CategoricalModel) Predictors() []int { return m.predictors }
func (m *CategoricalModel) Target() int       { return m.target }

func (m *CategoricalModel) rowIndex(t schema.Tuple) int {
	idx, err := m.reg.PredictorIndex(m.s, m.predictors, t)
	if err != nil {
		return 0
	}
	return idx
}

func (m *CategoricalModel) Feed(t schema.Tuple, count int) {
	row := &m.rows[m.rowIndex(t)]
	v := int(t.Values[m.target].Int())
	if v >= 0 && v < len(row.counts) {
		row.counts[v] += uint64(count)
	}
}

// EndOfData quantizes each row's counts into a 16-bit weight vector, builds
// its cumulative table, and takes the single-value fast path for rows with
// at most one observed outcome. Quantize gives every observed outcome a
// positive weight; no rare-branch escape is built, so an outcome never seen
// in a row has zero weight there and cannot be encoded in it.
func (m *CategoricalModel) EndOfData() {
	var totalBits float64
	for i := range m.rows {
		row := &m.rows[i]
		nonZero, last := 0, -1
		var total uint64
		for v, c := range row.counts {
			if c > 0 {
				nonZero++
				last = v
				total += c
			}
		}
		if nonZero <= 1 {
			row.single = last
			if last < 0 {
				row.single = 0
			}
			continue
		}
		weights, err := numeric.Quantize(row.counts, 16)
		if err != nil {
			continue
		}
		row.weights = weights
		row.table = coding.NewCumTable(weights)
		for v, c := range row.counts {
			if c > 0 && v < len(weights) {
				p := float64(weights[v]) / 65536.0
				totalBits += float64(c) * -math.Log2(p)
			}
		}
	}
	m.cost = totalBits + float64(m.DescriptionLength())
}

func (m *CategoricalModel) Cost() float64 { return m.cost }

func (m *CategoricalModel) DescriptionLength() int {
	return 8 + len(m.predictors)*16 + 16 + len(m.rows)*m.targetRange*16
}

// Interval returns the coding.Interval for encoding value v in the row
// selected by predictors in t, plus whether this row is the single-value
// fast path (in which case no bits need to be coded at all).
func (m *CategoricalModel) Interval(t schema.Tuple, v int) (iv coding.Interval, skip bool) {
	row := &m.rows[m.rowIndex(t)]
	if row.single >= 0 {
		return coding.Interval{}, true
	}
	if row.table == nil {
		return coding.Interval{}, true
	}
	return row.table.Interval(v), false
}

// WriteModel serializes predictor list, target range, and each row's weight
// vector (§6's categorical wire format), using the sentinel 65535 to mean
// "single outcome with implicit weight 65536".
func (m *CategoricalModel) WriteModel(w *bitio.Writer) {
	w.WriteBits(uint32(len(m.predictors)), 8)
	for _, p := range m.predictors {
		w.WriteU16(uint16(p))
	}
	w.WriteU16(uint16(m.targetRange))
	for i := range m.rows {
		row := &m.rows[i]
		if row.single >= 0 {
			w.WriteU16(uint16(row.single))
			w.WriteU16(65535)
			for j := 1; j < m.targetRange; j++ {
				w.WriteU16(0)
			}
			continue
		}
		for _, wt := range row.weights {
			v := wt
			if v == 65536 {
				v = 65535
			}
			w.WriteU16(uint16(v))
		}
	}
}
