package squid

import (
	"fmt"

	"github.com/YimingQiao/blitzcrank/bitio"
	"github.com/YimingQiao/blitzcrank/coding"
	"github.com/YimingQiao/blitzcrank/registry"
	"github.com/YimingQiao/blitzcrank/schema"
)

// ReadCategoricalModel reconstructs a CategoricalModel from its serialized
// form, symmetric to WriteModel. reg and s are needed to size the
// predictor cross-product and to resolve row indices during decoding.
func ReadCategoricalModel(r *bitio.Reader, reg *registry.Registry, s schema.Schema, target int) (*CategoricalModel, error) {
	npred, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("squid: read categorical predictor count: %w", err)
	}
	predictors := make([]int, npred)
	for i := range predictors {
		v, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		predictors[i] = int(v)
	}
	targetRange, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	m := &CategoricalModel{reg: reg, s: s, predictors: predictors, target: target, targetRange: int(targetRange)}

	cap, _ := reg.PredictorCapacity(s, predictors)
	if cap == 0 {
		cap = 1
	}
	for i := 0; i < cap; i++ {
		if err := m.AppendRow(r); err != nil {
			return nil, fmt.Errorf("squid: read categorical row %d: %w", i, err)
		}
	}
	return m, nil
}

// AppendRow reads one more row's weight vector (or single-value sentinel)
// from r and appends it to the model.
func (m *CategoricalModel) AppendRow(r *bitio.Reader) error {
	first, err := r.ReadU16()
	if err != nil {
		return err
	}
	second, err := r.ReadU16()
	if err != nil {
		return err
	}
	row := categoricalRow{single: -1}
	if second == 65535 {
		row.single = int(first)
		for j := 1; j < m.targetRange; j++ {
			if _, err := r.ReadU16(); err != nil {
				return err
			}
		}
		m.rows = append(m.rows, row)
		return nil
	}
	weights := make([]uint32, m.targetRange)
	weights[0] = uint32(first)
	weights[1] = uint32(second)
	for j := 2; j < m.targetRange; j++ {
		v, err := r.ReadU16()
		if err != nil {
			return err
		}
		weights[j] = uint32(v)
	}
	for i, w := range weights {
		if w == 65535 {
			weights[i] = 65536
		}
	}
	row.weights = weights
	row.table = coding.NewCumTable(weights)
	m.rows = append(m.rows, row)
	return nil
}

// Locate inverts a decoded code value within the row selected by rowIdx
// back to its outcome.
func (m *CategoricalModel) Locate(rowIdx int, code uint32) int {
	row := &m.rows[rowIdx]
	if row.single >= 0 {
		return row.single
	}
	return row.table.Locate(code)
}

// RowTable exposes the row's table for the driver's encode/decode loop.
func (m *CategoricalModel) RowTable(rowIdx int) *coding.CumTable {
	return m.rows[rowIdx].table
}

// IsSingleValue reports whether rowIdx always produces one fixed outcome.
func (m *CategoricalModel) IsSingleValue(rowIdx int) (int, bool) {
	row := &m.rows[rowIdx]
	if row.single >= 0 {
		return row.single, true
	}
	return 0, false
}

// RowIndexFor exposes rowIndex for callers outside the package (the
// compressor driver and the JSON traversal) that already have a tuple in
// hand and need the dense predictor-cross-product row it selects.
func (m *CategoricalModel) RowIndexFor(t schema.Tuple) int { return m.rowIndex(t) }
