package squid

import (
	"fmt"

	"github.com/YimingQiao/blitzcrank/bitio"
	"github.com/YimingQiao/blitzcrank/coding"
	"github.com/YimingQiao/blitzcrank/numeric"
)

// ReadNumericalModel reconstructs a NumericalModel from its serialized form,
// symmetric to WriteModel. nrows and isInt must match what the writer used
// (they travel alongside the model in the enclosing wire format, the same
// way the categorical predictor/target metadata does).
func ReadNumericalModel(r *bitio.Reader, nrows int, isInt bool) (*NumericalModel, error) {
	if nrows < 1 {
		nrows = 1
	}
	binSizeBits, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("squid: read numerical bin size: %w", err)
	}
	m := &NumericalModel{binSize: numeric.UnpackF32(binSizeBits), isInt: isInt, nrows: nrows, rows: make([]numericalStat, nrows)}
	for i := 0; i < nrows; i++ {
		midBits, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		madBits, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		weights := make([]uint32, KBranch)
		for j := range weights {
			v, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			weights[j] = uint32(v)
			if weights[j] == 65535 {
				weights[j] = 65536
			}
		}
		m.rows[i] = numericalStat{
			mid:     numeric.UnpackF32(midBits),
			mad:     numeric.UnpackF32(madBits),
			binSize: m.binSize,
			weights: weights,
			table:   coding.NewCumTable(weights),
		}
	}
	return m, nil
}
