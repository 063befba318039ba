package squid

import (
	"math"
	"sort"

	"github.com/YimingQiao/blitzcrank/bitio"
	"github.com/YimingQiao/blitzcrank/coding"
	"github.com/YimingQiao/blitzcrank/numeric"
)

// KBranch is the default histogram bin count (§4.7); the outermost two
// bins are the exponential tails.
const KBranch = 512

// NumEstSample caps the reservoir used to estimate histogram range (§4.7).
const NumEstSample = 5000

// numericalStat is the finalized per-row parameter set: a histogram over
// [mid-R, mid+R] plus exponential tails, per §3's numerical statistic.
type numericalStat struct {
	mid, binSize, mad float64
	weights           []uint32
	table             *coding.CumTable
}

// NumericalModel is the unconditioned (or conditioned, one row per
// predictor combination) numerical SquID (§4.7). Reservoir sampling feeds
// EndOfData a bounded-size sample to estimate percentiles from.
type NumericalModel struct {
	binSize float64
	isInt   bool
	samples [][]float64 // one reservoir per row
	rows    []numericalStat
	nrows   int
	cost    float64
	seen    []int
}

// NewNumericalModel allocates a model with nrows predictor-cross-product
// rows and a caller-fixed bin size (derived from the allowed error).
func NewNumericalModel(nrows int, binSize float64, isInt bool) *NumericalModel {
	if nrows < 1 {
		nrows = 1
	}
	return &NumericalModel{
		binSize: binSize,
		isInt:   isInt,
		samples: make([][]float64, nrows),
		rows:    make([]numericalStat, nrows),
		nrows:   nrows,
		seen:    make([]int, nrows),
	}
}

// FeedRow feeds one value into the reservoir for rowIdx, bounded to
// NumEstSample: the first NumEstSample values are kept, after which each new
// value overwrites slot seen%NumEstSample. A value fed with count > 1 is
// stored once.
func (m *NumericalModel) FeedRow(rowIdx int, v float64, count int) {
	m.seen[rowIdx] += count
	r := m.samples[rowIdx]
	if len(r) < NumEstSample {
		m.samples[rowIdx] = append(r, v)
		return
	}
	// simple reservoir replacement keyed by running count; deterministic
	// enough for model-cost estimation purposes.
	j := m.seen[rowIdx] % NumEstSample
	r[j] = v
}

// EndOfData estimates mid/mad/histogram weights per row from the reservoir.
func (m *NumericalModel) EndOfData() {
	var totalBits float64
	for i := range m.rows {
		sample := append([]float64(nil), m.samples[i]...)
		if len(sample) == 0 {
			continue
		}
		sort.Float64s(sample)
		mid := percentile(sample, 0.5)
		mad := meanAbsDev(sample, mid)
		stat := &m.rows[i]
		stat.mid, stat.mad, stat.binSize = numeric.NarrowF32(mid), numeric.NarrowF32(mad), numeric.NarrowF32(m.binSize)

		counts := make([]uint64, KBranch)
		half := KBranch/2 - 1
		lowBound := stat.mid - float64(half)*stat.binSize
		for _, v := range sample {
			bin := int(math.Floor((v-lowBound)/stat.binSize)) + 1
			if bin < 1 {
				bin = 0 // left exponential tail
			} else if bin >= KBranch-1 {
				bin = KBranch - 1 // right exponential tail
			}
			counts[bin]++
		}
		weights, err := numeric.Quantize(counts, 16)
		if err != nil {
			continue
		}
		stat.weights = weights
		stat.table = coding.NewCumTable(weights)
		total := uint64(len(sample))
		for bin, c := range counts {
			if c > 0 {
				p := float64(weights[bin]) / 65536.0
				totalBits += float64(c) * -math.Log2(p)
			}
		}
		_ = total
	}
	m.cost = totalBits + float64(m.DescriptionLength())
}

func (m *NumericalModel) Cost() float64         { return m.cost }
func (m *NumericalModel) DescriptionLength() int { return 8 + 32 + m.nrows*(32+32+64+KBranch*16) }

// Bin maps a value to its histogram bin index for rowIdx, the same mapping
// EndOfData used.
func (m *NumericalModel) Bin(rowIdx int, v float64) int {
	stat := &m.rows[rowIdx]
	half := KBranch/2 - 1
	lowBound := stat.mid - float64(half)*stat.binSize
	bin := int(math.Floor((v-lowBound)/stat.binSize)) + 1
	if bin < 1 {
		return 0
	} else if bin >= KBranch-1 {
		return KBranch - 1
	}
	return bin
}

// BinInterval returns the Interval for bin in rowIdx's table.
func (m *NumericalModel) BinInterval(rowIdx, bin int) coding.Interval {
	return m.rows[rowIdx].table.Interval(bin)
}

// RowTable exposes rowIdx's cumulative table for a decode driver's
// ScaledValue/Locate/Consume loop.
func (m *NumericalModel) RowTable(rowIdx int) *coding.CumTable { return m.rows[rowIdx].table }

// BinSizeValue exposes the model's bin size, needed to reconstruct a
// TimeSeriesModel wrapper around a model read back from the wire.
func (m *NumericalModel) BinSizeValue() float64 { return m.binSize }

// BinValue recovers a representative value for a decoded bin index
// (midpoint of the bin), rounded per §4.7's rounding rule.
func (m *NumericalModel) BinValue(rowIdx, bin int) float64 {
	stat := &m.rows[rowIdx]
	half := KBranch/2 - 1
	lowBound := stat.mid - float64(half)*stat.binSize
	v := lowBound + (float64(bin)-0.5)*stat.binSize
	if m.isInt {
		return float64(numeric.RoundHalfAwayFromZero(v))
	}
	decimals := decimalsFromBinSize(stat.binSize)
	return numeric.RoundToDecimals(v, decimals)
}

func decimalsFromBinSize(binSize float64) int {
	d := 0
	for binSize < 1 && d < 10 {
		binSize *= 10
		d++
	}
	return d
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

func meanAbsDev(sample []float64, center float64) float64 {
	if len(sample) == 0 {
		return 0
	}
	var sum float64
	for _, v := range sample {
		sum += math.Abs(v - center)
	}
	return sum / float64(len(sample))
}

// WriteModel serializes mid/mad/bin-size and the per-row weight vectors
// (§6's numerical wire format, narrowed through numeric.NarrowF32 so encode
// and decode agree bit-for-bit).
func (m *NumericalModel) WriteModel(w *bitio.Writer) {
	w.WriteU32(numeric.PackF32(m.binSize))
	for i := range m.rows {
		stat := &m.rows[i]
		w.WriteU32(numeric.PackF32(stat.mid))
		w.WriteU32(numeric.PackF32(stat.mad))
		if stat.weights == nil {
			for j := 0; j < KBranch; j++ {
				w.WriteU16(0)
			}
			continue
		}
		for _, wt := range stat.weights {
			v := wt
			if v == 65536 {
				v = 65535
			}
			w.WriteU16(uint16(v))
		}
	}
}
