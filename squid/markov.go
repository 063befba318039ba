package squid

import "github.com/YimingQiao/blitzcrank/schema"

// MarkovCategoricalModel is the categorical-Markov attribute family: a
// CategoricalModel whose implicit extra predictor is the attribute's own
// previous value in tuple order, letting a sequence like a log-level column
// benefit from state-to-state transition structure instead of being coded
// as i.i.d. categorical draws.
type MarkovCategoricalModel struct {
	*CategoricalModel
	prev int32
	have bool
}

// NewMarkovCategoricalModel wraps base, treating row 0 of its predictor
// cross-product as "no previous value yet" at the start of a stream.
func NewMarkovCategoricalModel(base *CategoricalModel) *MarkovCategoricalModel {
	return &MarkovCategoricalModel{CategoricalModel: base}
}

// Advance feeds one more observed value, updating the running previous-
// value context the next Feed/Interval call implicitly conditions on.
func (m *MarkovCategoricalModel) Advance(v schema.Value) {
	if v.IsInt() {
		m.prev = v.Int()
		m.have = true
	}
}

// PrevContext returns the previous value (or 0 if none yet), used by the
// caller to build the predictor tuple fed to the underlying CategoricalModel.
func (m *MarkovCategoricalModel) PrevContext() (int32, bool) { return m.prev, m.have }

// Reset clears the running context, e.g. at the start of each new block so
// blocks stay independently decodable (§4.5's block-boundary independence).
func (m *MarkovCategoricalModel) Reset() {
	m.prev = 0
	m.have = false
}
