package coding

// RarePool is the escape-branch handler for categorical SquIDs (§4.4): once
// the number of distinct observed values exceeds the model's branch budget,
// the tail of rarely-seen values collapses into a single "rare" branch in
// the main table, and a second, uniform distribution over just those rare
// values is coded immediately after. The uniform distribution's own weight
// is constant per value, so no quantization table is needed for it.
type RarePool struct {
	idx2val []int
	val2idx map[int]int
}

// NewRarePool builds a pool over the given rare values, in stable order.
func NewRarePool(values []int) *RarePool {
	p := &RarePool{idx2val: append([]int(nil), values...), val2idx: make(map[int]int, len(values))}
	for i, v := range p.idx2val {
		p.val2idx[v] = i
	}
	return p
}

// Len reports how many rare values this pool covers.
func (p *RarePool) Len() int { return len(p.idx2val) }

// Interval returns the uniform-distribution Interval for encoding value v.
// v must have been registered via NewRarePool.
func (p *RarePool) Interval(v int) (Interval, bool) {
	idx, ok := p.val2idx[v]
	if !ok {
		return Interval{}, false
	}
	return Interval{CumLow: uint32(idx), CumHigh: uint32(idx + 1), Total: uint32(len(p.idx2val))}, true
}

// Locate inverts a decoded index back to its original rare value.
func (p *RarePool) Locate(idx int) int { return p.idx2val[idx] }
