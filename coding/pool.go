package coding

// SimplePool caches single-weight Intervals (a branch that is just "the i-th
// slot of n equal slots") so hot encode/decode loops that repeatedly need a
// uniform sub-distribution - rare-branch indices, numerical tail bits,
// string local-dictionary slots - don't reallocate one on every call.
type SimplePool struct {
	cache map[uint32][]Interval // keyed by total weight (n)
}

// NewSimplePool returns an empty pool.
func NewSimplePool() *SimplePool {
	return &SimplePool{cache: make(map[uint32][]Interval)}
}

// Get returns the Interval for slot i out of n equal-weight slots, building
// and caching the full table for n the first time it's requested.
func (p *SimplePool) Get(n uint32, i uint32) Interval {
	table, ok := p.cache[n]
	if !ok {
		table = make([]Interval, n)
		for j := uint32(0); j < n; j++ {
			table[j] = Interval{CumLow: j, CumHigh: j + 1, Total: n}
		}
		p.cache[n] = table
	}
	return table[i]
}
