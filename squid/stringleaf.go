package squid

import (
	"fmt"
	"sort"

	"github.com/YimingQiao/blitzcrank/bitio"
	"github.com/YimingQiao/blitzcrank/coding"
	"github.com/YimingQiao/blitzcrank/numeric"
	"github.com/YimingQiao/blitzcrank/registry"
	"github.com/YimingQiao/blitzcrank/schema"
)

// stringLeafCoder is a frequency-ranked dictionary categorical over the
// distinct strings a JSON leaf path has taken, with a raw byte-escape
// branch for values outside the learned dictionary - the same escape-branch
// shape as §4.4's rare-branch coding, simplified to a literal byte dump
// rather than routing a single scalar leaf value through the full
// sentence/Markov/FSST pipeline §4.8 builds for relational free-text
// columns.
type stringLeafCoder struct {
	counts map[string]uint64
	order  []string
	index  map[string]int
	table  *coding.CumTable
	cost   float64
}

// NewStringLeafCoder returns an empty string leaf coder ready for Feed.
func NewStringLeafCoder() LeafCoder {
	return &stringLeafCoder{counts: make(map[string]uint64)}
}

func (c *stringLeafCoder) Feed(v schema.Value, count int) {
	c.counts[v.Str()] += uint64(count)
}

func (c *stringLeafCoder) EndOfData() {
	c.order = make([]string, 0, len(c.counts))
	for s := range c.counts {
		c.order = append(c.order, s)
	}
	sort.Slice(c.order, func(i, j int) bool {
		if c.counts[c.order[i]] != c.counts[c.order[j]] {
			return c.counts[c.order[i]] > c.counts[c.order[j]]
		}
		return c.order[i] < c.order[j]
	})
	// Cap the dictionary to keep the row width bounded; the tail is coded
	// through the escape branch followed by a byte-by-byte dump
	// (encodeRareString).
	const maxDict = 4096
	common := c.order
	var rareValues []string
	if len(common) > maxDict {
		rareValues = append(rareValues, common[maxDict:]...)
		common = common[:maxDict]
	}
	c.index = make(map[string]int, len(common))
	counts := make([]uint64, len(common)+1) // +1 escape branch
	for i, s := range common {
		c.index[s] = i
		counts[i] = c.counts[s]
	}
	for _, s := range rareValues {
		counts[len(common)] += c.counts[s]
	}
	weights, err := numeric.Quantize(counts, 16)
	if err == nil {
		c.table = coding.NewCumTable(weights)
	}
	c.order = common
}

func (c *stringLeafCoder) Cost() float64 { return c.cost }

func (c *stringLeafCoder) DescriptionLength() int {
	return 32 + len(c.order)*16
}

func (c *stringLeafCoder) Encode(enc *coding.Encoder, v schema.Value) error {
	if c.table == nil {
		return nil
	}
	idx, ok := c.index[v.Str()]
	if !ok {
		idx = len(c.order) // escape branch
	}
	if err := enc.Encode(c.table.Interval(idx)); err != nil {
		return fmt.Errorf("squid: encode string leaf dictionary branch: %w", err)
	}
	if idx != len(c.order) {
		return nil
	}
	return encodeRareString(enc, v.Str())
}

func (c *stringLeafCoder) Decode(dec *coding.Decoder) (schema.Value, error) {
	if c.table == nil {
		return schema.StringValue(""), nil
	}
	code := dec.ScaledValue(c.table.Total())
	idx := c.table.Locate(code)
	if err := dec.Consume(c.table.Interval(idx)); err != nil {
		return schema.Value{}, fmt.Errorf("squid: consume string leaf dictionary branch: %w", err)
	}
	if idx < len(c.order) {
		return schema.StringValue(c.order[idx]), nil
	}
	s, err := decodeRareString(dec)
	if err != nil {
		return schema.Value{}, err
	}
	return schema.StringValue(s), nil
}

func (c *stringLeafCoder) WriteModel(w *bitio.Writer) {
	w.WriteU32(uint32(len(c.order)))
	for _, s := range c.order {
		writeLenPrefixedString(w, s)
	}
	weights := make([]uint32, len(c.order)+1)
	if c.table != nil {
		for i := range weights {
			weights[i] = c.table.Interval(i).Width()
		}
	}
	for _, wt := range weights {
		v := wt
		if v == 65536 {
			v = 65535
		}
		w.WriteU16(uint16(v))
	}
}

func writeLenPrefixedString(w *bitio.Writer, s string) {
	w.WriteU32(uint32(len(s)))
	for i := 0; i < len(s); i++ {
		w.WriteBits(uint32(s[i]), 8)
	}
}

func readLenPrefixedString(r *bitio.Reader) (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	for i := range buf {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		buf[i] = b
	}
	return string(buf), nil
}

// encodeRareString escapes an out-of-dictionary string byte-by-byte
// through a uniform 256-symbol branch per byte, prefixed by its length -
// simple, and always round-trips.
func encodeRareString(enc *coding.Encoder, s string) error {
	if err := enc.Encode(coding.Interval{CumLow: uint32(len(s) & 0xffff), CumHigh: uint32(len(s)&0xffff) + 1, Total: 65536}); err != nil {
		return err
	}
	for i := 0; i < len(s); i++ {
		if err := enc.Encode(coding.Interval{CumLow: uint32(s[i]), CumHigh: uint32(s[i]) + 1, Total: 256}); err != nil {
			return err
		}
	}
	return nil
}

func decodeRareString(dec *coding.Decoder) (string, error) {
	n := dec.ScaledValue(65536)
	if err := dec.Consume(coding.Interval{CumLow: n, CumHigh: n + 1, Total: 65536}); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	for i := range buf {
		b := dec.ScaledValue(256)
		if err := dec.Consume(coding.Interval{CumLow: b, CumHigh: b + 1, Total: 256}); err != nil {
			return "", err
		}
		buf[i] = byte(b)
	}
	return string(buf), nil
}

// ReadStringLeafCoder reconstructs a stringLeafCoder from its serialized
// dictionary.
func ReadStringLeafCoder(r *bitio.Reader, reg *registry.Registry) (LeafCoder, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	order := make([]string, n)
	index := make(map[string]int, n)
	for i := range order {
		s, err := readLenPrefixedString(r)
		if err != nil {
			return nil, fmt.Errorf("squid: read string leaf dictionary entry %d: %w", i, err)
		}
		order[i] = s
		index[s] = i
	}
	weights := make([]uint32, n+1)
	for i := range weights {
		v, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		weights[i] = uint32(v)
		if weights[i] == 65535 {
			weights[i] = 65536
		}
	}
	return &stringLeafCoder{order: order, index: index, table: coding.NewCumTable(weights)}, nil
}
