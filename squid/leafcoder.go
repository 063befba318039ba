package squid

import (
	"fmt"

	"github.com/YimingQiao/blitzcrank/bitio"
	"github.com/YimingQiao/blitzcrank/coding"
	"github.com/YimingQiao/blitzcrank/registry"
	"github.com/YimingQiao/blitzcrank/schema"
)

// LeafCoder is the narrower, value-in-value-out counterpart of
// registry.SquIDModel that the JSON mirror tree's leaf nodes use: JSON leaf
// values aren't columns of a fixed-width tuple, so there's no (predictors,
// target) tuple index to thread through - each leaf coder is a single,
// unconditioned model over the values that path has seen.
type LeafCoder interface {
	Feed(v schema.Value, count int)
	EndOfData()
	Encode(enc *coding.Encoder, v schema.Value) error
	Decode(dec *coding.Decoder) (schema.Value, error)
	Cost() float64
	DescriptionLength() int
	WriteModel(w *bitio.Writer)
}

// categoricalLeafCoder adapts an unconditioned CategoricalModel (its single
// row) to LeafCoder.
type categoricalLeafCoder struct {
	m       *CategoricalModel
	isInt   bool
	intMin  int32
}

// NewCategoricalLeafCoder builds an unconditioned categorical leaf coder
// with targetRange distinct outcomes.
func NewCategoricalLeafCoder(reg *registry.Registry, targetRange int, isInt bool, intMin int32) LeafCoder {
	s := schema.NewSchema(schema.Categorical)
	return &categoricalLeafCoder{m: NewCategoricalModel(reg, s, nil, 0, targetRange), isInt: isInt, intMin: intMin}
}

func (c *categoricalLeafCoder) code(v schema.Value) int {
	if c.isInt {
		return int(v.Int() - c.intMin)
	}
	return int(v.Int())
}

func (c *categoricalLeafCoder) Feed(v schema.Value, count int) {
	c.m.Feed(schema.Tuple{Values: []schema.Value{schema.IntValue(int32(c.code(v)))}}, count)
}

func (c *categoricalLeafCoder) EndOfData() { c.m.EndOfData() }

func (c *categoricalLeafCoder) Encode(enc *coding.Encoder, v schema.Value) error {
	code := c.code(v)
	iv, skip := c.m.Interval(schema.Tuple{Values: []schema.Value{schema.IntValue(int32(code))}}, code)
	if skip {
		return nil
	}
	return enc.Encode(iv)
}

func (c *categoricalLeafCoder) Decode(dec *coding.Decoder) (schema.Value, error) {
	row := 0
	if v, ok := c.m.IsSingleValue(row); ok {
		return c.decodedValue(v), nil
	}
	table := c.m.RowTable(row)
	if table == nil {
		return c.decodedValue(0), nil
	}
	code := dec.ScaledValue(table.Total())
	idx := table.Locate(code)
	if err := dec.Consume(table.Interval(idx)); err != nil {
		return schema.Value{}, fmt.Errorf("squid: consume categorical leaf symbol: %w", err)
	}
	return c.decodedValue(idx), nil
}

func (c *categoricalLeafCoder) decodedValue(code int) schema.Value {
	if c.isInt {
		return schema.IntValue(int32(code) + c.intMin)
	}
	return schema.IntValue(int32(code))
}

func (c *categoricalLeafCoder) Cost() float64         { return c.m.Cost() }
func (c *categoricalLeafCoder) DescriptionLength() int { return c.m.DescriptionLength() }
func (c *categoricalLeafCoder) WriteModel(w *bitio.Writer) { c.m.WriteModel(w) }

// numericalLeafCoder adapts an unconditioned NumericalModel (its single
// row) to LeafCoder.
type numericalLeafCoder struct{ m *NumericalModel }

// NewNumericalLeafCoder builds an unconditioned numerical leaf coder with
// the given bin size (derived from the declared error tolerance).
func NewNumericalLeafCoder(binSize float64, isInt bool) LeafCoder {
	return &numericalLeafCoder{m: NewNumericalModel(1, binSize, isInt)}
}

func (c *numericalLeafCoder) Feed(v schema.Value, count int) { c.m.FeedRow(0, v.Float(), count) }
func (c *numericalLeafCoder) EndOfData()                      { c.m.EndOfData() }

func (c *numericalLeafCoder) Encode(enc *coding.Encoder, v schema.Value) error {
	bin := c.m.Bin(0, v.Float())
	return enc.Encode(c.m.BinInterval(0, bin))
}

func (c *numericalLeafCoder) Decode(dec *coding.Decoder) (schema.Value, error) {
	table := c.m.RowTable(0)
	code := dec.ScaledValue(table.Total())
	bin := table.Locate(code)
	if err := dec.Consume(table.Interval(bin)); err != nil {
		return schema.Value{}, fmt.Errorf("squid: consume numerical leaf symbol: %w", err)
	}
	return schema.FloatValue(c.m.BinValue(0, bin)), nil
}

func (c *numericalLeafCoder) Cost() float64         { return c.m.Cost() }
func (c *numericalLeafCoder) DescriptionLength() int { return c.m.DescriptionLength() }
func (c *numericalLeafCoder) WriteModel(w *bitio.Writer) { c.m.WriteModel(w) }

// ReadCategoricalLeafCoder and ReadNumericalLeafCoder reconstruct leaf
// coders from their serialized form, target range/bin-size metadata
// supplied by the enclosing JSON node header (the leaf's declared type).
func ReadCategoricalLeafCoder(r *bitio.Reader, reg *registry.Registry, isInt bool, intMin int32) (LeafCoder, error) {
	s := schema.NewSchema(schema.Categorical)
	m, err := ReadCategoricalModel(r, reg, s, 0)
	if err != nil {
		return nil, err
	}
	return &categoricalLeafCoder{m: m, isInt: isInt, intMin: intMin}, nil
}

func ReadNumericalLeafCoder(r *bitio.Reader, isInt bool) (LeafCoder, error) {
	m, err := ReadNumericalModel(r, 1, isInt)
	if err != nil {
		return nil, err
	}
	return &numericalLeafCoder{m: m}, nil
}
