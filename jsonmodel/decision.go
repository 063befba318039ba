package jsonmodel

import (
	"github.com/YimingQiao/blitzcrank/bitio"
	"github.com/YimingQiao/blitzcrank/coding"
	"github.com/YimingQiao/blitzcrank/registry"
	"github.com/YimingQiao/blitzcrank/schema"
	"github.com/YimingQiao/blitzcrank/squid"
)

// arraySizeCap bounds the array_size sub-model's outcome range; sizes at or
// beyond it collapse into the last bin. Real documents rarely carry arrays
// long enough to hit this, and the triplet learner never predicts it from a
// numeric value, so a modest fixed cap keeps the wire format simple.
const arraySizeCap = 256

// decisionModel is one of a node's exist/type/array_size sub-models: a
// categorical SquID conditioned on a chosen subset of ancestor leaf values,
// read out of (and written into) a shared context tuple whose last slot
// holds the local decision value.
type decisionModel struct {
	ancestors []int // global leaf ids chosen as predictors
	decisionAt int  // index of the decision slot in the shared context schema
	model     *squid.CategoricalModel
}

func newDecisionModel(reg *registry.Registry, docSchema schema.Schema, ancestors []int, decisionAt, targetRange int) *decisionModel {
	localPredictors := make([]int, len(ancestors))
	copy(localPredictors, ancestors)
	return &decisionModel{
		ancestors:  ancestors,
		decisionAt: decisionAt,
		model:      squid.NewCategoricalModel(reg, docSchema, localPredictors, decisionAt, targetRange),
	}
}

// feed snapshots the context tuple's predictor slots plus the decision
// value (written transiently into the shared context's decision slot, read
// back out synchronously, never observed by any other call) into a tuple
// the CategoricalModel can consume.
func (d *decisionModel) feed(ctx schema.Tuple, decision int) {
	ctx.Values[d.decisionAt] = schema.IntValue(int32(decision))
	d.model.Feed(ctx, 1)
}

func (d *decisionModel) endOfData() { d.model.EndOfData() }

func (d *decisionModel) interval(ctx schema.Tuple, decision int) (coding.Interval, bool) {
	ctx.Values[d.decisionAt] = schema.IntValue(int32(decision))
	return d.model.Interval(ctx, decision)
}

func (d *decisionModel) cost() float64 { return d.model.Cost() }

func (d *decisionModel) writeModel(w *bitio.Writer) { d.model.WriteModel(w) }

func readDecisionModel(r *bitio.Reader, reg *registry.Registry, docSchema schema.Schema, decisionAt int) (*decisionModel, error) {
	m, err := squid.ReadCategoricalModel(r, reg, docSchema, decisionAt)
	if err != nil {
		return nil, err
	}
	return &decisionModel{ancestors: m.Predictors(), decisionAt: decisionAt, model: m}, nil
}

// TrialDecision is an exported, throwaway decisionModel the triplet learner
// uses to score a candidate predictor set against pre-gathered Snapshots,
// without re-walking any document DOM for every candidate it tries.
type TrialDecision struct {
	d     *decisionModel
	width int
}

// NewTrialDecision builds a fresh decision model conditioned on ancestors,
// sized for docSchema's leaf context plus its trailing decision slot.
func NewTrialDecision(reg *registry.Registry, docSchema schema.Schema, ancestors []int, targetRange int) *TrialDecision {
	decisionAt := docSchema.Width() - 1
	return &TrialDecision{d: newDecisionModel(reg, docSchema, ancestors, decisionAt, targetRange), width: docSchema.Width()}
}

// Feed trains the trial model on one snapshot's leaf values and this
// triplet's observed decision, repeated count times.
func (t *TrialDecision) Feed(leafValues []schema.Value, decision, count int) {
	values := make([]schema.Value, t.width)
	copy(values, leafValues)
	ctx := schema.Tuple{Values: values}
	for i := 0; i < count; i++ {
		t.d.feed(ctx, decision)
	}
}

func (t *TrialDecision) EndOfData() { t.d.endOfData() }

// Cost returns the trained model's estimated coding cost, the greedy
// learner's figure of merit for comparing candidate predictor sets.
func (t *TrialDecision) Cost() float64 { return t.d.cost() }

// locate decodes one branch pick from dec: it looks up the row the context
// selects, consumes exactly the bits (if any) that row's table needs, and
// returns the decoded outcome. Single-value rows consume zero bits.
func (d *decisionModel) locate(ctx schema.Tuple, dec *coding.Decoder) int {
	row := d.model.RowIndexFor(ctx)
	if v, ok := d.model.IsSingleValue(row); ok {
		return v
	}
	table := d.model.RowTable(row)
	if table == nil {
		return 0
	}
	code := dec.ScaledValue(table.Total())
	idx := table.Locate(code)
	_ = dec.Consume(table.Interval(idx))
	return idx
}
