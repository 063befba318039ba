// Package registry replaces the two process-global tables the original
// design used (attribute-type -> model creator, attribute-index ->
// interpreter) with an explicit struct any caller can construct, populate,
// and pass around - read-only once built, per §5's registry requirement,
// but never a package-level var so tests can run in parallel with distinct
// registries.
package registry

import (
	"fmt"

	"github.com/YimingQiao/blitzcrank/bitio"
	"github.com/YimingQiao/blitzcrank/schema"
)

// SquIDModel is the tuple-fed interface of a conditioned leaf probability
// model. squid.CategoricalModel implements it, and the categorical-Markov
// model does through embedding; the numerical, string and time-series
// models have their own method sets and do not implement it.
type SquIDModel interface {
	// Feed incorporates one training observation (count occurrences, for
	// pre-aggregated samples).
	Feed(tuple schema.Tuple, count int)
	// EndOfData finalizes weights, builds delayed-coding tables, and
	// computes the model's own cost.
	EndOfData()
	// Cost returns the estimated bit cost of this model (cross-entropy
	// plus description length), used by the learner for model selection.
	Cost() float64
	// DescriptionLength returns the model's own serialized size in bits.
	DescriptionLength() int
	// WriteModel serializes the model's finalized parameters.
	WriteModel(w *bitio.Writer)
	// Predictors returns the attribute indices this model conditions on.
	Predictors() []int
	// Target returns the attribute index this model predicts.
	Target() int
}

// ModelCreator builds SquIDModels for one AttrType, either from scratch (for
// learning) or from a serialized parameter block (for loading a compressed
// file).
type ModelCreator interface {
	// CreateModel builds a fresh model for target, conditioned on
	// predictors, or returns (nil, false) if the predictor set is
	// infeasible for this attribute type (capacity exceeded, wrong kind).
	CreateModel(s schema.Schema, predictors []int, target int) (SquIDModel, bool)
	// ReadModel reconstructs a model from its serialized wire form.
	ReadModel(r *bitio.Reader, s schema.Schema, target int) (SquIDModel, error)
}

// Interpreter reports whether an attribute can act as a conditioning
// predictor, and if so, how many distinct encoded values it has (its
// capacity), which bounds the predictor cross-product per §4.10.
type Interpreter interface {
	// EnumCapacity returns the number of distinct predictor codes this
	// attribute contributes, or (0, false) if it isn't enum-interpretable.
	EnumCapacity(s schema.Schema, attrIdx int) (int, bool)
	// Encode maps a concrete value to its predictor code in
	// [0, capacity).
	Encode(v schema.Value) int
}

// Registry binds every AttrType to its ModelCreator and Interpreter. Build
// one with NewRegistry and Register calls at program start; after that,
// treat it as read-only.
type Registry struct {
	creators     map[schema.AttrType]ModelCreator
	interpreters map[schema.AttrType]Interpreter
}

// NewRegistry returns an empty Registry ready for Register calls.
func NewRegistry() *Registry {
	return &Registry{
		creators:     make(map[schema.AttrType]ModelCreator),
		interpreters: make(map[schema.AttrType]Interpreter),
	}
}

// Register binds at for one attribute type.
func (r *Registry) Register(at schema.AttrType, mc ModelCreator, interp Interpreter) {
	r.creators[at] = mc
	r.interpreters[at] = interp
}

// Creator looks up the ModelCreator for at.
func (r *Registry) Creator(at schema.AttrType) (ModelCreator, error) {
	mc, ok := r.creators[at]
	if !ok {
		return nil, fmt.Errorf("registry: no model creator registered for %s", at)
	}
	return mc, nil
}

// Interpreter looks up the Interpreter for at.
func (r *Registry) Interpreter(at schema.AttrType) (Interpreter, error) {
	it, ok := r.interpreters[at]
	if !ok {
		return nil, fmt.Errorf("registry: no interpreter registered for %s", at)
	}
	return it, nil
}

// PredictorCap is the §4.10 hard ceiling on the product of predictor
// capacities a candidate model may condition on.
const PredictorCap = 1000

// PredictorCapacity computes the cross-product capacity of conditioning on
// predictors, returning (0, false) if any predictor isn't enum-interpretable
// or the product exceeds PredictorCap.
func (r *Registry) PredictorCapacity(s schema.Schema, predictors []int) (int, bool) {
	cap := 1
	for _, p := range predictors {
		it, err := r.Interpreter(s.Types[p])
		if err != nil {
			return 0, false
		}
		c, ok := it.EnumCapacity(s, p)
		if !ok {
			return 0, false
		}
		cap *= c
		if cap > PredictorCap {
			return 0, false
		}
	}
	return cap, true
}

// PredictorIndex computes a dense row index into a predictor cross-product
// array for a given tuple, in the same base-mixed-radix order
// PredictorCapacity assumes.
func (r *Registry) PredictorIndex(s schema.Schema, predictors []int, t schema.Tuple) (int, error) {
	idx := 0
	for _, p := range predictors {
		it, err := r.Interpreter(s.Types[p])
		if err != nil {
			return 0, err
		}
		cap, ok := it.EnumCapacity(s, p)
		if !ok {
			return 0, fmt.Errorf("registry: predictor %d is not enum-interpretable", p)
		}
		idx = idx*cap + it.Encode(t.Values[p])
	}
	return idx, nil
}
