package squid

import "github.com/YimingQiao/blitzcrank/schema"

// CategoricalInterpreter makes categorical/categorical-Markov attributes
// usable as learner predictors: their value is already a dense int32 code,
// so EnumCapacity is just the caller-declared range for that column.
type CategoricalInterpreter struct {
	// Ranges holds the declared outcome-count for each schema column that
	// is categorical or categorical-Markov, indexed by attribute index.
	Ranges []int
}

func (ci *CategoricalInterpreter) EnumCapacity(s schema.Schema, attrIdx int) (int, bool) {
	if attrIdx < 0 || attrIdx >= len(ci.Ranges) || ci.Ranges[attrIdx] <= 0 {
		return 0, false
	}
	return ci.Ranges[attrIdx], true
}

func (ci *CategoricalInterpreter) Encode(v schema.Value) int {
	if !v.IsInt() {
		return 0
	}
	return int(v.Int())
}

// NonEnumInterpreter covers attribute types that §4.10 never allows as
// predictors directly (real, string, time-series): every call reports
// "not enum-interpretable", steering the learner's candidate search away
// from them as conditioning columns.
type NonEnumInterpreter struct{}

func (NonEnumInterpreter) EnumCapacity(schema.Schema, int) (int, bool) { return 0, false }
func (NonEnumInterpreter) Encode(schema.Value) int                    { return 0 }

// IntInterpreter treats a bounded-range integer column as enum-
// interpretable, using its observed range as capacity. Capacity must be
// set once the rows have been scanned (see compressor.buildRegistry).
type IntInterpreter struct {
	Ranges []int
	Mins   []int32
}

func (ii *IntInterpreter) EnumCapacity(s schema.Schema, attrIdx int) (int, bool) {
	if attrIdx < 0 || attrIdx >= len(ii.Ranges) || ii.Ranges[attrIdx] <= 0 {
		return 0, false
	}
	return ii.Ranges[attrIdx], true
}

// Encode assumes predictor values are already zero-based (§4.10's predictor
// cross-product indexing never needs the original column minimum - only
// each target attribute's own model does, via its separately-held intMin).
// Mins is consulted by callers that normalize tuples before indexing, not by
// Encode itself, since registry.Interpreter.Encode carries no attribute
// index to look a per-column minimum up by.
func (ii *IntInterpreter) Encode(v schema.Value) int {
	if !v.IsInt() {
		return 0
	}
	return int(v.Int())
}
