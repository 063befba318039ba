// Package learner implements the two-stage greedy relational model
// learner (§4.10): stage 0 discovers a dependency order and per-attribute
// predictor set over a sample, stage 1 refits the selected models on the
// full dataset.
package learner

import (
	"fmt"

	"github.com/YimingQiao/blitzcrank/registry"
	"github.com/YimingQiao/blitzcrank/schema"
)

// Memo caches model costs keyed by (predictor set, target), so repeated
// candidate evaluations across stage-0 passes don't refit the same model
// twice.
type Memo interface {
	Get(key string) (float64, bool)
	Put(key string, cost float64)
}

// mapMemo is the default in-process memo cache.
type mapMemo struct{ m map[string]float64 }

// NewMapMemo returns a plain in-memory Memo.
func NewMapMemo() Memo { return &mapMemo{m: make(map[string]float64)} }

func (mm *mapMemo) Get(key string) (float64, bool) { v, ok := mm.m[key]; return v, ok }
func (mm *mapMemo) Put(key string, cost float64)   { mm.m[key] = cost }

func memoKey(predictors []int, target int) string {
	return fmt.Sprintf("%d|%v", target, predictors)
}

// Plan is the learner's output: an attribute ordering and, per attribute
// (indexed by original schema position), its chosen predictor set.
type Plan struct {
	Order      []int
	Predictors [][]int
}

// Sample is a row with a repeat count, the pre-aggregated form stage 0
// trains candidate models on.
type Sample struct {
	Tuple schema.Tuple
	Count int
}

// ModelBuilder constructs and scores a candidate model for (predictors,
// target) over a sample stream; it's the only hook the learner needs into
// the registry/SquID machinery, so this package stays independent of any
// one model family's internals.
type ModelBuilder func(reg *registry.Registry, s schema.Schema, predictors []int, target int, samples []Sample) (cost float64, ok bool)

// Learn runs stage 0 over s; the caller does the stage-1 refit with the
// returned plan. skipModelLearning takes the §4.10 fast
// path (schema order, empty predictor lists) when true.
func Learn(reg *registry.Registry, s schema.Schema, samples []Sample, build ModelBuilder, skipModelLearning bool) Plan {
	width := s.Width()
	if skipModelLearning {
		plan := Plan{Order: make([]int, width), Predictors: make([][]int, width)}
		for i := 0; i < width; i++ {
			plan.Order[i] = i
		}
		return plan
	}
	return stage0(reg, s, samples, build)
}

type candidate struct {
	attr       int
	predictors []int
	cost       float64
}

// stage0 performs structure discovery: for each not-yet-ordered attribute,
// greedily grow its predictor set one attribute at a time from the
// already-ordered set, keeping additions that strictly reduce cost; then
// pick the cheapest eligible attribute to append to the global order.
func stage0(reg *registry.Registry, s schema.Schema, samples []Sample, build ModelBuilder) Plan {
	width := s.Width()
	memo := NewMapMemo()
	ordered := make([]bool, width)
	var order []int
	predictorsOf := make([][]int, width)

	baseSamples := make([]Sample, len(samples))
	copy(baseSamples, samples)

	for len(order) < width {
		best := candidate{attr: -1, cost: 0}
		for a := 0; a < width; a++ {
			if ordered[a] {
				continue
			}
			predictors, cost, ok := growPredictorSet(reg, s, a, order, baseSamples, build, memo)
			if !ok {
				continue
			}
			if best.attr == -1 || cost < best.cost {
				best = candidate{attr: a, predictors: predictors, cost: cost}
			}
		}
		if best.attr == -1 {
			// Nothing scored; fall back to schema order with empty
			// predictors for whatever remains, rather than looping
			// forever.
			for a := 0; a < width; a++ {
				if !ordered[a] {
					order = append(order, a)
					predictorsOf[a] = nil
					ordered[a] = true
				}
			}
			break
		}
		order = append(order, best.attr)
		predictorsOf[best.attr] = best.predictors
		ordered[best.attr] = true
	}

	return Plan{Order: order, Predictors: predictorsOf}
}

// growPredictorSet greedily adds predictors from the already-ordered
// attribute set, one at a time, keeping each addition only if it strictly
// reduces model cost (§4.10 stage 0's inner loop), capped by the registry's
// predictor-capacity limit.
func growPredictorSet(reg *registry.Registry, s schema.Schema, target int, ordered []int, samples []Sample, build ModelBuilder, memo Memo) ([]int, float64, bool) {
	var predictors []int
	bestCost, ok := scoredBuild(reg, s, predictors, target, samples, build, memo)
	if !ok {
		return nil, 0, false
	}

	remaining := append([]int(nil), ordered...)
	improved := true
	for improved {
		improved = false
		bestNext, bestNextCost := -1, bestCost
		for _, p := range remaining {
			if contains(predictors, p) {
				continue
			}
			candidatePredictors := append(append([]int(nil), predictors...), p)
			if _, capOK := reg.PredictorCapacity(s, candidatePredictors); !capOK {
				continue
			}
			cost, ok := scoredBuild(reg, s, candidatePredictors, target, samples, build, memo)
			if !ok {
				continue
			}
			if cost < bestNextCost {
				bestNext, bestNextCost = p, cost
			}
		}
		if bestNext >= 0 {
			predictors = append(predictors, bestNext)
			bestCost = bestNextCost
			improved = true
		}
	}
	return predictors, bestCost, true
}

func scoredBuild(reg *registry.Registry, s schema.Schema, predictors []int, target int, samples []Sample, build ModelBuilder, memo Memo) (float64, bool) {
	key := memoKey(predictors, target)
	if c, ok := memo.Get(key); ok {
		return c, true
	}
	cost, ok := build(reg, s, predictors, target, samples)
	if !ok {
		return 0, false
	}
	memo.Put(key, cost)
	return cost, true
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// Refit returns the attribute order stage 1 refits models over. Predictors
// stay fixed from stage 0; the caller re-feeds full-dataset samples through
// the same ModelBuilder outside this package, since the actual model
// instances outlive the learner.
func Refit(plan Plan) []int {
	return append([]int(nil), plan.Order...)
}
