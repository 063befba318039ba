// Package jsonlearner implements the JSON triplet learner (§4.12): a
// variant of the relational greedy learner (learner.Learn) that operates
// per (object-node, ancestor-leaf-ids) triplet instead of per relational
// attribute, choosing which ancestor leaves each node's exist/type/
// array_size sub-models condition on.
package jsonlearner

import (
	"github.com/YimingQiao/blitzcrank/jsonmodel"
	"github.com/YimingQiao/blitzcrank/registry"
	"github.com/YimingQiao/blitzcrank/schema"
)

// Doc is one training document paired with its repeat count (duplicate
// documents collapse to one Snapshot pass rather than being walked twice).
type Doc struct {
	Node  jsonmodel.DOMNode
	Count int
}

// structuralAncestors computes, for every node, the leaf ids lying on the
// path from the root down to (but not including) that node - the
// candidate predictor pool a triplet's ancestor-leaf-ids are drawn from.
// Array element templates inherit their array's ancestors (the template is
// shared by every element, so its ancestors are whatever precedes the
// array itself, not any one element).
func structuralAncestors(root *jsonmodel.Node) map[*jsonmodel.Node][]int {
	out := make(map[*jsonmodel.Node][]int)
	var walk func(n *jsonmodel.Node, anc []int)
	walk = func(n *jsonmodel.Node, anc []int) {
		out[n] = anc
		next := anc
		if n.Kind == jsonmodel.KindLeafNode && n.LeafID >= 0 && !n.TimeSeries {
			next = append(append([]int(nil), anc...), n.LeafID)
		}
		for _, name := range n.Members {
			walk(n.Children[name], next)
		}
		if n.Element != nil {
			walk(n.Element, next)
		}
	}
	walk(root, nil)
	return out
}

// Learn chooses each node's predictor set by greedily growing it from the
// empty set over its structural ancestor pool (the same stage0/refit shape
// learner.Learn uses for relational attributes), scored by training a
// throwaway decision model directly against the gathered snapshots. docs
// should be a representative, deduplicated sample of the corpus; skip lets
// callers fall back to unconditioned sub-models (e.g. a single-pass CLI run
// with no separate training phase).
func Learn(root *jsonmodel.Node, reg *registry.Registry, docSchema schema.Schema, docs []Doc, skip bool) jsonmodel.Ancestors {
	anc := jsonmodel.Ancestors{}
	if skip || len(docs) == 0 {
		return anc
	}
	pool := structuralAncestors(root)
	leafCount := root.LeafCount()

	snaps := make([]jsonmodel.Snapshot, len(docs))
	for i, d := range docs {
		snaps[i] = jsonmodel.TakeSnapshot(root, d.Node, leafCount)
	}

	root.Walk(func(n *jsonmodel.Node) {
		candidates := pool[n]
		if len(candidates) == 0 {
			return
		}
		switch n.Kind {
		case jsonmodel.KindObjectNode:
			// Attach wires one shared predictor set across every member's
			// exist sub-model for a given object node, so the triplet here
			// is scored by the summed cost over all members rather than
			// picked independently per member.
			anc[n] = growDecision(reg, docSchema, candidates, func(trial []int) float64 {
				total := 0.0
				for _, name := range n.Members {
					total += scoreExist(reg, docSchema, trial, n, name, snaps, docs)
				}
				return total
			})
		case jsonmodel.KindArrayNode:
			anc[n] = growDecision(reg, docSchema, candidates, func(trial []int) float64 {
				return scoreArraySize(reg, docSchema, trial, n, snaps, docs)
			})
		case jsonmodel.KindLeafNode:
			if len(n.Types) > 1 || n.TimeSeries {
				anc[n] = growDecision(reg, docSchema, candidates, func(trial []int) float64 {
					return scoreLeafDecision(reg, docSchema, trial, n, snaps, docs)
				})
			}
		}
	})
	return anc
}

const arraySizeRange = 256

func scoreExist(reg *registry.Registry, s schema.Schema, preds []int, n *jsonmodel.Node, member string, snaps []jsonmodel.Snapshot, docs []Doc) float64 {
	t := jsonmodel.NewTrialDecision(reg, s, preds, 2)
	for i, snap := range snaps {
		ex, ok := snap.Exist[n]
		if !ok {
			continue
		}
		d := 0
		if ex[member] {
			d = 1
		}
		t.Feed(snap.LeafValues, d, docs[i].Count)
	}
	t.EndOfData()
	return t.Cost()
}

func scoreArraySize(reg *registry.Registry, s schema.Schema, preds []int, n *jsonmodel.Node, snaps []jsonmodel.Snapshot, docs []Doc) float64 {
	t := jsonmodel.NewTrialDecision(reg, s, preds, arraySizeRange)
	for i, snap := range snaps {
		sz, ok := snap.ArraySize[n]
		if !ok {
			continue
		}
		t.Feed(snap.LeafValues, sz, docs[i].Count)
	}
	t.EndOfData()
	return t.Cost()
}

func scoreLeafDecision(reg *registry.Registry, s schema.Schema, preds []int, n *jsonmodel.Node, snaps []jsonmodel.Snapshot, docs []Doc) float64 {
	targetRange := len(n.Types)
	if n.TimeSeries {
		targetRange = arraySizeRange
	}
	t := jsonmodel.NewTrialDecision(reg, s, preds, targetRange)
	for i, snap := range snaps {
		var d int
		if n.TimeSeries {
			sz, ok := snap.ArraySize[n]
			if !ok {
				continue
			}
			d = sz
		} else {
			ti, ok := snap.TypeIdx[n]
			if !ok {
				continue
			}
			d = ti
		}
		t.Feed(snap.LeafValues, d, docs[i].Count)
	}
	t.EndOfData()
	return t.Cost()
}

// growDecision is the §4.10-shaped greedy inner loop: start from no
// predictors, repeatedly add whichever remaining ancestor lowers the
// scored cost the most, stopping once nothing helps or the predictor
// capacity cap would be exceeded.
func growDecision(reg *registry.Registry, s schema.Schema, candidates []int, score func([]int) float64) []int {
	best := []int{}
	bestCost := score(best)
	improved := true
	for improved {
		improved = false
		var nextBest []int
		nextCost := bestCost
		for _, c := range candidates {
			if contains(best, c) {
				continue
			}
			trial := append(append([]int(nil), best...), c)
			if _, ok := reg.PredictorCapacity(s, trial); !ok {
				continue
			}
			cost := score(trial)
			if cost < nextCost {
				nextCost = cost
				nextBest = trial
				improved = true
			}
		}
		if improved {
			best, bestCost = nextBest, nextCost
		}
	}
	return best
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
