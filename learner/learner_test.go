package learner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YimingQiao/blitzcrank/registry"
	"github.com/YimingQiao/blitzcrank/schema"
)

func TestLearnSkipModelLearningFastPath(t *testing.T) {
	s := schema.NewSchema(schema.Categorical, schema.Real)
	plan := Learn(nil, s, nil, nil, true)
	require.Equal(t, []int{0, 1}, plan.Order)
	require.Equal(t, [][]int{nil, nil}, plan.Predictors)
}

func TestLearnPicksCheapestAttributeFirst(t *testing.T) {
	reg := registry.NewRegistry()
	s := schema.NewSchema(schema.Categorical, schema.Categorical)

	build := func(reg *registry.Registry, s schema.Schema, predictors []int, target int, samples []Sample) (float64, bool) {
		// attribute 0 is "cheaper" (fewer predictors ever help); attribute
		// 1 always costs more so the learner should order 0 first.
		if target == 0 {
			return 10, true
		}
		return 20 - float64(len(predictors)), true
	}

	plan := Learn(reg, s, nil, build, false)
	require.Equal(t, 0, plan.Order[0])
}

func TestMapMemoRoundTrip(t *testing.T) {
	m := NewMapMemo()
	m.Put("k", 3.5)
	v, ok := m.Get("k")
	require.True(t, ok)
	require.Equal(t, 3.5, v)
}
