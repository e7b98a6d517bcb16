package localhost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedRequiresEnabledFeature(t *testing.T) {
	p := NewRuntimePolicy()
	assert.False(t, p.Allowed(FeatureKVQuantization, "model-a"))

	p.Enabled[FeatureKVQuantization] = true
	assert.True(t, p.Allowed(FeatureKVQuantization, "model-a"))
}

func TestAllowedRespectsNonEmptyAllowlist(t *testing.T) {
	p := NewRuntimePolicy()
	p.Enabled[FeatureSpeculativeScheduling] = true
	p.Allowlists[FeatureSpeculativeScheduling] = []string{"model-a"}

	assert.True(t, p.Allowed(FeatureSpeculativeScheduling, "model-a"))
	assert.False(t, p.Allowed(FeatureSpeculativeScheduling, "model-b"))
}

func TestMergeOnlyOverridesPresentFields(t *testing.T) {
	base := NewRuntimePolicy()
	base.Enabled[FeatureKVSwap] = true
	base.Allowlists[FeatureKVSwap] = []string{"model-a"}

	enabledFalse := false
	merged := base.Merge(RuntimePolicyOverride{
		Enabled: map[Feature]*bool{FeatureKVSwap: &enabledFalse},
	})

	assert.False(t, merged.Enabled[FeatureKVSwap])
	assert.Equal(t, []string{"model-a"}, merged.Allowlists[FeatureKVSwap]) // untouched

	merged2 := base.Merge(RuntimePolicyOverride{
		Allowlists: map[Feature][]string{FeatureKVSwap: {"model-b", "model-c"}},
	})
	assert.True(t, merged2.Enabled[FeatureKVSwap]) // untouched
	assert.Equal(t, []string{"model-b", "model-c"}, merged2.Allowlists[FeatureKVSwap])
}

func TestMergeDoesNotMutateBase(t *testing.T) {
	base := NewRuntimePolicy()
	base.Enabled[FeatureAttentionSinks] = true
	enabledFalse := false
	base.Merge(RuntimePolicyOverride{Enabled: map[Feature]*bool{FeatureAttentionSinks: &enabledFalse}})
	assert.True(t, base.Enabled[FeatureAttentionSinks])
}
