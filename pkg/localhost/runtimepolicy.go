package localhost

// Feature identifies an optional on-device runtime optimization.
type Feature string

const (
	FeatureKVQuantization       Feature = "kvQuantization"
	FeatureAttentionSinks       Feature = "attentionSinks"
	FeatureKVSwap               Feature = "kvSwap"
	FeatureIncrementalPrefill   Feature = "incrementalPrefill"
	FeatureSpeculativeScheduling Feature = "speculativeScheduling"
)

// RuntimePolicy composes feature flags with per-feature model allowlists.
// An empty allowlist means "no restriction" (the feature is allowed for
// any model); a non-empty one restricts the feature to the listed ids.
type RuntimePolicy struct {
	Enabled    map[Feature]bool
	Allowlists map[Feature][]string
}

// NewRuntimePolicy returns a policy with every feature disabled and no
// allowlists.
func NewRuntimePolicy() RuntimePolicy {
	return RuntimePolicy{Enabled: map[Feature]bool{}, Allowlists: map[Feature][]string{}}
}

// Allowed reports whether feature is usable for modelID: disabled features
// are never allowed; enabled features with an empty allowlist are allowed
// for any model; enabled features with a non-empty allowlist are allowed
// only for listed models.
func (p RuntimePolicy) Allowed(feature Feature, modelID string) bool {
	if !p.Enabled[feature] {
		return false
	}
	list, has := p.Allowlists[feature]
	if !has || len(list) == 0 {
		return true
	}
	for _, id := range list {
		if id == modelID {
			return true
		}
	}
	return false
}

// RuntimePolicyOverride carries optional per-field overrides: a nil pointer
// leaves the base value unchanged; a non-nil one replaces it. An
// overriding allowlist, when present (even if empty-but-non-nil), wholly
// replaces the base's corresponding list.
type RuntimePolicyOverride struct {
	Enabled    map[Feature]*bool
	Allowlists map[Feature][]string
}

// Merge applies override onto base, returning a new RuntimePolicy. Fields
// absent from override leave base's value untouched.
func (base RuntimePolicy) Merge(override RuntimePolicyOverride) RuntimePolicy {
	out := RuntimePolicy{
		Enabled:    map[Feature]bool{},
		Allowlists: map[Feature][]string{},
	}
	for f, v := range base.Enabled {
		out.Enabled[f] = v
	}
	for f, list := range base.Allowlists {
		out.Allowlists[f] = append([]string(nil), list...)
	}
	for f, v := range override.Enabled {
		if v != nil {
			out.Enabled[f] = *v
		}
	}
	for f, list := range override.Allowlists {
		out.Allowlists[f] = append([]string(nil), list...)
	}
	return out
}
