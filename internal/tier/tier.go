// Package tier defines the subscription tier catalogue for the Voicedeck platform.
// Tiers map to default resource limits and default feature flags.
package tier

// Tier identifies a subscription tier.
type Tier string

const (
	TierBasic      Tier = "basic"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

// Feature identifies a gated platform capability.
type Feature string

const (
	FeatureAPIAccess       Feature = "api_access"
	FeatureCustomVoices    Feature = "custom_voices"
	FeatureCallRecording   Feature = "call_recording"
	FeatureAnalytics       Feature = "analytics"
	FeaturePriorityRouting Feature = "priority_routing"
)

// Limits defines the resource caps for a tier.
type Limits struct {
	MaxAgents          int   `json:"maxAgents"`
	MaxCampaigns       int   `json:"maxCampaigns"`
	MaxConcurrentCalls int   `json:"maxConcurrentCalls"`
	MaxMinutes         int64 `json:"maxMinutes"`
}

// Definition is an immutable catalogue entry for one tier.
type Definition struct {
	Tier     Tier
	Limits   Limits
	Features map[Feature]bool
}

// Catalog is the hardcoded tier catalogue.
var Catalog = map[Tier]Definition{
	TierBasic: {
		Tier: TierBasic,
		Limits: Limits{
			MaxAgents:          1,
			MaxCampaigns:       2,
			MaxConcurrentCalls: 1,
			MaxMinutes:         100,
		},
		Features: map[Feature]bool{
			FeatureAPIAccess:       false,
			FeatureCustomVoices:    false,
			FeatureCallRecording:   false,
			FeatureAnalytics:       false,
			FeaturePriorityRouting: false,
		},
	},
	TierPremium: {
		Tier: TierPremium,
		Limits: Limits{
			MaxAgents:          5,
			MaxCampaigns:       10,
			MaxConcurrentCalls: 5,
			MaxMinutes:         1000,
		},
		Features: map[Feature]bool{
			FeatureAPIAccess:       true,
			FeatureCustomVoices:    true,
			FeatureCallRecording:   true,
			FeatureAnalytics:       false,
			FeaturePriorityRouting: false,
		},
	},
	TierEnterprise: {
		Tier: TierEnterprise,
		Limits: Limits{
			MaxAgents:          25,
			MaxCampaigns:       50,
			MaxConcurrentCalls: 20,
			MaxMinutes:         10000,
		},
		Features: map[Feature]bool{
			FeatureAPIAccess:       true,
			FeatureCustomVoices:    true,
			FeatureCallRecording:   true,
			FeatureAnalytics:       true,
			FeaturePriorityRouting: true,
		},
	},
}

// Defaults returns the catalogue definition for a tier. An unrecognised tier
// degrades to basic, the most restrictive known tier, so enforcement never
// fails open on a bad tier name.
func Defaults(t Tier) Definition {
	def, ok := Catalog[t]
	if !ok {
		def = Catalog[TierBasic]
	}
	return def
}

// DefaultLimits returns the limits for a tier (basic for unknown tiers).
func DefaultLimits(t Tier) Limits {
	return Defaults(t).Limits
}

// DefaultFeatures returns a fresh copy of a tier's default feature map.
// Callers may mutate the returned map without corrupting the catalogue.
func DefaultFeatures(t Tier) map[Feature]bool {
	src := Defaults(t).Features
	features := make(map[Feature]bool, len(src))
	for k, v := range src {
		features[k] = v
	}
	return features
}

// Valid returns true if the tier name is recognised.
func Valid(t Tier) bool {
	_, ok := Catalog[t]
	return ok
}
