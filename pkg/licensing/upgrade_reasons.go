package licensing

import "sort"

// ReasonEntry defines a paywall prompt tied to a missing feature.
type ReasonEntry struct {
	Feature   Feature // Feature key
	Reason    string  // User-facing description
	ActionURL string  // Parameterized upgrade URL
	Priority  int     // Sort order (lower = more important)
}

// UpgradeReasonMatrix is the canonical feature-to-paywall-reason mapping.
var UpgradeReasonMatrix = []ReasonEntry{
	{
		Feature:   FeatureAppleTV,
		Reason:    "Add Apple TV to use your profiles on the big screen, with sharing across devices included.",
		ActionURL: UpgradeURLForFeature(FeatureAppleTV),
		Priority:  1,
	},
	{
		Feature:   FeatureProviders,
		Reason:    "Unlock the provider directory to pick servers from supported VPN providers without manual setup.",
		ActionURL: UpgradeURLForFeature(FeatureProviders),
		Priority:  2,
	},
	{
		Feature:   FeatureOnDemand,
		Reason:    "Connect automatically when you join untrusted Wi-Fi or cellular networks.",
		ActionURL: UpgradeURLForFeature(FeatureOnDemand),
		Priority:  3,
	},
	{
		Feature:   FeatureSharing,
		Reason:    "Share your profiles securely across your devices.",
		ActionURL: UpgradeURLForFeature(FeatureSharing),
		Priority:  4,
	},
	{
		Feature:   FeatureDNS,
		Reason:    "Override DNS servers, including DNS over HTTPS and DNS over TLS.",
		ActionURL: UpgradeURLForFeature(FeatureDNS),
		Priority:  5,
	},
	{
		Feature:   FeatureHTTPProxy,
		Reason:    "Route web traffic through an HTTP proxy while connected.",
		ActionURL: UpgradeURLForFeature(FeatureHTTPProxy),
		Priority:  6,
	},
	{
		Feature:   FeatureRouting,
		Reason:    "Define custom routes to include or exclude networks from the tunnel.",
		ActionURL: UpgradeURLForFeature(FeatureRouting),
		Priority:  7,
	},
	{
		Feature:   FeatureInteractiveLogin,
		Reason:    "Log in with one-time passwords when your server asks for them.",
		ActionURL: UpgradeURLForFeature(FeatureInteractiveLogin),
		Priority:  8,
	},
}

// GenerateUpgradeReasons returns paywall reasons for features of required that
// are not in eligible. An empty required set means every feature.
func GenerateUpgradeReasons(required, eligible FeatureSet) []ReasonEntry {
	reasons := make([]ReasonEntry, 0, len(UpgradeReasonMatrix))
	for _, entry := range UpgradeReasonMatrix {
		if eligible.Contains(entry.Feature) {
			continue
		}
		if !required.IsEmpty() && !required.Contains(entry.Feature) {
			continue
		}
		reasons = append(reasons, entry)
	}

	sort.SliceStable(reasons, func(i, j int) bool {
		if reasons[i].Priority == reasons[j].Priority {
			return reasons[i].Feature < reasons[j].Feature
		}
		return reasons[i].Priority < reasons[j].Priority
	})

	return reasons
}

// UpgradeReasons returns paywall reasons for the currently missing features
// among required.
func (e *Evaluator) UpgradeReasons(required FeatureSet) []ReasonEntry {
	return GenerateUpgradeReasons(required, e.EligibleFeatures())
}
