// Package licensing resolves which paid tunnelpass features a user may use.
//
// It combines the immutable product catalog, the product-to-feature mapping and
// the authenticated purchase record (receipt) into an eligible feature set, then
// gates actions against it and suggests products that close any gap.
package licensing

import (
	"fmt"
	"strings"
)

// Feature is a single, independently gated paid capability.
type Feature string

// Feature constants. The set is closed: adding one means revisiting
// FeaturesGranted, the level tables and the upgrade reason matrix.
const (
	FeatureAppleTV          Feature = "appletv"           // Alternate platform (Apple TV) support
	FeatureDNS              Feature = "dns"               // DNS override
	FeatureHTTPProxy        Feature = "http_proxy"        // HTTP proxy settings
	FeatureOnDemand         Feature = "on_demand"         // Automatic connect on network change
	FeatureInteractiveLogin Feature = "interactive_login" // One-time password login
	FeatureProviders        Feature = "providers"         // Curated provider server directory
	FeatureRouting          Feature = "routing"           // Custom routing rules
	FeatureSharing          Feature = "sharing"           // Profile sharing across devices
)

var allFeatures = []Feature{
	FeatureAppleTV,
	FeatureDNS,
	FeatureHTTPProxy,
	FeatureOnDemand,
	FeatureInteractiveLogin,
	FeatureProviders,
	FeatureRouting,
	FeatureSharing,
}

// AllFeatures returns every known feature in declaration order.
func AllFeatures() []Feature {
	out := make([]Feature, len(allFeatures))
	copy(out, allFeatures)
	return out
}

// IsKnown reports whether f is one of the declared feature constants.
func (f Feature) IsKnown() bool {
	for _, known := range allFeatures {
		if f == known {
			return true
		}
	}
	return false
}

// ParseFeature converts a raw key into a Feature.
func ParseFeature(raw string) (Feature, bool) {
	f := Feature(strings.ToLower(strings.TrimSpace(raw)))
	return f, f.IsKnown()
}

// essentialsFeatures is everything except the alternate platform.
var essentialsFeatures = NewFeatureSet(
	FeatureDNS,
	FeatureHTTPProxy,
	FeatureOnDemand,
	FeatureInteractiveLogin,
	FeatureProviders,
	FeatureRouting,
	FeatureSharing,
)

// completeFeatures adds the alternate platform on top of essentials.
var completeFeatures = essentialsFeatures.Union(NewFeatureSet(FeatureAppleTV))

// EssentialsFeatures returns the feature set of the essentials tier.
func EssentialsFeatures() FeatureSet {
	return essentialsFeatures.Clone()
}

// CompleteFeatures returns every feature.
func CompleteFeatures() FeatureSet {
	return completeFeatures.Clone()
}

// DisplayName returns a human-readable name for the feature.
func (f Feature) DisplayName() string {
	switch f {
	case FeatureAppleTV:
		return "Apple TV"
	case FeatureDNS:
		return "DNS Settings"
	case FeatureHTTPProxy:
		return "HTTP Proxy"
	case FeatureOnDemand:
		return "On-Demand Connection"
	case FeatureInteractiveLogin:
		return "Interactive Login (OTP)"
	case FeatureProviders:
		return "Provider Directory"
	case FeatureRouting:
		return "Custom Routing"
	case FeatureSharing:
		return "Profile Sharing"
	default:
		return string(f)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Feature) MarshalText() ([]byte, error) {
	return []byte(f), nil
}

// UnmarshalText accepts only known feature keys.
func (f *Feature) UnmarshalText(data []byte) error {
	parsed, ok := ParseFeature(string(data))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFeature, string(data))
	}
	*f = parsed
	return nil
}
