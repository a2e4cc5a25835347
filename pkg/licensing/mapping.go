package licensing

import (
	"fmt"
	"strings"
)

// Platform identifies the operating system the engine is evaluated on.
type Platform string

const (
	PlatformIOS   Platform = "ios"
	PlatformMacOS Platform = "macos"
	PlatformTV    Platform = "tvos"
)

// ParsePlatform converts a configuration value into a Platform.
func ParsePlatform(raw string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ios", "iphoneos", "ipados":
		return PlatformIOS, nil
	case "macos", "darwin", "osx":
		return PlatformMacOS, nil
	case "tvos", "appletv":
		return PlatformTV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, raw)
	}
}

// FeaturesGranted returns the features a product unlocks on a platform.
// Rules are evaluated in order and the first match wins; products matching no
// rule confer nothing.
func FeaturesGranted(p Product, platform Platform) FeatureSet {
	switch p {
	// current bundles
	case ProductFullAllPlatforms, ProductEssentials:
		return essentialsFeatures.Clone()
	case ProductFullTV, ProductFullMonthly, ProductFullYearly:
		return completeFeatures.Clone()

	// alternate platform add-on
	case ProductAppleTV:
		return NewFeatureSet(FeatureAppleTV, FeatureSharing)

	// legacy full versions only count on the platform they were bought for
	case ProductLegacyFullIOS:
		if platform == PlatformIOS {
			return essentialsFeatures.Clone()
		}
		return FeatureSet{}
	case ProductLegacyFullMacOS:
		if platform == PlatformMacOS {
			return essentialsFeatures.Clone()
		}
		return FeatureSet{}

	// discontinued add-ons
	case ProductAllProviders:
		return NewFeatureSet(FeatureProviders)
	case ProductNetworkSettings:
		return NewFeatureSet(FeatureDNS)
	case ProductTrustedNetworks:
		return NewFeatureSet(FeatureOnDemand)

	default:
		return FeatureSet{}
	}
}
