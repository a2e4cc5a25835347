package licensing

import "net/url"

// DefaultUpgradeURL is used when no feature-specific URL mapping exists.
const DefaultUpgradeURL = "https://tunnelpass.app/purchase?utm_source=app&utm_medium=paywall"

// UpgradeURLForFeature returns the canonical upgrade URL for a feature.
func UpgradeURLForFeature(f Feature) string {
	if !f.IsKnown() {
		return DefaultUpgradeURL
	}
	return DefaultUpgradeURL + "&feature=" + url.QueryEscape(string(f))
}

// UpgradeURLForProduct returns the store deep link for a product.
func UpgradeURLForProduct(p Product) string {
	if p.IsZero() {
		return DefaultUpgradeURL
	}
	return DefaultUpgradeURL + "&product=" + url.QueryEscape(p.ID())
}
