package licensing

import "time"

// GrandfatherRule preserves what a discontinued product used to grant for
// users provisioned before a product-model change.
type GrandfatherRule struct {
	// Name identifies the rule in logs.
	Name string
	// Cutoff matches receipts whose original purchase date is strictly before it.
	Cutoff time.Time
	// BuildCutoff, when non-zero, also matches receipts whose original build
	// number is non-zero and strictly below it.
	BuildCutoff int
	// Implied is the product whose features are granted on a match.
	Implied Product
}

// Matches reports whether the original purchase qualifies for the rule.
func (g GrandfatherRule) Matches(original OriginalPurchase) bool {
	if !original.PurchaseDate.IsZero() && !g.Cutoff.IsZero() && original.PurchaseDate.Before(g.Cutoff) {
		return true
	}
	if g.BuildCutoff > 0 && original.BuildNumber > 0 && original.BuildNumber < g.BuildCutoff {
		return true
	}
	return false
}

// DefaultGrandfatherRules is the shipped rule table:
//   - installs from the paid-app era keep the legacy full version of their platform;
//   - installs from before the provider directory became paid keep it.
func DefaultGrandfatherRules() []GrandfatherRule {
	return []GrandfatherRule{
		{
			Name:        "paid_app_ios",
			Cutoff:      time.Date(2019, time.February, 27, 0, 0, 0, 0, time.UTC),
			BuildCutoff: 2016,
			Implied:     ProductLegacyFullIOS,
		},
		{
			Name:        "paid_app_macos",
			Cutoff:      time.Date(2019, time.February, 27, 0, 0, 0, 0, time.UTC),
			BuildCutoff: 2016,
			Implied:     ProductLegacyFullMacOS,
		},
		{
			Name:    "free_providers",
			Cutoff:  time.Date(2020, time.September, 1, 0, 0, 0, 0, time.UTC),
			Implied: ProductAllProviders,
		},
	}
}

// grandfatheredFeatures unions the features implied by every matching rule.
func grandfatheredFeatures(rules []GrandfatherRule, original OriginalPurchase, platform Platform) (FeatureSet, []string) {
	out := FeatureSet{}
	var matched []string
	for _, rule := range rules {
		if !rule.Matches(original) {
			continue
		}
		out = out.Union(FeaturesGranted(rule.Implied, platform))
		matched = append(matched, rule.Name)
	}
	return out, matched
}
