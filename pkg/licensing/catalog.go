package licensing

import (
	"strings"

	"github.com/IGLOU-EU/go-wildcard/v2"
)

// Category groups products by how they are sold.
type Category string

const (
	CategoryFeatureAddOn         Category = "feature_addon"
	CategoryFullOrEssentials     Category = "full_or_essentials"
	CategoryDonation             Category = "donation"
	CategoryLegacyProviderBundle Category = "legacy_provider_bundle"
)

// Catalog is the immutable set of purchasable products, grouped by category.
// Build it once with DefaultCatalog and share the pointer.
type Catalog struct {
	addOns    []Product
	full      []Product
	recurring []Product
	donations []Product
	providers []Product
	fullSet   ProductSet
}

// DefaultCatalog returns the shipped product catalog.
func DefaultCatalog() *Catalog {
	c := &Catalog{
		addOns: []Product{
			ProductAppleTV,
			ProductAllProviders,
			ProductNetworkSettings,
			ProductTrustedNetworks,
		},
		full: []Product{
			ProductFullAllPlatforms,
			ProductEssentials,
			ProductFullTV,
			ProductLegacyFullIOS,
			ProductLegacyFullMacOS,
		},
		recurring: []Product{
			ProductFullMonthly,
			ProductFullYearly,
		},
		donations: []Product{
			ProductDonationTiny,
			ProductDonationSmall,
			ProductDonationMedium,
			ProductDonationBig,
			ProductDonationHuge,
			ProductDonationMaxi,
		},
	}
	for _, name := range legacyProviderNames {
		c.providers = append(c.providers, NewProduct(providersMarker+name))
	}
	c.fullSet = NewProductSet(append(append([]Product{}, c.full...), c.recurring...)...)
	return c
}

// CategoryOf classifies any product, including ones missing from the catalog.
func CategoryOf(p Product) Category {
	switch {
	case isFullOrEssentials(p):
		return CategoryFullOrEssentials
	case strings.HasPrefix(p.id, donationsMarker):
		return CategoryDonation
	case strings.HasPrefix(p.id, providersMarker):
		return CategoryLegacyProviderBundle
	case strings.HasPrefix(p.id, featuresMarker):
		return CategoryFeatureAddOn
	default:
		// Unmarked identifiers are the flat legacy full versions.
		return CategoryFullOrEssentials
	}
}

func isFullOrEssentials(p Product) bool {
	switch p {
	case ProductFullAllPlatforms, ProductEssentials, ProductFullTV,
		ProductFullMonthly, ProductFullYearly,
		ProductLegacyFullIOS, ProductLegacyFullMacOS:
		return true
	}
	return false
}

// IsRecurring reports whether p is a subscription product.
func IsRecurring(p Product) bool {
	return p == ProductFullMonthly || p == ProductFullYearly
}

// Products returns the catalog entries of one category.
func (c *Catalog) Products(category Category) []Product {
	var src []Product
	switch category {
	case CategoryFeatureAddOn:
		src = c.addOns
	case CategoryFullOrEssentials:
		src = append(append([]Product{}, c.full...), c.recurring...)
	case CategoryDonation:
		src = c.donations
	case CategoryLegacyProviderBundle:
		src = c.providers
	}
	out := make([]Product, len(src))
	copy(out, src)
	return out
}

// All returns every catalog product grouped by category.
func (c *Catalog) All() []Product {
	out := make([]Product, 0, len(c.addOns)+len(c.full)+len(c.recurring)+len(c.donations)+len(c.providers))
	out = append(out, c.addOns...)
	out = append(out, c.full...)
	out = append(out, c.recurring...)
	out = append(out, c.donations...)
	out = append(out, c.providers...)
	return out
}

// Contains reports whether p is sold (or was once sold) through the catalog.
func (c *Catalog) Contains(p Product) bool {
	for _, candidate := range c.All() {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsFullOrEssentials reports whether p belongs to the full/essentials group.
func (c *Catalog) IsFullOrEssentials(p Product) bool {
	return c.fullSet.Contains(p)
}

// Match returns catalog products whose identifier matches a shell-style
// pattern such as "features.*" or "*full*".
func (c *Catalog) Match(pattern string) []Product {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return c.All()
	}
	var out []Product
	for _, p := range c.All() {
		if wildcard.Match(pattern, p.id) {
			out = append(out, p)
		}
	}
	return out
}
