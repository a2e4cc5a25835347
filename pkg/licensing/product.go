package licensing

import (
	"sort"
	"strings"
)

// Identifier markers. A raw store identifier containing one of these is
// truncated to start at the marker, which drops any bundle/vendor prefix.
const (
	featuresMarker  = "features."
	providersMarker = "providers."
	donationsMarker = "donations."
)

var productMarkers = []string{featuresMarker, providersMarker, donationsMarker}

// Product is a purchasable catalog item identified by its normalized identifier.
// Products are comparable and safe to use as map keys.
type Product struct {
	id string
}

// NewProduct normalizes a raw store identifier into a Product.
//
// "com.example.app.features.appletv" becomes "features.appletv"; identifiers
// without any marker, such as the flat legacy "full_version", are kept verbatim.
func NewProduct(raw string) Product {
	raw = strings.TrimSpace(raw)
	best := -1
	for _, marker := range productMarkers {
		if idx := strings.Index(raw, marker); idx >= 0 && (best < 0 || idx < best) {
			best = idx
		}
	}
	if best > 0 {
		raw = raw[best:]
	}
	return Product{id: raw}
}

// ID returns the normalized identifier.
func (p Product) ID() string {
	return p.id
}

// IsZero reports whether p was never constructed.
func (p Product) IsZero() bool {
	return p.id == ""
}

func (p Product) String() string {
	return p.id
}

// MarshalText implements encoding.TextMarshaler.
func (p Product) MarshalText() ([]byte, error) {
	return []byte(p.id), nil
}

// UnmarshalText normalizes the decoded identifier.
func (p *Product) UnmarshalText(data []byte) error {
	*p = NewProduct(string(data))
	return nil
}

// Feature add-ons.
var (
	ProductAppleTV = NewProduct(featuresMarker + "appletv")

	// Discontinued add-ons, kept so old purchases keep their feature.
	ProductAllProviders    = NewProduct(featuresMarker + "all_providers")
	ProductNetworkSettings = NewProduct(featuresMarker + "network_settings")
	ProductTrustedNetworks = NewProduct(featuresMarker + "trusted_networks")
)

// Full and essentials bundles.
var (
	ProductFullAllPlatforms = NewProduct(featuresMarker + "full_multi_version")
	ProductEssentials       = NewProduct(featuresMarker + "essentials")
	ProductFullTV           = NewProduct(featuresMarker + "full_tv_version")
	ProductFullMonthly      = NewProduct(featuresMarker + "full.monthly")
	ProductFullYearly       = NewProduct(featuresMarker + "full.yearly")

	// Legacy single-platform full versions. These identifiers predate the
	// markers and are stored flat.
	ProductLegacyFullIOS   = NewProduct("full_version")
	ProductLegacyFullMacOS = NewProduct("full_mac_version")
)

// Donations.
var (
	ProductDonationTiny   = NewProduct(donationsMarker + "Tiny")
	ProductDonationSmall  = NewProduct(donationsMarker + "Small")
	ProductDonationMedium = NewProduct(donationsMarker + "Medium")
	ProductDonationBig    = NewProduct(donationsMarker + "Big")
	ProductDonationHuge   = NewProduct(donationsMarker + "Huge")
	ProductDonationMaxi   = NewProduct(donationsMarker + "Maxi")
)

// legacyProviderNames were sold as per-provider bundles before the provider
// directory became a single add-on.
var legacyProviderNames = []string{
	"Hide.me",
	"Mullvad",
	"NordVPN",
	"PIA",
	"ProtonVPN",
	"SurfShark",
	"TorGuard",
	"TunnelBear",
	"VyprVPN",
	"Windscribe",
}

// ProductSet is an unordered set of products.
type ProductSet map[Product]struct{}

// NewProductSet builds a set from the given products.
func NewProductSet(products ...Product) ProductSet {
	s := make(ProductSet, len(products))
	for _, p := range products {
		s[p] = struct{}{}
	}
	return s
}

// Contains reports whether p is in the set.
func (s ProductSet) Contains(p Product) bool {
	_, ok := s[p]
	return ok
}

// Add inserts p into the set.
func (s ProductSet) Add(p Product) {
	s[p] = struct{}{}
}

// Sorted returns the products ordered by identifier.
func (s ProductSet) Sorted() []Product {
	out := make([]Product, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
