package licensing

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func assertProducts(t *testing.T, got ProductSet, want ...Product) {
	t.Helper()
	if g, w := got.Sorted(), NewProductSet(want...).Sorted(); !reflect.DeepEqual(g, w) {
		t.Fatalf("products = %v, want %v", g, w)
	}
}

func TestSuggestedProducts(t *testing.T) {
	tests := []struct {
		name      string
		platform  Platform
		products  []Product
		required  FeatureSet
		recurring bool
		want      []Product
	}{
		{
			name:     "full_owner_missing_appletv",
			platform: PlatformIOS,
			products: []Product{ProductFullAllPlatforms},
			required: NewFeatureSet(FeatureAppleTV),
			want:     []Product{ProductAppleTV},
		},
		{
			name:      "legacy_pair_owner_missing_appletv",
			platform:  PlatformMacOS,
			products:  []Product{ProductLegacyFullIOS, ProductLegacyFullMacOS},
			required:  NewFeatureSet(FeatureAppleTV, FeatureDNS),
			recurring: true,
			want:      []Product{ProductAppleTV},
		},
		{
			name:     "addon_owner_gets_bundle_without_tv",
			platform: PlatformIOS,
			products: []Product{ProductAppleTV},
			required: NewFeatureSet(FeatureDNS),
			want:     []Product{ProductFullAllPlatforms},
		},
		{
			name:      "addon_owner_is_not_offered_subscriptions",
			platform:  PlatformIOS,
			products:  []Product{ProductAppleTV},
			required:  NewFeatureSet(FeatureDNS),
			recurring: true,
			want:      []Product{ProductFullAllPlatforms},
		},
		{
			name:     "no_purchases",
			platform: PlatformIOS,
			required: NewFeatureSet(FeatureDNS),
			want:     []Product{ProductFullTV},
		},
		{
			name:      "no_purchases_with_recurring",
			platform:  PlatformIOS,
			required:  NewFeatureSet(FeatureDNS),
			recurring: true,
			want:      []Product{ProductFullTV, ProductFullMonthly, ProductFullYearly},
		},
		{
			name:     "single_legacy_is_not_a_full_version",
			platform: PlatformIOS,
			products: []Product{ProductLegacyFullIOS},
			required: NewFeatureSet(FeatureAppleTV),
			want:     []Product{ProductFullTV},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEvaluator(t, DefaultConfig(tt.platform), receiptWith(tt.products...))
			got, err := e.SuggestedProducts(tt.required, tt.recurring)
			if err != nil {
				t.Fatalf("SuggestedProducts() error = %v", err)
			}
			assertProducts(t, got, tt.want...)
		})
	}
}

func TestSuggestedProductsNothingToSuggest(t *testing.T) {
	e, _ := newTestEvaluator(t, DefaultConfig(PlatformIOS), receiptWith(ProductNetworkSettings))

	for _, required := range []FeatureSet{{}, NewFeatureSet(FeatureDNS)} {
		got, err := e.SuggestedProducts(required, true)
		if err != nil {
			t.Fatalf("SuggestedProducts(%s) error = %v", required, err)
		}
		if got != nil {
			t.Fatalf("SuggestedProducts(%s) = %v, want nil", required, got.Sorted())
		}
	}
}

func TestSuggestedProductsInconsistentFullOwner(t *testing.T) {
	// Legacy full versions confer nothing on tvOS, so the pair leaves an
	// owner without dns there.
	observer := &recordingObserver{}
	e, _ := newTestEvaluator(t, DefaultConfig(PlatformTV),
		receiptWith(ProductLegacyFullIOS, ProductLegacyFullMacOS), WithObserver(observer))

	got, err := e.SuggestedProducts(NewFeatureSet(FeatureDNS), false)
	if !errors.Is(err, ErrInconsistentState) {
		t.Fatalf("expected ErrInconsistentState, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected no suggestion, got %v", got.Sorted())
	}
	if want := []string{OutcomeInconsistent}; !reflect.DeepEqual(observer.suggestions, want) {
		t.Fatalf("outcomes = %v, want %v", observer.suggestions, want)
	}
}

func TestSuggestedProductsIgnoresRefundedBundle(t *testing.T) {
	refunded := testNow.Add(-time.Hour)
	receipt := &Receipt{
		Original: recentOriginal,
		Lines:    []PurchaseLine{{Product: ProductFullAllPlatforms, CancellationDate: &refunded}},
	}
	e, _ := newTestEvaluator(t, DefaultConfig(PlatformIOS), receipt)

	got, err := e.SuggestedProducts(NewFeatureSet(FeatureDNS), false)
	if err != nil {
		t.Fatalf("SuggestedProducts() error = %v", err)
	}
	assertProducts(t, got, ProductFullTV)
}

func TestSuggestedProductsWhileLoading(t *testing.T) {
	e, _ := newTestEvaluator(t, DefaultConfig(PlatformIOS), nil)

	got, err := e.SuggestedProducts(NewFeatureSet(FeatureRouting), false)
	if err != nil {
		t.Fatalf("SuggestedProducts() error = %v", err)
	}
	assertProducts(t, got, ProductFullTV)
}

func TestSuggestedProductsReportsOutcomes(t *testing.T) {
	observer := &recordingObserver{}
	e, store := newTestEvaluator(t, DefaultConfig(PlatformIOS), receiptWith(), WithObserver(observer))

	_, _ = e.SuggestedProducts(NewFeatureSet(FeatureDNS), false)
	if _, err := store.AppendPurchase(ProductFullAllPlatforms, nil, nil); err != nil {
		t.Fatalf("AppendPurchase() error = %v", err)
	}
	_, _ = e.SuggestedProducts(NewFeatureSet(FeatureAppleTV), false)
	_, _ = e.SuggestedProducts(NewFeatureSet(FeatureDNS), false)

	want := []string{OutcomeBundle, OutcomeAddOn, OutcomeNone}
	if !reflect.DeepEqual(observer.suggestions, want) {
		t.Fatalf("outcomes = %v, want %v", observer.suggestions, want)
	}
}
