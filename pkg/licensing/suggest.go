package licensing

import "fmt"

// SuggestedProducts computes what the user should buy to unlock required.
//
// It returns (nil, nil) when there is nothing to suggest. A full version owner
// missing anything other than the alternate platform is an inconsistent state:
// the error wraps ErrInconsistentState and the UI should deny the action.
// With includeRecurring, suggesting the TV-tier one-time bundle also offers the
// monthly and yearly subscriptions as alternatives.
func (e *Evaluator) SuggestedProducts(required FeatureSet, includeRecurring bool) (ProductSet, error) {
	now := e.nowFn()
	receipt := e.receipt()
	eligible := e.eligibleFor(receipt, now)

	if required.IsEmpty() || required.IsSubsetOf(eligible) {
		e.observer.ObserveSuggestion(OutcomeNone, nil)
		return nil, nil
	}
	missing := required.Subtract(eligible)

	suggested := ProductSet{}
	if ownsFullVersion(receipt.ActiveProducts(now)) {
		if !missing.Equal(NewFeatureSet(FeatureAppleTV)) {
			e.logger.Error().
				Stringer("missing", missing).
				Str("platform", string(e.cfg.Platform)).
				Msg("Full version owner is missing features, check the feature mapping and purchase record")
			e.observer.ObserveSuggestion(OutcomeInconsistent, nil)
			return nil, fmt.Errorf("%w: %s", ErrInconsistentState, missing)
		}
		suggested.Add(ProductAppleTV)
		e.observer.ObserveSuggestion(OutcomeAddOn, suggested)
		return suggested, nil
	}

	if eligible.Contains(FeatureAppleTV) {
		// The alternate platform is already owned; do not sell it again.
		suggested.Add(ProductFullAllPlatforms)
	} else {
		suggested.Add(ProductFullTV)
	}

	if includeRecurring && suggested.Contains(ProductFullTV) {
		suggested.Add(ProductFullMonthly)
		suggested.Add(ProductFullYearly)
	}

	e.observer.ObserveSuggestion(OutcomeBundle, suggested)
	return suggested, nil
}

// ownsFullVersion reports whether active purchases amount to a full version:
// the all-platforms bundle, the TV-tier bundle, or both legacy single-platform
// full versions together.
func ownsFullVersion(active ProductSet) bool {
	if active.Contains(ProductFullAllPlatforms) || active.Contains(ProductFullTV) {
		return true
	}
	return active.Contains(ProductLegacyFullIOS) && active.Contains(ProductLegacyFullMacOS)
}
