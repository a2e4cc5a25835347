package licensing

// FeatureRequirer is implemented by domain objects (profiles, profile modules)
// that know which features they need.
type FeatureRequirer interface {
	RequiredFeatures() FeatureSet
}

// Verify checks that every required feature is unlocked.
//
// It returns nil when the caller may proceed, or a *VerificationError. The
// error matches ErrVerificationPending while the receipt is not loaded, so the
// caller can retry instead of treating it as a denial, and ErrIneligible
// otherwise. On tvOS the alternate platform feature is always required.
func (e *Evaluator) Verify(required FeatureSet) error {
	if e.cfg.Platform == PlatformTV {
		required = required.Union(NewFeatureSet(FeatureAppleTV))
	}

	receipt := e.receipt()
	eligible := e.eligibleFor(receipt, e.nowFn())
	missing := required.Subtract(eligible)
	if missing.IsEmpty() {
		e.observer.ObserveVerification(OutcomeAllowed, missing)
		return nil
	}

	if receipt == nil {
		e.logger.Debug().Stringer("missing", missing).Msg("Verification pending, purchase record not loaded")
		e.observer.ObserveVerification(OutcomePending, missing)
		return &VerificationError{Kind: VerificationPending, Missing: missing}
	}

	e.logger.Debug().Stringer("missing", missing).Msg("Verification failed")
	e.observer.ObserveVerification(OutcomeIneligible, missing)
	return &VerificationError{Kind: VerificationIneligible, Missing: missing}
}

// VerifyFeature is Verify for a single feature.
func (e *Evaluator) VerifyFeature(f Feature) error {
	return e.Verify(NewFeatureSet(f))
}

// VerifyProfile verifies the features a profile requires, plus sharing when
// the profile is being shared.
func (e *Evaluator) VerifyProfile(profile FeatureRequirer, shared bool) error {
	required := FeatureSet{}
	if profile != nil {
		required = profile.RequiredFeatures()
	}
	return e.Verify(withSharing(required, shared))
}

// VerifyModules verifies the union of the features each module requires.
func (e *Evaluator) VerifyModules(modules []FeatureRequirer, shared bool) error {
	required := FeatureSet{}
	for _, module := range modules {
		if module == nil {
			continue
		}
		required = required.Union(module.RequiredFeatures())
	}
	return e.Verify(withSharing(required, shared))
}

func withSharing(required FeatureSet, shared bool) FeatureSet {
	if !shared {
		return required
	}
	return required.Union(NewFeatureSet(FeatureSharing))
}
