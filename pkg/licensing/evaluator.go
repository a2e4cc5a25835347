package licensing

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Outcome labels reported to an Observer.
const (
	OutcomeAllowed      = "allowed"
	OutcomeIneligible   = "ineligible"
	OutcomePending      = "pending"
	OutcomeNone         = "none"
	OutcomeAddOn        = "addon"
	OutcomeBundle       = "bundle"
	OutcomeInconsistent = "inconsistent"
)

// Observer receives gate and suggestion outcomes, typically to export metrics.
type Observer interface {
	ObserveVerification(outcome string, missing FeatureSet)
	ObserveSuggestion(outcome string, products ProductSet)
}

type nopObserver struct{}

func (nopObserver) ObserveVerification(string, FeatureSet) {}
func (nopObserver) ObserveSuggestion(string, ProductSet)   {}

// Evaluator is the canonical eligibility resolver. It holds no mutable state
// of its own and is safe for concurrent use; the receipt is read from the
// store on every call.
type Evaluator struct {
	cfg      Config
	store    *ReceiptStore
	logger   zerolog.Logger
	nowFn    func() time.Time
	observer Observer
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used for evaluation events.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// WithClock overrides the clock used by EligibleFeatures.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.nowFn = now
		}
	}
}

// WithObserver registers an outcome observer.
func WithObserver(o Observer) Option {
	return func(e *Evaluator) {
		if o != nil {
			e.observer = o
		}
	}
}

// NewEvaluator creates an evaluator over the given store.
func NewEvaluator(cfg Config, store *ReceiptStore, opts ...Option) *Evaluator {
	e := &Evaluator{
		cfg:      cfg.clone(),
		store:    store,
		logger:   log.Logger,
		nowFn:    time.Now,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns a copy of the evaluator configuration.
func (e *Evaluator) Config() Config {
	return e.cfg.clone()
}

// Platform returns the configured platform.
func (e *Evaluator) Platform() Platform {
	return e.cfg.Platform
}

// EligibleFeatures computes the features the user may use right now.
func (e *Evaluator) EligibleFeatures() FeatureSet {
	return e.EligibleFeaturesAt(e.nowFn())
}

// EligibleFeaturesAt computes the features the user may use at now.
func (e *Evaluator) EligibleFeaturesAt(now time.Time) FeatureSet {
	return e.eligibleFor(e.receipt(), now)
}

// IsEligible reports whether a single feature is currently unlocked.
func (e *Evaluator) IsEligible(f Feature) bool {
	return e.EligibleFeatures().Contains(f)
}

// IsEligibleForAll reports whether every feature in required is unlocked.
func (e *Evaluator) IsEligibleForAll(required FeatureSet) bool {
	return required.IsSubsetOf(e.EligibleFeatures())
}

func (e *Evaluator) receipt() *Receipt {
	if e == nil || e.store == nil {
		return nil
	}
	return e.store.Current()
}

// eligibleFor is the pure resolution step over one receipt snapshot.
func (e *Evaluator) eligibleFor(receipt *Receipt, now time.Time) FeatureSet {
	eligible := e.cfg.Unrestricted.Clone()

	// Nothing more can be inferred until the receipt loads.
	if receipt == nil {
		return eligible
	}

	for _, line := range receipt.Lines {
		if !line.IsActive(now) {
			continue
		}
		eligible = eligible.Union(FeaturesGranted(line.Product, e.cfg.Platform))
	}

	legacy, rules := grandfatheredFeatures(e.cfg.Grandfather, receipt.Original, e.cfg.Platform)
	if len(rules) > 0 {
		e.logger.Debug().Strs("rules", rules).Stringer("features", legacy).Msg("Grandfathered features applied")
		eligible = eligible.Union(legacy)
	}

	// A forced level only ever widens.
	if e.cfg.ForcedLevel != LevelUndefined {
		eligible = eligible.Union(e.cfg.ForcedLevel.Features())
	}
	return eligible
}
