package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rcourtman/tunnelpass/pkg/licensing"
)

// LicensingMetrics manages Prometheus instrumentation for the entitlement engine.
// It satisfies licensing.Observer.
type LicensingMetrics struct {
	verificationsTotal   *prometheus.CounterVec
	missingFeaturesTotal *prometheus.CounterVec
	suggestionsTotal     *prometheus.CounterVec
	suggestedTotal       *prometheus.CounterVec
	receiptReloadsTotal  *prometheus.CounterVec
	eligibleFeatures     *prometheus.GaugeVec
}

var (
	licensingMetricsInstance *LicensingMetrics
	licensingMetricsOnce     sync.Once
	licensingMetricsFactory  = defaultLicensingMetricsFactory
)

var _ licensing.Observer = (*LicensingMetrics)(nil)

// GetLicensingMetrics returns the singleton metrics instance registered on the
// default registerer.
func GetLicensingMetrics() *LicensingMetrics {
	licensingMetricsOnce.Do(func() {
		licensingMetricsInstance = licensingMetricsFactory()
	})
	return licensingMetricsInstance
}

func defaultLicensingMetricsFactory() *LicensingMetrics {
	return NewLicensingMetrics(prometheus.DefaultRegisterer)
}

// NewLicensingMetrics registers the collectors on registerer, reusing any that
// are already registered.
func NewLicensingMetrics(registerer prometheus.Registerer) *LicensingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &LicensingMetrics{
		verificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tunnelpass",
				Subsystem: "licensing",
				Name:      "verifications_total",
				Help:      "Total feature verifications by outcome",
			},
			[]string{"outcome"},
		),
		missingFeaturesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tunnelpass",
				Subsystem: "licensing",
				Name:      "missing_features_total",
				Help:      "Total features reported missing by failed verifications",
			},
			[]string{"feature"},
		),
		suggestionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tunnelpass",
				Subsystem: "licensing",
				Name:      "suggestions_total",
				Help:      "Total purchase suggestions by outcome",
			},
			[]string{"outcome"},
		),
		suggestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tunnelpass",
				Subsystem: "licensing",
				Name:      "suggested_products_total",
				Help:      "Total times each product was suggested",
			},
			[]string{"product"},
		),
		receiptReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tunnelpass",
				Subsystem: "receipt",
				Name:      "reloads_total",
				Help:      "Total purchase record reloads by source and result",
			},
			[]string{"source", "result"},
		),
		eligibleFeatures: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tunnelpass",
				Subsystem: "licensing",
				Name:      "eligible_features",
				Help:      "Whether each feature is currently unlocked (1) or not (0)",
			},
			[]string{"feature"},
		),
	}

	m.verificationsTotal = registerCounterVec(registerer, m.verificationsTotal)
	m.missingFeaturesTotal = registerCounterVec(registerer, m.missingFeaturesTotal)
	m.suggestionsTotal = registerCounterVec(registerer, m.suggestionsTotal)
	m.suggestedTotal = registerCounterVec(registerer, m.suggestedTotal)
	m.receiptReloadsTotal = registerCounterVec(registerer, m.receiptReloadsTotal)
	m.eligibleFeatures = registerGaugeVec(registerer, m.eligibleFeatures)

	return m
}

func registerCounterVec(registerer prometheus.Registerer, counter *prometheus.CounterVec) *prometheus.CounterVec {
	if err := registerer.Register(counter); err != nil {
		if alreadyRegisteredErr, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := alreadyRegisteredErr.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return counter
}

func registerGaugeVec(registerer prometheus.Registerer, gauge *prometheus.GaugeVec) *prometheus.GaugeVec {
	if err := registerer.Register(gauge); err != nil {
		if alreadyRegisteredErr, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := alreadyRegisteredErr.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return gauge
}

func defaultLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

// ObserveVerification records a gate outcome and the features it found missing.
func (m *LicensingMetrics) ObserveVerification(outcome string, missing licensing.FeatureSet) {
	if m == nil || m.verificationsTotal == nil {
		return
	}
	m.verificationsTotal.WithLabelValues(defaultLabel(outcome)).Inc()
	for _, f := range missing.Sorted() {
		m.missingFeaturesTotal.WithLabelValues(string(f)).Inc()
	}
}

// ObserveSuggestion records a suggestion outcome and each product offered.
func (m *LicensingMetrics) ObserveSuggestion(outcome string, products licensing.ProductSet) {
	if m == nil || m.suggestionsTotal == nil {
		return
	}
	m.suggestionsTotal.WithLabelValues(defaultLabel(outcome)).Inc()
	for _, p := range products.Sorted() {
		m.suggestedTotal.WithLabelValues(p.ID()).Inc()
	}
}

// RecordReceiptReload records a purchase record load from source ("file", "cache").
func (m *LicensingMetrics) RecordReceiptReload(source string, err error) {
	if m == nil || m.receiptReloadsTotal == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.receiptReloadsTotal.WithLabelValues(defaultLabel(source), result).Inc()
}

// SetEligibleFeatures publishes the current eligibility as one gauge per feature.
func (m *LicensingMetrics) SetEligibleFeatures(eligible licensing.FeatureSet) {
	if m == nil || m.eligibleFeatures == nil {
		return
	}
	for _, f := range licensing.AllFeatures() {
		value := 0.0
		if eligible.Contains(f) {
			value = 1
		}
		m.eligibleFeatures.WithLabelValues(string(f)).Set(value)
	}
}
