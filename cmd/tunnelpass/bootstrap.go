package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rcourtman/tunnelpass/internal/config"
	"github.com/rcourtman/tunnelpass/internal/logging"
	"github.com/rcourtman/tunnelpass/internal/metrics"
	"github.com/rcourtman/tunnelpass/internal/receiptcache"
	"github.com/rcourtman/tunnelpass/internal/receiptfile"
	"github.com/rcourtman/tunnelpass/pkg/licensing"
	"github.com/rs/zerolog"
)

// app wires the engine to its collaborators for one CLI invocation.
type app struct {
	cfg       *config.Config
	store     *licensing.ReceiptStore
	evaluator *licensing.Evaluator
	cache     *receiptcache.Cache
	metrics   *metrics.LicensingMetrics
	logger    zerolog.Logger
}

// newApp builds the engine and seeds the store: the cached receipt first,
// then the receipt file, which wins when both exist.
func newApp(ctx context.Context, cfg *config.Config, flags *globalFlags) (*app, error) {
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	lcfg, err := cfg.Licensing()
	if err != nil {
		return nil, fmt.Errorf("invalid licensing configuration: %w", err)
	}

	ctx, _ = logging.WithOperationID(ctx, "")
	logger := logging.FromContext(ctx)

	a := &app{
		cfg:     cfg,
		store:   licensing.NewReceiptStore(licensing.WithStoreLogger(logger)),
		metrics: metrics.GetLicensingMetrics(),
		logger:  logger,
	}

	if flags == nil || !flags.noCache {
		a.openCache()
	}

	if cfg.ReceiptPath != "" {
		receipt, err := receiptfile.Load(cfg.ReceiptPath)
		switch {
		case err == nil:
			a.metrics.RecordReceiptReload("file", nil)
			a.store.Replace(*receipt)
		case errors.Is(err, os.ErrNotExist):
			a.logger.Debug().Str("path", cfg.ReceiptPath).Msg("Receipt file does not exist yet")
		default:
			a.metrics.RecordReceiptReload("file", err)
			a.close()
			return nil, err
		}
	}

	a.evaluator = licensing.NewEvaluator(lcfg, a.store,
		licensing.WithLogger(logger),
		licensing.WithObserver(a.metrics),
	)
	return a, nil
}

func (a *app) openCache() {
	path, err := a.cfg.CachePath()
	if err != nil {
		a.logger.Warn().Err(err).Msg("Receipt cache disabled")
		return
	}
	cache, err := receiptcache.Open(path)
	if err != nil {
		a.logger.Warn().Err(err).Str("path", path).Msg("Failed to open receipt cache, continuing without it")
		return
	}
	a.cache = cache

	receipt, savedAt, err := cache.Load()
	switch {
	case err == nil:
		a.metrics.RecordReceiptReload("cache", nil)
		a.store.Replace(*receipt)
		a.logger.Debug().Time("saved_at", savedAt).Msg("Seeded purchase record from cache")
	case errors.Is(err, receiptcache.ErrNotCached):
	default:
		a.metrics.RecordReceiptReload("cache", err)
		a.logger.Warn().Err(err).Msg("Failed to read receipt cache")
	}

	cache.Persist(a.store, func(err error) {
		a.logger.Warn().Err(err).Msg("Failed to update receipt cache")
	})
}

func (a *app) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close receipt cache")
		}
	}
}

// parseFeatures resolves command arguments into a feature set.
func parseFeatures(args []string) (licensing.FeatureSet, error) {
	features := make([]licensing.Feature, 0, len(args))
	for _, raw := range args {
		f, ok := licensing.ParseFeature(raw)
		if !ok {
			return licensing.FeatureSet{}, fmt.Errorf("%w: %q (known: %s)", licensing.ErrUnknownFeature, raw, featureList(licensing.AllFeatures()))
		}
		features = append(features, f)
	}
	return licensing.NewFeatureSet(features...), nil
}
