package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rcourtman/tunnelpass/internal/config"
	"github.com/rcourtman/tunnelpass/internal/receiptfile"
	"github.com/rcourtman/tunnelpass/pkg/licensing"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var metricsShutdownTimeout = 5 * time.Second

func newWatchCmd(getConfig func() *config.Config, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the receipt file and export eligibility metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), getConfig(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.ReceiptPath == "" {
				return errors.New("watch needs a receipt file (--receipt or TUNNELPASS_RECEIPT_PATH)")
			}
			return runWatch(cmd.Context(), a)
		},
	}
}

func runWatch(ctx context.Context, a *app) error {
	publish := func() {
		eligible := a.evaluator.EligibleFeatures()
		a.metrics.SetEligibleFeatures(eligible)
		a.logger.Info().Stringer("eligible", eligible).Msg("Eligibility updated")
	}
	a.store.OnChange(func(*licensing.Receipt) { publish() })
	publish()

	watcher := receiptfile.NewWatcher(a.cfg.ReceiptPath, a.store,
		receiptfile.WithWatcherLogger(a.logger),
		receiptfile.WithPollInterval(a.cfg.PollInterval),
		receiptfile.WithReloadHook(func(err error) {
			a.metrics.RecordReceiptReload("file", err)
		}),
	)

	g, ctx := errgroup.WithContext(ctx)
	if a.cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, a.cfg.MetricsAddr, a.logger)
		})
	}
	g.Go(func() error {
		return watcher.Run(ctx)
	})
	return g.Wait()
}

// serveMetrics serves /metrics until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Msg("Failed to shut down metrics server cleanly")
		}
	}()

	logger.Info().Str("addr", ln.Addr().String()).Msg("Metrics endpoint listening")
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
