package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rcourtman/tunnelpass/internal/config"
	"github.com/rcourtman/tunnelpass/internal/receiptfile"
	"github.com/rcourtman/tunnelpass/pkg/licensing"
	"github.com/spf13/cobra"
)

func newProductsCmd(getConfig func() *config.Config) *cobra.Command {
	var match string

	cmd := &cobra.Command{
		Use:   "products",
		Short: "List catalog products and the features they grant",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			platform, err := licensing.ParsePlatform(cfg.Platform)
			if err != nil {
				return err
			}

			products := licensing.DefaultCatalog().Match(match)
			if len(products) == 0 {
				return fmt.Errorf("no products match %q", match)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRODUCT\tCATEGORY\tRECURRING\tFEATURES")
			for _, p := range products {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n",
					p.ID(),
					licensing.CategoryOf(p),
					licensing.IsRecurring(p),
					licensing.FeaturesGranted(p, platform),
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&match, "match", "", "Only list products whose identifier matches this wildcard pattern")
	return cmd
}

func newEligibleCmd(getConfig func() *config.Config, flags *globalFlags) *cobra.Command {
	var reasons bool

	cmd := &cobra.Command{
		Use:   "eligible",
		Short: "Show which features are unlocked",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), getConfig(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			eligible := a.evaluator.EligibleFeatures()
			a.metrics.SetEligibleFeatures(eligible)

			out := cmd.OutOrStdout()
			state := "loaded"
			if !a.store.IsLoaded() {
				state = "not loaded"
			}
			fmt.Fprintf(out, "Platform: %s\n", a.evaluator.Platform())
			fmt.Fprintf(out, "Purchase record: %s\n", state)

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, f := range licensing.AllFeatures() {
				mark := " "
				if eligible.Contains(f) {
					mark = "x"
				}
				fmt.Fprintf(w, "[%s]\t%s\t%s\n", mark, f, f.DisplayName())
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if reasons {
				for _, r := range a.evaluator.UpgradeReasons(licensing.FeatureSet{}) {
					fmt.Fprintf(out, "- %s: %s\n  %s\n", r.Feature, r.Reason, r.ActionURL)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reasons, "reasons", false, "Also print upgrade reasons for locked features")
	return cmd
}

func newVerifyCmd(getConfig func() *config.Config, flags *globalFlags) *cobra.Command {
	var shared bool

	cmd := &cobra.Command{
		Use:   "verify FEATURE...",
		Short: "Check that features are unlocked; exits non-zero otherwise",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			required, err := parseFeatures(args)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), getConfig(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			if shared {
				required = required.Union(licensing.NewFeatureSet(licensing.FeatureSharing))
			}
			if err := a.evaluator.Verify(required); err != nil {
				if errors.Is(err, licensing.ErrVerificationPending) {
					return fmt.Errorf("%w; retry once a purchase record is available", err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK %s\n", required)
			return nil
		},
	}
	cmd.Flags().BoolVar(&shared, "shared", false, "Also require sharing")
	return cmd
}

func newSuggestCmd(getConfig func() *config.Config, flags *globalFlags) *cobra.Command {
	var recurring bool

	cmd := &cobra.Command{
		Use:   "suggest FEATURE...",
		Short: "Suggest products that unlock the given features",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			required, err := parseFeatures(args)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), getConfig(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			products, err := a.evaluator.SuggestedProducts(required, recurring)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(products) == 0 {
				fmt.Fprintln(out, "Nothing to buy: all features are already unlocked")
				return nil
			}
			for _, p := range products.Sorted() {
				fmt.Fprintf(out, "%s\t%s\n", p.ID(), licensing.UpgradeURLForProduct(p))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&recurring, "recurring", false, "Offer monthly and yearly subscriptions alongside the one-time bundle")
	return cmd
}

func newBuyCmd(getConfig func() *config.Config, flags *globalFlags) *cobra.Command {
	var (
		expiresIn time.Duration
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "buy PRODUCT",
		Short: "Record a purchase in the purchase record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			product := licensing.NewProduct(args[0])
			catalog := licensing.DefaultCatalog()
			if !catalog.Contains(product) && !force {
				return fmt.Errorf("unknown product %q (use --force to record it anyway)", product)
			}

			a, err := newApp(cmd.Context(), getConfig(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.store.IsLoaded() {
				a.logger.Info().Msg("Starting a new purchase record")
				a.store.Replace(licensing.Receipt{})
			}

			var expiration *time.Time
			if licensing.IsRecurring(product) {
				if expiresIn <= 0 {
					return errors.New("subscriptions need a positive --expires-in")
				}
				at := time.Now().UTC().Add(expiresIn)
				expiration = &at
			}

			line, err := a.store.AppendPurchase(product, expiration, nil)
			if err != nil {
				return err
			}

			if path := a.cfg.ReceiptPath; path != "" {
				if err := receiptfile.Save(path, a.store.Current()); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s as %s\n", product, line.ID)
			if unlocked := licensing.FeaturesGranted(product, a.evaluator.Platform()); !unlocked.IsEmpty() {
				fmt.Fprintf(cmd.OutOrStdout(), "Unlocks %s\n", unlocked)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 30*24*time.Hour, "Subscription length for recurring products")
	cmd.Flags().BoolVar(&force, "force", false, "Record products missing from the catalog")
	return cmd
}

// featureList renders features comma-separated for log and help output.
func featureList(features []licensing.Feature) string {
	names := make([]string, len(features))
	for i, f := range features {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
