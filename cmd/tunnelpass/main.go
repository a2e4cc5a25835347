package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rcourtman/tunnelpass/internal/config"
	"github.com/rcourtman/tunnelpass/internal/logging"
	"github.com/spf13/cobra"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// globalFlags override values loaded from the environment.
type globalFlags struct {
	platform    string
	receiptPath string
	cacheDir    string
	noCache     bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           "tunnelpass",
		Short:         "TunnelPass - in-app purchase entitlement engine",
		Long:          `TunnelPass resolves which VPN client features a user may use from their purchase record, gates actions on them, and suggests what to buy.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			applyFlags(cmd, loaded, flags)
			cfg = loaded

			logging.Init(logging.Config{
				Format:    cfg.LogFormat,
				Level:     cfg.LogLevel,
				Component: "tunnelpass",
				Output:    cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.platform, "platform", "", "Platform to evaluate for (ios, macos, tvos)")
	pf.StringVar(&flags.receiptPath, "receipt", "", "Purchase record file (.json or .yaml)")
	pf.StringVar(&flags.cacheDir, "cache-dir", "", "Directory holding the receipt cache")
	pf.BoolVar(&flags.noCache, "no-cache", false, "Do not read or write the receipt cache")

	getConfig := func() *config.Config { return cfg }

	rootCmd.AddCommand(
		newVersionCmd(),
		newProductsCmd(getConfig),
		newEligibleCmd(getConfig, flags),
		newVerifyCmd(getConfig, flags),
		newSuggestCmd(getConfig, flags),
		newBuyCmd(getConfig, flags),
		newWatchCmd(getConfig, flags),
	)
	return rootCmd
}

func applyFlags(cmd *cobra.Command, cfg *config.Config, flags *globalFlags) {
	pf := cmd.Flags()
	if pf.Changed("platform") {
		cfg.Platform = flags.platform
	}
	if pf.Changed("receipt") {
		cfg.ReceiptPath = flags.receiptPath
	}
	if pf.Changed("cache-dir") {
		cfg.CacheDir = flags.cacheDir
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "TunnelPass %s\n", Version)
			if BuildTime != "unknown" {
				fmt.Fprintf(out, "Built: %s\n", BuildTime)
			}
			if GitCommit != "unknown" {
				fmt.Fprintf(out, "Commit: %s\n", GitCommit)
			}
		},
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
