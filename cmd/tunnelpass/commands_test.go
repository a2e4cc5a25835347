package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcourtman/tunnelpass/internal/receiptfile"
	"github.com/rcourtman/tunnelpass/pkg/licensing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEnv isolates a test from the caller's TUNNELPASS_* environment and
// points the cache at a fresh directory.
func setupEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"TUNNELPASS_PLATFORM",
		"TUNNELPASS_UNRESTRICTED",
		"TUNNELPASS_FORCED_LEVEL",
		"TUNNELPASS_GRANDFATHER",
		"TUNNELPASS_RECEIPT_PATH",
		"TUNNELPASS_METRICS_ADDR",
		"TUNNELPASS_POLL_INTERVAL",
	} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	t.Setenv("TUNNELPASS_CACHE_DIR", t.TempDir())
	t.Setenv("TUNNELPASS_LOG_LEVEL", "disabled")
	t.Setenv("TUNNELPASS_LOG_FORMAT", "json")
}

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return execute(t, context.Background(), args...)
}

func writeReceipt(t *testing.T, products ...licensing.Product) string {
	t.Helper()
	receipt := &licensing.Receipt{
		Original: licensing.OriginalPurchase{
			BuildNumber:  4100,
			PurchaseDate: time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, p := range products {
		receipt.Lines = append(receipt.Lines, licensing.PurchaseLine{Product: p})
	}
	path := filepath.Join(t.TempDir(), "receipt.json")
	require.NoError(t, receiptfile.Save(path, receipt))
	return path
}

func TestVersionCmd(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := Version, BuildTime, GitCommit
	defer func() {
		Version, BuildTime, GitCommit = oldVersion, oldBuildTime, oldGitCommit
	}()

	Version = "1.2.3"
	BuildTime = "2026-01-01"
	GitCommit = "abcdef"

	output, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, output, "TunnelPass 1.2.3")
	assert.Contains(t, output, "Built: 2026-01-01")
	assert.Contains(t, output, "Commit: abcdef")

	BuildTime = "unknown"
	GitCommit = "unknown"
	output, err = run(t, "version")
	require.NoError(t, err)
	assert.NotContains(t, output, "Built:")
	assert.NotContains(t, output, "Commit:")
}

func TestProductsCmd(t *testing.T) {
	setupEnv(t)

	output, err := run(t, "products", "--match", "donations.*")
	require.NoError(t, err)
	assert.Contains(t, output, "donations.Tiny")
	assert.Contains(t, output, "donations.Maxi")
	assert.NotContains(t, output, "features.appletv")

	output, err = run(t, "products", "--platform", "macos", "--match", "full_version")
	require.NoError(t, err)
	assert.Contains(t, output, "full_version")
	assert.Contains(t, output, "{}", "legacy iOS full version grants nothing on macOS")

	_, err = run(t, "products", "--match", "nothing*")
	require.Error(t, err)
}

func TestEligibleCmd(t *testing.T) {
	setupEnv(t)
	path := writeReceipt(t, licensing.ProductAppleTV)

	output, err := run(t, "eligible", "--receipt", path, "--reasons")
	require.NoError(t, err)
	assert.Contains(t, output, "Platform: ios")
	assert.Contains(t, output, "Purchase record: loaded")
	assert.Contains(t, output, "[x]  appletv")
	assert.Contains(t, output, "[ ]  dns")
	assert.Contains(t, output, "- dns:")
	assert.NotContains(t, output, "- appletv:")
}

func TestVerifyCmd(t *testing.T) {
	setupEnv(t)
	path := writeReceipt(t, licensing.ProductNetworkSettings)

	output, err := run(t, "verify", "dns", "--receipt", path)
	require.NoError(t, err)
	assert.Contains(t, output, "OK")

	_, err = run(t, "verify", "dns", "--shared", "--receipt", path)
	require.ErrorIs(t, err, licensing.ErrIneligible)
	assert.True(t, licensing.MissingFeatures(err).Equal(licensing.NewFeatureSet(licensing.FeatureSharing)))

	_, err = run(t, "verify", "teleport", "--receipt", path)
	require.ErrorIs(t, err, licensing.ErrUnknownFeature)
}

func TestVerifyCmdPendingWithoutReceipt(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "verify", "dns")
	require.ErrorIs(t, err, licensing.ErrVerificationPending)
}

func TestVerifyCmdTVGate(t *testing.T) {
	setupEnv(t)
	t.Setenv("TUNNELPASS_PLATFORM", "tvos")
	path := writeReceipt(t, licensing.ProductEssentials)

	_, err := run(t, "verify", "dns", "--receipt", path)
	require.ErrorIs(t, err, licensing.ErrIneligible)
	assert.True(t, licensing.MissingFeatures(err).Contains(licensing.FeatureAppleTV))
}

func TestSuggestCmd(t *testing.T) {
	setupEnv(t)
	empty := writeReceipt(t)

	output, err := run(t, "suggest", "dns", "--recurring", "--receipt", empty)
	require.NoError(t, err)
	assert.Contains(t, output, "features.full_tv_version")
	assert.Contains(t, output, "features.full.monthly")
	assert.Contains(t, output, "features.full.yearly")
	assert.Contains(t, output, licensing.DefaultUpgradeURL)

	owner := writeReceipt(t, licensing.ProductFullAllPlatforms)
	output, err = run(t, "suggest", "appletv", "dns", "--receipt", owner)
	require.NoError(t, err)
	assert.Contains(t, output, "features.appletv")
	assert.NotContains(t, output, "full_tv_version")

	output, err = run(t, "suggest", "dns", "--receipt", owner)
	require.NoError(t, err)
	assert.Contains(t, output, "Nothing to buy")
}

func TestBuyCmdWritesReceiptFile(t *testing.T) {
	setupEnv(t)
	path := filepath.Join(t.TempDir(), "receipt.yaml")

	output, err := run(t, "buy", "com.example.tunnelpass.features.essentials", "--receipt", path)
	require.NoError(t, err)
	assert.Contains(t, output, "Recorded features.essentials")

	receipt, err := receiptfile.Load(path)
	require.NoError(t, err)
	require.Len(t, receipt.Lines, 1)
	assert.Equal(t, licensing.ProductEssentials, receipt.Lines[0].Product)
	assert.NotEmpty(t, receipt.Lines[0].ID)

	_, err = run(t, "verify", "dns", "--receipt", path)
	require.NoError(t, err)
}

func TestBuyCmdPersistsToCache(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "buy", "features.full.monthly", "--expires-in", "720h")
	require.NoError(t, err)

	// No receipt file: the next invocation starts from the cache.
	output, err := run(t, "verify", "appletv", "routing")
	require.NoError(t, err)
	assert.Contains(t, output, "OK")

	_, err = run(t, "verify", "appletv", "--no-cache")
	require.ErrorIs(t, err, licensing.ErrVerificationPending)
}

func TestBuyCmdRejectsUnknownProduct(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "buy", "features.time_machine")
	require.Error(t, err)

	_, err = run(t, "buy", "features.time_machine", "--force")
	require.NoError(t, err)

	_, err = run(t, "buy", "features.full.yearly", "--expires-in", "0s")
	require.Error(t, err)
}

func TestWatchCmdStopsOnCancel(t *testing.T) {
	setupEnv(t)
	t.Setenv("TUNNELPASS_METRICS_ADDR", "127.0.0.1:0")
	path := writeReceipt(t, licensing.ProductAppleTV)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := execute(t, ctx, "watch", "--receipt", path)
	require.NoError(t, err)
}

func TestWatchCmdRequiresReceipt(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "watch")
	require.Error(t, err)
}

func TestInvalidPlatformFlag(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "eligible", "--platform", "watchos")
	require.ErrorIs(t, err, licensing.ErrUnknownPlatform)
}
