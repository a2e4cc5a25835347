package receiptfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rcourtman/tunnelpass/internal/logging"
	"github.com/rcourtman/tunnelpass/pkg/licensing"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultDebounce     = 100 * time.Millisecond
	defaultPollInterval = 5 * time.Second
)

// Watcher keeps a ReceiptStore in sync with a receipt file. A file that fails
// to decode is logged and ignored; the store keeps the last good receipt.
type Watcher struct {
	path         string
	store        *licensing.ReceiptStore
	logger       zerolog.Logger
	debounce     time.Duration
	pollInterval time.Duration
	forcePolling bool
	onReload     func(error)

	mu          sync.Mutex
	lastModTime time.Time
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the watcher logger.
func WithWatcherLogger(logger zerolog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithPollInterval sets the polling interval used when fsnotify is unavailable.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithDebounce sets how long to wait after a change event before reading.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithPolling skips fsnotify and always polls.
func WithPolling() WatcherOption {
	return func(w *Watcher) {
		w.forcePolling = true
	}
}

// WithReloadHook is called after every reload attempt with its error, if any.
func WithReloadHook(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// NewWatcher creates a watcher for path feeding store.
func NewWatcher(path string, store *licensing.ReceiptStore, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		path:         filepath.Clean(path),
		store:        store,
		logger:       log.Logger,
		debounce:     defaultDebounce,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Reload reads the file now and replaces the store contents on success.
// Each attempt logs under its own operation ID.
func (w *Watcher) Reload() error {
	ctx, _ := logging.WithOperationID(logging.WithLogger(context.Background(), w.logger), "")
	logger := logging.FromContext(ctx)

	receipt, err := Load(w.path)
	if err == nil {
		w.store.Replace(*receipt)
		logger.Info().
			Str("path", w.path).
			Int("lines", len(receipt.Lines)).
			Msg("Purchase record reloaded")
	} else {
		logger.Warn().Err(err).Str("path", w.path).Msg("Failed to reload purchase record, keeping previous")
	}
	if w.onReload != nil {
		w.onReload(err)
	}
	return err
}

// Run loads the file once and then follows changes until ctx is cancelled.
// It falls back to polling when the directory cannot be watched.
func (w *Watcher) Run(ctx context.Context) error {
	w.rememberModTime()

	if w.forcePolling {
		w.pollFromNow(ctx)
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn().Err(err).Msg("Falling back to polling for purchase record changes")
		w.pollFromNow(ctx)
		return nil
	}
	defer fsw.Close()

	// Watch the directory so atomic renames onto the file are seen.
	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		w.logger.Warn().Err(err).Str("path", dir).Msg("Failed to watch receipt directory, falling back to polling")
		w.pollFromNow(ctx)
		return nil
	}

	// Load only after the watch is in place so no write is missed.
	_ = w.Reload()
	w.logger.Info().Str("path", w.path).Msg("Started watching purchase record for changes")
	w.watch(ctx, fsw)
	return nil
}

func (w *Watcher) watch(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Debounce - wait a bit for write to complete
			if !sleepCtx(ctx, w.debounce) {
				return
			}
			w.logger.Debug().Str("event", event.Op.String()).Msg("Detected purchase record change")
			w.rememberModTime()
			_ = w.Reload()

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Receipt watcher error")

		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) pollFromNow(ctx context.Context) {
	_ = w.Reload()
	w.poll(ctx)
}

func (w *Watcher) poll(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if w.changedSinceLastCheck() {
				w.logger.Debug().Msg("Detected purchase record change via polling")
				_ = w.Reload()
			}
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) rememberModTime() {
	if mod, ok := modTime(w.path); ok {
		w.mu.Lock()
		w.lastModTime = mod
		w.mu.Unlock()
	}
}

func (w *Watcher) changedSinceLastCheck() bool {
	mod, ok := modTime(w.path)
	if !ok {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !mod.After(w.lastModTime) {
		return false
	}
	w.lastModTime = mod
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func modTime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
