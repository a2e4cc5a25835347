package licensing

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ReceiptStore is the single owner of the current purchase record.
// Mutations are serialized; reads share a read lock and get a private copy.
// Create it with NewReceiptStore.
type ReceiptStore struct {
	mu        sync.RWMutex
	receipt   *Receipt
	callbacks []func(*Receipt)

	// notifyMu is taken before mu by every mutator so callbacks are
	// delivered in mutation order while readers stay unblocked.
	notifyMu sync.Mutex

	logger zerolog.Logger
	nowFn  func() time.Time
}

// StoreOption configures a ReceiptStore.
type StoreOption func(*ReceiptStore)

// WithStoreLogger sets the logger used for store events.
func WithStoreLogger(logger zerolog.Logger) StoreOption {
	return func(s *ReceiptStore) {
		s.logger = logger
	}
}

// WithStoreClock overrides the clock used to stamp appended purchases.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *ReceiptStore) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewReceiptStore creates an empty store. Current returns nil until the
// purchase flow calls Replace.
func NewReceiptStore(opts ...StoreOption) *ReceiptStore {
	s := &ReceiptStore{
		logger: log.Logger,
		nowFn:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers a callback run after every mutation, outside the state
// lock and in mutation order. The callback receives its own copy of the new
// receipt (nil after Clear). Callbacks may read the store but must not mutate it.
func (s *ReceiptStore) OnChange(cb func(*Receipt)) {
	if cb == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// Current returns a snapshot of the receipt, or nil when none is loaded.
func (s *ReceiptStore) Current() *Receipt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.receipt.Clone()
}

// IsLoaded reports whether a receipt is present.
func (s *ReceiptStore) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.receipt != nil
}

// Replace overwrites the receipt after a fetch or restore.
func (s *ReceiptStore) Replace(r Receipt) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.receipt = r.Clone()
	lines := len(s.receipt.Lines)
	cbs, snapshot := s.notifyLocked()
	s.mu.Unlock()

	s.logger.Debug().Int("lines", lines).Msg("Purchase record replaced")
	s.fire(cbs, snapshot)
}

// AppendPurchase adds one line after a successful purchase. A receipt must
// have been loaded first; otherwise ErrReceiptAbsent is returned and nothing
// changes.
func (s *ReceiptStore) AppendPurchase(p Product, expiration, cancellation *time.Time) (PurchaseLine, error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.receipt == nil {
		s.mu.Unlock()
		s.logger.Error().Str("product", p.ID()).Msg("Purchase appended before the purchase record was loaded")
		return PurchaseLine{}, ErrReceiptAbsent
	}

	now := s.nowFn()
	line := PurchaseLine{
		ID:                   ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Product:              p,
		OriginalPurchaseDate: &now,
		ExpirationDate:       cloneTimePtr(expiration),
		CancellationDate:     cloneTimePtr(cancellation),
	}
	s.receipt.Lines = append(s.receipt.Lines, line)
	cbs, snapshot := s.notifyLocked()
	s.mu.Unlock()

	s.logger.Info().Str("product", p.ID()).Str("line_id", line.ID).Msg("Purchase appended")
	s.fire(cbs, snapshot)

	// Return a copy so callers cannot reach into the store.
	return (&Receipt{Lines: []PurchaseLine{line}}).Clone().Lines[0], nil
}

// Clear drops the receipt, returning the store to the not-loaded state.
func (s *ReceiptStore) Clear() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.receipt = nil
	cbs, _ := s.notifyLocked()
	s.mu.Unlock()

	s.logger.Debug().Msg("Purchase record cleared")
	s.fire(cbs, nil)
}

// notifyLocked captures callbacks and a snapshot. Must hold s.mu.
func (s *ReceiptStore) notifyLocked() ([]func(*Receipt), *Receipt) {
	if len(s.callbacks) == 0 {
		return nil, nil
	}
	cbs := make([]func(*Receipt), len(s.callbacks))
	copy(cbs, s.callbacks)
	return cbs, s.receipt.Clone()
}

// fire delivers snapshot to callbacks. Must hold s.notifyMu.
func (s *ReceiptStore) fire(cbs []func(*Receipt), snapshot *Receipt) {
	for i, cb := range cbs {
		if i == 0 {
			cb(snapshot)
			continue
		}
		cb(snapshot.Clone())
	}
}
