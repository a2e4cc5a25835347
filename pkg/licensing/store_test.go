package licensing

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func TestReceiptStoreAbsentVersusEmpty(t *testing.T) {
	store := NewReceiptStore()
	if store.Current() != nil || store.IsLoaded() {
		t.Fatal("new store should be absent")
	}

	store.Replace(Receipt{})
	current := store.Current()
	if current == nil {
		t.Fatal("expected an empty receipt, got absent")
	}
	if len(current.Lines) != 0 {
		t.Fatalf("expected no lines, got %d", len(current.Lines))
	}
	if !store.IsLoaded() {
		t.Fatal("expected store to be loaded")
	}

	store.Clear()
	if store.Current() != nil {
		t.Fatal("Clear should make the store absent")
	}
}

func TestReceiptStoreAppendRequiresReceipt(t *testing.T) {
	store := NewReceiptStore()

	_, err := store.AppendPurchase(ProductAppleTV, nil, nil)
	if !errors.Is(err, ErrReceiptAbsent) {
		t.Fatalf("expected ErrReceiptAbsent, got %v", err)
	}
	if store.Current() != nil {
		t.Fatal("failed append must not create a receipt")
	}
}

func TestReceiptStoreAppend(t *testing.T) {
	store := NewReceiptStore(WithStoreClock(fixedClock))
	store.Replace(Receipt{Original: OriginalPurchase{BuildNumber: 3000}})

	expires := testNow.Add(30 * 24 * time.Hour)
	line, err := store.AppendPurchase(ProductFullMonthly, &expires, nil)
	if err != nil {
		t.Fatalf("AppendPurchase() error = %v", err)
	}

	if line.ID == "" {
		t.Error("expected a generated line ID")
	}
	if line.Product != ProductFullMonthly {
		t.Errorf("product = %s", line.Product)
	}
	if line.OriginalPurchaseDate == nil || !testNow.Equal(*line.OriginalPurchaseDate) {
		t.Errorf("original purchase date = %v, want %v", line.OriginalPurchaseDate, testNow)
	}
	if line.ExpirationDate == nil || !expires.Equal(*line.ExpirationDate) {
		t.Errorf("expiration = %v, want %v", line.ExpirationDate, expires)
	}
	if line.CancellationDate != nil {
		t.Errorf("unexpected cancellation %v", line.CancellationDate)
	}

	current := store.Current()
	if len(current.Lines) != 1 || current.Lines[0].ID != line.ID {
		t.Fatalf("stored lines = %+v", current.Lines)
	}
	if current.Original.BuildNumber != 3000 {
		t.Fatalf("original purchase lost: %+v", current.Original)
	}
}

func TestReceiptStoreSnapshotsAreIsolated(t *testing.T) {
	store := NewReceiptStore()
	expires := testNow
	input := Receipt{Lines: []PurchaseLine{{Product: ProductFullYearly, ExpirationDate: &expires}}}
	store.Replace(input)

	// Caller mutations after Replace do not reach the store.
	input.Lines[0].Product = ProductDonationTiny
	*input.Lines[0].ExpirationDate = testNow.Add(time.Hour)

	snapshot := store.Current()
	if snapshot.Lines[0].Product != ProductFullYearly {
		t.Fatalf("product leaked: %s", snapshot.Lines[0].Product)
	}
	if !testNow.Equal(*snapshot.Lines[0].ExpirationDate) {
		t.Fatalf("expiration leaked: %v", *snapshot.Lines[0].ExpirationDate)
	}

	// Mutating a snapshot does not reach the store either.
	snapshot.Lines = nil
	if len(store.Current().Lines) != 1 {
		t.Fatal("snapshot mutation reached the store")
	}
}

func TestReceiptStoreConcurrentAppendsAreAllApplied(t *testing.T) {
	store := NewReceiptStore()
	store.Replace(Receipt{})

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	wg.Add(writers * 2)
	for w := 0; w < writers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := store.AppendPurchase(ProductAppleTV, nil, nil); err != nil {
					t.Errorf("AppendPurchase() error = %v", err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if r := store.Current(); r != nil {
					_ = len(r.Lines)
				}
			}
		}()
	}
	wg.Wait()

	lines := store.Current().Lines
	if len(lines) != writers*perWriter {
		t.Fatalf("expected %d lines, got %d", writers*perWriter, len(lines))
	}
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		seen[line.ID] = struct{}{}
	}
	if len(seen) != writers*perWriter {
		t.Fatalf("line IDs must be unique: %d distinct of %d", len(seen), len(lines))
	}
}

func TestReceiptStoreOnChange(t *testing.T) {
	store := NewReceiptStore()

	var (
		mu   sync.Mutex
		seen []int
	)
	store.OnChange(func(r *Receipt) {
		// Reading from a callback must not deadlock.
		_ = store.Current()
		mu.Lock()
		defer mu.Unlock()
		if r == nil {
			seen = append(seen, -1)
			return
		}
		seen = append(seen, len(r.Lines))
	})
	store.OnChange(nil)

	store.Replace(Receipt{})
	if _, err := store.AppendPurchase(ProductAppleTV, nil, nil); err != nil {
		t.Fatalf("AppendPurchase() error = %v", err)
	}
	store.Clear()

	mu.Lock()
	defer mu.Unlock()
	if want := []int{0, 1, -1}; !reflect.DeepEqual(seen, want) {
		t.Fatalf("callbacks saw %v, want %v", seen, want)
	}
}

func TestPurchaseLineIsActive(t *testing.T) {
	past := testNow.Add(-time.Hour)
	future := testNow.Add(time.Hour)

	tests := []struct {
		name string
		line PurchaseLine
		want bool
	}{
		{name: "one_time", line: PurchaseLine{Product: ProductFullTV}, want: true},
		{name: "subscription_running", line: PurchaseLine{ExpirationDate: &future}, want: true},
		{name: "subscription_expired", line: PurchaseLine{ExpirationDate: &past}, want: false},
		{name: "expires_exactly_now", line: PurchaseLine{ExpirationDate: &testNow}, want: false},
		{name: "refunded", line: PurchaseLine{CancellationDate: &past}, want: false},
		{name: "refunded_running_subscription", line: PurchaseLine{ExpirationDate: &future, CancellationDate: &past}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.line.IsActive(testNow); got != tt.want {
				t.Fatalf("IsActive() = %v, want %v", got, tt.want)
			}
		})
	}
}
