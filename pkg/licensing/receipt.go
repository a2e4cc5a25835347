package licensing

import "time"

// OriginalPurchase records when the user's install was first provisioned.
// It drives grandfathering.
type OriginalPurchase struct {
	BuildNumber  int       `json:"build_number" yaml:"build_number"`
	PurchaseDate time.Time `json:"purchase_date" yaml:"purchase_date"`
}

// PurchaseLine is one purchased product in a receipt.
type PurchaseLine struct {
	ID                   string     `json:"id,omitempty" yaml:"id,omitempty"`
	Product              Product    `json:"product_id" yaml:"product_id"`
	OriginalPurchaseDate *time.Time `json:"original_purchase_date,omitempty" yaml:"original_purchase_date,omitempty"`
	ExpirationDate       *time.Time `json:"expiration_date,omitempty" yaml:"expiration_date,omitempty"`
	CancellationDate     *time.Time `json:"cancellation_date,omitempty" yaml:"cancellation_date,omitempty"`
}

// IsActive reports whether the line still confers its features at now:
// it was never cancelled or refunded and, for subscriptions, has not expired.
func (l PurchaseLine) IsActive(now time.Time) bool {
	if l.CancellationDate != nil {
		return false
	}
	if l.ExpirationDate != nil && !l.ExpirationDate.After(now) {
		return false
	}
	return true
}

// Receipt is an authenticated purchase record. A nil *Receipt means the
// record has not been loaded yet; an empty Receipt means nothing was bought.
type Receipt struct {
	Original OriginalPurchase `json:"original" yaml:"original"`
	Lines    []PurchaseLine   `json:"lines" yaml:"lines"`
}

// Clone returns a deep copy, or nil for a nil receipt.
func (r *Receipt) Clone() *Receipt {
	if r == nil {
		return nil
	}
	out := &Receipt{
		Original: r.Original,
		Lines:    make([]PurchaseLine, len(r.Lines)),
	}
	for i, line := range r.Lines {
		out.Lines[i] = PurchaseLine{
			ID:                   line.ID,
			Product:              line.Product,
			OriginalPurchaseDate: cloneTimePtr(line.OriginalPurchaseDate),
			ExpirationDate:       cloneTimePtr(line.ExpirationDate),
			CancellationDate:     cloneTimePtr(line.CancellationDate),
		}
	}
	return out
}

// ActiveProducts returns the products of lines active at now.
func (r *Receipt) ActiveProducts(now time.Time) ProductSet {
	out := ProductSet{}
	if r == nil {
		return out
	}
	for _, line := range r.Lines {
		if line.IsActive(now) {
			out.Add(line.Product)
		}
	}
	return out
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
