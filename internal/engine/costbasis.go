package engine

import (
	"context"
	"sync"
	"time"

	"eve-warehouse/internal/esi"
)

// Transaction is a wallet market transaction in typed form.
type Transaction struct {
	TransactionID int64     `json:"transaction_id"`
	TypeID        int32     `json:"type_id"`
	LocationID    int64     `json:"location_id"`
	Quantity      int64     `json:"quantity"`
	UnitPrice     float64   `json:"unit_price"`
	IsBuy         bool      `json:"is_buy"`
	Date          time.Time `json:"date"`
}

// Total is quantity × unit price.
func (t Transaction) Total() float64 { return float64(t.Quantity) * t.UnitPrice }

// TransactionsFromESI validates ESI rows. Rows with an unparsable date, a non-positive
// quantity or type id are dropped.
func TransactionsFromESI(rows []esi.WalletTransaction) []Transaction {
	out := make([]Transaction, 0, len(rows))
	for _, r := range rows {
		if r.TypeID <= 0 || r.Quantity <= 0 {
			continue
		}
		d, err := time.Parse(time.RFC3339, r.Date)
		if err != nil {
			continue
		}
		out = append(out, Transaction{
			TransactionID: r.TransactionID,
			TypeID:        r.TypeID,
			LocationID:    r.LocationID,
			Quantity:      int64(r.Quantity),
			UnitPrice:     r.UnitPrice,
			IsBuy:         r.IsBuy,
			Date:          d.UTC(),
		})
	}
	return out
}

// CostBasis aggregates buy transactions of one item.
type CostBasis struct {
	AverageCost    float64   `json:"average_cost"`
	TotalPurchased int64     `json:"total_purchased"`
	TotalCost      float64   `json:"total_cost"`
	FirstPurchase  time.Time `json:"first_purchase"`
	LastPurchase   time.Time `json:"last_purchase"`
	PurchaseCount  int       `json:"purchase_count"`
}

// CostBasisTracker answers cost basis queries over a cached transaction set. It never
// fetches on its own; Load or Refresh replace the set wholesale.
type CostBasisTracker struct {
	mu   sync.RWMutex
	txns []Transaction
	now  func() time.Time
}

// NewCostBasisTracker creates an empty tracker. A nil now uses time.Now.
func NewCostBasisTracker(now func() time.Time) *CostBasisTracker {
	if now == nil {
		now = time.Now
	}
	return &CostBasisTracker{now: now}
}

// Load replaces the cached transactions.
func (t *CostBasisTracker) Load(txns []Transaction) {
	cp := make([]Transaction, len(txns))
	copy(cp, txns)
	t.mu.Lock()
	t.txns = cp
	t.mu.Unlock()
}

// Refresh fetches transactions for src, keeps the last daysBack days and loads them.
// On error the cache is left as it was.
func (t *CostBasisTracker) Refresh(ctx context.Context, api AccountAPI, src Source, division, daysBack int) error {
	var rows []esi.WalletTransaction
	var err error
	switch src {
	case SourceCharacter:
		rows, err = api.CharacterTransactions(ctx)
	case SourceCorporation:
		rows, err = api.CorporationTransactions(ctx, division)
	default:
		return ErrUnknownSource
	}
	if err != nil {
		return err
	}

	txns := TransactionsFromESI(rows)
	if daysBack > 0 {
		cutoff := t.now().UTC().AddDate(0, 0, -daysBack)
		kept := txns[:0]
		for _, tx := range txns {
			if !tx.Date.Before(cutoff) {
				kept = append(kept, tx)
			}
		}
		txns = kept
	}
	t.Load(txns)
	return nil
}

// CostBasis aggregates buys of typeID; locationID 0 matches any location.
func (t *CostBasisTracker) CostBasis(typeID int32, locationID int64) (CostBasis, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var cb CostBasis
	for _, tx := range t.txns {
		if !tx.IsBuy || tx.TypeID != typeID {
			continue
		}
		if locationID != 0 && tx.LocationID != locationID {
			continue
		}
		cb.TotalPurchased += tx.Quantity
		cb.TotalCost += tx.Total()
		cb.PurchaseCount++
		if cb.FirstPurchase.IsZero() || tx.Date.Before(cb.FirstPurchase) {
			cb.FirstPurchase = tx.Date
		}
		if tx.Date.After(cb.LastPurchase) {
			cb.LastPurchase = tx.Date
		}
	}
	if cb.PurchaseCount == 0 || cb.TotalPurchased == 0 {
		return CostBasis{}, false
	}
	cb.AverageCost = cb.TotalCost / float64(cb.TotalPurchased)
	return cb, true
}

// Transactions returns a copy of the cached set.
func (t *CostBasisTracker) Transactions() []Transaction {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Transaction, len(t.txns))
	copy(out, t.txns)
	return out
}
