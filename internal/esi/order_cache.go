package esi

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"eve-warehouse/internal/logger"

	"golang.org/x/sync/singleflight"
)

// maxOrderAge bounds how long a per-type order book is reused, whatever ESI's Expires says.
const maxOrderAge = 5 * time.Minute

type orderCacheKey struct {
	RegionID int32
	TypeID   int32
}

type orderCacheEntry struct {
	orders  []MarketOrder
	expires time.Time
}

// OrderCache is a thread-safe in-memory cache for per-type region order books.
// A singleflight.Group prevents duplicate in-flight fetches for the same key.
type OrderCache struct {
	mu      sync.RWMutex
	entries map[orderCacheKey]orderCacheEntry
	group   singleflight.Group
	now     func() time.Time
}

// NewOrderCache creates an empty order cache. A nil clock means time.Now.
func NewOrderCache(now func() time.Time) *OrderCache {
	if now == nil {
		now = time.Now
	}
	return &OrderCache{
		entries: make(map[orderCacheKey]orderCacheEntry),
		now:     now,
	}
}

// Get returns cached orders if they exist and have not expired.
func (oc *OrderCache) Get(regionID, typeID int32) ([]MarketOrder, bool) {
	oc.mu.RLock()
	defer oc.mu.RUnlock()

	e, ok := oc.entries[orderCacheKey{regionID, typeID}]
	if !ok || !oc.now().Before(e.expires) {
		return nil, false
	}
	return e.orders, true
}

// Put stores orders until expires.
func (oc *OrderCache) Put(regionID, typeID int32, orders []MarketOrder, expires time.Time) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.entries[orderCacheKey{regionID, typeID}] = orderCacheEntry{orders: orders, expires: expires}
}

// expiry turns an Expires header into a deadline capped at maxOrderAge.
func (oc *OrderCache) expiry(header string) time.Time {
	now := oc.now()
	limit := now.Add(maxOrderAge)
	if header == "" {
		return limit
	}
	t, err := http.ParseTime(header)
	if err != nil || t.After(limit) {
		return limit
	}
	return t
}

func (oc *OrderCache) fetch(regionID, typeID int32, load func() ([]MarketOrder, string, error)) ([]MarketOrder, error) {
	if orders, ok := oc.Get(regionID, typeID); ok {
		return orders, nil
	}
	key := fmt.Sprintf("%d:%d", regionID, typeID)
	v, err, _ := oc.group.Do(key, func() (interface{}, error) {
		if orders, ok := oc.Get(regionID, typeID); ok {
			return orders, nil
		}
		orders, expires, err := load()
		if err != nil {
			return nil, err
		}
		oc.Put(regionID, typeID, orders, oc.expiry(expires))
		logger.Debug("ESI", fmt.Sprintf("orders region=%d type=%d: %d cached", regionID, typeID, len(orders)))
		return orders, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]MarketOrder), nil
}
