package esi

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestOrderCache_GetPutExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	oc := NewOrderCache(func() time.Time { return now })

	if _, ok := oc.Get(1, 34); ok {
		t.Fatal("empty cache should miss")
	}
	oc.Put(1, 34, []MarketOrder{{OrderID: 7}}, now.Add(time.Minute))
	got, ok := oc.Get(1, 34)
	if !ok || len(got) != 1 || got[0].OrderID != 7 {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
	if _, ok := oc.Get(1, 35); ok {
		t.Error("other type must miss")
	}

	now = now.Add(time.Minute)
	if _, ok := oc.Get(1, 34); ok {
		t.Error("entry at its expiry must miss")
	}
}

func TestOrderCache_ExpiryCapped(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	oc := NewOrderCache(func() time.Time { return now })

	if got := oc.expiry(""); !got.Equal(now.Add(maxOrderAge)) {
		t.Errorf("missing header expiry = %v", got)
	}
	far := now.Add(time.Hour).Format(http.TimeFormat)
	if got := oc.expiry(far); !got.Equal(now.Add(maxOrderAge)) {
		t.Errorf("far header expiry = %v, want capped", got)
	}
	near := now.Add(30 * time.Second).Format(http.TimeFormat)
	if got := oc.expiry(near); !got.Equal(now.Add(30 * time.Second)) {
		t.Errorf("near header expiry = %v", got)
	}
	if got := oc.expiry("garbage"); !got.Equal(now.Add(maxOrderAge)) {
		t.Errorf("bad header expiry = %v", got)
	}
}

func TestOrderCache_CoalescesConcurrentLoads(t *testing.T) {
	oc := NewOrderCache(nil)
	var calls atomic.Int32
	gate := make(chan struct{})
	load := func() ([]MarketOrder, string, error) {
		calls.Add(1)
		<-gate
		return []MarketOrder{{OrderID: 1}}, "", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := oc.fetch(10000002, 34, load); err != nil {
				t.Errorf("fetch: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("load calls = %d, want 1", calls.Load())
	}
}

func TestOrderCache_ErrorNotStored(t *testing.T) {
	oc := NewOrderCache(nil)
	boom := errors.New("boom")
	if _, err := oc.fetch(1, 2, func() ([]MarketOrder, string, error) { return nil, "", boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := oc.Get(1, 2); ok {
		t.Error("failed load must not populate cache")
	}
}
