package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/macrolens/backend/internal/contracts"
	"github.com/wonny/macrolens/backend/pkg/logger"
)

func payload(v float64) *contracts.ProviderPayload {
	return &contracts.ProviderPayload{Metrics: map[string]float64{"v": v}}
}

func newTestStore(capacity int) *Store {
	return NewStore(capacity, logger.NewNop())
}

func TestStorePutGet(t *testing.T) {
	s := newTestStore(8)

	s.Put("fred:macro_snapshot:", payload(1), time.Minute)

	got, ok := s.Get("fred:macro_snapshot:")
	require.True(t, ok)
	assert.Equal(t, 1.0, got.Metrics["v"])

	_, ok = s.Get("okx:crypto_quotes:")
	assert.False(t, ok)
}

func TestStoreLazyExpiry(t *testing.T) {
	s := newTestStore(8)

	s.Put("k", payload(1), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := s.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len(), "expired entry should be swept on access")
}

func TestStoreZeroTTLDisablesCaching(t *testing.T) {
	s := newTestStore(8)

	s.Put("k", payload(1), 0)

	_, ok := s.Get("k")
	assert.False(t, ok)
}

func TestStoreLRUEviction(t *testing.T) {
	s := newTestStore(2)

	s.Put("a", payload(1), time.Minute)
	s.Put("b", payload(2), time.Minute)

	// touch "a" so "b" becomes the LRU victim
	_, ok := s.Get("a")
	require.True(t, ok)

	s.Put("c", payload(3), time.Minute)

	_, ok = s.Get("b")
	assert.False(t, ok, "LRU entry should have been evicted")
	_, ok = s.Get("a")
	assert.True(t, ok)
	_, ok = s.Get("c")
	assert.True(t, ok)
	assert.Equal(t, int64(1), s.Stats().Evictions)
}

func TestStoreInvalidate(t *testing.T) {
	s := newTestStore(8)

	s.Put("k", payload(1), time.Minute)
	s.Invalidate("k")

	_, ok := s.Get("k")
	assert.False(t, ok)
}

func TestStoreStats(t *testing.T) {
	s := newTestStore(8)

	s.Put("k", payload(1), time.Minute)
	s.Get("k")
	s.Get("k")
	s.Get("missing")

	stats := s.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestKeyDeterministicParamOrder(t *testing.T) {
	a := Key("fred", "macro_snapshot", map[string]string{"series": "FEDFUNDS", "limit": "1"})
	b := Key("fred", "macro_snapshot", map[string]string{"limit": "1", "series": "FEDFUNDS"})

	assert.Equal(t, a, b)
	assert.Equal(t, "fred:macro_snapshot:limit=1,series=FEDFUNDS", a)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := newTestStore(64)
	done := make(chan struct{})

	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", j%16)
				s.Put(key, payload(float64(n)), time.Minute)
				s.Get(key)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	assert.LessOrEqual(t, s.Len(), 16)
}
