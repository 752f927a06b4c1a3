package cache

import (
	"container/list"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wonny/macrolens/backend/internal/contracts"
	"github.com/wonny/macrolens/backend/pkg/logger"
)

// Store is an in-memory TTL cache for provider payloads
// ⭐ SSOT: 프로바이더 응답 캐싱은 이 구조체에서만
//
// Entries expire lazily on access and the store is capped: once capacity
// is reached the least-recently-used entry is evicted on Put.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	capacity int
	logger   *logger.Logger

	hits      int64
	misses    int64
	evictions int64
}

type entry struct {
	key       string
	payload   *contracts.ProviderPayload
	expiresAt time.Time
}

// DefaultCapacity bounds the store when no capacity is configured
const DefaultCapacity = 256

// NewStore creates a new payload cache
func NewStore(capacity int, log *logger.Logger) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		logger:   log,
	}
}

// Key composes a cache key from provider, logical need and request params.
// Params are sorted so equivalent requests always map to the same key.
func Key(provider, need string, params map[string]string) string {
	parts := make([]string, 0, len(params))
	for k, v := range params {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return provider + ":" + need + ":" + strings.Join(parts, ",")
}

// Get returns the cached payload for key, or false on miss or expiry.
// Expired entries are removed on access.
func (s *Store) Get(key string) (*contracts.ProviderPayload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		s.misses++
		return nil, false
	}

	e := el.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		s.order.Remove(el)
		delete(s.entries, key)
		s.misses++
		return nil, false
	}

	s.order.MoveToFront(el)
	s.hits++
	return e.payload, true
}

// Put stores a payload under key for ttl. A non-positive ttl is ignored
// so callers can disable caching per category via config.
func (s *Store) Put(key string, payload *contracts.ProviderPayload, ttl time.Duration) {
	if ttl <= 0 || payload == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		e := el.Value.(*entry)
		e.payload = payload
		e.expiresAt = time.Now().Add(ttl)
		s.order.MoveToFront(el)
		return
	}

	if s.order.Len() >= s.capacity {
		oldest := s.order.Back()
		if oldest != nil {
			old := oldest.Value.(*entry)
			s.order.Remove(oldest)
			delete(s.entries, old.key)
			s.evictions++
			s.logger.WithField("key", old.key).Debug("Evicted cache entry")
		}
	}

	s.entries[key] = s.order.PushFront(&entry{
		key:       key,
		payload:   payload,
		expiresAt: time.Now().Add(ttl),
	})
}

// Invalidate removes a single key
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		s.order.Remove(el)
		delete(s.entries, key)
	}
}

// Clear drops every entry
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*list.Element)
	s.order.Init()
	s.logger.Info("Cleared payload cache")
}

// Len returns the number of live entries, counting expired-but-unswept ones
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Stats returns cache statistics
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Entries:   len(s.entries),
		Capacity:  s.capacity,
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
	}
}

// Stats represents cache statistics
type Stats struct {
	Entries   int   `json:"entries"`
	Capacity  int   `json:"capacity"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}
