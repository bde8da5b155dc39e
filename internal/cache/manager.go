package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sumandas0/querygate/internal/models"
	"github.com/sumandas0/querygate/internal/store"
)

// Manager provides thread-safe caching for index definitions. Search
// normalization reads a fresh snapshot from the registry and never goes
// through this cache; it serves the read-mostly CRUD and settings surface.
type Manager struct {
	definitions sync.Map // uid -> *cacheEntry

	definitionTTL time.Duration

	registry store.IndexRegistry

	hits   uint64
	misses uint64
	mu     sync.RWMutex
}

// NewManager creates a new cache manager backed by the given registry.
func NewManager(registry store.IndexRegistry, definitionTTL time.Duration) *Manager {
	if definitionTTL <= 0 {
		definitionTTL = 5 * time.Minute
	}

	return &Manager{
		registry:      registry,
		definitionTTL: definitionTTL,
	}
}

type cacheEntry struct {
	value      *models.IndexDefinition
	expiration time.Time
}

func (e *cacheEntry) isExpired() bool {
	return time.Now().After(e.expiration)
}

// GetIndex retrieves an index definition from cache or loads it from the
// registry.
func (m *Manager) GetIndex(ctx context.Context, uid string) (*models.IndexDefinition, error) {
	if cached, ok := m.definitions.Load(uid); ok {
		entry := cached.(*cacheEntry)
		if !entry.isExpired() {
			m.recordHit()
			return entry.value, nil
		}
		m.definitions.Delete(uid)
	}

	m.recordMiss()

	def, err := m.registry.GetIndex(ctx, uid)
	if err != nil {
		return nil, err
	}

	m.SetIndex(uid, def)

	return def, nil
}

// SetIndex adds or updates an index definition in the cache.
func (m *Manager) SetIndex(uid string, def *models.IndexDefinition) {
	entry := &cacheEntry{
		value:      def,
		expiration: time.Now().Add(m.definitionTTL),
	}
	m.definitions.Store(uid, entry)
}

// Invalidate removes an index definition from the cache.
func (m *Manager) Invalidate(uid string) {
	m.definitions.Delete(uid)
}

// Has reports whether a non-expired definition is cached.
func (m *Manager) Has(uid string) bool {
	if cached, ok := m.definitions.Load(uid); ok {
		entry := cached.(*cacheEntry)
		return !entry.isExpired()
	}
	return false
}

// Clear removes all entries from the cache and resets statistics.
func (m *Manager) Clear() {
	m.definitions.Range(func(key, value any) bool {
		m.definitions.Delete(key)
		return true
	})

	m.mu.Lock()
	m.hits = 0
	m.misses = 0
	m.mu.Unlock()
}

// CleanupExpired removes all expired entries from the cache.
func (m *Manager) CleanupExpired() {
	now := time.Now()

	m.definitions.Range(func(key, value any) bool {
		entry := value.(*cacheEntry)
		if now.After(entry.expiration) {
			m.definitions.Delete(key)
		}
		return true
	})
}

// StartCleanupRoutine starts a background routine to clean expired entries.
func (m *Manager) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.CleanupExpired()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stats returns cache statistics.
func (m *Manager) Stats() CacheStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	m.definitions.Range(func(_, _ any) bool {
		count++
		return true
	})

	total := m.hits + m.misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(m.hits) / float64(total)
	}

	return CacheStats{
		Hits:            m.hits,
		Misses:          m.misses,
		HitRate:         hitRate,
		DefinitionCount: count,
	}
}

// CacheStats holds cache statistics.
type CacheStats struct {
	Hits            uint64
	Misses          uint64
	HitRate         float64
	DefinitionCount int
}

func (m *Manager) recordHit() {
	m.mu.Lock()
	m.hits++
	m.mu.Unlock()
}

func (m *Manager) recordMiss() {
	m.mu.Lock()
	m.misses++
	m.mu.Unlock()
}
