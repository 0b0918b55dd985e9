// Package dedup tracks processed and in-flight event content hashes across a
// fast in-memory tier and a durable postgres tier.
package dedup

import (
	"sync"
	"time"
)

// DefaultMemoryTTL is how long a hash stays in the memory tier.
const DefaultMemoryTTL = 5 * time.Minute

// MemoryTier is the process-lifetime dedup tier. It is fully disposable and
// safe to start empty; the durable tier is authoritative across restarts.
// Entries map a content hash to its expiry time.
type MemoryTier struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
	stop    chan struct{}
	stopped sync.Once
}

// NewMemoryTier creates a memory tier with the given TTL. The clock is
// injected so tests can control expiry; pass nil for time.Now.
func NewMemoryTier(ttl time.Duration, now func() time.Time) *MemoryTier {
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryTier{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     now,
		stop:    make(chan struct{}),
	}
}

// Seen reports whether hash is present and unexpired.
func (m *MemoryTier) Seen(hash string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt, ok := m.entries[hash]
	if !ok {
		return false
	}
	if m.now().After(expiresAt) {
		delete(m.entries, hash)
		return false
	}
	return true
}

// Put records hash with a fresh TTL.
func (m *MemoryTier) Put(hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[hash] = m.now().Add(m.ttl)
}

// Delete drops hash so an identical delivery can be admitted again.
func (m *MemoryTier) Delete(hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, hash)
}

// Start launches the background janitor that purges expired entries.
func (m *MemoryTier) Start() {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.purge()
			}
		}
	}()
}

// Stop shuts down the janitor. Safe to call more than once.
func (m *MemoryTier) Stop() {
	m.stopped.Do(func() { close(m.stop) })
}

// Len returns the number of live entries, purging expired ones first.
func (m *MemoryTier) Len() int {
	m.purge()
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryTier) purge() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for hash, expiresAt := range m.entries {
		if now.After(expiresAt) {
			delete(m.entries, hash)
		}
	}
}
