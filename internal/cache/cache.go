package cache

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Data types with their own TTL policy. Live data turns over fast; reference
// data barely moves.
const (
	TypeLiveScores = "live_scores"
	TypeOdds       = "odds"
	TypeSchedule   = "schedule"
	TypeTeams      = "teams"
	TypePlayers    = "players"
	TypeReference  = "reference"
)

// DefaultTTLs is the per-data-type TTL table. Entries can be overridden
// through configuration.
var DefaultTTLs = map[string]time.Duration{
	TypeLiveScores: 30 * time.Second,
	TypeOdds:       5 * time.Minute,
	TypeSchedule:   time.Hour,
	TypePlayers:    6 * time.Hour,
	TypeTeams:      24 * time.Hour,
	TypeReference:  24 * time.Hour,
}

const fallbackTTL = 5 * time.Minute

// Durable is the restart-surviving cache tier. Redis implements it; tests
// substitute fakes.
type Durable interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Cache is the two-tier response cache. Reads check the memory tier first
// and fall back to the durable tier, promoting hits back into memory.
// Durable-tier outages degrade to memory-only operation with a warning.
type Cache struct {
	memory  *Memory
	durable Durable
	ttls    map[string]time.Duration
	log     *logrus.Logger
}

// New creates a two-tier cache. durable may be nil for memory-only
// operation; overrides may be nil to use DefaultTTLs as is.
func New(memory *Memory, durable Durable, overrides map[string]time.Duration, log *logrus.Logger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}

	ttls := make(map[string]time.Duration, len(DefaultTTLs))
	for dataType, ttl := range DefaultTTLs {
		ttls[dataType] = ttl
	}
	for dataType, ttl := range overrides {
		ttls[dataType] = ttl
	}

	return &Cache{memory: memory, durable: durable, ttls: ttls, log: log}
}

// Key builds a deterministic cache key from the logical query parameters so
// equivalent requests from different call sites collide on the same entry.
func Key(dataType, scope string, params ...string) string {
	parts := append([]string{"cache", dataType, scope}, params...)
	return strings.Join(parts, ":")
}

// TTLFor returns the TTL policy for a data type.
func (c *Cache) TTLFor(dataType string) time.Duration {
	if ttl, ok := c.ttls[dataType]; ok {
		return ttl
	}
	return fallbackTTL
}

// Get reads key through both tiers.
func (c *Cache) Get(ctx context.Context, key, dataType string) ([]byte, bool) {
	if value, ok := c.memory.Get(key); ok {
		return value, true
	}

	if c.durable == nil {
		return nil, false
	}

	value, ok, err := c.durable.Get(ctx, key)
	if err != nil {
		c.log.WithError(err).Warn("durable cache tier unavailable, using memory tier only")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	// Promote so the next read is sub-millisecond.
	c.memory.Set(key, value, c.TTLFor(dataType))
	return value, true
}

// Set writes value to both tiers with the data type's TTL.
func (c *Cache) Set(ctx context.Context, key, dataType string, value []byte) {
	ttl := c.TTLFor(dataType)
	c.memory.Set(key, value, ttl)

	if c.durable == nil {
		return
	}
	if err := c.durable.Set(ctx, key, value, ttl); err != nil {
		c.log.WithError(err).Warn("failed to write durable cache tier")
	}
}

// Invalidate drops every entry for a data type, optionally narrowed to a
// scope.
func (c *Cache) Invalidate(ctx context.Context, dataType, scope string) {
	prefix := "cache:" + dataType + ":"
	if scope != "" {
		prefix += scope
	}

	c.memory.DeletePrefix(prefix)

	if c.durable == nil {
		return
	}
	if err := c.durable.DeletePrefix(ctx, prefix); err != nil {
		c.log.WithError(err).Warn("failed to invalidate durable cache tier")
	}
}

// Start launches the memory tier janitor.
func (c *Cache) Start() { c.memory.Start() }

// Stop shuts the memory tier janitor down.
func (c *Cache) Stop() { c.memory.Stop() }
