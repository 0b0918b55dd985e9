package dedup

import (
	"context"

	"github.com/SolanaSergio/ApexBets-sub005/pkg/models"
	"github.com/sirupsen/logrus"
)

// DurableTier is the restart-surviving dedup tier. PostgresTier implements
// it; tests substitute fakes.
type DurableTier interface {
	Seen(ctx context.Context, hash string) (bool, error)
	Claim(ctx context.Context, hash, requestID string, kind models.EventKind) (bool, error)
	MarkProcessed(ctx context.Context, hash string, durationMs int64) error
	MarkFailed(ctx context.Context, hash, errMsg string) error
	Cleanup(ctx context.Context) (int64, error)
}

// Store is the two-tier deduplication store. The memory tier answers in
// sub-millisecond time; the durable tier is checked on memory misses and its
// hits are promoted back into memory.
//
// Durable-tier unavailability degrades the store to memory-only operation
// with a logged warning, never an error to the caller.
type Store struct {
	memory  *MemoryTier
	durable DurableTier
	log     *logrus.Logger
}

// NewStore creates a dedup store. durable may be nil for memory-only
// operation (used in tests and when postgres is down at startup).
func NewStore(memory *MemoryTier, durable DurableTier, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{memory: memory, durable: durable, log: log}
}

// IsDuplicate reports whether hash was already seen: memory tier first, then
// the durable tier inside its lookback window.
func (s *Store) IsDuplicate(ctx context.Context, hash string) bool {
	if s.memory.Seen(hash) {
		return true
	}

	if s.durable == nil {
		return false
	}

	seen, err := s.durable.Seen(ctx, hash)
	if err != nil {
		s.log.WithError(err).Warn("durable dedup tier unavailable, using memory tier only")
		return false
	}
	if seen {
		// Promote so repeat deliveries skip the durable round trip.
		s.memory.Put(hash)
	}
	return seen
}

// Claim records hash as in-flight before the handler runs. It returns false
// when a concurrent delivery already holds the hash. The durable claim is
// atomic; the memory write happens after so a second delivery arriving
// mid-handler still resolves as a duplicate through either tier.
func (s *Store) Claim(ctx context.Context, hash, requestID string, kind models.EventKind) bool {
	if s.durable != nil {
		claimed, err := s.durable.Claim(ctx, hash, requestID, kind)
		if err != nil {
			s.log.WithError(err).Warn("durable dedup claim failed, falling back to memory tier")
		} else if !claimed {
			return false
		} else {
			s.memory.Put(hash)
			return true
		}
	}

	// Memory-only fallback. A narrow check-then-put race remains here;
	// idempotent handler writes are the backstop.
	if s.memory.Seen(hash) {
		return false
	}
	s.memory.Put(hash)
	return true
}

// MarkProcessed confirms successful handling of a claimed hash in both tiers.
func (s *Store) MarkProcessed(ctx context.Context, hash string, durationMs int64) {
	s.memory.Put(hash)

	if s.durable == nil {
		return
	}
	if err := s.durable.MarkProcessed(ctx, hash, durationMs); err != nil {
		s.log.WithError(err).Warn("failed to mark event processed in durable tier")
	}
}

// MarkFailed releases a claimed hash after a handler error. The memory
// entry is dropped and the durable row annotated with the error, leaving
// identical content eligible for a retry instead of a window-long blackhole.
func (s *Store) MarkFailed(ctx context.Context, hash, errMsg string) {
	s.memory.Delete(hash)

	if s.durable == nil {
		return
	}
	if err := s.durable.MarkFailed(ctx, hash, errMsg); err != nil {
		s.log.WithError(err).Warn("failed to mark event failed in durable tier")
	}
}

// Cleanup purges expired durable records.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	if s.durable == nil {
		return 0, nil
	}
	return s.durable.Cleanup(ctx)
}

// Start launches the memory tier janitor.
func (s *Store) Start() { s.memory.Start() }

// Stop shuts the memory tier janitor down.
func (s *Store) Stop() { s.memory.Stop() }
