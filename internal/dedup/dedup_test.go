package dedup

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/SolanaSergio/ApexBets-sub005/pkg/models"
	"github.com/sirupsen/logrus"
)

// fakeClock is a controllable time source for TTL tests.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time          { return c.current }
func (c *fakeClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

// durableRow mirrors the three states a processed_events row moves through.
type durableRow struct {
	processed bool
	failed    bool
}

// fakeDurable is an in-memory DurableTier for tests.
type fakeDurable struct {
	rows map[string]durableRow
	errs bool
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{rows: make(map[string]durableRow)}
}

func (f *fakeDurable) Seen(_ context.Context, hash string) (bool, error) {
	if f.errs {
		return false, errors.New("postgres down")
	}
	return f.rows[hash].processed, nil
}

func (f *fakeDurable) Claim(_ context.Context, hash, _ string, _ models.EventKind) (bool, error) {
	if f.errs {
		return false, errors.New("postgres down")
	}
	if row, ok := f.rows[hash]; ok {
		// Only rows left behind by a failed handler are reclaimable.
		if row.processed || !row.failed {
			return false, nil
		}
	}
	f.rows[hash] = durableRow{}
	return true, nil
}

func (f *fakeDurable) MarkProcessed(_ context.Context, hash string, _ int64) error {
	if f.errs {
		return errors.New("postgres down")
	}
	f.rows[hash] = durableRow{processed: true}
	return nil
}

func (f *fakeDurable) MarkFailed(_ context.Context, hash, _ string) error {
	if f.errs {
		return errors.New("postgres down")
	}
	f.rows[hash] = durableRow{failed: true}
	return nil
}

func (f *fakeDurable) Cleanup(_ context.Context) (int64, error) {
	if f.errs {
		return 0, errors.New("postgres down")
	}
	return 0, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestMemoryTierTTL(t *testing.T) {
	clock := newFakeClock()
	tier := NewMemoryTier(5*time.Minute, clock.now)

	tier.Put("h1")
	if !tier.Seen("h1") {
		t.Fatal("fresh entry not seen")
	}

	clock.advance(4 * time.Minute)
	if !tier.Seen("h1") {
		t.Error("entry expired before TTL")
	}

	clock.advance(2 * time.Minute)
	if tier.Seen("h1") {
		t.Error("entry survived past TTL")
	}
	if tier.Len() != 0 {
		t.Errorf("expired entries not purged, len=%d", tier.Len())
	}
}

func TestStoreClaimBlocksSecondDelivery(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(NewMemoryTier(5*time.Minute, clock.now), newFakeDurable(), quietLogger())
	ctx := context.Background()

	if !store.Claim(ctx, "h1", "req-1", models.KindGameUpdate) {
		t.Fatal("first claim rejected")
	}

	// A second delivery of identical content while the first is still being
	// handled must not win the claim.
	if store.Claim(ctx, "h1", "req-2", models.KindGameUpdate) {
		t.Error("concurrent claim for the same hash succeeded twice")
	}
}

func TestStoreDurablePromotion(t *testing.T) {
	clock := newFakeClock()
	durable := newFakeDurable()
	durable.rows["h1"] = durableRow{processed: true}

	memory := NewMemoryTier(5*time.Minute, clock.now)
	store := NewStore(memory, durable, quietLogger())
	ctx := context.Background()

	if !store.IsDuplicate(ctx, "h1") {
		t.Fatal("durable hit not reported as duplicate")
	}
	if !memory.Seen("h1") {
		t.Error("durable hit not promoted into memory tier")
	}
}

func TestStoreDegradesWithoutDurableTier(t *testing.T) {
	clock := newFakeClock()
	durable := newFakeDurable()
	durable.errs = true

	store := NewStore(NewMemoryTier(5*time.Minute, clock.now), durable, quietLogger())
	ctx := context.Background()

	// Durable errors degrade to memory-only, never fail the caller.
	if store.IsDuplicate(ctx, "h1") {
		t.Error("IsDuplicate reported duplicate on durable error")
	}
	if !store.Claim(ctx, "h1", "req-1", models.KindOddsUpdate) {
		t.Error("claim failed outright on durable error")
	}
	if store.Claim(ctx, "h1", "req-2", models.KindOddsUpdate) {
		t.Error("memory fallback allowed a duplicate claim")
	}
}

func TestStoreMarkProcessedVisibleToBothPaths(t *testing.T) {
	clock := newFakeClock()
	durable := newFakeDurable()
	store := NewStore(NewMemoryTier(5*time.Minute, clock.now), durable, quietLogger())
	ctx := context.Background()

	store.Claim(ctx, "h1", "req-1", models.KindScoreUpdate)
	store.MarkProcessed(ctx, "h1", 12)

	if !store.IsDuplicate(ctx, "h1") {
		t.Error("processed hash not reported as duplicate")
	}
	if !durable.rows["h1"].processed {
		t.Error("durable tier not marked processed")
	}

	// After memory expiry the durable tier still answers.
	clock.advance(10 * time.Minute)
	if !store.IsDuplicate(ctx, "h1") {
		t.Error("duplicate lost after memory tier expiry")
	}
}

func TestStoreFailedClaimIsRetryable(t *testing.T) {
	clock := newFakeClock()
	durable := newFakeDurable()
	store := NewStore(NewMemoryTier(5*time.Minute, clock.now), durable, quietLogger())
	ctx := context.Background()

	if !store.Claim(ctx, "h1", "req-1", models.KindGameUpdate) {
		t.Fatal("first claim rejected")
	}
	store.MarkFailed(ctx, "h1", "connection reset")

	// A failed delivery must not blackhole identical content for the
	// rest of the window.
	if store.IsDuplicate(ctx, "h1") {
		t.Error("failed hash reported as duplicate")
	}
	if !store.Claim(ctx, "h1", "req-2", models.KindGameUpdate) {
		t.Error("retry did not win the claim back")
	}

	store.MarkProcessed(ctx, "h1", 10)
	if !store.IsDuplicate(ctx, "h1") {
		t.Error("confirmed hash not reported as duplicate")
	}
	if store.Claim(ctx, "h1", "req-3", models.KindGameUpdate) {
		t.Error("confirmed hash was reclaimed")
	}
}

func TestStoreFailedClaimIsRetryableMemoryOnly(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(NewMemoryTier(5*time.Minute, clock.now), nil, quietLogger())
	ctx := context.Background()

	if !store.Claim(ctx, "h1", "req-1", models.KindScoreUpdate) {
		t.Fatal("first claim rejected")
	}
	store.MarkFailed(ctx, "h1", "connection reset")

	if store.IsDuplicate(ctx, "h1") {
		t.Error("failed hash reported as duplicate")
	}
	if !store.Claim(ctx, "h1", "req-2", models.KindScoreUpdate) {
		t.Error("retry did not win the claim back")
	}
}
