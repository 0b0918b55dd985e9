package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/SolanaSergio/ApexBets-sub005/pkg/models"
)

// DefaultDurableWindow is the lookback window and retention period for the
// durable tier.
const DefaultDurableWindow = 24 * time.Hour

// PostgresTier is the durable dedup tier backed by the processed_events
// table. It survives process restarts and is authoritative for cross-process
// deduplication.
type PostgresTier struct {
	db     *sql.DB
	window time.Duration
}

// NewPostgresTier creates a durable tier over db. A non-positive window
// falls back to 24 hours.
func NewPostgresTier(db *sql.DB, window time.Duration) *PostgresTier {
	if window <= 0 {
		window = DefaultDurableWindow
	}
	return &PostgresTier{db: db, window: window}
}

// Seen reports whether hash has a confirmed record inside the lookback
// window. In-flight and failed rows do not count here; in-flight claims are
// resolved by Claim's atomicity and failed rows stay eligible for retry.
func (p *PostgresTier) Seen(ctx context.Context, hash string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM processed_events
			WHERE content_hash = $1 AND processed = TRUE
			  AND received_at > NOW() - $2::interval
		)
	`

	var seen bool
	err := p.db.QueryRowContext(ctx, query, hash, p.window.String()).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("checking processed_events: %w", err)
	}
	return seen, nil
}

// Claim atomically inserts an unprocessed record for hash. It returns false
// when another delivery already holds the hash; there is no read-then-write
// window. A row left behind by a failed handler is reclaimed so identical
// content can be retried; in-flight and confirmed rows are not.
func (p *PostgresTier) Claim(ctx context.Context, hash, requestID string, kind models.EventKind) (bool, error) {
	query := `
		INSERT INTO processed_events (content_hash, request_id, event_kind, received_at, processed)
		VALUES ($1, $2, $3, NOW(), FALSE)
		ON CONFLICT (content_hash) DO UPDATE SET
			request_id    = EXCLUDED.request_id,
			event_kind    = EXCLUDED.event_kind,
			received_at   = NOW(),
			error_message = NULL
		WHERE processed_events.processed = FALSE
		  AND processed_events.error_message IS NOT NULL
	`

	res, err := p.db.ExecContext(ctx, query, hash, requestID, string(kind))
	if err != nil {
		return false, fmt.Errorf("claiming content hash: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading claim result: %w", err)
	}
	return rows == 1, nil
}

// MarkProcessed confirms successful handling of a claimed hash.
func (p *PostgresTier) MarkProcessed(ctx context.Context, hash string, durationMs int64) error {
	query := `
		UPDATE processed_events
		SET processed = TRUE, processing_duration_ms = $2, processed_at = NOW()
		WHERE content_hash = $1
	`

	if _, err := p.db.ExecContext(ctx, query, hash, durationMs); err != nil {
		return fmt.Errorf("marking processed: %w", err)
	}
	return nil
}

// MarkFailed annotates a claimed hash with a handler error. The error
// message marks the row reclaimable, so a later identical delivery wins the
// claim again and retries; handlers are idempotent, so the retry is safe.
func (p *PostgresTier) MarkFailed(ctx context.Context, hash, errMsg string) error {
	query := `
		UPDATE processed_events
		SET error_message = $2
		WHERE content_hash = $1
	`

	if _, err := p.db.ExecContext(ctx, query, hash, errMsg); err != nil {
		return fmt.Errorf("marking failed: %w", err)
	}
	return nil
}

// Cleanup purges records older than the retention window and returns the
// number of rows removed.
func (p *PostgresTier) Cleanup(ctx context.Context) (int64, error) {
	query := `DELETE FROM processed_events WHERE received_at < NOW() - $1::interval`

	res, err := p.db.ExecContext(ctx, query, p.window.String())
	if err != nil {
		return 0, fmt.Errorf("cleaning processed_events: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading cleanup result: %w", err)
	}
	return rows, nil
}
