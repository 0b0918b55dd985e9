// Package processor sequences inbound events through authentication,
// validation, deduplication, and handler dispatch.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SolanaSergio/ApexBets-sub005/internal/auth"
	"github.com/SolanaSergio/ApexBets-sub005/internal/dedup"
	"github.com/SolanaSergio/ApexBets-sub005/internal/validator"
	"github.com/SolanaSergio/ApexBets-sub005/pkg/models"
	"github.com/sirupsen/logrus"
)

// Sentinel errors classifying terminal outcomes. The HTTP layer maps them to
// status codes; outcome messages stay generic for authentication failures.
var (
	ErrUnauthorized = errors.New("authentication failed")
	ErrValidation   = errors.New("validation failed")
	ErrProcessing   = errors.New("processing failed")
)

// RecordStore is the narrow write surface handlers are allowed to use.
type RecordStore interface {
	UpsertGame(ctx context.Context, game *models.Game) error
	UpsertTeam(ctx context.Context, team *models.Team) error
	UpsertStanding(ctx context.Context, standing *models.Standing) error
	UpsertPlayerStat(ctx context.Context, stat *models.PlayerStat) error
	InsertOddsSnapshot(ctx context.Context, snap *models.OddsSnapshot) error
}

// Refresher receives resync requests; the scheduler implements it by
// invalidating caches and re-pulling through the fetch layer.
type Refresher interface {
	Resync(ctx context.Context, sport string, dataTypes []string) error
}

// RequestMeta carries per-request context from the HTTP layer.
type RequestMeta struct {
	RequestID     string
	ClientAddress string
	Signature     string
	ReceivedAt    time.Time
}

// Outcome is the terminal result of processing one delivery.
type Outcome struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	RequestID  string   `json:"request_id"`
	DurationMs int64    `json:"duration_ms"`
	Duplicate  bool     `json:"duplicate,omitempty"`
	Processed  int      `json:"processed,omitempty"`
	Skipped    int      `json:"skipped,omitempty"`
	Failed     int      `json:"failed,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// Processor is the ingestion orchestrator.
type Processor struct {
	secret    string
	allowlist []string
	dedup     *dedup.Store
	store     RecordStore
	refresher Refresher
	log       *logrus.Logger
	now       func() time.Time
}

// Config wires a Processor.
type Config struct {
	WebhookSecret string
	Allowlist     []string
	Dedup         *dedup.Store
	Store         RecordStore
	Refresher     Refresher
	Log           *logrus.Logger
	Now           func() time.Time
}

// New creates a processor.
func New(cfg Config) *Processor {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Processor{
		secret:    cfg.WebhookSecret,
		allowlist: cfg.Allowlist,
		dedup:     cfg.Dedup,
		store:     cfg.Store,
		refresher: cfg.Refresher,
		log:       log,
		now:       now,
	}
}

// Process runs the full state machine over one raw delivery:
// Received -> Authenticated -> Validated -> DedupChecked -> Dispatched ->
// {Processed | Failed}. Any failed transition short-circuits to a terminal
// outcome without touching later stages.
func (p *Processor) Process(ctx context.Context, raw []byte, meta RequestMeta) (Outcome, error) {
	start := p.now()
	entry := p.log.WithField("request_id", meta.RequestID)

	if !auth.Verify(raw, meta.Signature, p.secret) {
		entry.WithField("client", meta.ClientAddress).Warn("rejected delivery with bad signature")
		return p.failure(meta, start, "authentication failed", nil), ErrUnauthorized
	}
	if !auth.OriginAllowed(meta.ClientAddress, p.allowlist) {
		entry.WithField("client", meta.ClientAddress).Warn("rejected delivery from disallowed origin")
		// Same generic message as a signature failure; responses must not
		// reveal which check failed.
		return p.failure(meta, start, "authentication failed", nil), ErrUnauthorized
	}

	result := validator.Validate(raw)
	if !result.Valid {
		return p.failure(meta, start, "validation failed", result.Errors), ErrValidation
	}
	env := result.Envelope

	if env.Kind == models.KindBatch {
		return p.processBatch(ctx, env, meta, start)
	}

	hash, err := validator.ContentHash(raw)
	if err != nil {
		return p.failure(meta, start, "validation failed", []string{err.Error()}), ErrValidation
	}

	return p.processAdmitted(ctx, env, hash, meta, start)
}

// processAdmitted runs dedup, dispatch, and outcome recording for one
// validated single event.
func (p *Processor) processAdmitted(ctx context.Context, env *models.EventEnvelope, hash string, meta RequestMeta, start time.Time) (Outcome, error) {
	entry := p.log.WithFields(logrus.Fields{
		"request_id": meta.RequestID,
		"event_kind": env.Kind,
	})

	if p.dedup.IsDuplicate(ctx, hash) {
		entry.Info("duplicate event acknowledged")
		return p.duplicate(meta, start), nil
	}

	// Claim before dispatch so a concurrent identical delivery resolves as
	// a duplicate while this one is still in the handler.
	if !p.dedup.Claim(ctx, hash, meta.RequestID, env.Kind) {
		entry.Info("event claimed by concurrent delivery, acknowledged as duplicate")
		return p.duplicate(meta, start), nil
	}

	if err := p.dispatch(ctx, env); err != nil {
		durationMs := p.since(start)
		p.dedup.MarkFailed(ctx, hash, err.Error())
		entry.WithError(err).Error("event handler failed")
		return Outcome{
			Success:    false,
			Message:    "processing failed",
			RequestID:  meta.RequestID,
			DurationMs: durationMs,
			Errors:     []string{err.Error()},
		}, fmt.Errorf("%w: %v", ErrProcessing, err)
	}

	durationMs := p.since(start)
	p.dedup.MarkProcessed(ctx, hash, durationMs)
	entry.WithField("duration_ms", durationMs).Info("event processed")

	return Outcome{
		Success:    true,
		Message:    "event processed",
		RequestID:  meta.RequestID,
		DurationMs: durationMs,
		Processed:  1,
	}, nil
}

// processBatch fans a batch out element by element. Each element passes
// through the full state machine under a synthetic request id; one element's
// failure never aborts its siblings.
func (p *Processor) processBatch(ctx context.Context, env *models.EventEnvelope, meta RequestMeta, start time.Time) (Outcome, error) {
	batchID := env.Batch.BatchID
	if batchID == "" {
		batchID = meta.RequestID
	}

	var processed, skipped, failed int
	var itemErrors []string

	for i, rawItem := range env.Batch.Events {
		itemMeta := meta
		itemMeta.RequestID = fmt.Sprintf("%s-%d", batchID, i)

		itemResult := validator.Validate(rawItem)
		if !itemResult.Valid {
			failed++
			for _, msg := range itemResult.Errors {
				itemErrors = append(itemErrors, fmt.Sprintf("events[%d]: %s", i, msg))
			}
			continue
		}
		if itemResult.Envelope.Kind == models.KindBatch {
			failed++
			itemErrors = append(itemErrors, fmt.Sprintf("events[%d]: nested batches are not supported", i))
			continue
		}

		hash, err := validator.ContentHash(rawItem)
		if err != nil {
			failed++
			itemErrors = append(itemErrors, fmt.Sprintf("events[%d]: %v", i, err))
			continue
		}

		outcome, err := p.processAdmitted(ctx, itemResult.Envelope, hash, itemMeta, p.now())
		switch {
		case err != nil:
			failed++
			for _, msg := range outcome.Errors {
				itemErrors = append(itemErrors, fmt.Sprintf("events[%d]: %s", i, msg))
			}
		case outcome.Duplicate:
			skipped++
		default:
			processed++
		}
	}

	return Outcome{
		Success:    true,
		Message:    fmt.Sprintf("batch complete: %d processed, %d skipped, %d failed", processed, skipped, failed),
		RequestID:  meta.RequestID,
		DurationMs: p.since(start),
		Processed:  processed,
		Skipped:    skipped,
		Failed:     failed,
		Errors:     itemErrors,
	}, nil
}

func (p *Processor) duplicate(meta RequestMeta, start time.Time) Outcome {
	return Outcome{
		Success:    true,
		Message:    "duplicate event",
		RequestID:  meta.RequestID,
		DurationMs: p.since(start),
		Duplicate:  true,
		Skipped:    1,
	}
}

func (p *Processor) failure(meta RequestMeta, start time.Time, message string, errs []string) Outcome {
	return Outcome{
		Success:    false,
		Message:    message,
		RequestID:  meta.RequestID,
		DurationMs: p.since(start),
		Errors:     errs,
	}
}

func (p *Processor) since(start time.Time) int64 {
	return p.now().Sub(start).Milliseconds()
}
