package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/SolanaSergio/ApexBets-sub005/internal/auth"
	"github.com/SolanaSergio/ApexBets-sub005/internal/dedup"
	"github.com/SolanaSergio/ApexBets-sub005/pkg/models"
	"github.com/sirupsen/logrus"
)

const testSecret = "webhook-test-secret"

// fakeStore records every write for assertions.
type fakeStore struct {
	games     []*models.Game
	teams     []*models.Team
	standings []*models.Standing
	players   []*models.PlayerStat
	odds      []*models.OddsSnapshot
	failWith  error
}

func (f *fakeStore) UpsertGame(_ context.Context, g *models.Game) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.games = append(f.games, g)
	return nil
}

func (f *fakeStore) UpsertTeam(_ context.Context, t *models.Team) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.teams = append(f.teams, t)
	return nil
}

func (f *fakeStore) UpsertStanding(_ context.Context, s *models.Standing) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.standings = append(f.standings, s)
	return nil
}

func (f *fakeStore) UpsertPlayerStat(_ context.Context, p *models.PlayerStat) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.players = append(f.players, p)
	return nil
}

func (f *fakeStore) InsertOddsSnapshot(_ context.Context, o *models.OddsSnapshot) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.odds = append(f.odds, o)
	return nil
}

type fakeRefresher struct {
	sports    []string
	dataTypes [][]string
}

func (f *fakeRefresher) Resync(_ context.Context, sport string, dataTypes []string) error {
	f.sports = append(f.sports, sport)
	f.dataTypes = append(f.dataTypes, dataTypes)
	return nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestProcessor(store RecordStore, refresher Refresher, allowlist []string) *Processor {
	memory := dedup.NewMemoryTier(5*time.Minute, nil)
	return New(Config{
		WebhookSecret: testSecret,
		Allowlist:     allowlist,
		Dedup:         dedup.NewStore(memory, nil, quietLogger()),
		Store:         store,
		Refresher:     refresher,
		Log:           quietLogger(),
	})
}

func signedMeta(raw []byte, requestID string) RequestMeta {
	return RequestMeta{
		RequestID:     requestID,
		ClientAddress: "10.0.0.1",
		Signature:     auth.Sign(raw, testSecret),
		ReceivedAt:    time.Now(),
	}
}

func TestProcessGameUpdate(t *testing.T) {
	store := &fakeStore{}
	p := newTestProcessor(store, nil, nil)

	raw := []byte(`{"kind":"game_update","sport":"basketball","data":{"game_id":"g1","status":"live","home_score":10,"away_score":7}}`)
	outcome, err := p.Process(context.Background(), raw, signedMeta(raw, "req-1"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if !outcome.Success || outcome.Processed != 1 {
		t.Errorf("unexpected outcome: %+v", outcome)
	}
	if len(store.games) != 1 {
		t.Fatalf("expected 1 game upsert, got %d", len(store.games))
	}

	g := store.games[0]
	if g.GameID != "g1" || g.Status != models.StatusLive {
		t.Errorf("unexpected game write: %+v", g)
	}
	if g.HomeScore == nil || *g.HomeScore != 10 || g.AwayScore == nil || *g.AwayScore != 7 {
		t.Errorf("scores not applied: %+v", g)
	}
	if g.Venue != nil {
		t.Error("absent venue field must stay nil so it cannot overwrite stored values")
	}
}

func TestProcessIdempotence(t *testing.T) {
	store := &fakeStore{}
	p := newTestProcessor(store, nil, nil)
	ctx := context.Background()

	raw := []byte(`{"kind":"game_update","data":{"game_id":"g1","status":"live","home_score":10,"away_score":7}}`)

	first, err := p.Process(ctx, raw, signedMeta(raw, "req-1"))
	if err != nil || !first.Success || first.Duplicate {
		t.Fatalf("first submission: outcome=%+v err=%v", first, err)
	}

	second, err := p.Process(ctx, raw, signedMeta(raw, "req-2"))
	if err != nil {
		t.Fatalf("second submission: %v", err)
	}
	if !second.Success || !second.Duplicate {
		t.Errorf("second submission not acknowledged as duplicate: %+v", second)
	}

	if len(store.games) != 1 {
		t.Errorf("duplicate submission caused %d writes, want exactly 1", len(store.games))
	}
}

func TestProcessDedupAcrossKeyOrder(t *testing.T) {
	store := &fakeStore{}
	p := newTestProcessor(store, nil, nil)
	ctx := context.Background()

	a := []byte(`{"kind":"score_update","data":{"game_id":"g1","home_score":10,"away_score":7}}`)
	b := []byte(`{"data":{"away_score":7,"home_score":10,"game_id":"g1"},"kind":"score_update"}`)

	if _, err := p.Process(ctx, a, signedMeta(a, "req-1")); err != nil {
		t.Fatalf("first: %v", err)
	}
	outcome, err := p.Process(ctx, b, signedMeta(b, "req-2"))
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	if !outcome.Duplicate {
		t.Error("reordered keys not detected as duplicate content")
	}
	if len(store.games) != 1 {
		t.Errorf("expected 1 write, got %d", len(store.games))
	}
}

func TestProcessBadSignatureNoSideEffects(t *testing.T) {
	store := &fakeStore{}
	p := newTestProcessor(store, nil, nil)

	raw := []byte(`{"kind":"game_update","data":{"game_id":"g1","status":"live"}}`)
	meta := signedMeta(raw, "req-1")
	meta.Signature = auth.Sign(raw, "wrong-secret")

	outcome, err := p.Process(context.Background(), raw, meta)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
	if outcome.Message != "authentication failed" {
		t.Errorf("auth failure message leaks detail: %q", outcome.Message)
	}
	if len(store.games) != 0 {
		t.Error("unauthenticated delivery caused side effects")
	}
}

func TestProcessDisallowedOrigin(t *testing.T) {
	store := &fakeStore{}
	p := newTestProcessor(store, nil, []string{"10.0.0.1"})

	raw := []byte(`{"kind":"game_update","data":{"game_id":"g1","status":"live"}}`)
	meta := signedMeta(raw, "req-1")
	meta.ClientAddress = "10.0.0.2"

	outcome, err := p.Process(context.Background(), raw, meta)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
	// The message must be identical to the signature-failure message.
	if outcome.Message != "authentication failed" {
		t.Errorf("origin failure message leaks detail: %q", outcome.Message)
	}
}

func TestProcessValidationShortCircuits(t *testing.T) {
	store := &fakeStore{}
	p := newTestProcessor(store, nil, nil)

	raw := []byte(`{"kind":"game_update","data":{"status":"live"}}`)
	outcome, err := p.Process(context.Background(), raw, signedMeta(raw, "req-1"))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
	if len(outcome.Errors) == 0 {
		t.Error("validation failure missing field errors")
	}
	if len(store.games) != 0 {
		t.Error("invalid payload reached a handler")
	}
}

func TestProcessHandlerFailure(t *testing.T) {
	store := &fakeStore{failWith: errors.New("connection reset")}
	p := newTestProcessor(store, nil, nil)
	ctx := context.Background()

	raw := []byte(`{"kind":"game_update","data":{"game_id":"g1","status":"live"}}`)
	outcome, err := p.Process(ctx, raw, signedMeta(raw, "req-1"))
	if !errors.Is(err, ErrProcessing) {
		t.Fatalf("got %v, want ErrProcessing", err)
	}
	if outcome.Success {
		t.Error("failed processing reported success")
	}

	// A failed delivery releases its claim, so the same content can be
	// retried once the store recovers instead of being swallowed as a
	// duplicate for the rest of the dedup window.
	store.failWith = nil
	retry, err := p.Process(ctx, raw, signedMeta(raw, "req-2"))
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retry.Duplicate || !retry.Success || retry.Processed != 1 {
		t.Errorf("retry outcome: %+v", retry)
	}
	if len(store.games) != 1 {
		t.Errorf("retry applied %d writes, want 1", len(store.games))
	}
}

func TestProcessBatchIsolation(t *testing.T) {
	store := &fakeStore{}
	p := newTestProcessor(store, nil, nil)

	raw := []byte(`{
		"kind": "batch",
		"data": {
			"batch_id": "b1",
			"events": [
				{"kind":"game_update","data":{"game_id":"g1","status":"live","home_score":10,"away_score":7}},
				{"kind":"game_update","data":{"status":"broken"}},
				{"kind":"team_update","data":{"abbreviation":"LAL","name":"Lakers","wins":40,"losses":20}}
			]
		}
	}`)

	outcome, err := p.Process(context.Background(), raw, signedMeta(raw, "req-b"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if outcome.Processed != 2 || outcome.Failed != 1 || outcome.Skipped != 0 {
		t.Errorf("batch counts processed=%d skipped=%d failed=%d, want 2/0/1",
			outcome.Processed, outcome.Skipped, outcome.Failed)
	}
	if len(outcome.Errors) == 0 {
		t.Error("batch outcome missing per-item errors")
	}

	// The two valid items must be durably applied.
	if len(store.games) != 1 || len(store.teams) != 1 {
		t.Errorf("valid batch items not applied: games=%d teams=%d", len(store.games), len(store.teams))
	}
	if len(store.standings) != 1 {
		t.Error("team update with standings data did not cascade a standings upsert")
	}
}

func TestProcessBatchDuplicateElements(t *testing.T) {
	store := &fakeStore{}
	p := newTestProcessor(store, nil, nil)
	ctx := context.Background()

	single := []byte(`{"kind":"score_update","data":{"game_id":"g1","home_score":10,"away_score":7}}`)
	if _, err := p.Process(ctx, single, signedMeta(single, "req-1")); err != nil {
		t.Fatalf("single: %v", err)
	}

	batch := []byte(fmt.Sprintf(`{"kind":"batch","data":{"batch_id":"b1","events":[%s]}}`, single))
	outcome, err := p.Process(ctx, batch, signedMeta(batch, "req-2"))
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	if outcome.Skipped != 1 || outcome.Processed != 0 {
		t.Errorf("identical content inside a batch not deduplicated: %+v", outcome)
	}
	if len(store.games) != 1 {
		t.Errorf("duplicate batch element caused a second write")
	}
}

func TestProcessResync(t *testing.T) {
	store := &fakeStore{}
	refresher := &fakeRefresher{}
	p := newTestProcessor(store, refresher, nil)

	raw := []byte(`{"kind":"resync","data":{"sport":"basketball","data_types":["odds","schedule"]}}`)
	outcome, err := p.Process(context.Background(), raw, signedMeta(raw, "req-1"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !outcome.Success {
		t.Errorf("resync outcome: %+v", outcome)
	}

	if len(refresher.sports) != 1 || refresher.sports[0] != "basketball" {
		t.Errorf("refresher not signaled: %+v", refresher.sports)
	}
	if len(refresher.dataTypes[0]) != 2 {
		t.Errorf("data types not forwarded: %+v", refresher.dataTypes)
	}
	// A resync must not write records directly.
	if len(store.games)+len(store.teams)+len(store.odds) != 0 {
		t.Error("resync event wrote to the record store")
	}
}

func TestProcessOddsSnapshot(t *testing.T) {
	store := &fakeStore{}
	p := newTestProcessor(store, nil, nil)

	raw := []byte(`{"kind":"odds_update","source":"sharpline","data":{"game_id":"g1","bet_type":"spread","spread":-4.5}}`)
	if _, err := p.Process(context.Background(), raw, signedMeta(raw, "req-1")); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(store.odds) != 1 {
		t.Fatalf("expected 1 odds snapshot, got %d", len(store.odds))
	}
	snap := store.odds[0]
	if snap.BetType != models.BetSpread || snap.Spread == nil || *snap.Spread != -4.5 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.Book != "sharpline" {
		t.Errorf("envelope source not used as book fallback: %q", snap.Book)
	}
}
