package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SolanaSergio/ApexBets-sub005/internal/auth"
	"github.com/SolanaSergio/ApexBets-sub005/internal/dedup"
	"github.com/SolanaSergio/ApexBets-sub005/internal/processor"
	"github.com/SolanaSergio/ApexBets-sub005/pkg/models"
	"github.com/sirupsen/logrus"
)

const testSecret = "server-test-secret"

// fakeDB backs both the processing pipeline and the read endpoints.
type fakeDB struct {
	games   map[string]*models.Game
	pingErr error
}

func newFakeDB() *fakeDB {
	return &fakeDB{games: make(map[string]*models.Game)}
}

func (f *fakeDB) UpsertGame(_ context.Context, g *models.Game) error {
	f.games[g.GameID] = g
	return nil
}

func (f *fakeDB) UpsertTeam(context.Context, *models.Team) error { return nil }

func (f *fakeDB) UpsertStanding(context.Context, *models.Standing) error { return nil }

func (f *fakeDB) UpsertPlayerStat(context.Context, *models.PlayerStat) error { return nil }

func (f *fakeDB) InsertOddsSnapshot(context.Context, *models.OddsSnapshot) error { return nil }

func (f *fakeDB) GetGameByKey(_ context.Context, gameID string) (*models.Game, error) {
	return f.games[gameID], nil
}

func (f *fakeDB) Ping(context.Context) error { return f.pingErr }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeDB) {
	t.Helper()

	db := newFakeDB()
	p := processor.New(processor.Config{
		WebhookSecret: testSecret,
		Dedup:         dedup.NewStore(dedup.NewMemoryTier(5*time.Minute, nil), nil, quietLogger()),
		Store:         db,
		Log:           quietLogger(),
	})

	srv := httptest.NewServer(Router(NewHandler(p, db, quietLogger()), []string{"*"}))
	t.Cleanup(srv.Close)
	return srv, db
}

func postEvent(t *testing.T, srv *httptest.Server, payload []byte, signature string) (*http.Response, processor.Outcome) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhook/events", bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var outcome processor.Outcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp, outcome
}

func TestReceiveEvent(t *testing.T) {
	srv, db := newTestServer(t)

	payload := []byte(`{"kind":"game_update","sport":"basketball","data":{"game_id":"g1","status":"live","home_score":55,"away_score":48}}`)
	resp, outcome := postEvent(t, srv, payload, auth.Sign(payload, testSecret))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !outcome.Success || outcome.Processed != 1 {
		t.Errorf("unexpected outcome: %+v", outcome)
	}
	if outcome.RequestID == "" {
		t.Error("outcome missing request id")
	}
	if db.games["g1"] == nil {
		t.Error("game not written through the pipeline")
	}
}

func TestReceiveEventDuplicate(t *testing.T) {
	srv, _ := newTestServer(t)

	payload := []byte(`{"kind":"game_update","data":{"game_id":"g1","status":"live"}}`)
	sig := auth.Sign(payload, testSecret)

	if resp, _ := postEvent(t, srv, payload, sig); resp.StatusCode != http.StatusOK {
		t.Fatalf("first delivery status = %d", resp.StatusCode)
	}

	resp, outcome := postEvent(t, srv, payload, sig)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("duplicate delivery status = %d, want 200", resp.StatusCode)
	}
	if !outcome.Duplicate {
		t.Errorf("duplicate delivery not flagged: %+v", outcome)
	}
}

func TestReceiveEventBadSignature(t *testing.T) {
	srv, db := newTestServer(t)

	payload := []byte(`{"kind":"game_update","data":{"game_id":"g1","status":"live"}}`)
	resp, outcome := postEvent(t, srv, payload, auth.Sign(payload, "wrong-secret"))

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if outcome.Message != "authentication failed" {
		t.Errorf("rejection leaks detail: %q", outcome.Message)
	}
	if len(db.games) != 0 {
		t.Error("unauthenticated delivery reached the store")
	}
}

func TestReceiveEventMissingSignature(t *testing.T) {
	srv, _ := newTestServer(t)

	payload := []byte(`{"kind":"game_update","data":{"game_id":"g1","status":"live"}}`)
	resp, _ := postEvent(t, srv, payload, "")

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestReceiveEventInvalidPayload(t *testing.T) {
	srv, _ := newTestServer(t)

	payload := []byte(`{"kind":"game_update","data":{"status":"live"}}`)
	resp, outcome := postEvent(t, srv, payload, auth.Sign(payload, testSecret))

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if len(outcome.Errors) == 0 {
		t.Error("validation response missing field errors")
	}
}

func TestReceiveEventOversizedPayload(t *testing.T) {
	srv, _ := newTestServer(t)

	// Bodies past the cap are truncated on read, so the signature never
	// matches. Size must be the reported reason, not authentication.
	for _, size := range []int{1<<20 + 1, 2 << 20} {
		big := bytes.Repeat([]byte("a"), size)
		resp, out := postEvent(t, srv, big, auth.Sign(big, testSecret))

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("size %d: status = %d, want 400", size, resp.StatusCode)
		}
		if out.Success {
			t.Errorf("size %d: success = true, want false", size)
		}
	}
}

func TestGetGame(t *testing.T) {
	srv, db := newTestServer(t)
	db.games["g1"] = &models.Game{GameID: "g1", Sport: "basketball", Status: models.StatusLive}

	resp, err := http.Get(srv.URL + "/api/v1/games/g1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var game models.Game
	if err := json.NewDecoder(resp.Body).Decode(&game); err != nil {
		t.Fatal(err)
	}
	if game.GameID != "g1" || game.Status != models.StatusLive {
		t.Errorf("unexpected game: %+v", game)
	}
}

func TestGetGameNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/games/missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
