package models

import (
	"encoding/json"
	"time"
)

// EventKind identifies the payload shape carried by an envelope.
type EventKind string

const (
	KindGameUpdate   EventKind = "game_update"
	KindScoreUpdate  EventKind = "score_update"
	KindOddsUpdate   EventKind = "odds_update"
	KindTeamUpdate   EventKind = "team_update"
	KindPlayerUpdate EventKind = "player_update"
	KindResync       EventKind = "resync"
	KindBatch        EventKind = "batch"
)

// Kinds lists every recognized event kind.
var Kinds = []EventKind{
	KindGameUpdate,
	KindScoreUpdate,
	KindOddsUpdate,
	KindTeamUpdate,
	KindPlayerUpdate,
	KindResync,
	KindBatch,
}

// Valid reports whether k is a recognized event kind.
func (k EventKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// GameStatus is the closed set of game states accepted on game updates.
type GameStatus string

const (
	StatusScheduled GameStatus = "scheduled"
	StatusLive      GameStatus = "live"
	StatusFinished  GameStatus = "finished"
	StatusPostponed GameStatus = "postponed"
	StatusCancelled GameStatus = "cancelled"
)

// Valid reports whether s is a recognized game status.
func (s GameStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusLive, StatusFinished, StatusPostponed, StatusCancelled:
		return true
	}
	return false
}

// BetType is the closed set of markets accepted on odds updates.
type BetType string

const (
	BetMoneyline BetType = "moneyline"
	BetSpread    BetType = "spread"
	BetTotal     BetType = "total"
	BetProp      BetType = "prop"
)

// Valid reports whether b is a recognized bet type.
func (b BetType) Valid() bool {
	switch b {
	case BetMoneyline, BetSpread, BetTotal, BetProp:
		return true
	}
	return false
}

// EventEnvelope is a single inbound push event. Envelopes are immutable once
// received; the typed payload pointers are populated by the validator and one
// of them is non-nil for a valid envelope, matching Kind.
type EventEnvelope struct {
	Kind       EventKind       `json:"kind"`
	Sport      string          `json:"sport,omitempty"`
	League     string          `json:"league,omitempty"`
	Source     string          `json:"source,omitempty"`
	OccurredAt time.Time       `json:"occurred_at,omitempty"`
	Data       json.RawMessage `json:"data"`

	Game   *GameUpdate   `json:"-"`
	Score  *ScoreUpdate  `json:"-"`
	Odds   *OddsUpdate   `json:"-"`
	Team   *TeamUpdate   `json:"-"`
	Player *PlayerUpdate `json:"-"`
	Resync *ResyncEvent  `json:"-"`
	Batch  *BatchEvent   `json:"-"`
}

// GameUpdate carries game state changes. Optional fields are pointers so that
// an absent field never overwrites a stored value.
type GameUpdate struct {
	GameID    string     `json:"game_id"`
	Status    GameStatus `json:"status"`
	HomeTeam  string     `json:"home_team,omitempty"`
	AwayTeam  string     `json:"away_team,omitempty"`
	HomeScore *int       `json:"home_score,omitempty"`
	AwayScore *int       `json:"away_score,omitempty"`
	Period    *string    `json:"period,omitempty"`
	Venue     *string    `json:"venue,omitempty"`
	GameDate  string     `json:"game_date,omitempty"`
	Season    string     `json:"season,omitempty"`
}

// ScoreUpdate carries a score change for a game already known to the store.
type ScoreUpdate struct {
	GameID    string  `json:"game_id"`
	HomeScore *int    `json:"home_score"`
	AwayScore *int    `json:"away_score"`
	Period    *string `json:"period,omitempty"`
	Clock     *string `json:"clock,omitempty"`
}

// OddsUpdate carries a priced market. Odds updates are never merged into
// prior prices; each one becomes a new snapshot row.
type OddsUpdate struct {
	GameID     string    `json:"game_id"`
	BetType    BetType   `json:"bet_type"`
	Book       string    `json:"book,omitempty"`
	HomeOdds   *float64  `json:"home_odds,omitempty"`
	AwayOdds   *float64  `json:"away_odds,omitempty"`
	Spread     *float64  `json:"spread,omitempty"`
	Total      *float64  `json:"total,omitempty"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
}

// TeamUpdate carries team reference data and, optionally, a standings line.
type TeamUpdate struct {
	Abbreviation string `json:"abbreviation"`
	Name         string `json:"name,omitempty"`
	City         string `json:"city,omitempty"`
	League       string `json:"league,omitempty"`
	Sport        string `json:"sport,omitempty"`
	Wins         *int   `json:"wins,omitempty"`
	Losses       *int   `json:"losses,omitempty"`
}

// PlayerUpdate carries per-player stat lines.
type PlayerUpdate struct {
	PlayerName       string   `json:"player_name"`
	TeamAbbreviation string   `json:"team_abbreviation"`
	Position         string   `json:"position,omitempty"`
	GameID           string   `json:"game_id,omitempty"`
	Points           *float64 `json:"points,omitempty"`
	Rebounds         *float64 `json:"rebounds,omitempty"`
	Assists          *float64 `json:"assists,omitempty"`
}

// ResyncEvent asks for an out-of-band bulk refresh through the fetch layer.
// It never writes data directly.
type ResyncEvent struct {
	Sport     string   `json:"sport"`
	DataTypes []string `json:"data_types,omitempty"`
}

// BatchEvent is an ordered list of single events delivered together. Items
// are validated and processed independently of each other.
type BatchEvent struct {
	BatchID string            `json:"batch_id,omitempty"`
	Events  []json.RawMessage `json:"events"`
}
