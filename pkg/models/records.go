package models

import "time"

// Game is the stored representation of a game row.
type Game struct {
	GameID    string     `json:"game_id"`
	Sport     string     `json:"sport"`
	League    string     `json:"league"`
	HomeTeam  string     `json:"home_team"`
	AwayTeam  string     `json:"away_team"`
	Status    GameStatus `json:"status"`
	HomeScore *int       `json:"home_score,omitempty"`
	AwayScore *int       `json:"away_score,omitempty"`
	Period    *string    `json:"period,omitempty"`
	Venue     *string    `json:"venue,omitempty"`
	GameDate  string     `json:"game_date,omitempty"`
	Season    string     `json:"season,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Team is the stored representation of a team row.
type Team struct {
	Abbreviation string    `json:"abbreviation"`
	Name         string    `json:"name"`
	City         string    `json:"city,omitempty"`
	League       string    `json:"league,omitempty"`
	Sport        string    `json:"sport,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Standing is a team's win/loss line, upserted alongside team updates that
// carry standings data.
type Standing struct {
	TeamAbbreviation string    `json:"team_abbreviation"`
	Season           string    `json:"season,omitempty"`
	Wins             int       `json:"wins"`
	Losses           int       `json:"losses"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PlayerStat is a per-player stat line keyed by player and team.
type PlayerStat struct {
	PlayerName       string    `json:"player_name"`
	TeamAbbreviation string    `json:"team_abbreviation"`
	Position         *string   `json:"position,omitempty"`
	GameID           *string   `json:"game_id,omitempty"`
	Points           *float64  `json:"points,omitempty"`
	Rebounds         *float64  `json:"rebounds,omitempty"`
	Assists          *float64  `json:"assists,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// OddsSnapshot is an append-only priced-market row keyed by
// game + bet type + book + capture time. History is never mutated.
type OddsSnapshot struct {
	GameID     string    `json:"game_id"`
	BetType    BetType   `json:"bet_type"`
	Book       string    `json:"book,omitempty"`
	HomeOdds   *float64  `json:"home_odds,omitempty"`
	AwayOdds   *float64  `json:"away_odds,omitempty"`
	Spread     *float64  `json:"spread,omitempty"`
	Total      *float64  `json:"total,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// ProcessingRecord tracks one admitted envelope through the pipeline. At most
// one record per content hash is ever marked processed.
type ProcessingRecord struct {
	ContentHash  string     `json:"content_hash"`
	RequestID    string     `json:"request_id"`
	EventKind    EventKind  `json:"event_kind"`
	ReceivedAt   time.Time  `json:"received_at"`
	Processed    bool       `json:"processed"`
	DurationMs   *int64     `json:"processing_duration_ms,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// IngestLog records the outcome of a pull or push ingestion run, mirroring
// the scrape log history the dashboard reads.
type IngestLog struct {
	Source       string    `json:"source"`
	DataType     string    `json:"data_type"`
	RecordCount  int       `json:"record_count"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
