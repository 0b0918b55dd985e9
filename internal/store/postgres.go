// Package store provides the narrow record-store operations the ingestion
// core is allowed to issue: keyed reads, keyed upserts, and append-only
// snapshot inserts. Nothing here runs ad hoc queries.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/SolanaSergio/ApexBets-sub005/pkg/models"
	_ "github.com/lib/pq"
)

// Postgres implements the record store against the shared postgres database.
type Postgres struct {
	db *sql.DB
}

// Open connects to postgres, configures the pool, and verifies the
// connection.
func Open(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Postgres{db: db}, nil
}

// New wraps an existing connection, used by tests and by callers that share
// a pool.
func New(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// DB exposes the underlying pool for components that keep their own tables
// (the durable dedup tier).
func (p *Postgres) DB() *sql.DB { return p.db }

// Close releases the connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

// Ping checks connectivity.
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// GetGameByKey fetches a game row by external game id. Returns nil when the
// game is unknown.
func (p *Postgres) GetGameByKey(ctx context.Context, gameID string) (*models.Game, error) {
	query := `
		SELECT game_id, sport, league, home_team, away_team, status,
		       home_score, away_score, period, venue,
		       COALESCE(game_date, ''), COALESCE(season, ''), updated_at
		FROM games
		WHERE game_id = $1
	`

	var g models.Game
	err := p.db.QueryRowContext(ctx, query, gameID).Scan(
		&g.GameID, &g.Sport, &g.League, &g.HomeTeam, &g.AwayTeam, &g.Status,
		&g.HomeScore, &g.AwayScore, &g.Period, &g.Venue,
		&g.GameDate, &g.Season, &g.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying game %s: %w", gameID, err)
	}
	return &g, nil
}

// UpsertGame inserts or partially updates a game row. Nil fields in the
// update never overwrite stored values; COALESCE keeps the existing column.
func (p *Postgres) UpsertGame(ctx context.Context, game *models.Game) error {
	query := `
		INSERT INTO games (game_id, sport, league, home_team, away_team, status,
		                   home_score, away_score, period, venue, game_date, season, updated_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE(NULLIF($6, ''), 'scheduled'),
		        $7, $8, $9, $10, NULLIF($11, ''), NULLIF($12, ''), NOW())
		ON CONFLICT (game_id) DO UPDATE SET
			sport      = COALESCE(NULLIF(EXCLUDED.sport, ''), games.sport),
			league     = COALESCE(NULLIF(EXCLUDED.league, ''), games.league),
			home_team  = COALESCE(NULLIF(EXCLUDED.home_team, ''), games.home_team),
			away_team  = COALESCE(NULLIF(EXCLUDED.away_team, ''), games.away_team),
			status     = COALESCE(NULLIF(EXCLUDED.status, ''), games.status),
			home_score = COALESCE(EXCLUDED.home_score, games.home_score),
			away_score = COALESCE(EXCLUDED.away_score, games.away_score),
			period     = COALESCE(EXCLUDED.period, games.period),
			venue      = COALESCE(EXCLUDED.venue, games.venue),
			game_date  = COALESCE(EXCLUDED.game_date, games.game_date),
			season     = COALESCE(EXCLUDED.season, games.season),
			updated_at = NOW()
	`

	_, err := p.db.ExecContext(ctx, query,
		game.GameID, game.Sport, game.League, game.HomeTeam, game.AwayTeam,
		string(game.Status), game.HomeScore, game.AwayScore, game.Period,
		game.Venue, game.GameDate, game.Season,
	)
	if err != nil {
		return fmt.Errorf("upserting game %s: %w", game.GameID, err)
	}
	return nil
}

// UpsertTeam inserts or partially updates a team row keyed by abbreviation.
func (p *Postgres) UpsertTeam(ctx context.Context, team *models.Team) error {
	query := `
		INSERT INTO teams (abbreviation, name, city, league, sport, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (abbreviation) DO UPDATE SET
			name       = COALESCE(NULLIF(EXCLUDED.name, ''), teams.name),
			city       = COALESCE(NULLIF(EXCLUDED.city, ''), teams.city),
			league     = COALESCE(NULLIF(EXCLUDED.league, ''), teams.league),
			sport      = COALESCE(NULLIF(EXCLUDED.sport, ''), teams.sport),
			updated_at = NOW()
	`

	_, err := p.db.ExecContext(ctx, query,
		team.Abbreviation, team.Name, team.City, team.League, team.Sport,
	)
	if err != nil {
		return fmt.Errorf("upserting team %s: %w", team.Abbreviation, err)
	}
	return nil
}

// UpsertStanding inserts or replaces a team's win/loss line.
func (p *Postgres) UpsertStanding(ctx context.Context, standing *models.Standing) error {
	query := `
		INSERT INTO standings (team_abbreviation, season, wins, losses, updated_at)
		VALUES ($1, COALESCE(NULLIF($2, ''), 'current'), $3, $4, NOW())
		ON CONFLICT (team_abbreviation, season) DO UPDATE SET
			wins       = EXCLUDED.wins,
			losses     = EXCLUDED.losses,
			updated_at = NOW()
	`

	_, err := p.db.ExecContext(ctx, query,
		standing.TeamAbbreviation, standing.Season, standing.Wins, standing.Losses,
	)
	if err != nil {
		return fmt.Errorf("upserting standing for %s: %w", standing.TeamAbbreviation, err)
	}
	return nil
}

// UpsertPlayerStat inserts or partially updates a player stat line keyed by
// player + team.
func (p *Postgres) UpsertPlayerStat(ctx context.Context, stat *models.PlayerStat) error {
	query := `
		INSERT INTO player_stats (player_name, team_abbreviation, position, game_id,
		                          points, rebounds, assists, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (player_name, team_abbreviation) DO UPDATE SET
			position   = COALESCE(EXCLUDED.position, player_stats.position),
			game_id    = COALESCE(EXCLUDED.game_id, player_stats.game_id),
			points     = COALESCE(EXCLUDED.points, player_stats.points),
			rebounds   = COALESCE(EXCLUDED.rebounds, player_stats.rebounds),
			assists    = COALESCE(EXCLUDED.assists, player_stats.assists),
			updated_at = NOW()
	`

	_, err := p.db.ExecContext(ctx, query,
		stat.PlayerName, stat.TeamAbbreviation, stat.Position, stat.GameID,
		stat.Points, stat.Rebounds, stat.Assists,
	)
	if err != nil {
		return fmt.Errorf("upserting player stat for %s: %w", stat.PlayerName, err)
	}
	return nil
}

// InsertOddsSnapshot appends a priced-market snapshot. Snapshots keyed by
// game + bet type + book + capture time replace themselves on redelivery
// instead of mutating history.
func (p *Postgres) InsertOddsSnapshot(ctx context.Context, snap *models.OddsSnapshot) error {
	query := `
		INSERT INTO odds (game_id, bet_type, book, home_odds, away_odds, spread, total, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (game_id, bet_type, book, captured_at) DO UPDATE SET
			home_odds = EXCLUDED.home_odds,
			away_odds = EXCLUDED.away_odds,
			spread    = EXCLUDED.spread,
			total     = EXCLUDED.total
	`

	capturedAt := snap.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	_, err := p.db.ExecContext(ctx, query,
		snap.GameID, string(snap.BetType), snap.Book,
		snap.HomeOdds, snap.AwayOdds, snap.Spread, snap.Total, capturedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting odds snapshot for %s: %w", snap.GameID, err)
	}
	return nil
}

// LogIngest records the outcome of an ingestion run.
func (p *Postgres) LogIngest(ctx context.Context, entry *models.IngestLog) error {
	query := `
		INSERT INTO ingest_logs (source, data_type, record_count, success, error_message, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW())
	`

	_, err := p.db.ExecContext(ctx, query,
		entry.Source, entry.DataType, entry.RecordCount, entry.Success, entry.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("logging ingest activity: %w", err)
	}
	return nil
}
