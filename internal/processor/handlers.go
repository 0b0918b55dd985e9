package processor

import (
	"context"
	"fmt"

	"github.com/SolanaSergio/ApexBets-sub005/pkg/models"
)

// dispatch routes a validated single event to its handler. The switch is
// exhaustive over the closed kind set; adding a kind without a case here is
// caught by the default branch in tests.
func (p *Processor) dispatch(ctx context.Context, env *models.EventEnvelope) error {
	switch env.Kind {
	case models.KindGameUpdate:
		return p.handleGameUpdate(ctx, env)
	case models.KindScoreUpdate:
		return p.handleScoreUpdate(ctx, env)
	case models.KindOddsUpdate:
		return p.handleOddsUpdate(ctx, env)
	case models.KindTeamUpdate:
		return p.handleTeamUpdate(ctx, env)
	case models.KindPlayerUpdate:
		return p.handlePlayerUpdate(ctx, env)
	case models.KindResync:
		return p.handleResync(ctx, env)
	case models.KindBatch:
		return fmt.Errorf("batch envelopes must be fanned out, not dispatched")
	default:
		return fmt.Errorf("no handler for event kind %q", env.Kind)
	}
}

// handleGameUpdate upserts status/score/venue/period fields. Fields absent
// from the payload stay nil and never overwrite stored values.
func (p *Processor) handleGameUpdate(ctx context.Context, env *models.EventEnvelope) error {
	g := env.Game
	return p.store.UpsertGame(ctx, &models.Game{
		GameID:    g.GameID,
		Sport:     env.Sport,
		League:    env.League,
		HomeTeam:  g.HomeTeam,
		AwayTeam:  g.AwayTeam,
		Status:    g.Status,
		HomeScore: g.HomeScore,
		AwayScore: g.AwayScore,
		Period:    g.Period,
		Venue:     g.Venue,
		GameDate:  g.GameDate,
		Season:    g.Season,
	})
}

// handleScoreUpdate is a score-only partial upsert against the game row.
func (p *Processor) handleScoreUpdate(ctx context.Context, env *models.EventEnvelope) error {
	s := env.Score
	return p.store.UpsertGame(ctx, &models.Game{
		GameID:    s.GameID,
		Sport:     env.Sport,
		League:    env.League,
		HomeScore: s.HomeScore,
		AwayScore: s.AwayScore,
		Period:    s.Period,
	})
}

// handleOddsUpdate appends a new priced-market snapshot. Odds history is
// never mutated in place.
func (p *Processor) handleOddsUpdate(ctx context.Context, env *models.EventEnvelope) error {
	o := env.Odds

	capturedAt := o.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = env.OccurredAt
	}

	book := o.Book
	if book == "" {
		book = env.Source
	}

	return p.store.InsertOddsSnapshot(ctx, &models.OddsSnapshot{
		GameID:     o.GameID,
		BetType:    o.BetType,
		Book:       book,
		HomeOdds:   o.HomeOdds,
		AwayOdds:   o.AwayOdds,
		Spread:     o.Spread,
		Total:      o.Total,
		CapturedAt: capturedAt,
	})
}

// handleTeamUpdate upserts team reference data and cascades a standings
// upsert when the payload carries a win/loss line.
func (p *Processor) handleTeamUpdate(ctx context.Context, env *models.EventEnvelope) error {
	t := env.Team

	if err := p.store.UpsertTeam(ctx, &models.Team{
		Abbreviation: t.Abbreviation,
		Name:         t.Name,
		City:         t.City,
		League:       t.League,
		Sport:        t.Sport,
	}); err != nil {
		return err
	}

	if t.Wins == nil || t.Losses == nil {
		return nil
	}
	return p.store.UpsertStanding(ctx, &models.Standing{
		TeamAbbreviation: t.Abbreviation,
		Wins:             *t.Wins,
		Losses:           *t.Losses,
	})
}

// handlePlayerUpdate is a partial-field player stat upsert.
func (p *Processor) handlePlayerUpdate(ctx context.Context, env *models.EventEnvelope) error {
	pl := env.Player

	var position, gameID *string
	if pl.Position != "" {
		position = &pl.Position
	}
	if pl.GameID != "" {
		gameID = &pl.GameID
	}

	return p.store.UpsertPlayerStat(ctx, &models.PlayerStat{
		PlayerName:       pl.PlayerName,
		TeamAbbreviation: pl.TeamAbbreviation,
		Position:         position,
		GameID:           gameID,
		Points:           pl.Points,
		Rebounds:         pl.Rebounds,
		Assists:          pl.Assists,
	})
}

// handleResync signals the fetch layer to run an out-of-band bulk refresh.
// It writes no data itself.
func (p *Processor) handleResync(ctx context.Context, env *models.EventEnvelope) error {
	if p.refresher == nil {
		return fmt.Errorf("no refresher configured for resync events")
	}
	return p.refresher.Resync(ctx, env.Resync.Sport, env.Resync.DataTypes)
}
