// Package scheduler runs the background pull loops: reference data daily,
// schedules hourly, odds on a short cadence, plus periodic cleanup of the
// dedup and cache tiers. All pulls go through the fetch layer so provider
// budgets and caching apply to scheduled and on-demand refreshes alike.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/SolanaSergio/ApexBets-sub005/internal/cache"
	"github.com/SolanaSergio/ApexBets-sub005/internal/config"
	"github.com/SolanaSergio/ApexBets-sub005/internal/dedup"
	"github.com/SolanaSergio/ApexBets-sub005/internal/fetch"
	"github.com/SolanaSergio/ApexBets-sub005/internal/providers/balldontlie"
	"github.com/SolanaSergio/ApexBets-sub005/internal/providers/espn"
	"github.com/SolanaSergio/ApexBets-sub005/internal/providers/oddsapi"
	"github.com/SolanaSergio/ApexBets-sub005/pkg/models"
	"github.com/sirupsen/logrus"
)

// espnPaths maps stored sport names onto ESPN API path segments.
var espnPaths = map[string]string{
	"basketball": "basketball/nba",
	"football":   "football/nfl",
	"baseball":   "baseball/mlb",
	"hockey":     "hockey/nhl",
}

// oddsKeys maps stored sport names onto The Odds API sport keys.
var oddsKeys = map[string]string{
	"basketball": "basketball_nba",
	"football":   "americanfootball_nfl",
	"baseball":   "baseball_mlb",
	"hockey":     "icehockey_nhl",
}

// leagues maps stored sport names onto their default league labels.
var leagues = map[string]string{
	"basketball": "NBA",
	"football":   "NFL",
	"baseball":   "MLB",
	"hockey":     "NHL",
}

// Store is the write surface the scheduler needs.
type Store interface {
	UpsertGame(ctx context.Context, game *models.Game) error
	UpsertTeam(ctx context.Context, team *models.Team) error
	InsertOddsSnapshot(ctx context.Context, snap *models.OddsSnapshot) error
	LogIngest(ctx context.Context, entry *models.IngestLog) error
}

// Scheduler owns the background refresh and cleanup loops. It also serves
// resync events from the webhook pipeline, which force-refresh through the
// same code path.
type Scheduler struct {
	cfg     config.SchedulerConfig
	fetcher *fetch.Fetcher
	store   Store
	dedup   *dedup.Store
	espn    *espn.Client
	odds    *oddsapi.Client
	bdl     *balldontlie.Client
	log     *logrus.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

// New creates a scheduler. odds and bdl may be unconfigured clients; their
// refreshes are skipped until credentials are present.
func New(cfg config.SchedulerConfig, fetcher *fetch.Fetcher, store Store, dedupStore *dedup.Store,
	espnClient *espn.Client, oddsClient *oddsapi.Client, bdlClient *balldontlie.Client, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		dedup:   dedupStore,
		espn:    espnClient,
		odds:    oddsClient,
		bdl:     bdlClient,
		log:     log,
		now:     time.Now,
	}
}

// Start launches the pull and cleanup loops. They stop when ctx is
// cancelled; Wait blocks until all of them have drained.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		return
	}

	s.loop(ctx, s.cfg.TeamsInterval, "teams", s.refreshTeamsAll)
	s.loop(ctx, s.cfg.ScheduleInterval, "schedule", s.refreshScheduleAll)
	s.loop(ctx, s.cfg.OddsInterval, "odds", s.refreshOddsAll)
	s.loop(ctx, s.cfg.CleanupInterval, "cleanup", s.cleanup)

	s.log.WithFields(logrus.Fields{
		"sports":            s.cfg.Sports,
		"teams_interval":    s.cfg.TeamsInterval.String(),
		"schedule_interval": s.cfg.ScheduleInterval.String(),
		"odds_interval":     s.cfg.OddsInterval.String(),
	}).Info("scheduler started")
}

// Wait blocks until every loop has observed cancellation and returned.
func (s *Scheduler) Wait() { s.wg.Wait() }

// loop runs fn immediately, then on every tick until ctx is cancelled.
func (s *Scheduler) loop(ctx context.Context, interval time.Duration, name string, fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		fn(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.log.WithField("loop", name).Debug("scheduler loop stopped")
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

// Resync serves resync events: it drops cached data for the requested
// sport and pulls fresh copies. An empty dataTypes slice refreshes
// everything.
func (s *Scheduler) Resync(ctx context.Context, sport string, dataTypes []string) error {
	if len(dataTypes) == 0 {
		dataTypes = []string{cache.TypeTeams, cache.TypeSchedule, cache.TypeOdds}
	}

	var firstErr error
	for _, dataType := range dataTypes {
		s.fetcher.Invalidate(ctx, dataType, sport)

		var err error
		switch dataType {
		case cache.TypeTeams:
			err = s.refreshTeams(ctx, sport)
		case cache.TypeSchedule, cache.TypeLiveScores:
			err = s.refreshSchedule(ctx, sport)
		case cache.TypeOdds:
			err = s.refreshOdds(ctx, sport)
		default:
			err = fmt.Errorf("unknown data type %q", dataType)
		}
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("resync %s/%s: %w", sport, dataType, err)
		}
	}

	return firstErr
}

func (s *Scheduler) refreshTeamsAll(ctx context.Context) {
	s.eachSport(ctx, "teams", s.refreshTeams)
}

func (s *Scheduler) refreshScheduleAll(ctx context.Context) {
	s.eachSport(ctx, "schedule", s.refreshSchedule)
}

func (s *Scheduler) refreshOddsAll(ctx context.Context) {
	s.eachSport(ctx, "odds", s.refreshOdds)
}

func (s *Scheduler) eachSport(ctx context.Context, name string, fn func(ctx context.Context, sport string) error) {
	for _, sport := range s.cfg.Sports {
		if err := fn(ctx, sport); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"sport":     sport,
				"data_type": name,
			}).Warn("scheduled refresh failed")
		}
	}
}

// refreshTeams pulls the team list for one sport and upserts each row.
func (s *Scheduler) refreshTeams(ctx context.Context, sport string) error {
	league := leagues[sport]

	chain := []fetch.ProviderCall{{
		Provider: espn.Name,
		Fn: func(ctx context.Context) ([]byte, error) {
			raw, err := s.espn.FetchTeams(ctx, espnPaths[sport])
			if err != nil {
				return nil, err
			}
			teams, err := parseESPNTeams(raw, sport, league)
			if err != nil {
				return nil, err
			}
			return json.Marshal(teams)
		},
	}}
	if sport == "basketball" && s.bdl.Configured() {
		chain = append(chain, fetch.ProviderCall{
			Provider: balldontlie.Name,
			Fn: func(ctx context.Context) ([]byte, error) {
				raw, err := s.bdl.FetchTeams(ctx)
				if err != nil {
					return nil, err
				}
				teams, err := parseBDLTeams(raw, sport, league)
				if err != nil {
					return nil, err
				}
				return json.Marshal(teams)
			},
		})
	}

	key := cache.Key(cache.TypeTeams, sport)
	raw, err := s.fetcher.FetchAndCache(ctx, key, cache.TypeTeams, sport, chain)
	if err != nil {
		s.logIngest(ctx, sport, "teams", 0, err)
		return err
	}

	var teams []models.Team
	if err := json.Unmarshal(raw, &teams); err != nil {
		return fmt.Errorf("failed to decode cached teams: %w", err)
	}

	for i := range teams {
		if err := s.store.UpsertTeam(ctx, &teams[i]); err != nil {
			s.logIngest(ctx, sport, "teams", i, err)
			return fmt.Errorf("failed to upsert team %s: %w", teams[i].Abbreviation, err)
		}
	}

	s.logIngest(ctx, sport, "teams", len(teams), nil)
	return nil
}

// refreshSchedule pulls today's scoreboard for one sport and upserts each
// game, scores included for games in progress.
func (s *Scheduler) refreshSchedule(ctx context.Context, sport string) error {
	league := leagues[sport]
	date := s.now().UTC()

	chain := []fetch.ProviderCall{{
		Provider: espn.Name,
		Fn: func(ctx context.Context) ([]byte, error) {
			raw, err := s.espn.FetchScoreboard(ctx, espnPaths[sport], date)
			if err != nil {
				return nil, err
			}
			games, err := parseESPNScoreboard(raw, sport, league)
			if err != nil {
				return nil, err
			}
			return json.Marshal(games)
		},
	}}
	if sport == "basketball" && s.bdl.Configured() {
		chain = append(chain, fetch.ProviderCall{
			Provider: balldontlie.Name,
			Fn: func(ctx context.Context) ([]byte, error) {
				raw, err := s.bdl.FetchGames(ctx, date)
				if err != nil {
					return nil, err
				}
				games, err := parseBDLGames(raw, sport, league)
				if err != nil {
					return nil, err
				}
				return json.Marshal(games)
			},
		})
	}

	key := cache.Key(cache.TypeSchedule, sport, date.Format("2006-01-02"))
	raw, err := s.fetcher.FetchAndCache(ctx, key, cache.TypeSchedule, sport, chain)
	if err != nil {
		s.logIngest(ctx, sport, "schedule", 0, err)
		return err
	}

	var games []models.Game
	if err := json.Unmarshal(raw, &games); err != nil {
		return fmt.Errorf("failed to decode cached schedule: %w", err)
	}

	for i := range games {
		if err := s.store.UpsertGame(ctx, &games[i]); err != nil {
			s.logIngest(ctx, sport, "schedule", i, err)
			return fmt.Errorf("failed to upsert game %s: %w", games[i].GameID, err)
		}
	}

	s.logIngest(ctx, sport, "schedule", len(games), nil)
	return nil
}

// refreshOdds pulls current odds for one sport and appends a snapshot per
// game, book, and market.
func (s *Scheduler) refreshOdds(ctx context.Context, sport string) error {
	if !s.odds.Configured() {
		s.log.WithField("sport", sport).Debug("odds provider not configured, skipping refresh")
		return nil
	}

	capturedAt := s.now().UTC()
	chain := []fetch.ProviderCall{{
		Provider: oddsapi.Name,
		Fn: func(ctx context.Context) ([]byte, error) {
			raw, err := s.odds.FetchOdds(ctx, oddsKeys[sport], "h2h,spreads,totals")
			if err != nil {
				return nil, err
			}
			snapshots, err := parseOddsAPI(raw, capturedAt)
			if err != nil {
				return nil, err
			}
			return json.Marshal(snapshots)
		},
	}}

	key := cache.Key(cache.TypeOdds, sport)
	raw, err := s.fetcher.FetchAndCache(ctx, key, cache.TypeOdds, sport, chain)
	if err != nil {
		s.logIngest(ctx, sport, "odds", 0, err)
		return err
	}

	var snapshots []models.OddsSnapshot
	if err := json.Unmarshal(raw, &snapshots); err != nil {
		return fmt.Errorf("failed to decode cached odds: %w", err)
	}

	for i := range snapshots {
		if err := s.store.InsertOddsSnapshot(ctx, &snapshots[i]); err != nil {
			s.logIngest(ctx, sport, "odds", i, err)
			return fmt.Errorf("failed to insert odds snapshot for game %s: %w", snapshots[i].GameID, err)
		}
	}

	s.logIngest(ctx, sport, "odds", len(snapshots), nil)
	return nil
}

// cleanup purges expired durable dedup records.
func (s *Scheduler) cleanup(ctx context.Context) {
	removed, err := s.dedup.Cleanup(ctx)
	if err != nil {
		s.log.WithError(err).Warn("dedup cleanup failed")
		return
	}
	if removed > 0 {
		s.log.WithField("removed", removed).Info("dedup records purged")
	}
}

// logIngest writes one ingest log row. Log failures are reported but never
// fail the refresh that produced them.
func (s *Scheduler) logIngest(ctx context.Context, sport, dataType string, count int, refreshErr error) {
	entry := &models.IngestLog{
		Source:      "scheduler:" + sport,
		DataType:    dataType,
		RecordCount: count,
		Success:     refreshErr == nil,
		CreatedAt:   s.now().UTC(),
	}
	if refreshErr != nil {
		entry.ErrorMessage = refreshErr.Error()
	}

	if err := s.store.LogIngest(ctx, entry); err != nil {
		s.log.WithError(err).Warn("failed to write ingest log")
	}
}
