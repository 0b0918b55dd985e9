package scheduler

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SolanaSergio/ApexBets-sub005/pkg/models"
)

// Provider responses are deeply nested; only the fields the store keeps
// are decoded here. Each parser returns normalized records so the cache
// holds one shape per data type regardless of which provider produced it.

type espnScoreboard struct {
	Events []struct {
		ID           string `json:"id"`
		Date         string `json:"date"`
		Competitions []struct {
			Venue struct {
				FullName string `json:"fullName"`
			} `json:"venue"`
			Status struct {
				Period int `json:"period"`
				Type   struct {
					State string `json:"state"`
				} `json:"type"`
			} `json:"status"`
			Competitors []struct {
				HomeAway string `json:"homeAway"`
				Score    string `json:"score"`
				Team     struct {
					Abbreviation string `json:"abbreviation"`
					DisplayName  string `json:"displayName"`
				} `json:"team"`
			} `json:"competitors"`
		} `json:"competitions"`
	} `json:"events"`
}

// espnStatus maps ESPN's state field onto stored game statuses.
func espnStatus(state string) models.GameStatus {
	switch state {
	case "pre":
		return models.StatusScheduled
	case "in":
		return models.StatusLive
	case "post":
		return models.StatusFinished
	default:
		return models.StatusScheduled
	}
}

func parseESPNScoreboard(raw []byte, sport, league string) ([]models.Game, error) {
	var board espnScoreboard
	if err := json.Unmarshal(raw, &board); err != nil {
		return nil, fmt.Errorf("failed to decode espn scoreboard: %w", err)
	}

	games := make([]models.Game, 0, len(board.Events))
	for _, event := range board.Events {
		if len(event.Competitions) == 0 {
			continue
		}
		comp := event.Competitions[0]

		game := models.Game{
			GameID:   event.ID,
			Sport:    sport,
			League:   league,
			Status:   espnStatus(comp.Status.Type.State),
			GameDate: event.Date,
		}
		if comp.Venue.FullName != "" {
			venue := comp.Venue.FullName
			game.Venue = &venue
		}
		if comp.Status.Period > 0 {
			period := strconv.Itoa(comp.Status.Period)
			game.Period = &period
		}

		for _, competitor := range comp.Competitors {
			score, scoreErr := strconv.Atoi(competitor.Score)
			switch competitor.HomeAway {
			case "home":
				game.HomeTeam = competitor.Team.Abbreviation
				if scoreErr == nil {
					game.HomeScore = &score
				}
			case "away":
				game.AwayTeam = competitor.Team.Abbreviation
				if scoreErr == nil {
					game.AwayScore = &score
				}
			}
		}

		games = append(games, game)
	}

	return games, nil
}

type espnTeamList struct {
	Sports []struct {
		Leagues []struct {
			Teams []struct {
				Team struct {
					Abbreviation string `json:"abbreviation"`
					DisplayName  string `json:"displayName"`
					Location     string `json:"location"`
				} `json:"team"`
			} `json:"teams"`
		} `json:"leagues"`
	} `json:"sports"`
}

func parseESPNTeams(raw []byte, sport, league string) ([]models.Team, error) {
	var list espnTeamList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to decode espn team list: %w", err)
	}

	var teams []models.Team
	for _, s := range list.Sports {
		for _, l := range s.Leagues {
			for _, entry := range l.Teams {
				if entry.Team.Abbreviation == "" {
					continue
				}
				teams = append(teams, models.Team{
					Abbreviation: entry.Team.Abbreviation,
					Name:         entry.Team.DisplayName,
					City:         entry.Team.Location,
					League:       league,
					Sport:        sport,
				})
			}
		}
	}

	return teams, nil
}

type oddsAPIEvent struct {
	ID         string `json:"id"`
	HomeTeam   string `json:"home_team"`
	AwayTeam   string `json:"away_team"`
	Bookmakers []struct {
		Key     string `json:"key"`
		Markets []struct {
			Key        string    `json:"key"`
			LastUpdate time.Time `json:"last_update"`
			Outcomes   []struct {
				Name  string   `json:"name"`
				Price float64  `json:"price"`
				Point *float64 `json:"point"`
			} `json:"outcomes"`
		} `json:"markets"`
	} `json:"bookmakers"`
}

// parseOddsAPI flattens The Odds API's event/bookmaker/market nesting into
// one snapshot per game, book, and bet type.
func parseOddsAPI(raw []byte, capturedAt time.Time) ([]models.OddsSnapshot, error) {
	var events []oddsAPIEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("failed to decode odds response: %w", err)
	}

	var snapshots []models.OddsSnapshot
	for _, event := range events {
		for _, book := range event.Bookmakers {
			for _, market := range book.Markets {
				snap := models.OddsSnapshot{
					GameID:     event.ID,
					Book:       book.Key,
					CapturedAt: capturedAt,
				}
				if !market.LastUpdate.IsZero() {
					snap.CapturedAt = market.LastUpdate
				}

				switch market.Key {
				case "h2h":
					snap.BetType = models.BetMoneyline
					for _, outcome := range market.Outcomes {
						price := outcome.Price
						if outcome.Name == event.HomeTeam {
							snap.HomeOdds = &price
						} else if outcome.Name == event.AwayTeam {
							snap.AwayOdds = &price
						}
					}
				case "spreads":
					snap.BetType = models.BetSpread
					for _, outcome := range market.Outcomes {
						if outcome.Name == event.HomeTeam && outcome.Point != nil {
							snap.Spread = outcome.Point
						}
					}
				case "totals":
					snap.BetType = models.BetTotal
					for _, outcome := range market.Outcomes {
						if strings.EqualFold(outcome.Name, "over") && outcome.Point != nil {
							snap.Total = outcome.Point
						}
					}
				default:
					continue
				}

				if snap.HomeOdds == nil && snap.AwayOdds == nil && snap.Spread == nil && snap.Total == nil {
					continue
				}
				snapshots = append(snapshots, snap)
			}
		}
	}

	return snapshots, nil
}

type bdlTeam struct {
	Abbreviation string `json:"abbreviation"`
	FullName     string `json:"full_name"`
	City         string `json:"city"`
}

type bdlGameList struct {
	Data []struct {
		ID               int     `json:"id"`
		Date             string  `json:"date"`
		Status           string  `json:"status"`
		Period           int     `json:"period"`
		HomeTeam         bdlTeam `json:"home_team"`
		HomeTeamScore    int     `json:"home_team_score"`
		VisitorTeam      bdlTeam `json:"visitor_team"`
		VisitorTeamScore int     `json:"visitor_team_score"`
	} `json:"data"`
}

// bdlStatus maps balldontlie's free-form status strings. Anything that is
// not final or an upcoming tip-off time is treated as in progress.
func bdlStatus(status string) models.GameStatus {
	switch {
	case strings.EqualFold(status, "final"):
		return models.StatusFinished
	case strings.Contains(status, "T") && strings.Contains(status, "Z"):
		return models.StatusScheduled
	default:
		return models.StatusLive
	}
}

func parseBDLGames(raw []byte, sport, league string) ([]models.Game, error) {
	var list bdlGameList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to decode balldontlie games: %w", err)
	}

	games := make([]models.Game, 0, len(list.Data))
	for _, entry := range list.Data {
		homeScore, awayScore := entry.HomeTeamScore, entry.VisitorTeamScore
		game := models.Game{
			GameID:    strconv.Itoa(entry.ID),
			Sport:     sport,
			League:    league,
			HomeTeam:  entry.HomeTeam.Abbreviation,
			AwayTeam:  entry.VisitorTeam.Abbreviation,
			Status:    bdlStatus(entry.Status),
			HomeScore: &homeScore,
			AwayScore: &awayScore,
			GameDate:  entry.Date,
		}
		if entry.Period > 0 {
			period := strconv.Itoa(entry.Period)
			game.Period = &period
		}
		games = append(games, game)
	}

	return games, nil
}

type bdlTeamList struct {
	Data []bdlTeam `json:"data"`
}

func parseBDLTeams(raw []byte, sport, league string) ([]models.Team, error) {
	var list bdlTeamList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to decode balldontlie teams: %w", err)
	}

	teams := make([]models.Team, 0, len(list.Data))
	for _, entry := range list.Data {
		if entry.Abbreviation == "" {
			continue
		}
		teams = append(teams, models.Team{
			Abbreviation: entry.Abbreviation,
			Name:         entry.FullName,
			City:         entry.City,
			League:       league,
			Sport:        sport,
		})
	}

	return teams, nil
}
