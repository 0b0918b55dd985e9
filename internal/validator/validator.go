// Package validator parses and schema-checks inbound event envelopes.
//
// Each event kind has a fixed required-field schema. Validation returns
// field-path error messages and never a partially populated envelope.
package validator

import (
	"encoding/json"
	"fmt"

	"github.com/SolanaSergio/ApexBets-sub005/pkg/models"
)

// MaxPayloadBytes caps raw payload size before any parsing is attempted,
// bounding parser CPU and memory exposure.
const MaxPayloadBytes = 1 << 20

// Result is the outcome of validating one raw payload.
type Result struct {
	Valid    bool
	Errors   []string
	Envelope *models.EventEnvelope
}

// Validate parses raw into an event envelope and checks it against the
// schema for its kind. On failure the returned result carries error messages
// and a nil envelope.
func Validate(raw []byte) Result {
	if len(raw) == 0 {
		return fail("payload: empty body")
	}
	if len(raw) > MaxPayloadBytes {
		return fail(fmt.Sprintf("payload: %d bytes exceeds limit of %d", len(raw), MaxPayloadBytes))
	}

	var env models.EventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fail(fmt.Sprintf("payload: invalid JSON: %v", err))
	}

	return ValidateEnvelope(&env)
}

// ValidateEnvelope schema-checks an already parsed envelope, decoding its
// kind-specific data payload. Batch elements are not validated here; each
// element is validated independently during processing so one malformed item
// cannot reject its siblings.
func ValidateEnvelope(env *models.EventEnvelope) Result {
	if env.Kind == "" {
		return fail("kind: required")
	}
	if !env.Kind.Valid() {
		return fail(fmt.Sprintf("kind: unrecognized event kind %q", env.Kind))
	}
	if len(env.Data) == 0 {
		return fail("data: required")
	}

	var errs []string
	switch env.Kind {
	case models.KindGameUpdate:
		errs = decodeGameUpdate(env)
	case models.KindScoreUpdate:
		errs = decodeScoreUpdate(env)
	case models.KindOddsUpdate:
		errs = decodeOddsUpdate(env)
	case models.KindTeamUpdate:
		errs = decodeTeamUpdate(env)
	case models.KindPlayerUpdate:
		errs = decodePlayerUpdate(env)
	case models.KindResync:
		errs = decodeResync(env)
	case models.KindBatch:
		errs = decodeBatch(env)
	}

	if len(errs) > 0 {
		return Result{Valid: false, Errors: errs}
	}

	return Result{Valid: true, Envelope: env}
}

func decodeGameUpdate(env *models.EventEnvelope) []string {
	var payload models.GameUpdate
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return []string{fmt.Sprintf("data: %v", err)}
	}

	var errs []string
	if payload.GameID == "" {
		errs = append(errs, "data.game_id: required")
	}
	if payload.Status == "" {
		errs = append(errs, "data.status: required")
	} else if !payload.Status.Valid() {
		errs = append(errs, fmt.Sprintf("data.status: %q is not a recognized game status", payload.Status))
	}

	if len(errs) > 0 {
		return errs
	}
	env.Game = &payload
	return nil
}

func decodeScoreUpdate(env *models.EventEnvelope) []string {
	var payload models.ScoreUpdate
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return []string{fmt.Sprintf("data: %v", err)}
	}

	var errs []string
	if payload.GameID == "" {
		errs = append(errs, "data.game_id: required")
	}
	if payload.HomeScore == nil {
		errs = append(errs, "data.home_score: required")
	}
	if payload.AwayScore == nil {
		errs = append(errs, "data.away_score: required")
	}

	if len(errs) > 0 {
		return errs
	}
	env.Score = &payload
	return nil
}

func decodeOddsUpdate(env *models.EventEnvelope) []string {
	var payload models.OddsUpdate
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return []string{fmt.Sprintf("data: %v", err)}
	}

	var errs []string
	if payload.GameID == "" {
		errs = append(errs, "data.game_id: required")
	}
	if payload.BetType == "" {
		errs = append(errs, "data.bet_type: required")
	} else if !payload.BetType.Valid() {
		errs = append(errs, fmt.Sprintf("data.bet_type: %q is not a recognized bet type", payload.BetType))
	}
	if payload.HomeOdds == nil && payload.AwayOdds == nil && payload.Spread == nil && payload.Total == nil {
		errs = append(errs, "data: at least one of home_odds, away_odds, spread, total is required")
	}

	if len(errs) > 0 {
		return errs
	}
	env.Odds = &payload
	return nil
}

func decodeTeamUpdate(env *models.EventEnvelope) []string {
	var payload models.TeamUpdate
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return []string{fmt.Sprintf("data: %v", err)}
	}

	if payload.Abbreviation == "" {
		return []string{"data.abbreviation: required"}
	}
	// Standings data is all-or-nothing.
	if (payload.Wins == nil) != (payload.Losses == nil) {
		return []string{"data: wins and losses must be provided together"}
	}

	env.Team = &payload
	return nil
}

func decodePlayerUpdate(env *models.EventEnvelope) []string {
	var payload models.PlayerUpdate
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return []string{fmt.Sprintf("data: %v", err)}
	}

	var errs []string
	if payload.PlayerName == "" {
		errs = append(errs, "data.player_name: required")
	}
	if payload.TeamAbbreviation == "" {
		errs = append(errs, "data.team_abbreviation: required")
	}

	if len(errs) > 0 {
		return errs
	}
	env.Player = &payload
	return nil
}

func decodeResync(env *models.EventEnvelope) []string {
	var payload models.ResyncEvent
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return []string{fmt.Sprintf("data: %v", err)}
	}

	if payload.Sport == "" {
		return []string{"data.sport: required"}
	}

	env.Resync = &payload
	return nil
}

func decodeBatch(env *models.EventEnvelope) []string {
	var payload models.BatchEvent
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return []string{fmt.Sprintf("data: %v", err)}
	}

	if len(payload.Events) == 0 {
		return []string{"data.events: at least one event is required"}
	}

	env.Batch = &payload
	return nil
}

func fail(errs ...string) Result {
	return Result{Valid: false, Errors: errs}
}
