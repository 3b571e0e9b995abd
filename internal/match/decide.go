package match

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/louisbranch/rivalry.club/internal/command"
	"github.com/louisbranch/rivalry.club/internal/event"
	"github.com/louisbranch/rivalry.club/internal/rating/elo"
)

// Match command types.
const (
	CommandTypeCreate       command.Type = "match.create"
	CommandTypeJoin         command.Type = "match.join"
	CommandTypeConfirm      command.Type = "match.confirm"
	CommandTypeComplete     command.Type = "match.complete"
	CommandTypeCompleteTeam command.Type = "match.complete_team"
	CommandTypeCompleteFfa  command.Type = "match.complete_ffa"
	CommandTypeLeave        command.Type = "match.leave"
	CommandTypeSwitchTeam   command.Type = "match.switch_team"
	CommandTypeChangeFormat command.Type = "match.change_format"
	CommandTypeCancel       command.Type = "match.cancel"
)

// Rejection codes returned by Decide.
const (
	RejectionCodeMatchAlreadyExists    = "MATCH_ALREADY_EXISTS"
	RejectionCodeMatchNotFound         = "MATCH_NOT_FOUND"
	RejectionCodeMatchNotPending       = "MATCH_NOT_PENDING"
	RejectionCodeMatchNotConfirmed     = "MATCH_NOT_CONFIRMED"
	RejectionCodeMatchFull             = "MATCH_FULL"
	RejectionCodeMatchNotEnoughPlayers = "MATCH_NOT_ENOUGH_PLAYERS"
	RejectionCodeMatchFinished         = "MATCH_FINISHED"
	RejectionCodePlayerAlreadyInMatch  = "PLAYER_ALREADY_IN_MATCH"
	RejectionCodePlayerNotInMatch      = "PLAYER_NOT_IN_MATCH"
	RejectionCodeCreatorCannotLeave    = "CREATOR_CANNOT_LEAVE"
	RejectionCodeInvalidWinner         = "INVALID_WINNER"
	RejectionCodeFormatInvalid         = "MATCH_FORMAT_INVALID"
	RejectionCodeFormatNotTeam         = "MATCH_FORMAT_NOT_TEAM"
	RejectionCodeFormatNotFfa          = "MATCH_FORMAT_NOT_FFA"
	RejectionCodeTeamFull              = "TEAM_FULL"
	RejectionCodeTooManyPlayers        = "MATCH_TOO_MANY_PLAYERS"
)

// CreateInput is the payload for CommandTypeCreate.
type CreateInput struct {
	GameID          int64   `json:"gameId"`
	MatchCode       string  `json:"matchCode"`
	CreatedByUserID int64   `json:"createdByUserId"`
	MatchType       string  `json:"matchType"`
	Name            *string `json:"name"`
	ScheduledAt     *string `json:"scheduledAt"`
	ShareToken      *string `json:"shareToken"`
	MatchFormat     string  `json:"matchFormat"`
	MaxPlayers      int     `json:"maxPlayers"`
}

// JoinInput is the payload for CommandTypeJoin. Team is only honored for
// team formats; when nil the decider assigns a side.
type JoinInput struct {
	UserID       int64   `json:"userId"`
	RatingBefore int     `json:"ratingBefore"`
	Team         *string `json:"team"`
}

// PlayerStats carries per-player experience used by completion commands.
type PlayerStats struct {
	MatchesPlayed int `json:"matchesPlayed"`
	WinStreak     int `json:"winStreak"`
}

// CompleteInput is the payload for CommandTypeComplete (head-to-head).
type CompleteInput struct {
	WinnerID            int64 `json:"winnerId"`
	WinnerMatchesPlayed int   `json:"winnerMatchesPlayed"`
	LoserMatchesPlayed  int   `json:"loserMatchesPlayed"`
	LoserWinStreak      int   `json:"loserWinStreak"`
	StreakBonusEnabled  bool  `json:"streakBonusEnabled"`
}

// CompleteTeamInput is the payload for CommandTypeCompleteTeam.
type CompleteTeamInput struct {
	WinningTeam        string                `json:"winningTeam"`
	PlayerStats        map[int64]PlayerStats `json:"playerStats"`
	StreakBonusEnabled bool                  `json:"streakBonusEnabled"`
}

// CompleteFfaInput is the payload for CommandTypeCompleteFfa. Placements maps
// user ID to finishing position (1 = first); missing players default to last.
type CompleteFfaInput struct {
	Placements  map[int64]int         `json:"placements"`
	PlayerStats map[int64]PlayerStats `json:"playerStats"`
}

// LeaveInput is the payload for CommandTypeLeave.
type LeaveInput struct {
	UserID int64 `json:"userId"`
}

// SwitchTeamInput is the payload for CommandTypeSwitchTeam.
type SwitchTeamInput struct {
	UserID int64 `json:"userId"`
}

// ChangeFormatInput is the payload for CommandTypeChangeFormat.
type ChangeFormatInput struct {
	NewFormat     string `json:"newFormat"`
	NewMaxPlayers int    `json:"newMaxPlayers"`
}

// CancelInput is the payload for CommandTypeCancel.
type CancelInput struct {
	Reason *string `json:"reason"`
}

// Decide evaluates a match command against replayed state and returns the
// events to append or the rejections that declined it. Decide never touches
// storage; every input it needs arrives in the command payload.
func Decide(state State, cmd command.Command) command.Decision {
	if cmd.Type == CommandTypeCreate {
		return decideCreate(state, cmd)
	}

	if !state.Created {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeMatchNotFound,
			Message: "match does not exist",
		})
	}

	switch cmd.Type {
	case CommandTypeJoin:
		return decideJoin(state, cmd)
	case CommandTypeConfirm:
		return decideConfirm(state, cmd)
	case CommandTypeComplete:
		return decideComplete(state, cmd)
	case CommandTypeCompleteTeam:
		return decideCompleteTeam(state, cmd)
	case CommandTypeCompleteFfa:
		return decideCompleteFfa(state, cmd)
	case CommandTypeLeave:
		return decideLeave(state, cmd)
	case CommandTypeSwitchTeam:
		return decideSwitchTeam(state, cmd)
	case CommandTypeChangeFormat:
		return decideChangeFormat(state, cmd)
	case CommandTypeCancel:
		return decideCancel(state, cmd)
	}

	return command.Reject(command.Rejection{
		Code:    "COMMAND_UNKNOWN",
		Message: fmt.Sprintf("unknown match command %q", cmd.Type),
	})
}

func decideCreate(state State, cmd command.Command) command.Decision {
	if state.Created {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeMatchAlreadyExists,
			Message: "match already exists",
		})
	}
	var input CreateInput
	_ = json.Unmarshal(cmd.PayloadJSON, &input)
	format := Format(input.MatchFormat)
	if !format.IsValid() {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeFormatInvalid,
			Message: fmt.Sprintf("unknown match format %q", input.MatchFormat),
		})
	}
	maxPlayers := input.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = format.DefaultMaxPlayers()
	}

	payloadJSON, _ := json.Marshal(event.MatchCreatedPayload{
		MatchUUID:       cmd.AggregateUUID,
		GameID:          input.GameID,
		MatchCode:       input.MatchCode,
		CreatedByUserID: input.CreatedByUserID,
		MatchType:       input.MatchType,
		Name:            input.Name,
		ScheduledAt:     input.ScheduledAt,
		ShareToken:      input.ShareToken,
		MatchFormat:     string(format),
		MaxPlayers:      maxPlayers,
	})
	return command.Accept(command.NewEvent(cmd, event.TypeMatchCreated, payloadJSON))
}

func decideJoin(state State, cmd command.Command) command.Decision {
	if state.Status != StatusPending {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeMatchNotPending,
			Message: "cannot add player to non-pending match",
		})
	}
	if len(state.Players) >= state.MaxPlayers {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeMatchFull,
			Message: "match already has maximum players",
		})
	}
	var input JoinInput
	_ = json.Unmarshal(cmd.PayloadJSON, &input)
	if _, ok := state.PlayerByID(input.UserID); ok {
		return command.Reject(command.Rejection{
			Code:    RejectionCodePlayerAlreadyInMatch,
			Message: "player already in match",
		})
	}

	team := input.Team
	if state.Format.IsTeam() && team == nil {
		// Fill team A first; ties go to team A.
		assigned := TeamB
		if state.TeamCount(TeamA) < state.Format.PlayersPerTeam() {
			assigned = TeamA
		}
		team = &assigned
	}

	payloadJSON, _ := json.Marshal(event.PlayerJoinedPayload{
		MatchUUID:    cmd.AggregateUUID,
		UserID:       input.UserID,
		RatingBefore: input.RatingBefore,
		Team:         team,
	})
	return command.Accept(command.NewEvent(cmd, event.TypePlayerJoined, payloadJSON))
}

func decideConfirm(state State, cmd command.Command) command.Decision {
	if state.Status != StatusPending {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeMatchNotPending,
			Message: "match is not pending",
		})
	}
	if minPlayers := state.ConfirmMinPlayers(); len(state.Players) < minPlayers {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeMatchNotEnoughPlayers,
			Message: fmt.Sprintf("match needs at least %d players to confirm", minPlayers),
		})
	}

	payloadJSON, _ := json.Marshal(event.MatchConfirmedPayload{MatchUUID: cmd.AggregateUUID})
	return command.Accept(command.NewEvent(cmd, event.TypeMatchConfirmed, payloadJSON))
}

func decideComplete(state State, cmd command.Command) command.Decision {
	if state.Status != StatusConfirmed {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeMatchNotConfirmed,
			Message: "match must be confirmed to complete",
		})
	}
	var input CompleteInput
	_ = json.Unmarshal(cmd.PayloadJSON, &input)

	winner, ok := state.PlayerByID(input.WinnerID)
	var loser Player
	loserFound := false
	for _, p := range state.Players {
		if p.UserID != input.WinnerID {
			loser = p
			loserFound = true
			break
		}
	}
	if !ok || !loserFound {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeInvalidWinner,
			Message: "invalid winner id",
		})
	}

	changes := elo.MatchDeltas(
		winner.RatingBefore,
		loser.RatingBefore,
		elo.KFactorForExperience(input.WinnerMatchesPlayed),
		elo.KFactorForExperience(input.LoserMatchesPlayed),
		input.LoserWinStreak,
		input.StreakBonusEnabled,
	)

	payloadJSON, _ := json.Marshal(event.MatchCompletedPayload{
		MatchUUID:          cmd.AggregateUUID,
		WinnerID:           winner.UserID,
		LoserID:            loser.UserID,
		WinnerRatingBefore: winner.RatingBefore,
		LoserRatingBefore:  loser.RatingBefore,
		WinnerRatingChange: changes.Winner,
		LoserRatingChange:  changes.Loser,
	})
	return command.Accept(command.NewEvent(cmd, event.TypeMatchCompleted, payloadJSON))
}

func decideCompleteTeam(state State, cmd command.Command) command.Decision {
	if state.Status != StatusConfirmed {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeMatchNotConfirmed,
			Message: "match must be confirmed to complete",
		})
	}
	if !state.Format.IsTeam() {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeFormatNotTeam,
			Message: "results by winning team require a team format",
		})
	}
	var input CompleteTeamInput
	_ = json.Unmarshal(cmd.PayloadJSON, &input)

	teamARating := teamAverageRating(state.Players, TeamA)
	teamBRating := teamAverageRating(state.Players, TeamB)

	winnerRating, loserRating := teamARating, teamBRating
	losingTeam := TeamB
	if input.WinningTeam != TeamA {
		winnerRating, loserRating = teamBRating, teamARating
		losingTeam = TeamA
	}

	// The streak bonus keys off the strongest streak on the losing side.
	maxLoserStreak := 0
	for _, p := range state.Players {
		if p.Team != losingTeam {
			continue
		}
		if streak := input.PlayerStats[p.UserID].WinStreak; streak > maxLoserStreak {
			maxLoserStreak = streak
		}
	}

	changes := elo.MatchDeltas(
		winnerRating,
		loserRating,
		elo.DefaultKFactor,
		elo.DefaultKFactor,
		maxLoserStreak,
		input.StreakBonusEnabled,
	)

	results := make([]event.PlayerResult, 0, len(state.Players))
	for _, p := range state.Players {
		team := p.Team
		result := "lose"
		change := changes.Loser
		if p.Team == input.WinningTeam {
			result = "win"
			change = changes.Winner
		}
		results = append(results, event.PlayerResult{
			UserID:       p.UserID,
			Result:       result,
			RatingBefore: p.RatingBefore,
			RatingChange: change,
			Team:         &team,
		})
	}

	winningTeam := input.WinningTeam
	payloadJSON, _ := json.Marshal(event.MatchResultsRecordedPayload{
		MatchUUID:     cmd.AggregateUUID,
		MatchFormat:   string(state.Format),
		PlayerResults: results,
		WinningTeam:   &winningTeam,
	})
	return command.Accept(command.NewEvent(cmd, event.TypeMatchResultsRecorded, payloadJSON))
}

func decideCompleteFfa(state State, cmd command.Command) command.Decision {
	if state.Status != StatusConfirmed {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeMatchNotConfirmed,
			Message: "match must be confirmed to complete",
		})
	}
	if state.Format != FormatFFA {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeFormatNotFfa,
			Message: "results by placement require the free-for-all format",
		})
	}
	var input CompleteFfaInput
	_ = json.Unmarshal(cmd.PayloadJSON, &input)

	playerCount := len(state.Players)
	results := make([]event.PlayerResult, 0, playerCount)
	for _, p := range state.Players {
		placement, ok := input.Placements[p.UserID]
		if !ok {
			placement = playerCount
		}
		kFactor := elo.KFactorForExperience(input.PlayerStats[p.UserID].MatchesPlayed)
		change := elo.PlacementDelta(placement, playerCount, kFactor)

		result := "draw"
		switch {
		case placement == 1:
			result = "win"
		case placement == playerCount:
			result = "lose"
		}

		placementCopy := placement
		results = append(results, event.PlayerResult{
			UserID:       p.UserID,
			Result:       result,
			Placement:    &placementCopy,
			RatingBefore: p.RatingBefore,
			RatingChange: change,
		})
	}

	payloadJSON, _ := json.Marshal(event.MatchResultsRecordedPayload{
		MatchUUID:     cmd.AggregateUUID,
		MatchFormat:   string(state.Format),
		PlayerResults: results,
	})
	return command.Accept(command.NewEvent(cmd, event.TypeMatchResultsRecorded, payloadJSON))
}

func decideLeave(state State, cmd command.Command) command.Decision {
	if state.Status != StatusPending {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeMatchNotPending,
			Message: "cannot leave a match that is not pending",
		})
	}
	var input LeaveInput
	_ = json.Unmarshal(cmd.PayloadJSON, &input)
	if _, ok := state.PlayerByID(input.UserID); !ok {
		return command.Reject(command.Rejection{
			Code:    RejectionCodePlayerNotInMatch,
			Message: "player is not in this match",
		})
	}
	if input.UserID == state.CreatedByUserID {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeCreatorCannotLeave,
			Message: "match creator cannot leave; cancel the match instead",
		})
	}

	payloadJSON, _ := json.Marshal(event.PlayerLeftPayload{
		MatchUUID: cmd.AggregateUUID,
		UserID:    input.UserID,
	})
	return command.Accept(command.NewEvent(cmd, event.TypePlayerLeft, payloadJSON))
}

func decideSwitchTeam(state State, cmd command.Command) command.Decision {
	if state.Status != StatusPending {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeMatchNotPending,
			Message: "cannot switch teams in a non-pending match",
		})
	}
	if !state.Format.IsTeam() {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeFormatNotTeam,
			Message: "cannot switch teams in a non-team match",
		})
	}
	var input SwitchTeamInput
	_ = json.Unmarshal(cmd.PayloadJSON, &input)
	player, ok := state.PlayerByID(input.UserID)
	if !ok {
		return command.Reject(command.Rejection{
			Code:    RejectionCodePlayerNotInMatch,
			Message: "player is not in this match",
		})
	}

	newTeam := TeamA
	if player.Team == TeamA {
		newTeam = TeamB
	}
	if state.TeamCount(newTeam) >= state.Format.PlayersPerTeam() {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeTeamFull,
			Message: "target team is already full",
		})
	}

	payloadJSON, _ := json.Marshal(event.PlayerSwitchedTeamPayload{
		MatchUUID: cmd.AggregateUUID,
		UserID:    input.UserID,
		NewTeam:   newTeam,
	})
	return command.Accept(command.NewEvent(cmd, event.TypePlayerSwitchedTeam, payloadJSON))
}

func decideChangeFormat(state State, cmd command.Command) command.Decision {
	if state.Status != StatusPending {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeMatchNotPending,
			Message: "cannot change format of a non-pending match",
		})
	}
	var input ChangeFormatInput
	_ = json.Unmarshal(cmd.PayloadJSON, &input)
	format := Format(input.NewFormat)
	if !format.IsValid() {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeFormatInvalid,
			Message: fmt.Sprintf("unknown match format %q", input.NewFormat),
		})
	}
	newMaxPlayers := input.NewMaxPlayers
	if newMaxPlayers <= 0 {
		newMaxPlayers = format.DefaultMaxPlayers()
	}
	if len(state.Players) > newMaxPlayers {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeTooManyPlayers,
			Message: "too many players for the new format; remove players first",
		})
	}

	payloadJSON, _ := json.Marshal(event.MatchFormatChangedPayload{
		MatchUUID:     cmd.AggregateUUID,
		NewFormat:     string(format),
		NewMaxPlayers: newMaxPlayers,
	})
	return command.Accept(command.NewEvent(cmd, event.TypeMatchFormatChanged, payloadJSON))
}

func decideCancel(state State, cmd command.Command) command.Decision {
	if state.Status == StatusCompleted || state.Status == StatusCancelled {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeMatchFinished,
			Message: "cannot cancel completed or already cancelled match",
		})
	}
	var input CancelInput
	_ = json.Unmarshal(cmd.PayloadJSON, &input)

	payloadJSON, _ := json.Marshal(event.MatchCancelledPayload{
		MatchUUID: cmd.AggregateUUID,
		Reason:    input.Reason,
	})
	return command.Accept(command.NewEvent(cmd, event.TypeMatchCancelled, payloadJSON))
}

func teamAverageRating(players []Player, team string) int {
	sum, n := 0, 0
	for _, p := range players {
		if p.Team == team {
			sum += p.RatingBefore
			n++
		}
	}
	if n == 0 {
		return elo.DefaultRating
	}
	return int(math.Round(float64(sum) / float64(n)))
}
