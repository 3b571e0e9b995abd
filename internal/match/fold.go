package match

import (
	"encoding/json"

	"github.com/louisbranch/rivalry.club/internal/event"
)

// Fold applies an event to match state. Events that do not belong to the
// match aggregate, and malformed payloads, leave the state unchanged where
// possible; replay determinism depends on this function staying pure.
func Fold(state State, evt event.Event) State {
	switch evt.Type {
	case event.TypeMatchCreated:
		var payload event.MatchCreatedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Created = true
		state.Status = StatusPending
		state.CreatedByUserID = payload.CreatedByUserID
		state.Format = Format(payload.MatchFormat)
		state.MaxPlayers = payload.MaxPlayers

	case event.TypePlayerJoined:
		var payload event.PlayerJoinedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		team := ""
		if payload.Team != nil {
			team = *payload.Team
		}
		state.Players = append(state.Players, Player{
			UserID:       payload.UserID,
			RatingBefore: payload.RatingBefore,
			Team:         team,
		})

	case event.TypeMatchConfirmed:
		state.Status = StatusConfirmed

	case event.TypeMatchCompleted, event.TypeMatchResultsRecorded:
		state.Status = StatusCompleted

	case event.TypeMatchCancelled:
		state.Status = StatusCancelled

	case event.TypePlayerLeft:
		var payload event.PlayerLeftPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		players := make([]Player, 0, len(state.Players))
		for _, p := range state.Players {
			if p.UserID != payload.UserID {
				players = append(players, p)
			}
		}
		state.Players = players

	case event.TypePlayerSwitchedTeam:
		var payload event.PlayerSwitchedTeamPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		for i := range state.Players {
			if state.Players[i].UserID == payload.UserID {
				state.Players[i].Team = payload.NewTeam
			}
		}

	case event.TypeMatchFormatChanged:
		var payload event.MatchFormatChangedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		wasTeam := state.Format.IsTeam()
		state.Format = Format(payload.NewFormat)
		state.MaxPlayers = payload.NewMaxPlayers

		switch {
		case state.Format.IsTeam() && !wasTeam:
			// Entering a team format assigns teams alternately by join
			// order so both sides start even.
			for i := range state.Players {
				if i%2 == 0 {
					state.Players[i].Team = TeamA
				} else {
					state.Players[i].Team = TeamB
				}
			}
		case !state.Format.IsTeam():
			for i := range state.Players {
				state.Players[i].Team = ""
			}
		}
	}

	return state
}

// Replay folds events in order from the zero state.
func Replay(events []event.Event) State {
	var state State
	for _, evt := range events {
		state = Fold(state, evt)
	}
	return state
}
