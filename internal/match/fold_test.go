package match

import (
	"encoding/json"
	"testing"

	"github.com/louisbranch/rivalry.club/internal/event"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func createdEvent(t *testing.T, format string, maxPlayers int, creator int64) event.Event {
	t.Helper()
	return event.Event{
		AggregateUUID: "match-1",
		Type:          event.TypeMatchCreated,
		PayloadJSON: mustJSON(t, event.MatchCreatedPayload{
			MatchUUID:       "match-1",
			GameID:          1,
			MatchCode:       "ABC123",
			CreatedByUserID: creator,
			MatchType:       "quick",
			MatchFormat:     format,
			MaxPlayers:      maxPlayers,
		}),
	}
}

func joinedEvent(t *testing.T, userID int64, rating int, team string) event.Event {
	t.Helper()
	var teamPtr *string
	if team != "" {
		teamPtr = &team
	}
	return event.Event{
		AggregateUUID: "match-1",
		Type:          event.TypePlayerJoined,
		PayloadJSON: mustJSON(t, event.PlayerJoinedPayload{
			MatchUUID:    "match-1",
			UserID:       userID,
			RatingBefore: rating,
			Team:         teamPtr,
		}),
	}
}

func TestFoldMatchCreated(t *testing.T) {
	state := Fold(State{}, createdEvent(t, "2v2", 4, 7))

	if !state.Created {
		t.Fatal("state.Created = false, want true")
	}
	if state.Status != StatusPending {
		t.Fatalf("status = %q, want %q", state.Status, StatusPending)
	}
	if state.CreatedByUserID != 7 {
		t.Fatalf("creator = %d, want 7", state.CreatedByUserID)
	}
	if state.Format != Format2v2 {
		t.Fatalf("format = %q, want 2v2", state.Format)
	}
	if state.MaxPlayers != 4 {
		t.Fatalf("maxPlayers = %d, want 4", state.MaxPlayers)
	}
}

func TestFoldPlayerJoinedAndLeft(t *testing.T) {
	state := Replay([]event.Event{
		createdEvent(t, "ffa", 8, 1),
		joinedEvent(t, 1, 1000, ""),
		joinedEvent(t, 2, 1100, ""),
		joinedEvent(t, 3, 900, ""),
	})

	if len(state.Players) != 3 {
		t.Fatalf("players = %d, want 3", len(state.Players))
	}

	state = Fold(state, event.Event{
		Type:        event.TypePlayerLeft,
		PayloadJSON: mustJSON(t, event.PlayerLeftPayload{MatchUUID: "match-1", UserID: 2}),
	})

	if len(state.Players) != 2 {
		t.Fatalf("players after leave = %d, want 2", len(state.Players))
	}
	if state.Players[0].UserID != 1 || state.Players[1].UserID != 3 {
		t.Fatalf("join order not preserved: %+v", state.Players)
	}
}

func TestFoldStatusTransitions(t *testing.T) {
	tests := []struct {
		name      string
		eventType event.Type
		want      Status
	}{
		{"confirmed", event.TypeMatchConfirmed, StatusConfirmed},
		{"completed", event.TypeMatchCompleted, StatusCompleted},
		{"results recorded", event.TypeMatchResultsRecorded, StatusCompleted},
		{"cancelled", event.TypeMatchCancelled, StatusCancelled},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			state := Fold(State{}, createdEvent(t, "1v1", 2, 1))
			state = Fold(state, event.Event{Type: tc.eventType, PayloadJSON: []byte(`{}`)})
			if state.Status != tc.want {
				t.Fatalf("status = %q, want %q", state.Status, tc.want)
			}
		})
	}
}

func TestFoldPlayerSwitchedTeam(t *testing.T) {
	state := Replay([]event.Event{
		createdEvent(t, "2v2", 4, 1),
		joinedEvent(t, 1, 1000, TeamA),
		joinedEvent(t, 2, 1000, TeamB),
	})

	state = Fold(state, event.Event{
		Type: event.TypePlayerSwitchedTeam,
		PayloadJSON: mustJSON(t, event.PlayerSwitchedTeamPayload{
			MatchUUID: "match-1", UserID: 2, NewTeam: TeamA,
		}),
	})

	player, ok := state.PlayerByID(2)
	if !ok {
		t.Fatal("player 2 missing after switch")
	}
	if player.Team != TeamA {
		t.Fatalf("team = %q, want %q", player.Team, TeamA)
	}
}

func TestFoldFormatChangedIntoTeamFormatAlternatesTeams(t *testing.T) {
	state := Replay([]event.Event{
		createdEvent(t, "ffa", 8, 1),
		joinedEvent(t, 1, 1000, ""),
		joinedEvent(t, 2, 1000, ""),
		joinedEvent(t, 3, 1000, ""),
		joinedEvent(t, 4, 1000, ""),
	})

	state = Fold(state, event.Event{
		Type: event.TypeMatchFormatChanged,
		PayloadJSON: mustJSON(t, event.MatchFormatChangedPayload{
			MatchUUID: "match-1", NewFormat: "2v2", NewMaxPlayers: 4,
		}),
	})

	if state.Format != Format2v2 {
		t.Fatalf("format = %q, want 2v2", state.Format)
	}
	want := []string{TeamA, TeamB, TeamA, TeamB}
	for i, p := range state.Players {
		if p.Team != want[i] {
			t.Fatalf("player %d team = %q, want %q", p.UserID, p.Team, want[i])
		}
	}
}

func TestFoldFormatChangedOutOfTeamFormatClearsTeams(t *testing.T) {
	state := Replay([]event.Event{
		createdEvent(t, "2v2", 4, 1),
		joinedEvent(t, 1, 1000, TeamA),
		joinedEvent(t, 2, 1000, TeamB),
	})

	state = Fold(state, event.Event{
		Type: event.TypeMatchFormatChanged,
		PayloadJSON: mustJSON(t, event.MatchFormatChangedPayload{
			MatchUUID: "match-1", NewFormat: "ffa", NewMaxPlayers: 8,
		}),
	})

	for _, p := range state.Players {
		if p.Team != "" {
			t.Fatalf("player %d team = %q, want empty", p.UserID, p.Team)
		}
	}
}

func TestFoldFormatChangedBetweenTeamFormatsKeepsTeams(t *testing.T) {
	state := Replay([]event.Event{
		createdEvent(t, "2v2", 4, 1),
		joinedEvent(t, 1, 1000, TeamB),
		joinedEvent(t, 2, 1000, TeamA),
	})

	state = Fold(state, event.Event{
		Type: event.TypeMatchFormatChanged,
		PayloadJSON: mustJSON(t, event.MatchFormatChangedPayload{
			MatchUUID: "match-1", NewFormat: "3v3", NewMaxPlayers: 6,
		}),
	})

	if state.Players[0].Team != TeamB || state.Players[1].Team != TeamA {
		t.Fatalf("teams reshuffled between team formats: %+v", state.Players)
	}
}

func TestReplayIsDeterministic(t *testing.T) {
	events := []event.Event{
		createdEvent(t, "2v2", 4, 1),
		joinedEvent(t, 1, 1000, TeamA),
		joinedEvent(t, 2, 1050, TeamA),
		joinedEvent(t, 3, 950, TeamB),
		joinedEvent(t, 4, 1000, TeamB),
		{Type: event.TypeMatchConfirmed, PayloadJSON: []byte(`{}`)},
	}

	first := Replay(events)
	second := Replay(events)

	if first.Status != second.Status || len(first.Players) != len(second.Players) {
		t.Fatalf("replays diverged: %+v vs %+v", first, second)
	}
	for i := range first.Players {
		if first.Players[i] != second.Players[i] {
			t.Fatalf("player %d diverged: %+v vs %+v", i, first.Players[i], second.Players[i])
		}
	}
}
