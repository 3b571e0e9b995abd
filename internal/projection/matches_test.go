package projection

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/rivalry.club/internal/event"
	"github.com/louisbranch/rivalry.club/internal/match"
	"github.com/louisbranch/rivalry.club/internal/storage"
	"github.com/louisbranch/rivalry.club/internal/storage/sqlite"
)

func openProjectionStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func mustJSON(t *testing.T, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func storedEvent(t *testing.T, eventType event.Type, payload any) event.Event {
	t.Helper()
	return event.Event{
		Type:        eventType,
		PayloadJSON: mustJSON(t, payload),
		CreatedAt:   time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func projectMatch(t *testing.T, p *MatchProjector, matchUUID string, players ...int64) {
	t.Helper()
	ctx := context.Background()
	created := storedEvent(t, event.TypeMatchCreated, event.MatchCreatedPayload{
		MatchUUID:       matchUUID,
		GameID:          7,
		MatchCode:       "ABC123",
		CreatedByUserID: players[0],
		MatchType:       "casual",
		MatchFormat:     string(match.Format1v1),
		MaxPlayers:      len(players),
	})
	if _, err := p.Apply(ctx, created); err != nil {
		t.Fatalf("apply created: %v", err)
	}
	for _, userID := range players {
		joined := storedEvent(t, event.TypePlayerJoined, event.PlayerJoinedPayload{
			MatchUUID:    matchUUID,
			UserID:       userID,
			RatingBefore: 1000,
		})
		if _, err := p.Apply(ctx, joined); err != nil {
			t.Fatalf("apply joined for %d: %v", userID, err)
		}
	}
}

func TestMatchProjectorCreated(t *testing.T) {
	store := openProjectionStore(t)
	projector := NewMatchProjector(store, nil)
	ctx := context.Background()

	name := "friday night"
	token := "tok-1"
	scheduled := "2026-03-20 19:30:00"
	note, err := projector.Apply(ctx, storedEvent(t, event.TypeMatchCreated, event.MatchCreatedPayload{
		MatchUUID:       "match-1",
		GameID:          7,
		MatchCode:       "ABC123",
		CreatedByUserID: 1,
		MatchType:       "ranked",
		Name:            &name,
		ScheduledAt:     &scheduled,
		ShareToken:      &token,
		MatchFormat:     string(match.Format2v2),
		MaxPlayers:      4,
	}))
	if err != nil {
		t.Fatalf("apply created: %v", err)
	}
	if note != nil {
		t.Fatalf("created should produce no notification, got %+v", note)
	}

	record, err := store.GetMatch(ctx, "match-1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if record.Status != string(match.StatusPending) {
		t.Fatalf("status = %q, want pending", record.Status)
	}
	if record.Name != name || record.ShareToken != token {
		t.Fatalf("name/token = %q/%q", record.Name, record.ShareToken)
	}
	if record.MatchFormat != string(match.Format2v2) || record.MaxPlayers != 4 {
		t.Fatalf("format/max = %q/%d", record.MatchFormat, record.MaxPlayers)
	}
	if record.ScheduledAt == nil {
		t.Fatal("scheduled_at should be set")
	}
	want := time.Date(2026, 3, 20, 19, 30, 0, 0, time.UTC)
	if !record.ScheduledAt.Equal(want) {
		t.Fatalf("scheduled_at = %v, want %v", record.ScheduledAt, want)
	}
}

func TestMatchProjectorJoinAndLeave(t *testing.T) {
	store := openProjectionStore(t)
	projector := NewMatchProjector(store, nil)
	ctx := context.Background()
	projectMatch(t, projector, "match-1", 1)

	note, err := projector.Apply(ctx, storedEvent(t, event.TypePlayerJoined, event.PlayerJoinedPayload{
		MatchUUID:    "match-1",
		UserID:       2,
		RatingBefore: 1040,
	}))
	if err != nil {
		t.Fatalf("apply joined: %v", err)
	}
	if note == nil || note.Action != ActionPlayerJoined {
		t.Fatalf("notification = %+v, want player_joined", note)
	}

	players, err := store.ListMatchPlayers(ctx, "match-1")
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	if len(players) != 2 {
		t.Fatalf("got %d players, want 2", len(players))
	}
	if players[1].UserID != 2 || players[1].RatingBefore != 1040 || players[1].Result != "pending" {
		t.Fatalf("joined row = %+v", players[1])
	}

	note, err = projector.Apply(ctx, storedEvent(t, event.TypePlayerLeft, event.PlayerLeftPayload{
		MatchUUID: "match-1",
		UserID:    2,
	}))
	if err != nil {
		t.Fatalf("apply left: %v", err)
	}
	if note == nil || note.Action != ActionPlayerLeft {
		t.Fatalf("notification = %+v, want player_left", note)
	}
	players, err = store.ListMatchPlayers(ctx, "match-1")
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	if len(players) != 1 || players[0].UserID != 1 {
		t.Fatalf("roster after leave = %+v", players)
	}
}

func TestMatchProjectorConfirmed(t *testing.T) {
	store := openProjectionStore(t)
	confirmedAt := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	projector := NewMatchProjector(store, func() time.Time { return confirmedAt })
	ctx := context.Background()
	projectMatch(t, projector, "match-1", 1, 2)

	note, err := projector.Apply(ctx, storedEvent(t, event.TypeMatchConfirmed, event.MatchConfirmedPayload{
		MatchUUID: "match-1",
	}))
	if err != nil {
		t.Fatalf("apply confirmed: %v", err)
	}
	if note == nil || note.Action != ActionConfirmed {
		t.Fatalf("notification = %+v, want confirmed", note)
	}
	if note.Match.UUID != "match-1" || note.Match.Status != string(match.StatusConfirmed) {
		t.Fatalf("notification snapshot = %+v, want confirmed match-1", note.Match)
	}

	record, err := store.GetMatch(ctx, "match-1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if record.Status != string(match.StatusConfirmed) {
		t.Fatalf("status = %q, want confirmed", record.Status)
	}
	players, err := store.ListMatchPlayers(ctx, "match-1")
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	for _, player := range players {
		if player.ConfirmedAt == nil || !player.ConfirmedAt.Equal(confirmedAt) {
			t.Fatalf("player %d confirmed_at = %v, want %v", player.UserID, player.ConfirmedAt, confirmedAt)
		}
	}
}

func TestMatchProjectorCompleted(t *testing.T) {
	store := openProjectionStore(t)
	playedAt := time.Date(2026, 3, 15, 21, 0, 0, 0, time.UTC)
	projector := NewMatchProjector(store, func() time.Time { return playedAt })
	ctx := context.Background()
	projectMatch(t, projector, "match-1", 1, 2)

	note, err := projector.Apply(ctx, storedEvent(t, event.TypeMatchCompleted, event.MatchCompletedPayload{
		MatchUUID:          "match-1",
		WinnerID:           2,
		LoserID:            1,
		WinnerRatingBefore: 1000,
		LoserRatingBefore:  1000,
		WinnerRatingChange: 16,
		LoserRatingChange:  -16,
	}))
	if err != nil {
		t.Fatalf("apply completed: %v", err)
	}
	if note == nil || note.Action != ActionCompleted {
		t.Fatalf("notification = %+v, want completed", note)
	}
	if note.Match.Status != string(match.StatusCompleted) ||
		note.Match.PlayedAt == nil || !note.Match.PlayedAt.Equal(playedAt) {
		t.Fatalf("notification snapshot = %+v, want completed at %v", note.Match, playedAt)
	}

	record, err := store.GetMatch(ctx, "match-1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if record.Status != string(match.StatusCompleted) {
		t.Fatalf("status = %q, want completed", record.Status)
	}
	if record.PlayedAt == nil || !record.PlayedAt.Equal(playedAt) {
		t.Fatalf("played_at = %v, want %v", record.PlayedAt, playedAt)
	}

	players, err := store.ListMatchPlayers(ctx, "match-1")
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	byUser := map[int64]storage.MatchPlayerRecord{}
	for _, player := range players {
		byUser[player.UserID] = player
	}
	winner := byUser[2]
	if winner.Result != "win" || winner.RatingAfter == nil || *winner.RatingAfter != 1016 {
		t.Fatalf("winner row = %+v", winner)
	}
	loser := byUser[1]
	if loser.Result != "lose" || loser.RatingAfter == nil || *loser.RatingAfter != 984 {
		t.Fatalf("loser row = %+v", loser)
	}
}

func TestMatchProjectorResultsRecorded(t *testing.T) {
	store := openProjectionStore(t)
	projector := NewMatchProjector(store, nil)
	ctx := context.Background()
	projectMatch(t, projector, "match-1", 1, 2, 3)

	first, second, third := 1, 2, 3
	note, err := projector.Apply(ctx, storedEvent(t, event.TypeMatchResultsRecorded, event.MatchResultsRecordedPayload{
		MatchUUID:   "match-1",
		MatchFormat: string(match.FormatFFA),
		PlayerResults: []event.PlayerResult{
			{UserID: 2, Result: "win", Placement: &first, RatingBefore: 1000, RatingChange: 12},
			{UserID: 3, Result: "draw", Placement: &second, RatingBefore: 1000, RatingChange: 0},
			{UserID: 1, Result: "lose", Placement: &third, RatingBefore: 1000, RatingChange: -12},
		},
	}))
	if err != nil {
		t.Fatalf("apply results: %v", err)
	}
	if note == nil || note.Action != ActionCompleted {
		t.Fatalf("notification = %+v, want completed", note)
	}

	players, err := store.ListMatchPlayers(ctx, "match-1")
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	for _, player := range players {
		if player.Placement == nil || player.RatingAfter == nil {
			t.Fatalf("player %d missing placement or rating_after: %+v", player.UserID, player)
		}
	}
	for _, player := range players {
		if player.UserID == 2 {
			if *player.Placement != 1 || player.Result != "win" || *player.RatingAfter != 1012 {
				t.Fatalf("winner row = %+v", player)
			}
		}
	}
}

func TestMatchProjectorCancelledToleratesMissingMatch(t *testing.T) {
	store := openProjectionStore(t)
	projector := NewMatchProjector(store, nil)

	note, err := projector.Apply(context.Background(),
		storedEvent(t, event.TypeMatchCancelled, event.MatchCancelledPayload{MatchUUID: "ghost"}))
	if err != nil {
		t.Fatalf("cancelled on missing match should not fail: %v", err)
	}
	if note != nil {
		t.Fatalf("notification = %+v, want none", note)
	}
}

func TestMatchProjectorCancelled(t *testing.T) {
	store := openProjectionStore(t)
	projector := NewMatchProjector(store, nil)
	ctx := context.Background()
	projectMatch(t, projector, "match-1", 1)

	reason := "no-show"
	note, err := projector.Apply(ctx, storedEvent(t, event.TypeMatchCancelled, event.MatchCancelledPayload{
		MatchUUID: "match-1",
		Reason:    &reason,
	}))
	if err != nil {
		t.Fatalf("apply cancelled: %v", err)
	}
	if note == nil || note.Action != ActionCancelled {
		t.Fatalf("notification = %+v, want cancelled", note)
	}
	record, err := store.GetMatch(ctx, "match-1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if record.Status != string(match.StatusCancelled) {
		t.Fatalf("status = %q, want cancelled", record.Status)
	}
}

func TestMatchProjectorSwitchTeam(t *testing.T) {
	store := openProjectionStore(t)
	projector := NewMatchProjector(store, nil)
	ctx := context.Background()
	projectMatch(t, projector, "match-1", 1, 2)

	note, err := projector.Apply(ctx, storedEvent(t, event.TypePlayerSwitchedTeam, event.PlayerSwitchedTeamPayload{
		MatchUUID: "match-1",
		UserID:    2,
		NewTeam:   match.TeamB,
	}))
	if err != nil {
		t.Fatalf("apply switch: %v", err)
	}
	if note == nil || note.Action != ActionTeamSwitched {
		t.Fatalf("notification = %+v, want team_switched", note)
	}

	players, err := store.ListMatchPlayers(ctx, "match-1")
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	for _, player := range players {
		if player.UserID == 2 && player.Team != match.TeamB {
			t.Fatalf("player 2 team = %q, want %q", player.Team, match.TeamB)
		}
	}
}

func TestMatchProjectorFormatChanged(t *testing.T) {
	store := openProjectionStore(t)
	projector := NewMatchProjector(store, nil)
	ctx := context.Background()
	projectMatch(t, projector, "match-1", 1, 2, 3, 4)

	note, err := projector.Apply(ctx, storedEvent(t, event.TypeMatchFormatChanged, event.MatchFormatChangedPayload{
		MatchUUID:     "match-1",
		NewFormat:     string(match.Format2v2),
		NewMaxPlayers: 4,
	}))
	if err != nil {
		t.Fatalf("apply format change: %v", err)
	}
	if note == nil || note.Action != ActionFormatChanged {
		t.Fatalf("notification = %+v, want format_changed", note)
	}

	record, err := store.GetMatch(ctx, "match-1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if record.MatchFormat != string(match.Format2v2) || record.MaxPlayers != 4 {
		t.Fatalf("format/max = %q/%d", record.MatchFormat, record.MaxPlayers)
	}

	// Entering a team format alternates assignments in join order.
	players, err := store.ListMatchPlayers(ctx, "match-1")
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	wantTeams := []string{match.TeamA, match.TeamB, match.TeamA, match.TeamB}
	for i, player := range players {
		if player.Team != wantTeams[i] {
			t.Fatalf("player %d team = %q, want %q", player.UserID, player.Team, wantTeams[i])
		}
	}

	// Leaving the team format clears assignments.
	if _, err := projector.Apply(ctx, storedEvent(t, event.TypeMatchFormatChanged, event.MatchFormatChangedPayload{
		MatchUUID:     "match-1",
		NewFormat:     string(match.FormatFFA),
		NewMaxPlayers: 8,
	})); err != nil {
		t.Fatalf("apply second format change: %v", err)
	}
	players, err = store.ListMatchPlayers(ctx, "match-1")
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	for _, player := range players {
		if player.Team != "" {
			t.Fatalf("player %d team = %q, want empty", player.UserID, player.Team)
		}
	}
}
