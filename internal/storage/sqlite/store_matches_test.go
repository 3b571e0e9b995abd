package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/rivalry.club/internal/storage"
)

func testMatchRecord(uuid string) storage.MatchRecord {
	return storage.MatchRecord{
		UUID:            uuid,
		GameID:          1,
		MatchCode:       "CODE-" + uuid,
		MatchFormat:     "1v1",
		MaxPlayers:      2,
		MatchType:       "quick",
		Status:          "pending",
		CreatedByUserID: 7,
		CreatedAt:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMatchRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	record := testMatchRecord("match-1")
	if err := store.CreateMatch(ctx, record); err != nil {
		t.Fatalf("create match: %v", err)
	}

	got, err := store.GetMatch(ctx, "match-1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if got.MatchCode != record.MatchCode || got.Status != "pending" {
		t.Fatalf("got %+v", got)
	}
	if !got.CreatedAt.Equal(record.CreatedAt) {
		t.Fatalf("created at = %v, want %v", got.CreatedAt, record.CreatedAt)
	}
	if got.PlayedAt != nil {
		t.Fatalf("played at = %v, want nil", got.PlayedAt)
	}
}

func TestGetMatchNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetMatch(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateMatchStatusStampsPlayedAt(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.CreateMatch(ctx, testMatchRecord("match-1")); err != nil {
		t.Fatalf("create match: %v", err)
	}

	playedAt := time.Date(2024, 3, 2, 18, 30, 0, 0, time.UTC)
	if err := store.UpdateMatchStatus(ctx, "match-1", "completed", &playedAt); err != nil {
		t.Fatalf("update status: %v", err)
	}

	got, err := store.GetMatch(ctx, "match-1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if got.Status != "completed" {
		t.Fatalf("status = %q", got.Status)
	}
	if got.PlayedAt == nil || !got.PlayedAt.Equal(playedAt) {
		t.Fatalf("played at = %v, want %v", got.PlayedAt, playedAt)
	}

	// Status-only updates keep the existing timestamp.
	if err := store.UpdateMatchStatus(ctx, "match-1", "cancelled", nil); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, err = store.GetMatch(ctx, "match-1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if got.PlayedAt == nil {
		t.Fatal("played at cleared by status-only update")
	}
}

func TestUpdateMatchFormat(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.CreateMatch(ctx, testMatchRecord("match-1")); err != nil {
		t.Fatalf("create match: %v", err)
	}

	if err := store.UpdateMatchFormat(ctx, "match-1", "2v2", 4); err != nil {
		t.Fatalf("update format: %v", err)
	}
	got, err := store.GetMatch(ctx, "match-1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if got.MatchFormat != "2v2" || got.MaxPlayers != 4 {
		t.Fatalf("format = %q/%d, want 2v2/4", got.MatchFormat, got.MaxPlayers)
	}

	if err := store.UpdateMatchFormat(ctx, "missing", "2v2", 4); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMatchPlayersRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.CreateMatch(ctx, testMatchRecord("match-1")); err != nil {
		t.Fatalf("create match: %v", err)
	}

	for _, userID := range []int64{10, 20} {
		if err := store.AddMatchPlayer(ctx, storage.MatchPlayerRecord{
			MatchUUID:    "match-1",
			UserID:       userID,
			Team:         "team_a",
			RatingBefore: 1000,
		}); err != nil {
			t.Fatalf("add player %d: %v", userID, err)
		}
	}

	players, err := store.ListMatchPlayers(ctx, "match-1")
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	if len(players) != 2 {
		t.Fatalf("players = %d, want 2", len(players))
	}
	if players[0].UserID != 10 || players[1].UserID != 20 {
		t.Fatalf("join order not preserved: %+v", players)
	}

	after := 1012
	change := 12
	updated := players[0]
	updated.Result = "win"
	updated.RatingAfter = &after
	updated.RatingChange = &change
	if err := store.UpdateMatchPlayer(ctx, updated); err != nil {
		t.Fatalf("update player: %v", err)
	}

	players, err = store.ListMatchPlayers(ctx, "match-1")
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	if players[0].Result != "win" || players[0].RatingAfter == nil || *players[0].RatingAfter != 1012 {
		t.Fatalf("updated player = %+v", players[0])
	}

	if err := store.RemoveMatchPlayer(ctx, "match-1", 20); err != nil {
		t.Fatalf("remove player: %v", err)
	}
	players, err = store.ListMatchPlayers(ctx, "match-1")
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	if len(players) != 1 {
		t.Fatalf("players after remove = %d, want 1", len(players))
	}
}

func TestConfirmMatchPlayers(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.CreateMatch(ctx, testMatchRecord("match-1")); err != nil {
		t.Fatalf("create match: %v", err)
	}
	if err := store.AddMatchPlayer(ctx, storage.MatchPlayerRecord{
		MatchUUID: "match-1", UserID: 10, RatingBefore: 1000,
	}); err != nil {
		t.Fatalf("add player: %v", err)
	}

	confirmedAt := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	if err := store.ConfirmMatchPlayers(ctx, "match-1", confirmedAt); err != nil {
		t.Fatalf("confirm players: %v", err)
	}

	players, err := store.ListMatchPlayers(ctx, "match-1")
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	if players[0].ConfirmedAt == nil || !players[0].ConfirmedAt.Equal(confirmedAt) {
		t.Fatalf("confirmed at = %v, want %v", players[0].ConfirmedAt, confirmedAt)
	}
}

func TestUserHasOpenMatch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.CreateMatch(ctx, testMatchRecord("match-1")); err != nil {
		t.Fatalf("create match: %v", err)
	}
	if err := store.AddMatchPlayer(ctx, storage.MatchPlayerRecord{
		MatchUUID: "match-1", UserID: 10, RatingBefore: 1000,
	}); err != nil {
		t.Fatalf("add player: %v", err)
	}

	open, err := store.UserHasOpenMatch(ctx, 1, 10)
	if err != nil {
		t.Fatalf("user has open match: %v", err)
	}
	if !open {
		t.Fatal("expected open match for pending roster entry")
	}

	open, err = store.UserHasOpenMatch(ctx, 1, 99)
	if err != nil {
		t.Fatalf("user has open match: %v", err)
	}
	if open {
		t.Fatal("unexpected open match for unknown user")
	}

	if err := store.UpdateMatchStatus(ctx, "match-1", "completed", nil); err != nil {
		t.Fatalf("update status: %v", err)
	}
	open, err = store.UserHasOpenMatch(ctx, 1, 10)
	if err != nil {
		t.Fatalf("user has open match: %v", err)
	}
	if open {
		t.Fatal("completed match should not count as open")
	}
}

func TestDeleteMatchRemovesRoster(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.CreateMatch(ctx, testMatchRecord("match-1")); err != nil {
		t.Fatalf("create match: %v", err)
	}
	if err := store.AddMatchPlayer(ctx, storage.MatchPlayerRecord{
		MatchUUID: "match-1", UserID: 10, RatingBefore: 1000,
	}); err != nil {
		t.Fatalf("add player: %v", err)
	}

	if err := store.DeleteMatch(ctx, "match-1"); err != nil {
		t.Fatalf("delete match: %v", err)
	}
	if _, err := store.GetMatch(ctx, "match-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	players, err := store.ListMatchPlayers(ctx, "match-1")
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	if len(players) != 0 {
		t.Fatalf("players = %d, want 0 after delete", len(players))
	}
}
