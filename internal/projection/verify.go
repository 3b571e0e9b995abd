package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/louisbranch/rivalry.club/internal/event"
	"github.com/louisbranch/rivalry.club/internal/match"
	"github.com/louisbranch/rivalry.club/internal/storage"
)

// Issue kinds reported by projection verification.
const (
	IssueMatchMissing  = "match_missing"
	IssueMatchStatus   = "match_status"
	IssueMatchOrphaned = "match_orphaned"
	IssueRatingMissing  = "rating_missing"
	IssueRatingField    = "rating_field"
	IssueRatingOrphaned = "rating_orphaned"
)

// Issue is one divergence between the event log and a read model.
type Issue struct {
	Kind    string
	Subject string
	Detail  string
}

// expectedRating mirrors the columns verification compares. Streak and best
// rating are excluded on purpose: they depend on reaction order relative to
// other games and the original tooling never checked them.
type expectedRating struct {
	rating        int
	matchesPlayed int
	wins          int
	losses        int
}

// VerifyMatches checks the match read model against completion events: every
// completed match in the log must be projected as completed, and no match may
// claim completion without a completion event.
func VerifyMatches(ctx context.Context, events []event.Event, matches storage.MatchStore) ([]Issue, error) {
	var issues []Issue

	completed := make(map[string]bool)
	for _, evt := range events {
		if evt.Type != event.TypeMatchCompleted && evt.Type != event.TypeMatchResultsRecorded {
			continue
		}
		var envelope struct {
			MatchUUID string `json:"matchUuid"`
		}
		if err := json.Unmarshal(evt.PayloadJSON, &envelope); err != nil || envelope.MatchUUID == "" {
			continue
		}
		completed[envelope.MatchUUID] = true
	}

	for uuid := range completed {
		record, err := matches.GetMatch(ctx, uuid)
		if errors.Is(err, storage.ErrNotFound) {
			issues = append(issues, Issue{
				Kind:    IssueMatchMissing,
				Subject: uuid,
				Detail:  "exists in events but not in projection",
			})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load match %s: %w", uuid, err)
		}
		if record.Status != string(match.StatusCompleted) {
			issues = append(issues, Issue{
				Kind:    IssueMatchStatus,
				Subject: uuid,
				Detail:  fmt.Sprintf("status should be %q but is %q", match.StatusCompleted, record.Status),
			})
		}
	}

	projected, err := matches.ListMatchesByStatus(ctx, string(match.StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("list completed matches: %w", err)
	}
	for _, record := range projected {
		if !completed[record.UUID] {
			issues = append(issues, Issue{
				Kind:    IssueMatchOrphaned,
				Subject: record.UUID,
				Detail:  "marked completed in projection but no completion event found",
			})
		}
	}

	return issues, nil
}

// VerifyRatings recomputes expected rating rows from the event log and
// reports every column that diverges from the stored projection, plus any
// projected row that has no registration event behind it.
func VerifyRatings(ctx context.Context, events []event.Event, matches storage.MatchStore, ratings storage.RatingStore) ([]Issue, error) {
	expected, order, err := expectedRatings(ctx, events, matches)
	if err != nil {
		return nil, err
	}

	var issues []Issue
	for _, key := range order {
		want := expected[key]
		subject := fmt.Sprintf("user %d game %d", key.userID, key.gameID)

		actual, err := ratings.GetRating(ctx, key.gameID, key.userID)
		if errors.Is(err, storage.ErrNotFound) {
			issues = append(issues, Issue{
				Kind:    IssueRatingMissing,
				Subject: subject,
				Detail:  "rating record missing",
			})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load rating for %s: %w", subject, err)
		}

		checks := []struct {
			field string
			want  int
			got   int
		}{
			{"rating", want.rating, actual.Rating},
			{"matches_played", want.matchesPlayed, actual.MatchesPlayed},
			{"wins", want.wins, actual.Wins},
			{"losses", want.losses, actual.Losses},
		}
		for _, check := range checks {
			if check.want != check.got {
				issues = append(issues, Issue{
					Kind:    IssueRatingField,
					Subject: subject,
					Detail:  fmt.Sprintf("%s should be %d but is %d", check.field, check.want, check.got),
				})
			}
		}
	}

	// Sweep each registered game's rows for orphans. Games no registration
	// event ever touched have no expected rows to compare against.
	seenGames := make(map[int64]bool)
	var gameIDs []int64
	for _, key := range order {
		if !seenGames[key.gameID] {
			seenGames[key.gameID] = true
			gameIDs = append(gameIDs, key.gameID)
		}
	}
	for _, gameID := range gameIDs {
		rows, err := ratings.ListRatings(ctx, gameID)
		if err != nil {
			return nil, fmt.Errorf("list ratings for game %d: %w", gameID, err)
		}
		for _, row := range rows {
			if _, ok := expected[ratingKey{userID: row.UserID, gameID: gameID}]; !ok {
				issues = append(issues, Issue{
					Kind:    IssueRatingOrphaned,
					Subject: fmt.Sprintf("user %d game %d", row.UserID, gameID),
					Detail:  "rating row exists but no registration event found",
				})
			}
		}
	}

	return issues, nil
}

type ratingKey struct {
	userID int64
	gameID int64
}

// expectedRatings replays registrations and completions in log order.
// Completions for matches missing from the read model are skipped: without
// the match row there is no game to attribute the result to.
func expectedRatings(ctx context.Context, events []event.Event, matches storage.MatchStore) (map[ratingKey]*expectedRating, []ratingKey, error) {
	expected := make(map[ratingKey]*expectedRating)
	var order []ratingKey

	gameFor := func(matchUUID string) (int64, bool, error) {
		record, err := matches.GetMatch(ctx, matchUUID)
		if errors.Is(err, storage.ErrNotFound) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, fmt.Errorf("load match %s: %w", matchUUID, err)
		}
		return record.GameID, true, nil
	}

	apply := func(key ratingKey, before, change int, won bool) {
		entry, ok := expected[key]
		if !ok {
			return
		}
		entry.rating = before + change
		entry.matchesPlayed++
		if won {
			entry.wins++
		} else {
			entry.losses++
		}
	}

	for _, evt := range events {
		switch evt.Type {
		case event.TypePlayerRegistered:
			var payload event.PlayerRegisteredPayload
			if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
				continue
			}
			key := ratingKey{userID: payload.UserID, gameID: payload.GameID}
			if _, ok := expected[key]; !ok {
				order = append(order, key)
			}
			expected[key] = &expectedRating{rating: payload.InitialRating}

		case event.TypeMatchCompleted:
			var payload event.MatchCompletedPayload
			if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
				continue
			}
			gameID, ok, err := gameFor(payload.MatchUUID)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				continue
			}
			apply(ratingKey{payload.WinnerID, gameID},
				payload.WinnerRatingBefore, payload.WinnerRatingChange, true)
			apply(ratingKey{payload.LoserID, gameID},
				payload.LoserRatingBefore, payload.LoserRatingChange, false)

		case event.TypeMatchResultsRecorded:
			var payload event.MatchResultsRecordedPayload
			if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
				continue
			}
			gameID, ok, err := gameFor(payload.MatchUUID)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				continue
			}
			for _, result := range payload.PlayerResults {
				apply(ratingKey{result.UserID, gameID},
					result.RatingBefore, result.RatingChange, result.Result == "win")
			}
		}
	}

	return expected, order, nil
}
