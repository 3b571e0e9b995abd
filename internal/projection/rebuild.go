package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/rivalry.club/internal/event"
	"github.com/louisbranch/rivalry.club/internal/storage"
)

// RebuildMatch drops one match's read-model rows and re-projects them from
// the aggregate's events. The projector is deterministic and its clock is
// pinned to each event's append time, so the result is exactly what the
// original projection should have been, confirm and play timestamps
// included. Notifications are discarded: a rebuild is repair, not news.
func RebuildMatch(ctx context.Context, events storage.EventStore, matches storage.MatchStore, matchUUID string) error {
	stream, err := events.EventsFor(ctx, matchUUID)
	if err != nil {
		return fmt.Errorf("load events for %s: %w", matchUUID, err)
	}

	if err := matches.DeleteMatch(ctx, matchUUID); err != nil {
		return fmt.Errorf("drop match %s: %w", matchUUID, err)
	}

	var eventTime time.Time
	projector := NewMatchProjector(matches, func() time.Time { return eventTime })
	for _, evt := range stream {
		eventTime = evt.CreatedAt
		if _, err := projector.Apply(ctx, evt); err != nil {
			return fmt.Errorf("re-project event %d: %w", evt.ID, err)
		}
	}
	return nil
}

// RebuildRatings recomputes every rating row from the full event log and
// rewrites the projection. The reactor's increments cannot be replayed onto
// existing rows, so rows are reset to their registration state first and the
// expected values are derived the same way verification derives them.
// Win streaks and best ratings are recomputed here because, unlike
// verification, a rebuild must leave every column correct.
func RebuildRatings(ctx context.Context, events storage.EventStore, matches storage.MatchStore, ratings storage.RatingStore) error {
	log, err := events.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load event log: %w", err)
	}

	type rebuiltRating struct {
		record storage.PlayerRatingRecord
	}
	rows := make(map[ratingKey]*rebuiltRating)
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
		row, ok := rows[key]
		if !ok {
			return
		}
		newRating := before + change
		row.record.Rating = newRating
		row.record.MatchesPlayed++
		if won {
			row.record.Wins++
			row.record.WinStreak++
		} else {
			row.record.Losses++
			row.record.WinStreak = 0
		}
		if newRating > row.record.BestRating {
			row.record.BestRating = newRating
		}
	}

	for _, evt := range log {
		switch evt.Type {
		case event.TypePlayerRegistered:
			var payload event.PlayerRegisteredPayload
			if err := decodePayload(evt, &payload); err != nil {
				return err
			}
			key := ratingKey{userID: payload.UserID, gameID: payload.GameID}
			if _, ok := rows[key]; !ok {
				order = append(order, key)
			}
			rows[key] = &rebuiltRating{record: storage.PlayerRatingRecord{
				UUID:       payload.RatingUUID,
				UserID:     payload.UserID,
				GameID:     payload.GameID,
				Rating:     payload.InitialRating,
				BestRating: payload.InitialRating,
			}}

		case event.TypeMatchCompleted:
			var payload event.MatchCompletedPayload
			if err := decodePayload(evt, &payload); err != nil {
				return err
			}
			gameID, ok, err := gameFor(payload.MatchUUID)
			if err != nil {
				return err
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
			if err := decodePayload(evt, &payload); err != nil {
				return err
			}
			gameID, ok, err := gameFor(payload.MatchUUID)
			if err != nil {
				return err
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

	for _, key := range order {
		row := rows[key]
		_, err := ratings.GetRating(ctx, key.gameID, key.userID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			if err := ratings.CreateRating(ctx, row.record); err != nil {
				return fmt.Errorf("create rating for user %d: %w", key.userID, err)
			}
		case err != nil:
			return fmt.Errorf("load rating for user %d: %w", key.userID, err)
		default:
			if err := ratings.UpdateRating(ctx, row.record); err != nil {
				return fmt.Errorf("update rating for user %d: %w", key.userID, err)
			}
		}
	}

	return nil
}

func decodePayload(evt event.Event, target any) error {
	if err := json.Unmarshal(evt.PayloadJSON, target); err != nil {
		return fmt.Errorf("decode event %d payload: %w", evt.ID, err)
	}
	return nil
}
