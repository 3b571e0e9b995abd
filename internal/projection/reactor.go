package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/louisbranch/rivalry.club/internal/event"
	"github.com/louisbranch/rivalry.club/internal/storage"
)

// RatingsReactor applies completed-match outcomes to player ratings.
//
// It is intentionally not idempotent: matches_played, wins, losses, and the
// win streak are increments, so each completion event must be reacted to
// exactly once. Rebuilds recompute rows from the log instead of replaying the
// reactor.
type RatingsReactor struct {
	matches storage.MatchStore
	ratings storage.RatingStore
}

// NewRatingsReactor builds a reactor over the match and rating stores.
func NewRatingsReactor(matches storage.MatchStore, ratings storage.RatingStore) *RatingsReactor {
	return &RatingsReactor{matches: matches, ratings: ratings}
}

// React applies the rating side effects of one stored event. Events other
// than match completions are ignored.
func (r *RatingsReactor) React(ctx context.Context, evt event.Event) error {
	switch evt.Type {
	case event.TypeMatchCompleted:
		return r.reactCompleted(ctx, evt)
	case event.TypeMatchResultsRecorded:
		return r.reactResultsRecorded(ctx, evt)
	}
	return nil
}

func (r *RatingsReactor) reactCompleted(ctx context.Context, evt event.Event) error {
	var payload event.MatchCompletedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode match completed: %w", err)
	}

	record, err := r.matches.GetMatch(ctx, payload.MatchUUID)
	if err != nil {
		return fmt.Errorf("load match %s: %w", payload.MatchUUID, err)
	}

	if err := r.updatePlayerRating(ctx, record.GameID, payload.WinnerID,
		payload.WinnerRatingBefore, payload.WinnerRatingChange, true); err != nil {
		return err
	}
	return r.updatePlayerRating(ctx, record.GameID, payload.LoserID,
		payload.LoserRatingBefore, payload.LoserRatingChange, false)
}

func (r *RatingsReactor) reactResultsRecorded(ctx context.Context, evt event.Event) error {
	var payload event.MatchResultsRecordedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode match results: %w", err)
	}

	record, err := r.matches.GetMatch(ctx, payload.MatchUUID)
	if err != nil {
		return fmt.Errorf("load match %s: %w", payload.MatchUUID, err)
	}

	for _, result := range payload.PlayerResults {
		won := result.Result == "win"
		if err := r.updatePlayerRating(ctx, record.GameID, result.UserID,
			result.RatingBefore, result.RatingChange, won); err != nil {
			return err
		}
	}
	return nil
}

// updatePlayerRating rewrites one rating row. Players with no rating row are
// skipped: registration creates rows, and a completion for an unregistered
// player is historical data the reactor has no business inventing rows for.
// A draw counts against the win streak and the loss column.
func (r *RatingsReactor) updatePlayerRating(ctx context.Context, gameID, userID int64, ratingBefore, change int, won bool) error {
	rating, err := r.ratings.GetRating(ctx, gameID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load rating for user %d: %w", userID, err)
	}

	newRating := ratingBefore + change
	rating.Rating = newRating
	rating.MatchesPlayed++
	if won {
		rating.Wins++
		rating.WinStreak++
	} else {
		rating.Losses++
		rating.WinStreak = 0
	}
	if newRating > rating.BestRating {
		rating.BestRating = newRating
	}

	return r.ratings.UpdateRating(ctx, rating)
}
