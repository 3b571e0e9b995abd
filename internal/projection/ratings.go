package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/louisbranch/rivalry.club/internal/event"
	"github.com/louisbranch/rivalry.club/internal/storage"
)

// RatingProjector maintains the player_ratings read model. Only registration
// events create rows; match outcomes flow through the ratings reactor.
type RatingProjector struct {
	ratings storage.RatingStore
}

// NewRatingProjector builds a projector over the rating store.
func NewRatingProjector(ratings storage.RatingStore) *RatingProjector {
	return &RatingProjector{ratings: ratings}
}

// Apply folds one stored event into the rating read model.
func (p *RatingProjector) Apply(ctx context.Context, evt event.Event) error {
	if evt.Type != event.TypePlayerRegistered {
		return nil
	}

	var payload event.PlayerRegisteredPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode player registration: %w", err)
	}

	return p.ratings.CreateRating(ctx, storage.PlayerRatingRecord{
		UUID:       payload.RatingUUID,
		UserID:     payload.UserID,
		GameID:     payload.GameID,
		Rating:     payload.InitialRating,
		BestRating: payload.InitialRating,
	})
}
