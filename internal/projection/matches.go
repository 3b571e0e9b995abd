package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/rivalry.club/internal/event"
	"github.com/louisbranch/rivalry.club/internal/match"
	"github.com/louisbranch/rivalry.club/internal/storage"
)

// MatchProjector maintains the matches and match_players read models.
//
// Apply performs no side effects beyond its own read-model writes; the
// returned Notification is the only signal to the outside world and the
// caller decides whether to deliver it.
type MatchProjector struct {
	matches storage.MatchStore
	now     func() time.Time
}

// NewMatchProjector builds a projector over the match store. A nil now
// defaults to time.Now.
func NewMatchProjector(matches storage.MatchStore, now func() time.Time) *MatchProjector {
	if now == nil {
		now = time.Now
	}
	return &MatchProjector{matches: matches, now: now}
}

// Apply folds one stored event into the match read model and returns the
// notification to deliver, if any. Events the projector does not handle are
// ignored.
func (p *MatchProjector) Apply(ctx context.Context, evt event.Event) (*Notification, error) {
	switch evt.Type {
	case event.TypeMatchCreated:
		return nil, p.applyCreated(ctx, evt)
	case event.TypePlayerJoined:
		return p.applyPlayerJoined(ctx, evt)
	case event.TypeMatchConfirmed:
		return p.applyConfirmed(ctx, evt)
	case event.TypeMatchCompleted:
		return p.applyCompleted(ctx, evt)
	case event.TypeMatchResultsRecorded:
		return p.applyResultsRecorded(ctx, evt)
	case event.TypeMatchCancelled:
		return p.applyCancelled(ctx, evt)
	case event.TypePlayerLeft:
		return p.applyPlayerLeft(ctx, evt)
	case event.TypePlayerSwitchedTeam:
		return p.applySwitchedTeam(ctx, evt)
	case event.TypeMatchFormatChanged:
		return p.applyFormatChanged(ctx, evt)
	}
	return nil, nil
}

// notify loads the match row it just wrote and packages it with the action
// tag so subscribers see the projected state without querying back.
func (p *MatchProjector) notify(ctx context.Context, matchUUID, action string) (*Notification, error) {
	record, err := p.matches.GetMatch(ctx, matchUUID)
	if err != nil {
		return nil, fmt.Errorf("load match %s for notification: %w", matchUUID, err)
	}
	return &Notification{MatchUUID: matchUUID, Action: action, Match: record}, nil
}

func (p *MatchProjector) applyCreated(ctx context.Context, evt event.Event) error {
	var payload event.MatchCreatedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode match created: %w", err)
	}

	record := storage.MatchRecord{
		UUID:            payload.MatchUUID,
		GameID:          payload.GameID,
		MatchCode:       payload.MatchCode,
		MatchFormat:     payload.MatchFormat,
		MaxPlayers:      payload.MaxPlayers,
		MatchType:       payload.MatchType,
		Status:          string(match.StatusPending),
		CreatedByUserID: payload.CreatedByUserID,
		CreatedAt:       evt.CreatedAt,
		ScheduledAt:     parseScheduledAt(payload.ScheduledAt),
	}
	if payload.Name != nil {
		record.Name = *payload.Name
	}
	if payload.ShareToken != nil {
		record.ShareToken = *payload.ShareToken
	}
	return p.matches.CreateMatch(ctx, record)
}

func (p *MatchProjector) applyPlayerJoined(ctx context.Context, evt event.Event) (*Notification, error) {
	var payload event.PlayerJoinedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return nil, fmt.Errorf("decode player joined: %w", err)
	}

	player := storage.MatchPlayerRecord{
		MatchUUID:    payload.MatchUUID,
		UserID:       payload.UserID,
		RatingBefore: payload.RatingBefore,
		Result:       "pending",
	}
	if payload.Team != nil {
		player.Team = *payload.Team
	}
	if err := p.matches.AddMatchPlayer(ctx, player); err != nil {
		return nil, err
	}
	return p.notify(ctx, payload.MatchUUID, ActionPlayerJoined)
}

func (p *MatchProjector) applyConfirmed(ctx context.Context, evt event.Event) (*Notification, error) {
	var payload event.MatchConfirmedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return nil, fmt.Errorf("decode match confirmed: %w", err)
	}

	if err := p.matches.UpdateMatchStatus(ctx, payload.MatchUUID,
		string(match.StatusConfirmed), nil); err != nil {
		return nil, err
	}
	if err := p.matches.ConfirmMatchPlayers(ctx, payload.MatchUUID, p.now()); err != nil {
		return nil, err
	}
	return p.notify(ctx, payload.MatchUUID, ActionConfirmed)
}

func (p *MatchProjector) applyCompleted(ctx context.Context, evt event.Event) (*Notification, error) {
	var payload event.MatchCompletedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return nil, fmt.Errorf("decode match completed: %w", err)
	}

	playedAt := p.now()
	if err := p.matches.UpdateMatchStatus(ctx, payload.MatchUUID,
		string(match.StatusCompleted), &playedAt); err != nil {
		return nil, err
	}

	outcomes := map[int64]struct {
		result string
		before int
		change int
	}{
		payload.WinnerID: {"win", payload.WinnerRatingBefore, payload.WinnerRatingChange},
		payload.LoserID:  {"lose", payload.LoserRatingBefore, payload.LoserRatingChange},
	}

	players, err := p.matches.ListMatchPlayers(ctx, payload.MatchUUID)
	if err != nil {
		return nil, err
	}
	for _, player := range players {
		outcome, ok := outcomes[player.UserID]
		if !ok {
			continue
		}
		after := outcome.before + outcome.change
		change := outcome.change
		player.Result = outcome.result
		player.RatingAfter = &after
		player.RatingChange = &change
		if err := p.matches.UpdateMatchPlayer(ctx, player); err != nil {
			return nil, err
		}
	}
	return p.notify(ctx, payload.MatchUUID, ActionCompleted)
}

func (p *MatchProjector) applyResultsRecorded(ctx context.Context, evt event.Event) (*Notification, error) {
	var payload event.MatchResultsRecordedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return nil, fmt.Errorf("decode match results: %w", err)
	}

	playedAt := p.now()
	if err := p.matches.UpdateMatchStatus(ctx, payload.MatchUUID,
		string(match.StatusCompleted), &playedAt); err != nil {
		return nil, err
	}

	players, err := p.matches.ListMatchPlayers(ctx, payload.MatchUUID)
	if err != nil {
		return nil, err
	}
	byUser := make(map[int64]storage.MatchPlayerRecord, len(players))
	for _, player := range players {
		byUser[player.UserID] = player
	}

	for _, result := range payload.PlayerResults {
		player, ok := byUser[result.UserID]
		if !ok {
			continue
		}
		after := result.RatingBefore + result.RatingChange
		change := result.RatingChange
		player.Result = result.Result
		player.Placement = result.Placement
		player.RatingAfter = &after
		player.RatingChange = &change
		if err := p.matches.UpdateMatchPlayer(ctx, player); err != nil {
			return nil, err
		}
	}
	return p.notify(ctx, payload.MatchUUID, ActionCompleted)
}

func (p *MatchProjector) applyCancelled(ctx context.Context, evt event.Event) (*Notification, error) {
	var payload event.MatchCancelledPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return nil, fmt.Errorf("decode match cancelled: %w", err)
	}

	err := p.matches.UpdateMatchStatus(ctx, payload.MatchUUID,
		string(match.StatusCancelled), nil)
	if errors.Is(err, storage.ErrNotFound) {
		// Cancellation of a never-projected match is not an error.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p.notify(ctx, payload.MatchUUID, ActionCancelled)
}

func (p *MatchProjector) applyPlayerLeft(ctx context.Context, evt event.Event) (*Notification, error) {
	var payload event.PlayerLeftPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return nil, fmt.Errorf("decode player left: %w", err)
	}

	if err := p.matches.RemoveMatchPlayer(ctx, payload.MatchUUID, payload.UserID); err != nil {
		return nil, err
	}
	return p.notify(ctx, payload.MatchUUID, ActionPlayerLeft)
}

func (p *MatchProjector) applySwitchedTeam(ctx context.Context, evt event.Event) (*Notification, error) {
	var payload event.PlayerSwitchedTeamPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return nil, fmt.Errorf("decode team switch: %w", err)
	}

	players, err := p.matches.ListMatchPlayers(ctx, payload.MatchUUID)
	if err != nil {
		return nil, err
	}
	for _, player := range players {
		if player.UserID != payload.UserID {
			continue
		}
		player.Team = payload.NewTeam
		if err := p.matches.UpdateMatchPlayer(ctx, player); err != nil {
			return nil, err
		}
	}
	return p.notify(ctx, payload.MatchUUID, ActionTeamSwitched)
}

func (p *MatchProjector) applyFormatChanged(ctx context.Context, evt event.Event) (*Notification, error) {
	var payload event.MatchFormatChangedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return nil, fmt.Errorf("decode format change: %w", err)
	}

	record, err := p.matches.GetMatch(ctx, payload.MatchUUID)
	if err != nil {
		return nil, err
	}
	oldFormat := match.Format(record.MatchFormat)
	newFormat := match.Format(payload.NewFormat)

	if err := p.matches.UpdateMatchFormat(ctx, payload.MatchUUID,
		payload.NewFormat, payload.NewMaxPlayers); err != nil {
		return nil, err
	}

	switch {
	case newFormat.IsTeam() && !oldFormat.IsTeam():
		players, err := p.matches.ListMatchPlayers(ctx, payload.MatchUUID)
		if err != nil {
			return nil, err
		}
		for i, player := range players {
			if i%2 == 0 {
				player.Team = match.TeamA
			} else {
				player.Team = match.TeamB
			}
			if err := p.matches.UpdateMatchPlayer(ctx, player); err != nil {
				return nil, err
			}
		}
	case !newFormat.IsTeam():
		players, err := p.matches.ListMatchPlayers(ctx, payload.MatchUUID)
		if err != nil {
			return nil, err
		}
		for _, player := range players {
			player.Team = ""
			if err := p.matches.UpdateMatchPlayer(ctx, player); err != nil {
				return nil, err
			}
		}
	}
	return p.notify(ctx, payload.MatchUUID, ActionFormatChanged)
}

func parseScheduledAt(value *string) *time.Time {
	if value == nil {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, *value); err == nil {
			parsed = parsed.UTC()
			return &parsed
		}
	}
	return nil
}
