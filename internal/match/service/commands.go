package service

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/louisbranch/rivalry.club/internal/event"
	"github.com/louisbranch/rivalry.club/internal/match"
	apperrors "github.com/louisbranch/rivalry.club/internal/platform/errors"
	"github.com/louisbranch/rivalry.club/internal/platform/id"
	"github.com/louisbranch/rivalry.club/internal/rating/elo"
	"github.com/louisbranch/rivalry.club/internal/storage"
)

// SettingStreakMultiplier toggles the win-streak bonus on head-to-head and
// team completions.
const SettingStreakMultiplier = "streak_multiplier_enabled"

const matchCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CreateMatchParams configures a new match. MaxPlayers of 0 derives the
// format default.
type CreateMatchParams struct {
	GameID          int64
	CreatedByUserID int64
	MatchType       string
	MatchFormat     string
	MaxPlayers      int
	Name            *string
	ScheduledAt     *string
}

// CreateMatchResult reports the identifiers assigned to a created match.
type CreateMatchResult struct {
	MatchUUID  string
	MatchCode  string
	ShareToken string
}

// CreateMatch creates a match and joins the creator to it. The creator's
// rating aggregate is registered on first contact with the game.
func (s *Service) CreateMatch(ctx context.Context, params CreateMatchParams) (CreateMatchResult, error) {
	open, err := s.matches.UserHasOpenMatch(ctx, params.GameID, params.CreatedByUserID)
	if err != nil {
		return CreateMatchResult{}, fmt.Errorf("check open matches: %w", err)
	}
	if open {
		return CreateMatchResult{}, apperrors.New(apperrors.CodePlayerHasActiveMatch,
			"player already has an active match for this game")
	}

	rating, err := s.ensurePlayerRating(ctx, params.GameID, params.CreatedByUserID)
	if err != nil {
		return CreateMatchResult{}, err
	}

	matchUUID := s.newUUID()
	code, err := newMatchCode()
	if err != nil {
		return CreateMatchResult{}, err
	}
	token, err := id.NewID()
	if err != nil {
		return CreateMatchResult{}, fmt.Errorf("generate share token: %w", err)
	}

	if _, err := s.execute(ctx, matchUUID, match.CommandTypeCreate, match.CreateInput{
		GameID:          params.GameID,
		MatchCode:       code,
		CreatedByUserID: params.CreatedByUserID,
		MatchType:       params.MatchType,
		Name:            params.Name,
		ScheduledAt:     params.ScheduledAt,
		ShareToken:      &token,
		MatchFormat:     params.MatchFormat,
		MaxPlayers:      params.MaxPlayers,
	}); err != nil {
		return CreateMatchResult{}, err
	}

	if _, err := s.execute(ctx, matchUUID, match.CommandTypeJoin, match.JoinInput{
		UserID:       params.CreatedByUserID,
		RatingBefore: rating.Rating,
	}); err != nil {
		return CreateMatchResult{}, err
	}

	return CreateMatchResult{MatchUUID: matchUUID, MatchCode: code, ShareToken: token}, nil
}

// JoinMatch adds a player to a pending match.
func (s *Service) JoinMatch(ctx context.Context, matchUUID string, userID int64) error {
	record, err := s.matches.GetMatch(ctx, matchUUID)
	if err != nil {
		return fmt.Errorf("load match %s: %w", matchUUID, err)
	}

	open, err := s.matches.UserHasOpenMatch(ctx, record.GameID, userID)
	if err != nil {
		return fmt.Errorf("check open matches: %w", err)
	}
	if open {
		return apperrors.New(apperrors.CodePlayerHasActiveMatch,
			"player already has an active match for this game")
	}

	rating, err := s.ensurePlayerRating(ctx, record.GameID, userID)
	if err != nil {
		return err
	}

	_, err = s.execute(ctx, matchUUID, match.CommandTypeJoin, match.JoinInput{
		UserID:       userID,
		RatingBefore: rating.Rating,
	})
	return err
}

// ConfirmMatch locks the roster and moves the match to confirmed.
func (s *Service) ConfirmMatch(ctx context.Context, matchUUID string) error {
	_, err := s.execute(ctx, matchUUID, match.CommandTypeConfirm, struct{}{})
	return err
}

// CompleteMatch records a head-to-head result. The loser is inferred from the
// roster.
func (s *Service) CompleteMatch(ctx context.Context, matchUUID string, winnerID int64) error {
	record, err := s.matches.GetMatch(ctx, matchUUID)
	if err != nil {
		return fmt.Errorf("load match %s: %w", matchUUID, err)
	}
	players, err := s.matches.ListMatchPlayers(ctx, matchUUID)
	if err != nil {
		return fmt.Errorf("load roster for %s: %w", matchUUID, err)
	}

	var loserID int64
	loserFound := false
	for _, player := range players {
		if player.UserID != winnerID {
			loserID = player.UserID
			loserFound = true
			break
		}
	}

	winnerStats, err := s.statsFor(ctx, record.GameID, winnerID)
	if err != nil {
		return err
	}
	var loserStats match.PlayerStats
	if loserFound {
		if loserStats, err = s.statsFor(ctx, record.GameID, loserID); err != nil {
			return err
		}
	}

	_, err = s.execute(ctx, matchUUID, match.CommandTypeComplete, match.CompleteInput{
		WinnerID:            winnerID,
		WinnerMatchesPlayed: winnerStats.MatchesPlayed,
		LoserMatchesPlayed:  loserStats.MatchesPlayed,
		LoserWinStreak:      loserStats.WinStreak,
		StreakBonusEnabled:  s.streakBonusEnabled(ctx),
	})
	return err
}

// CompleteTeamMatch records a result for a team-format match by winning side.
func (s *Service) CompleteTeamMatch(ctx context.Context, matchUUID, winningTeam string) error {
	record, err := s.matches.GetMatch(ctx, matchUUID)
	if err != nil {
		return fmt.Errorf("load match %s: %w", matchUUID, err)
	}
	stats, err := s.rosterStats(ctx, record.GameID, matchUUID)
	if err != nil {
		return err
	}

	_, err = s.execute(ctx, matchUUID, match.CommandTypeCompleteTeam, match.CompleteTeamInput{
		WinningTeam:        winningTeam,
		PlayerStats:        stats,
		StreakBonusEnabled: s.streakBonusEnabled(ctx),
	})
	return err
}

// CompleteFfaMatch records a free-for-all result by placement. Players
// missing from placements finish last.
func (s *Service) CompleteFfaMatch(ctx context.Context, matchUUID string, placements map[int64]int) error {
	record, err := s.matches.GetMatch(ctx, matchUUID)
	if err != nil {
		return fmt.Errorf("load match %s: %w", matchUUID, err)
	}
	stats, err := s.rosterStats(ctx, record.GameID, matchUUID)
	if err != nil {
		return err
	}

	_, err = s.execute(ctx, matchUUID, match.CommandTypeCompleteFfa, match.CompleteFfaInput{
		Placements:  placements,
		PlayerStats: stats,
	})
	return err
}

// LeaveMatch removes a non-creator player from a pending match.
func (s *Service) LeaveMatch(ctx context.Context, matchUUID string, userID int64) error {
	_, err := s.execute(ctx, matchUUID, match.CommandTypeLeave, match.LeaveInput{UserID: userID})
	return err
}

// SwitchTeam moves a player to the opposite side of a team-format match.
func (s *Service) SwitchTeam(ctx context.Context, matchUUID string, userID int64) error {
	_, err := s.execute(ctx, matchUUID, match.CommandTypeSwitchTeam, match.SwitchTeamInput{UserID: userID})
	return err
}

// ChangeFormat switches the match format. A newMaxPlayers of 0 derives the
// format default.
func (s *Service) ChangeFormat(ctx context.Context, matchUUID, newFormat string, newMaxPlayers int) error {
	_, err := s.execute(ctx, matchUUID, match.CommandTypeChangeFormat, match.ChangeFormatInput{
		NewFormat:     newFormat,
		NewMaxPlayers: newMaxPlayers,
	})
	return err
}

// CancelMatch cancels a match that has not finished.
func (s *Service) CancelMatch(ctx context.Context, matchUUID string, reason *string) error {
	_, err := s.execute(ctx, matchUUID, match.CommandTypeCancel, match.CancelInput{Reason: reason})
	return err
}

// ensurePlayerRating registers a rating aggregate for the player's first
// contact with a game and returns the current rating row either way.
func (s *Service) ensurePlayerRating(ctx context.Context, gameID, userID int64) (storage.PlayerRatingRecord, error) {
	rating, err := s.ratings.GetRating(ctx, gameID, userID)
	if err == nil {
		return rating, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.PlayerRatingRecord{}, fmt.Errorf("load rating for user %d: %w", userID, err)
	}

	ratingUUID := s.newUUID()
	payload, err := json.Marshal(event.PlayerRegisteredPayload{
		RatingUUID:    ratingUUID,
		UserID:        userID,
		GameID:        gameID,
		InitialRating: elo.DefaultRating,
	})
	if err != nil {
		return storage.PlayerRatingRecord{}, fmt.Errorf("encode registration: %w", err)
	}

	unlock := s.lockAggregate(ratingUUID)
	defer unlock()

	appended, err := s.events.Append(ctx, event.Event{
		AggregateUUID: ratingUUID,
		Type:          event.TypePlayerRegistered,
		PayloadJSON:   payload,
	}, 0)
	if err != nil {
		return storage.PlayerRatingRecord{}, fmt.Errorf("append registration: %w", err)
	}
	if err := s.dispatch(ctx, appended); err != nil {
		return storage.PlayerRatingRecord{}, err
	}

	return s.ratings.GetRating(ctx, gameID, userID)
}

// statsFor loads the experience stats completion commands need. Unregistered
// players count as fresh.
func (s *Service) statsFor(ctx context.Context, gameID, userID int64) (match.PlayerStats, error) {
	rating, err := s.ratings.GetRating(ctx, gameID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return match.PlayerStats{}, nil
	}
	if err != nil {
		return match.PlayerStats{}, fmt.Errorf("load rating for user %d: %w", userID, err)
	}
	return match.PlayerStats{MatchesPlayed: rating.MatchesPlayed, WinStreak: rating.WinStreak}, nil
}

// rosterStats collects experience stats for every player on the roster.
func (s *Service) rosterStats(ctx context.Context, gameID int64, matchUUID string) (map[int64]match.PlayerStats, error) {
	players, err := s.matches.ListMatchPlayers(ctx, matchUUID)
	if err != nil {
		return nil, fmt.Errorf("load roster for %s: %w", matchUUID, err)
	}
	stats := make(map[int64]match.PlayerStats, len(players))
	for _, player := range players {
		playerStats, err := s.statsFor(ctx, gameID, player.UserID)
		if err != nil {
			return nil, err
		}
		stats[player.UserID] = playerStats
	}
	return stats, nil
}

// streakBonusEnabled reads the feature flag; a missing setting means off.
func (s *Service) streakBonusEnabled(ctx context.Context) bool {
	value, err := s.settings.GetSetting(ctx, SettingStreakMultiplier)
	if err != nil {
		return false
	}
	return value == "true" || value == "1"
}

// newMatchCode generates the short join code shown to players.
func newMatchCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := crand.Read(buf); err != nil {
		return "", fmt.Errorf("generate match code: %w", err)
	}
	code := make([]byte, len(buf))
	for i, b := range buf {
		code[i] = matchCodeAlphabet[int(b)%len(matchCodeAlphabet)]
	}
	return string(code), nil
}
