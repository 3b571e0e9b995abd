package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/louisbranch/rivalry.club/internal/storage"
)

// RatingStore methods (player rating read model)

// CreateRating inserts a player's rating row for a game.
func (s *Store) CreateRating(ctx context.Context, record storage.PlayerRatingRecord) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO player_ratings (uuid, user_id, game_id, rating, matches_played,
	wins, losses, win_streak, best_rating)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.UUID, record.UserID, record.GameID, record.Rating,
		record.MatchesPlayed, record.Wins, record.Losses, record.WinStreak,
		record.BestRating)
	if err != nil {
		return fmt.Errorf("insert rating: %w", err)
	}
	return nil
}

// GetRating loads a player's rating row for a game.
func (s *Store) GetRating(ctx context.Context, gameID, userID int64) (storage.PlayerRatingRecord, error) {
	if s == nil || s.sqlDB == nil {
		return storage.PlayerRatingRecord{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT uuid, user_id, game_id, rating, matches_played, wins, losses, win_streak, best_rating
FROM player_ratings WHERE game_id = ? AND user_id = ?`, gameID, userID)

	var record storage.PlayerRatingRecord
	err := row.Scan(&record.UUID, &record.UserID, &record.GameID, &record.Rating,
		&record.MatchesPlayed, &record.Wins, &record.Losses, &record.WinStreak,
		&record.BestRating)
	if err == sql.ErrNoRows {
		return storage.PlayerRatingRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.PlayerRatingRecord{}, fmt.Errorf("load rating: %w", err)
	}
	return record, nil
}

// UpdateRating rewrites a player's rating row.
func (s *Store) UpdateRating(ctx context.Context, record storage.PlayerRatingRecord) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE player_ratings
SET rating = ?, matches_played = ?, wins = ?, losses = ?, win_streak = ?, best_rating = ?
WHERE game_id = ? AND user_id = ?`,
		record.Rating, record.MatchesPlayed, record.Wins, record.Losses,
		record.WinStreak, record.BestRating, record.GameID, record.UserID)
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	return requireRowAffected(result, "rating")
}

// ListRatings returns all rating rows for a game ordered by rating.
func (s *Store) ListRatings(ctx context.Context, gameID int64) ([]storage.PlayerRatingRecord, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT uuid, user_id, game_id, rating, matches_played, wins, losses, win_streak, best_rating
FROM player_ratings WHERE game_id = ? ORDER BY rating DESC, user_id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer rows.Close()

	var records []storage.PlayerRatingRecord
	for rows.Next() {
		var record storage.PlayerRatingRecord
		if err := rows.Scan(&record.UUID, &record.UserID, &record.GameID,
			&record.Rating, &record.MatchesPlayed, &record.Wins, &record.Losses,
			&record.WinStreak, &record.BestRating); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}
	return records, nil
}
