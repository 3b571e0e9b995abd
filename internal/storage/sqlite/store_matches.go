package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/louisbranch/rivalry.club/internal/storage"
)

// MatchStore methods (match read model)

// CreateMatch inserts a match projection row.
func (s *Store) CreateMatch(ctx context.Context, record storage.MatchRecord) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO matches (uuid, game_id, match_code, match_format, max_players, match_type,
	name, scheduled_at, share_token, status, created_by_user_id, created_at, played_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.UUID, record.GameID, record.MatchCode, record.MatchFormat,
		record.MaxPlayers, record.MatchType, record.Name,
		nullMillis(record.ScheduledAt), record.ShareToken, record.Status,
		record.CreatedByUserID, toMillis(record.CreatedAt), nullMillis(record.PlayedAt))
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

// GetMatch loads one match projection row.
func (s *Store) GetMatch(ctx context.Context, matchUUID string) (storage.MatchRecord, error) {
	if s == nil || s.sqlDB == nil {
		return storage.MatchRecord{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT uuid, game_id, match_code, match_format, max_players, match_type,
	name, scheduled_at, share_token, status, created_by_user_id, created_at, played_at
FROM matches WHERE uuid = ?`, matchUUID)

	var (
		record      storage.MatchRecord
		scheduledAt sql.NullInt64
		playedAt    sql.NullInt64
		createdAt   int64
	)
	err := row.Scan(&record.UUID, &record.GameID, &record.MatchCode,
		&record.MatchFormat, &record.MaxPlayers, &record.MatchType, &record.Name,
		&scheduledAt, &record.ShareToken, &record.Status, &record.CreatedByUserID,
		&createdAt, &playedAt)
	if err == sql.ErrNoRows {
		return storage.MatchRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.MatchRecord{}, fmt.Errorf("load match: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.ScheduledAt = millisPtr(scheduledAt)
	record.PlayedAt = millisPtr(playedAt)
	return record, nil
}

// UpdateMatchStatus moves a match through its lifecycle, stamping played_at
// on completion.
func (s *Store) UpdateMatchStatus(ctx context.Context, matchUUID, status string, playedAt *time.Time) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	result, err := s.sqlDB.ExecContext(ctx,
		"UPDATE matches SET status = ?, played_at = COALESCE(?, played_at) WHERE uuid = ?",
		status, nullMillis(playedAt), matchUUID)
	if err != nil {
		return fmt.Errorf("update match status: %w", err)
	}
	return requireRowAffected(result, "match")
}

// UpdateMatchFormat rewrites the format columns after a format change.
func (s *Store) UpdateMatchFormat(ctx context.Context, matchUUID, format string, maxPlayers int) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	result, err := s.sqlDB.ExecContext(ctx,
		"UPDATE matches SET match_format = ?, max_players = ? WHERE uuid = ?",
		format, maxPlayers, matchUUID)
	if err != nil {
		return fmt.Errorf("update match format: %w", err)
	}
	return requireRowAffected(result, "match")
}

// DeleteMatch removes a match projection row and its players. Used by
// projection rebuilds, never by the command path.
func (s *Store) DeleteMatch(ctx context.Context, matchUUID string) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		"DELETE FROM match_players WHERE match_uuid = ?", matchUUID); err != nil {
		return fmt.Errorf("delete match players: %w", err)
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		"DELETE FROM matches WHERE uuid = ?", matchUUID); err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	return nil
}

// AddMatchPlayer inserts a roster row.
func (s *Store) AddMatchPlayer(ctx context.Context, player storage.MatchPlayerRecord) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO match_players (match_uuid, user_id, team, result, placement,
	rating_before, rating_after, rating_change, confirmed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		player.MatchUUID, player.UserID, player.Team, player.Result,
		nullInt(player.Placement), player.RatingBefore, nullInt(player.RatingAfter),
		nullInt(player.RatingChange), nullMillis(player.ConfirmedAt))
	if err != nil {
		return fmt.Errorf("insert match player: %w", err)
	}
	return nil
}

// ListMatchPlayers returns a match roster ordered by join order.
func (s *Store) ListMatchPlayers(ctx context.Context, matchUUID string) ([]storage.MatchPlayerRecord, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT match_uuid, user_id, team, result, placement,
	rating_before, rating_after, rating_change, confirmed_at
FROM match_players WHERE match_uuid = ? ORDER BY rowid`, matchUUID)
	if err != nil {
		return nil, fmt.Errorf("query match players: %w", err)
	}
	defer rows.Close()

	var players []storage.MatchPlayerRecord
	for rows.Next() {
		var (
			player       storage.MatchPlayerRecord
			placement    sql.NullInt64
			ratingAfter  sql.NullInt64
			ratingChange sql.NullInt64
			confirmedAt  sql.NullInt64
		)
		if err := rows.Scan(&player.MatchUUID, &player.UserID, &player.Team,
			&player.Result, &placement, &player.RatingBefore, &ratingAfter,
			&ratingChange, &confirmedAt); err != nil {
			return nil, fmt.Errorf("scan match player: %w", err)
		}
		player.Placement = intPtr(placement)
		player.RatingAfter = intPtr(ratingAfter)
		player.RatingChange = intPtr(ratingChange)
		player.ConfirmedAt = millisPtr(confirmedAt)
		players = append(players, player)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match players: %w", err)
	}
	return players, nil
}

// UpdateMatchPlayer rewrites a roster row's mutable columns.
func (s *Store) UpdateMatchPlayer(ctx context.Context, player storage.MatchPlayerRecord) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE match_players
SET team = ?, result = ?, placement = ?, rating_before = ?, rating_after = ?,
	rating_change = ?, confirmed_at = ?
WHERE match_uuid = ? AND user_id = ?`,
		player.Team, player.Result, nullInt(player.Placement), player.RatingBefore,
		nullInt(player.RatingAfter), nullInt(player.RatingChange),
		nullMillis(player.ConfirmedAt), player.MatchUUID, player.UserID)
	if err != nil {
		return fmt.Errorf("update match player: %w", err)
	}
	return requireRowAffected(result, "match player")
}

// RemoveMatchPlayer deletes a roster row.
func (s *Store) RemoveMatchPlayer(ctx context.Context, matchUUID string, userID int64) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	result, err := s.sqlDB.ExecContext(ctx,
		"DELETE FROM match_players WHERE match_uuid = ? AND user_id = ?", matchUUID, userID)
	if err != nil {
		return fmt.Errorf("remove match player: %w", err)
	}
	return requireRowAffected(result, "match player")
}

// ConfirmMatchPlayers stamps the whole roster as confirmed.
func (s *Store) ConfirmMatchPlayers(ctx context.Context, matchUUID string, confirmedAt time.Time) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		"UPDATE match_players SET confirmed_at = ? WHERE match_uuid = ?",
		toMillis(confirmedAt), matchUUID); err != nil {
		return fmt.Errorf("confirm match players: %w", err)
	}
	return nil
}

// ListMatchesByStatus returns all matches in one lifecycle state.
func (s *Store) ListMatchesByStatus(ctx context.Context, status string) ([]storage.MatchRecord, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT uuid, game_id, match_code, match_format, max_players, match_type,
	name, scheduled_at, share_token, status, created_by_user_id, created_at, played_at
FROM matches WHERE status = ? ORDER BY created_at, uuid`, status)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var records []storage.MatchRecord
	for rows.Next() {
		var (
			record      storage.MatchRecord
			scheduledAt sql.NullInt64
			playedAt    sql.NullInt64
			createdAt   int64
		)
		if err := rows.Scan(&record.UUID, &record.GameID, &record.MatchCode,
			&record.MatchFormat, &record.MaxPlayers, &record.MatchType,
			&record.Name, &scheduledAt, &record.ShareToken, &record.Status,
			&record.CreatedByUserID, &createdAt, &playedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		record.ScheduledAt = millisPtr(scheduledAt)
		record.PlayedAt = millisPtr(playedAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return records, nil
}

// UserHasOpenMatch reports whether the user is in a pending or confirmed
// match for the game.
func (s *Store) UserHasOpenMatch(ctx context.Context, gameID, userID int64) (bool, error) {
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	var found int
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT 1 FROM matches m
JOIN match_players mp ON mp.match_uuid = m.uuid
WHERE m.game_id = ? AND mp.user_id = ? AND m.status IN ('pending', 'confirmed')
LIMIT 1`, gameID, userID)
	err := row.Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check open matches: %w", err)
	}
	return true, nil
}

func requireRowAffected(result sql.Result, entity string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", entity, storage.ErrNotFound)
	}
	return nil
}

func nullMillis(value *time.Time) any {
	if value == nil {
		return nil
	}
	return toMillis(*value)
}

func millisPtr(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

func nullInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func intPtr(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}
