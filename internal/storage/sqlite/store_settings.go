package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/louisbranch/rivalry.club/internal/storage"
)

// SettingStore methods (key/value feature flags)

// GetSetting returns the stored value for key.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	if s == nil || s.sqlDB == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	var value string
	row := s.sqlDB.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key)
	err := row.Scan(&value)
	if err == sql.ErrNoRows {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load setting: %w", err)
	}
	return value, nil
}

// SetSetting stores a value for key, replacing any existing one.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
		return fmt.Errorf("store setting: %w", err)
	}
	return nil
}
