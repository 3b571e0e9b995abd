// Package storage defines the persistence contracts for the event log and
// the read models projected from it.
package storage

import (
	"context"
	"time"

	"github.com/louisbranch/rivalry.club/internal/event"
	apperrors "github.com/louisbranch/rivalry.club/internal/platform/errors"
	"github.com/louisbranch/rivalry.club/internal/storage/integrity"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such entity" states
// and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrConflict indicates an append lost the optimistic concurrency check:
// another command appended to the same aggregate after the caller replayed
// state. The command can be retried against fresh state.
var ErrConflict = apperrors.New(apperrors.CodeConflict, "aggregate modified since replay")

// ErrUnhashedTail indicates the log ends in records whose hashes were never
// populated. Appending would chain onto a null hash, so writes are refused
// until a backfill repairs the tail.
var ErrUnhashedTail = apperrors.New(apperrors.CodeUnhashedTail, "event log tail is missing hashes")

// EventStore is the append-only, hash-chained event log.
type EventStore interface {
	// Append persists evt at the head of the log and returns the stored
	// record with ID, CreatedAt, Hash, and PrevHash populated.
	// expectedLastID is the highest event ID the caller saw for the
	// aggregate when it replayed state (0 for a new aggregate); a mismatch
	// returns ErrConflict and persists nothing.
	Append(ctx context.Context, evt event.Event, expectedLastID int64) (event.Event, error)
	// EventsFor returns all events for one aggregate in append order.
	EventsFor(ctx context.Context, aggregateUUID string) ([]event.Event, error)
	// ListAll returns the entire log in append order.
	ListAll(ctx context.Context) ([]event.Event, error)
	// LastEventID returns the highest event ID for the aggregate, or 0
	// when the aggregate has no events.
	LastEventID(ctx context.Context, aggregateUUID string) (int64, error)
	// VerifyChain re-derives the hash chain across the entire log and
	// returns every discrepancy found. It never mutates the log.
	VerifyChain(ctx context.Context) ([]integrity.Discrepancy, error)
	// HashBackfill populates missing hashes in ID order, chaining from the
	// last hashed record, and returns how many records it repaired.
	HashBackfill(ctx context.Context) (int, error)
}

// MatchRecord is the matches read-model row.
type MatchRecord struct {
	UUID            string
	GameID          int64
	MatchCode       string
	MatchFormat     string
	MaxPlayers      int
	MatchType       string
	Name            string
	ScheduledAt     *time.Time
	ShareToken      string
	Status          string
	CreatedByUserID int64
	CreatedAt       time.Time
	PlayedAt        *time.Time
}

// MatchPlayerRecord is the match_players read-model row.
type MatchPlayerRecord struct {
	MatchUUID    string
	UserID       int64
	Team         string
	Result       string
	Placement    *int
	RatingBefore int
	RatingAfter  *int
	RatingChange *int
	ConfirmedAt  *time.Time
}

// PlayerRatingRecord is the player_ratings read-model row.
type PlayerRatingRecord struct {
	UUID          string
	UserID        int64
	GameID        int64
	Rating        int
	MatchesPlayed int
	Wins          int
	Losses        int
	WinStreak     int
	BestRating    int
}

// MatchStore persists the match read model.
type MatchStore interface {
	CreateMatch(ctx context.Context, record MatchRecord) error
	GetMatch(ctx context.Context, matchUUID string) (MatchRecord, error)
	UpdateMatchStatus(ctx context.Context, matchUUID, status string, playedAt *time.Time) error
	UpdateMatchFormat(ctx context.Context, matchUUID, format string, maxPlayers int) error
	DeleteMatch(ctx context.Context, matchUUID string) error

	AddMatchPlayer(ctx context.Context, player MatchPlayerRecord) error
	ListMatchPlayers(ctx context.Context, matchUUID string) ([]MatchPlayerRecord, error)
	UpdateMatchPlayer(ctx context.Context, player MatchPlayerRecord) error
	RemoveMatchPlayer(ctx context.Context, matchUUID string, userID int64) error
	ConfirmMatchPlayers(ctx context.Context, matchUUID string, confirmedAt time.Time) error

	// UserHasOpenMatch reports whether the user is in a pending or
	// confirmed match for the game. Used to enforce one active match per
	// game per player.
	UserHasOpenMatch(ctx context.Context, gameID, userID int64) (bool, error)

	// ListMatchesByStatus returns all matches in the given lifecycle
	// state. Used by projection verification to find orphans.
	ListMatchesByStatus(ctx context.Context, status string) ([]MatchRecord, error)
}

// RatingStore persists the player rating read model.
type RatingStore interface {
	CreateRating(ctx context.Context, record PlayerRatingRecord) error
	GetRating(ctx context.Context, gameID, userID int64) (PlayerRatingRecord, error)
	UpdateRating(ctx context.Context, record PlayerRatingRecord) error
	ListRatings(ctx context.Context, gameID int64) ([]PlayerRatingRecord, error)
}

// SettingStore persists feature flags and other key/value configuration.
type SettingStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}
