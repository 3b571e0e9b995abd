package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/louisbranch/rivalry.club/internal/event"
	"github.com/louisbranch/rivalry.club/internal/storage"
	"github.com/louisbranch/rivalry.club/internal/storage/integrity"
)

const eventColumns = "id, aggregate_uuid, event_type, payload, created_at, event_hash, previous_hash"

// Append atomically appends an event to the log and returns it with ID,
// timestamp, and chain hashes set.
//
// The hash chain is global, so the head lookup, the insert, and the hash
// update all happen inside one transaction under the chain mutex. The
// optimistic concurrency check compares the aggregate's highest event ID
// against what the caller replayed; a mismatch means another command won the
// race and the caller must replay and decide again.
func (s *Store) Append(ctx context.Context, evt event.Event, expectedLastID int64) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if !evt.Type.IsValid() {
		return event.Event{}, fmt.Errorf("unknown event type %q", evt.Type)
	}
	if evt.AggregateUUID == "" {
		return event.Event{}, fmt.Errorf("aggregate uuid is required")
	}
	if len(evt.PayloadJSON) == 0 {
		evt.PayloadJSON = []byte("{}")
	}

	s.chainMu.Lock()
	defer s.chainMu.Unlock()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var lastAggregateID sql.NullInt64
	row := tx.QueryRowContext(ctx,
		"SELECT MAX(id) FROM stored_events WHERE aggregate_uuid = ?", evt.AggregateUUID)
	if err := row.Scan(&lastAggregateID); err != nil {
		return event.Event{}, fmt.Errorf("load aggregate head: %w", err)
	}
	if lastAggregateID.Int64 != expectedLastID {
		return event.Event{}, fmt.Errorf("append %s after event %d: %w",
			evt.AggregateUUID, expectedLastID, storage.ErrConflict)
	}

	prevHash := integrity.GenesisHash
	var headHash sql.NullString
	err = tx.QueryRowContext(ctx,
		"SELECT event_hash FROM stored_events ORDER BY id DESC LIMIT 1").Scan(&headHash)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return event.Event{}, fmt.Errorf("load chain head: %w", err)
	case !headHash.Valid:
		return event.Event{}, fmt.Errorf("chain head has no hash: %w", storage.ErrUnhashedTail)
	default:
		prevHash = headHash.String
	}

	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now()
	}
	evt.CreatedAt = evt.CreatedAt.UTC().Truncate(time.Millisecond)

	result, err := tx.ExecContext(ctx, `
INSERT INTO stored_events (aggregate_uuid, event_type, payload, created_at, event_hash, previous_hash)
VALUES (?, ?, ?, ?, NULL, NULL)`,
		evt.AggregateUUID, string(evt.Type), string(evt.PayloadJSON), toMillis(evt.CreatedAt))
	if err != nil {
		return event.Event{}, fmt.Errorf("insert event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return event.Event{}, fmt.Errorf("event id: %w", err)
	}
	evt.ID = id
	evt.PrevHash = prevHash

	hash, err := integrity.ChainHash(evt, prevHash)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute chain hash: %w", err)
	}
	evt.Hash = hash

	if _, err := tx.ExecContext(ctx,
		"UPDATE stored_events SET event_hash = ?, previous_hash = ? WHERE id = ?",
		hash, prevHash, id); err != nil {
		return event.Event{}, fmt.Errorf("store chain hash: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return event.Event{}, fmt.Errorf("commit: %w", err)
	}

	return evt, nil
}

// EventsFor returns all events for one aggregate in append order.
func (s *Store) EventsFor(ctx context.Context, aggregateUUID string) ([]event.Event, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM stored_events WHERE aggregate_uuid = ? ORDER BY id",
		aggregateUUID)
	if err != nil {
		return nil, fmt.Errorf("query aggregate events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListAll returns the entire log in append order.
func (s *Store) ListAll(ctx context.Context) ([]event.Event, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM stored_events ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// LastEventID returns the highest event ID for the aggregate, or 0 when the
// aggregate has no events.
func (s *Store) LastEventID(ctx context.Context, aggregateUUID string) (int64, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var last sql.NullInt64
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT MAX(id) FROM stored_events WHERE aggregate_uuid = ?", aggregateUUID)
	if err := row.Scan(&last); err != nil {
		return 0, fmt.Errorf("load aggregate head: %w", err)
	}
	return last.Int64, nil
}

// VerifyChain re-derives the hash chain across the entire log and returns
// every discrepancy. It reads under the chain mutex so a concurrent append
// cannot surface as a spurious broken tail, and it never mutates the log.
func (s *Store) VerifyChain(ctx context.Context) ([]integrity.Discrepancy, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	s.chainMu.Lock()
	records, err := s.ListAll(ctx)
	s.chainMu.Unlock()
	if err != nil {
		return nil, err
	}

	return integrity.VerifyRecords(records), nil
}

// HashBackfill populates missing hashes in ID order, chaining each repaired
// record onto the last hashed one. Records before the last hashed event are
// never touched; holes there are a verification finding, not repairable state.
func (s *Store) HashBackfill(ctx context.Context) (int, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	s.chainMu.Lock()
	defer s.chainMu.Unlock()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	prevHash := integrity.GenesisHash
	lastHashedID := int64(0)
	var hashed sql.NullString
	err = tx.QueryRowContext(ctx, `
SELECT id, event_hash FROM stored_events
WHERE event_hash IS NOT NULL ORDER BY id DESC LIMIT 1`).Scan(&lastHashedID, &hashed)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return 0, fmt.Errorf("load last hashed event: %w", err)
	default:
		prevHash = hashed.String
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM stored_events WHERE event_hash IS NULL AND id > ? ORDER BY id",
		lastHashedID)
	if err != nil {
		return 0, fmt.Errorf("query unhashed events: %w", err)
	}
	pending, err := scanEvents(rows)
	rows.Close()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, evt := range pending {
		hash, err := integrity.ChainHash(evt, prevHash)
		if err != nil {
			return 0, fmt.Errorf("compute chain hash for event %d: %w", evt.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE stored_events SET event_hash = ?, previous_hash = ? WHERE id = ?",
			hash, prevHash, evt.ID); err != nil {
			return 0, fmt.Errorf("store chain hash for event %d: %w", evt.ID, err)
		}
		prevHash = hash
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	return count, nil
}

// ListMatchAggregateUUIDs returns every match aggregate in the log in
// creation order. Used by replay tooling to rebuild all matches.
func (s *Store) ListMatchAggregateUUIDs(ctx context.Context) ([]string, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT aggregate_uuid FROM stored_events WHERE event_type = ? ORDER BY id",
		string(event.TypeMatchCreated))
	if err != nil {
		return nil, fmt.Errorf("query match aggregates: %w", err)
	}
	defer rows.Close()

	var uuids []string
	for rows.Next() {
		var uuid string
		if err := rows.Scan(&uuid); err != nil {
			return nil, fmt.Errorf("scan aggregate uuid: %w", err)
		}
		uuids = append(uuids, uuid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregates: %w", err)
	}
	return uuids, nil
}

func scanEvents(rows *sql.Rows) ([]event.Event, error) {
	var events []event.Event
	for rows.Next() {
		var (
			evt       event.Event
			eventType string
			payload   string
			createdAt int64
			hash      sql.NullString
			prevHash  sql.NullString
		)
		if err := rows.Scan(&evt.ID, &evt.AggregateUUID, &eventType, &payload,
			&createdAt, &hash, &prevHash); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Type = event.Type(eventType)
		evt.PayloadJSON = []byte(payload)
		evt.CreatedAt = fromMillis(createdAt)
		evt.Hash = hash.String
		evt.PrevHash = prevHash.String
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
