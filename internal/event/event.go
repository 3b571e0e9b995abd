package event

import "time"

// Type identifies the kind of a stored domain event.
type Type string

// Match lifecycle events.
const (
	// TypeMatchCreated records the creation of a match.
	TypeMatchCreated Type = "match.created"
	// TypePlayerJoined records a player joining a match.
	TypePlayerJoined Type = "match.player_joined"
	// TypeMatchConfirmed records a match locking its roster.
	TypeMatchConfirmed Type = "match.confirmed"
	// TypeMatchCompleted records a 1v1 match result with both rating deltas.
	TypeMatchCompleted Type = "match.completed"
	// TypeMatchResultsRecorded records team or free-for-all results per player.
	TypeMatchResultsRecorded Type = "match.results_recorded"
	// TypePlayerLeft records a player leaving a pending match.
	TypePlayerLeft Type = "match.player_left"
	// TypePlayerSwitchedTeam records a player moving to the other team.
	TypePlayerSwitchedTeam Type = "match.player_switched_team"
	// TypeMatchFormatChanged records a format change while pending.
	TypeMatchFormatChanged Type = "match.format_changed"
	// TypeMatchCancelled records a match cancellation.
	TypeMatchCancelled Type = "match.cancelled"
)

// Rating events.
const (
	// TypePlayerRegistered records a player's first rating for a game.
	TypePlayerRegistered Type = "rating.player_registered"
)

// Event is an immutable record in the append-only event log.
//
// ID, CreatedAt, Hash, and PrevHash are assigned by storage on append; domain
// deciders emit events with only AggregateUUID, Type, and PayloadJSON set.
type Event struct {
	// ID is the global sequence number (strictly increasing, gapless).
	ID int64
	// AggregateUUID identifies the aggregate stream this event belongs to.
	AggregateUUID string
	// Type identifies the kind of event.
	Type Type
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
	// CreatedAt is when the event was appended.
	CreatedAt time.Time
	// Hash is the SHA-256 digest chaining this record to its predecessor.
	Hash string
	// PrevHash is the Hash of the immediately preceding record in the log,
	// or the genesis constant for the first record.
	PrevHash string
}

// IsValid reports whether t is one of the known event types.
func (t Type) IsValid() bool {
	switch t {
	case TypeMatchCreated, TypePlayerJoined, TypeMatchConfirmed,
		TypeMatchCompleted, TypeMatchResultsRecorded, TypePlayerLeft,
		TypePlayerSwitchedTeam, TypeMatchFormatChanged, TypeMatchCancelled,
		TypePlayerRegistered:
		return true
	}
	return false
}

// Domain returns the domain prefix of the event type (e.g., "match", "rating").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}
