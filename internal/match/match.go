// Package match holds the match aggregate: the replayed state, the fold that
// builds it from events, and the decider that turns commands into events.
package match

// Status is the lifecycle state of a match.
type Status string

// Match lifecycle statuses.
const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Format is the competitive format of a match.
type Format string

// Supported match formats.
const (
	Format1v1 Format = "1v1"
	Format2v2 Format = "2v2"
	Format3v3 Format = "3v3"
	Format4v4 Format = "4v4"
	FormatFFA Format = "ffa"
)

// Team labels for team formats.
const (
	TeamA = "team_a"
	TeamB = "team_b"
)

// Player is one roster entry in the aggregate state. Team is empty for
// non-team formats.
type Player struct {
	UserID       int64
	RatingBefore int
	Team         string
}

// State is the match aggregate state rebuilt by folding events in order.
type State struct {
	Created         bool
	Status          Status
	CreatedByUserID int64
	Format          Format
	MaxPlayers      int
	Players         []Player
}

// IsValid reports whether f is a supported format.
func (f Format) IsValid() bool {
	switch f {
	case Format1v1, Format2v2, Format3v3, Format4v4, FormatFFA:
		return true
	}
	return false
}

// IsTeam reports whether f splits players into two teams.
func (f Format) IsTeam() bool {
	switch f {
	case Format2v2, Format3v3, Format4v4:
		return true
	}
	return false
}

// PlayersPerTeam returns the roster size of one team for team formats.
func (f Format) PlayersPerTeam() int {
	switch f {
	case Format2v2:
		return 2
	case Format3v3:
		return 3
	case Format4v4:
		return 4
	}
	return 2
}

// DefaultMaxPlayers returns the roster capacity implied by a format.
func (f Format) DefaultMaxPlayers() int {
	switch f {
	case Format1v1:
		return 2
	case Format2v2:
		return 4
	case Format3v3:
		return 6
	case Format4v4:
		return 8
	case FormatFFA:
		return 8
	}
	return 2
}

// ConfirmMinPlayers returns the roster size required to confirm: a full
// roster for fixed formats, three players for free-for-all.
func (s State) ConfirmMinPlayers() int {
	if s.Format == FormatFFA {
		return 3
	}
	return s.MaxPlayers
}

// PlayerByID returns the roster entry for userID, if present.
func (s State) PlayerByID(userID int64) (Player, bool) {
	for _, p := range s.Players {
		if p.UserID == userID {
			return p, true
		}
	}
	return Player{}, false
}

// TeamCount returns how many roster entries are assigned to team.
func (s State) TeamCount(team string) int {
	n := 0
	for _, p := range s.Players {
		if p.Team == team {
			n++
		}
	}
	return n
}
