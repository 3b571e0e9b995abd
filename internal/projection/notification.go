// Package projection applies stored events to the read models and computes
// the follow-on effects of completed matches.
package projection

import "github.com/louisbranch/rivalry.club/internal/storage"

// Notification describes a match update that should be pushed to connected
// clients. Projectors return it as a value instead of publishing it
// themselves; delivery is the caller's concern. Match is the freshly
// projected read-model row, so subscribers can render the update without
// querying back.
type Notification struct {
	MatchUUID string
	Action    string
	Match     storage.MatchRecord
}

// Notification actions. Match creation deliberately produces none: nobody is
// watching a match that was just created.
const (
	ActionPlayerJoined  = "player_joined"
	ActionConfirmed     = "confirmed"
	ActionCompleted     = "completed"
	ActionCancelled     = "cancelled"
	ActionPlayerLeft    = "player_left"
	ActionTeamSwitched  = "team_switched"
	ActionFormatChanged = "format_changed"
)
