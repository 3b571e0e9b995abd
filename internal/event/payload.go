package event

// Payload field names are the stable wire format for stored events. Envelope
// fields use camelCase and player-result entries use snake_case; changing
// either breaks replay of existing logs.

// MatchCreatedPayload captures the payload for match.created events.
type MatchCreatedPayload struct {
	MatchUUID       string  `json:"matchUuid"`
	GameID          int64   `json:"gameId"`
	MatchCode       string  `json:"matchCode"`
	CreatedByUserID int64   `json:"createdByUserId"`
	MatchType       string  `json:"matchType"`
	Name            *string `json:"name"`
	ScheduledAt     *string `json:"scheduledAt"`
	ShareToken      *string `json:"shareToken"`
	MatchFormat     string  `json:"matchFormat"`
	MaxPlayers      int     `json:"maxPlayers"`
}

// PlayerJoinedPayload captures the payload for match.player_joined events.
type PlayerJoinedPayload struct {
	MatchUUID    string  `json:"matchUuid"`
	UserID       int64   `json:"userId"`
	RatingBefore int     `json:"ratingBefore"`
	Team         *string `json:"team"`
}

// MatchConfirmedPayload captures the payload for match.confirmed events.
type MatchConfirmedPayload struct {
	MatchUUID string `json:"matchUuid"`
}

// MatchCompletedPayload captures the payload for match.completed events.
type MatchCompletedPayload struct {
	MatchUUID          string `json:"matchUuid"`
	WinnerID           int64  `json:"winnerId"`
	LoserID            int64  `json:"loserId"`
	WinnerRatingBefore int    `json:"winnerRatingBefore"`
	LoserRatingBefore  int    `json:"loserRatingBefore"`
	WinnerRatingChange int    `json:"winnerRatingChange"`
	LoserRatingChange  int    `json:"loserRatingChange"`
}

// PlayerResult is one player's outcome inside match.results_recorded events.
type PlayerResult struct {
	UserID       int64   `json:"user_id"`
	Result       string  `json:"result"`
	Placement    *int    `json:"placement"`
	RatingBefore int     `json:"rating_before"`
	RatingChange int     `json:"rating_change"`
	Team         *string `json:"team"`
}

// MatchResultsRecordedPayload captures the payload for match.results_recorded
// events, covering team and free-for-all completions.
type MatchResultsRecordedPayload struct {
	MatchUUID     string         `json:"matchUuid"`
	MatchFormat   string         `json:"matchFormat"`
	PlayerResults []PlayerResult `json:"playerResults"`
	WinningTeam   *string        `json:"winningTeam,omitempty"`
}

// PlayerLeftPayload captures the payload for match.player_left events.
type PlayerLeftPayload struct {
	MatchUUID string `json:"matchUuid"`
	UserID    int64  `json:"userId"`
}

// PlayerSwitchedTeamPayload captures the payload for match.player_switched_team events.
type PlayerSwitchedTeamPayload struct {
	MatchUUID string `json:"matchUuid"`
	UserID    int64  `json:"userId"`
	NewTeam   string `json:"newTeam"`
}

// MatchFormatChangedPayload captures the payload for match.format_changed events.
type MatchFormatChangedPayload struct {
	MatchUUID     string `json:"matchUuid"`
	NewFormat     string `json:"newFormat"`
	NewMaxPlayers int    `json:"newMaxPlayers"`
}

// MatchCancelledPayload captures the payload for match.cancelled events.
type MatchCancelledPayload struct {
	MatchUUID string  `json:"matchUuid"`
	Reason    *string `json:"reason"`
}

// PlayerRegisteredPayload captures the payload for rating.player_registered events.
type PlayerRegisteredPayload struct {
	RatingUUID    string `json:"ratingUuid"`
	UserID        int64  `json:"userId"`
	GameID        int64  `json:"gameId"`
	InitialRating int    `json:"initialRating"`
}
