// Package errors provides structured error handling with machine-readable codes.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Match command errors
	CodeMatchAlreadyExists    Code = "MATCH_ALREADY_EXISTS"
	CodeMatchNotFound         Code = "MATCH_NOT_FOUND"
	CodeMatchNotPending       Code = "MATCH_NOT_PENDING"
	CodeMatchNotConfirmed     Code = "MATCH_NOT_CONFIRMED"
	CodeMatchFull             Code = "MATCH_FULL"
	CodeMatchNotEnoughPlayers Code = "MATCH_NOT_ENOUGH_PLAYERS"
	CodeMatchFinished         Code = "MATCH_FINISHED"
	CodeMatchFormatInvalid    Code = "MATCH_FORMAT_INVALID"
	CodeMatchTooManyPlayers   Code = "MATCH_TOO_MANY_PLAYERS"

	// Player errors
	CodePlayerAlreadyInMatch Code = "PLAYER_ALREADY_IN_MATCH"
	CodePlayerNotInMatch     Code = "PLAYER_NOT_IN_MATCH"
	CodePlayerHasActiveMatch Code = "PLAYER_HAS_ACTIVE_MATCH"
	CodeCreatorCannotLeave   Code = "CREATOR_CANNOT_LEAVE"
	CodeInvalidWinner        Code = "INVALID_WINNER"
	CodeTeamFull             Code = "TEAM_FULL"
	CodeMatchFormatNotTeam   Code = "MATCH_FORMAT_NOT_TEAM"
	CodeMatchFormatNotFfa    Code = "MATCH_FORMAT_NOT_FFA"

	// Storage errors
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeUnhashedTail Code = "UNHASHED_TAIL"
)

// IsRetryable reports whether an operation that failed with this code can be
// retried against fresh state. Only optimistic-concurrency conflicts qualify;
// domain rejections are final for the state that produced them.
func (c Code) IsRetryable() bool {
	return c == CodeConflict
}
