// Package elo computes rating changes for completed matches.
//
// All functions are pure and deterministic: verification tooling recomputes
// expected read-model values with the same formulas, so changes here require
// a coordinated migration of stored rating rows.
package elo

import "math"

const (
	// DefaultRating is the starting rating for a newly registered player.
	DefaultRating = 1000
	// DefaultKFactor is used when no experience-based K-factor applies,
	// including both sides of a team match.
	DefaultKFactor = 32
	// streakBonusThreshold is the minimum win streak that earns a bonus
	// for the player who breaks it.
	streakBonusThreshold = 3
	// streakBonusCap limits the streak-breaking bonus.
	streakBonusCap = 10
)

// MatchChange holds both deltas for a decided match.
//
// Winner and loser deltas are computed independently, so they are not
// zero-sum: different K-factors break the symmetry on purpose.
type MatchChange struct {
	Winner int
	Loser  int
}

// ExpectedScore returns the logistic win probability of player against opponent.
func ExpectedScore(playerRating, opponentRating int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(opponentRating-playerRating)/400.0))
}

// KFactorForExperience selects a K-factor from matches played. New players
// calibrate faster; veterans move slower.
func KFactorForExperience(matchesPlayed int) int {
	if matchesPlayed < 10 {
		return 40
	}
	if matchesPlayed < 30 {
		return 32
	}
	return 24
}

// Delta returns the rating change for one player given the match outcome.
func Delta(playerRating, opponentRating int, won bool, kFactor int) int {
	actual := 0.0
	if won {
		actual = 1.0
	}
	return int(math.Round(float64(kFactor) * (actual - ExpectedScore(playerRating, opponentRating))))
}

// StreakBonus returns the bonus for breaking a win streak, capped at 10.
func StreakBonus(streak int) int {
	if streak < streakBonusThreshold {
		return 0
	}
	return min(streak, streakBonusCap)
}

// MatchDeltas computes winner and loser deltas for a decided match.
// When the streak multiplier is enabled and the loser carried a streak of
// three or more, the winner gains the streak bonus and the loser loses the
// same amount on top of the base deltas.
func MatchDeltas(winnerRating, loserRating, winnerKFactor, loserKFactor, loserWinStreak int, streakMultiplierEnabled bool) MatchChange {
	change := MatchChange{
		Winner: Delta(winnerRating, loserRating, true, winnerKFactor),
		Loser:  Delta(loserRating, winnerRating, false, loserKFactor),
	}

	if streakMultiplierEnabled && loserWinStreak >= streakBonusThreshold {
		bonus := StreakBonus(loserWinStreak)
		change.Winner += bonus
		change.Loser -= bonus
	}

	return change
}

// PlacementDelta computes a free-for-all rating change from final placement.
// The expected placement is the mean (playerCount+1)/2; finishing above it
// scores positive, below it negative, proportional to the deviation. A
// 2-player free-for-all is legal and intentionally degenerates to roughly
// ±kFactor/4.
func PlacementDelta(placement, playerCount, kFactor int) int {
	expectedPlacement := float64(playerCount+1) / 2.0
	return int(math.Round((expectedPlacement - float64(placement)) * float64(kFactor) / 2.0))
}
