// Package score implements the Score Controller: flat point awards and
// per-mode win-condition evaluation. Every correct guess is worth exactly
// one point, regardless of how quickly it landed.
package score

import "github.com/shiblyc-four/party-games/internal/state"

// AwardPoint increments a team's score.
func AwardPoint(g *state.GameState, teamIndex int) {
	if teamIndex < 0 || teamIndex >= len(g.Teams) {
		return
	}
	g.Teams[teamIndex].Score++
}

// AwardPlayerPoint increments an FFA player's score.
func AwardPlayerPoint(g *state.GameState, sessionID string) {
	g.PlayerScores[sessionID] = g.PlayerScores[sessionID] + 1
}

// CheckWinCondition (teams mode). Points mode returns the lowest index team
// with score >= targetScore, else -1. Rounds mode returns the highest
// scoring team once currentRound >= totalRounds; the strict-greater-than
// scan means a tie favors whichever tied team has the lowest index, rather
// than requiring a separate tie-breaker for teams play.
func CheckWinCondition(g *state.GameState) int {
	if g.Settings.WinMode == state.WinPoints {
		for i, t := range g.Teams {
			if t.Score >= g.Settings.TargetScore {
				return i
			}
		}
		return -1
	}

	if g.CurrentRound < g.Settings.TotalRounds {
		return -1
	}
	best := -1
	bestScore := -1
	for i, t := range g.Teams {
		if t.Score > bestScore {
			bestScore = t.Score
			best = i
		}
	}
	return best
}

// CheckFFAWinCondition returns every sessionId tied for the max score, once
// the configured win condition is met; nil/empty means "keep playing".
func CheckFFAWinCondition(g *state.GameState) []string {
	maxScore := 0
	for _, s := range g.PlayerScores {
		if s > maxScore {
			maxScore = s
		}
	}

	if g.Settings.WinMode == state.WinPoints {
		if maxScore < g.Settings.TargetScore {
			return nil
		}
	} else {
		if g.CurrentRound < g.Settings.TotalRounds {
			return nil
		}
	}

	if maxScore == 0 {
		return nil
	}

	var winners []string
	for id, s := range g.PlayerScores {
		if s == maxScore {
			winners = append(winners, id)
		}
	}
	return winners
}

// ResetTeamScores zeroes every team's scoreboard.
func ResetTeamScores(g *state.GameState) {
	for _, t := range g.Teams {
		t.Score = 0
	}
}

// ResetPlayerScores clears the FFA scoreboard.
func ResetPlayerScores(g *state.GameState) {
	g.PlayerScores = make(map[string]int)
}
