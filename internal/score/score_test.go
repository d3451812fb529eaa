package score

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shiblyc-four/party-games/internal/state"
)

func teamsState() *state.GameState {
	g := state.NewGameState("ABCDE")
	g.Settings.GameMode = state.ModeTeams
	g.Teams = []*state.Team{{Name: "Blaze"}, {Name: "Wave"}}
	return g
}

func TestAwardPointIncrementsTeamScore(t *testing.T) {
	g := teamsState()
	AwardPoint(g, 0)
	AwardPoint(g, 0)
	assert.Equal(t, 2, g.Teams[0].Score)
	assert.Equal(t, 0, g.Teams[1].Score)
}

func TestAwardPointIgnoresOutOfRangeIndex(t *testing.T) {
	g := teamsState()
	AwardPoint(g, 5)
	assert.Equal(t, 0, g.Teams[0].Score)
}

func TestCheckWinConditionPointsModeReturnsLowestIndexAtTarget(t *testing.T) {
	g := teamsState()
	g.Settings.WinMode = state.WinPoints
	g.Settings.TargetScore = 3
	g.Teams[0].Score = 3
	g.Teams[1].Score = 5

	assert.Equal(t, 0, CheckWinCondition(g))
}

func TestCheckWinConditionPointsModeNotYetReached(t *testing.T) {
	g := teamsState()
	g.Settings.WinMode = state.WinPoints
	g.Settings.TargetScore = 10
	g.Teams[0].Score = 3

	assert.Equal(t, -1, CheckWinCondition(g))
}

func TestCheckWinConditionRoundsModeWaitsForFinalRound(t *testing.T) {
	g := teamsState()
	g.Settings.WinMode = state.WinRounds
	g.Settings.TotalRounds = 5
	g.CurrentRound = 3
	g.Teams[0].Score = 10

	assert.Equal(t, -1, CheckWinCondition(g))
}

func TestCheckWinConditionRoundsModeStrictGreaterFavorsLowestIndexOnTie(t *testing.T) {
	g := teamsState()
	g.Settings.WinMode = state.WinRounds
	g.Settings.TotalRounds = 5
	g.CurrentRound = 5
	g.Teams[0].Score = 4
	g.Teams[1].Score = 4

	assert.Equal(t, 0, CheckWinCondition(g))
}

func TestCheckFFAWinConditionReturnsAllTiedLeaders(t *testing.T) {
	g := state.NewGameState("ABCDE")
	g.Settings.WinMode = state.WinPoints
	g.Settings.TargetScore = 3
	g.PlayerScores = map[string]int{"p1": 3, "p2": 3, "p3": 1}

	winners := CheckFFAWinCondition(g)
	assert.ElementsMatch(t, []string{"p1", "p2"}, winners)
}

func TestCheckFFAWinConditionNilWhenTargetNotReached(t *testing.T) {
	g := state.NewGameState("ABCDE")
	g.Settings.WinMode = state.WinPoints
	g.Settings.TargetScore = 10
	g.PlayerScores = map[string]int{"p1": 3}

	assert.Nil(t, CheckFFAWinCondition(g))
}

func TestResetScoresZeroesEverything(t *testing.T) {
	g := teamsState()
	g.Teams[0].Score = 5
	ResetTeamScores(g)
	assert.Equal(t, 0, g.Teams[0].Score)

	g.PlayerScores = map[string]int{"p1": 9}
	ResetPlayerScores(g)
	assert.Empty(t, g.PlayerScores)
}
