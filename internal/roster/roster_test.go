package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiblyc-four/party-games/internal/state"
)

func newTeamsGame() *state.GameState {
	g := state.NewGameState("ABCDE")
	g.Settings.GameMode = state.ModeTeams
	InitTeams(g, 2)
	return g
}

func addPlayer(g *state.GameState, id string) *state.Player {
	p := &state.Player{SessionID: id, Nickname: id, TeamIndex: -1, IsConnected: true}
	g.Players[id] = p
	return p
}

func TestJoinTeamMovesPlayerBetweenQueues(t *testing.T) {
	g := newTeamsGame()
	p := addPlayer(g, "p1")

	require.NoError(t, JoinTeam(g, p, 0))
	assert.Equal(t, []string{"p1"}, g.Teams[0].DrawerQueue)

	require.NoError(t, JoinTeam(g, p, 1))
	assert.Empty(t, g.Teams[0].DrawerQueue)
	assert.Equal(t, []string{"p1"}, g.Teams[1].DrawerQueue)
}

func TestJoinTeamRejectsOutOfRangeIndex(t *testing.T) {
	g := newTeamsGame()
	p := addPlayer(g, "p1")
	assert.Error(t, JoinTeam(g, p, 5))
}

func TestGetNextDrawerRotatesRoundRobin(t *testing.T) {
	g := newTeamsGame()
	p1, p2 := addPlayer(g, "p1"), addPlayer(g, "p2")
	require.NoError(t, JoinTeam(g, p1, 0))
	require.NoError(t, JoinTeam(g, p2, 0))

	first := GetNextDrawer(g, 0)
	second := GetNextDrawer(g, 0)
	third := GetNextDrawer(g, 0)

	assert.Equal(t, "p1", first)
	assert.Equal(t, "p2", second)
	assert.Equal(t, "p1", third)
}

func TestGetNextDrawerEmptyQueueReturnsEmptyString(t *testing.T) {
	g := newTeamsGame()
	assert.Equal(t, "", GetNextDrawer(g, 0))
}

func TestSetSpectatorClearsTeamMembership(t *testing.T) {
	g := newTeamsGame()
	p := addPlayer(g, "p1")
	require.NoError(t, JoinTeam(g, p, 0))

	SetSpectator(g, p)
	assert.Equal(t, -1, p.TeamIndex)
	assert.Equal(t, state.RoleSpectator, p.Role)
	assert.Empty(t, g.Teams[0].DrawerQueue)
}

func TestCanStartGameTeamsRequiresTwoNonEmptyTeams(t *testing.T) {
	g := newTeamsGame()
	p1 := addPlayer(g, "p1")
	require.NoError(t, JoinTeam(g, p1, 0))

	ok, _ := CanStartGame(g)
	assert.False(t, ok)

	p2 := addPlayer(g, "p2")
	require.NoError(t, JoinTeam(g, p2, 1))

	ok, reason := CanStartGame(g)
	assert.True(t, ok, reason)
}

func TestCanStartGameFFARequiresTwoConnectedPlayers(t *testing.T) {
	g := state.NewGameState("ABCDE")
	g.Settings.GameMode = state.ModeFFA
	addPlayer(g, "p1")

	ok, _ := CanStartGame(g)
	assert.False(t, ok)

	addPlayer(g, "p2")
	ok, reason := CanStartGame(g)
	assert.True(t, ok, reason)
}

func TestInitFFAEnrollsConnectedPlayersOnly(t *testing.T) {
	g := state.NewGameState("ABCDE")
	g.Settings.GameMode = state.ModeFFA
	addPlayer(g, "p1")
	disconnected := addPlayer(g, "p2")
	disconnected.IsConnected = false

	InitFFA(g)

	require.Len(t, g.Teams, 1)
	assert.ElementsMatch(t, []string{"p1"}, g.Teams[0].DrawerQueue)
}

func TestGetSuddenDeathDrawerSkipsTiedPlayers(t *testing.T) {
	g := state.NewGameState("ABCDE")
	g.Settings.GameMode = state.ModeFFA
	addPlayer(g, "p1")
	addPlayer(g, "p2")
	addPlayer(g, "p3")
	InitFFA(g)

	drawer := GetSuddenDeathDrawer(g, []string{"p1", "p2"})
	assert.Equal(t, "p3", drawer)
}

func TestHandleDisconnectAndReconnectToggleConnectivity(t *testing.T) {
	p := &state.Player{SessionID: "p1", IsConnected: true}
	HandleDisconnect(p)
	assert.False(t, p.IsConnected)
	HandleReconnect(p)
	assert.True(t, p.IsConnected)
}
