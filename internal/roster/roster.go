// Package roster implements the Team / Roster Controller: join/leave/spectate,
// team assignment, drawer-queue round robin and role assignment for both
// teams and free-for-all modes. Each team keeps its own drawer queue; free-
// for-all play uses a single pool held as teams[0].
package roster

import (
	"fmt"

	"github.com/shiblyc-four/party-games/internal/state"
)

// InitTeams replaces the teams array with count fresh teams from the
// TEAM_PRESETS palette, clearing queues and scores.
func InitTeams(g *state.GameState, count int) {
	if count > len(state.TeamPresets) {
		count = len(state.TeamPresets)
	}
	teams := make([]*state.Team, count)
	for i := 0; i < count; i++ {
		preset := state.TeamPresets[i]
		teams[i] = &state.Team{
			Name:        preset.Name,
			Color:       preset.Color,
			DrawerQueue: make([]string, 0),
		}
	}
	g.Teams = teams
}

func removeFromQueue(queue []string, sessionID string) []string {
	out := queue[:0:0]
	for _, id := range queue {
		if id != sessionID {
			out = append(out, id)
		}
	}
	return out
}

// JoinTeam moves a player onto a team's drawer queue. If the player was
// already on a team, its session id is first removed from that queue;
// rejoining the same team is idempotent but reorders the player to the
// tail.
func JoinTeam(g *state.GameState, player *state.Player, teamIndex int) error {
	if teamIndex < 0 || teamIndex >= len(g.Teams) {
		return fmt.Errorf("team index %d out of range", teamIndex)
	}
	if player.TeamIndex >= 0 && player.TeamIndex < len(g.Teams) {
		old := g.Teams[player.TeamIndex]
		old.DrawerQueue = removeFromQueue(old.DrawerQueue, player.SessionID)
	}
	player.TeamIndex = teamIndex
	g.Teams[teamIndex].DrawerQueue = append(g.Teams[teamIndex].DrawerQueue, player.SessionID)
	return nil
}

// SetSpectator removes the player from any team queue and marks them a
// spectator.
func SetSpectator(g *state.GameState, player *state.Player) {
	if player.TeamIndex >= 0 && player.TeamIndex < len(g.Teams) {
		old := g.Teams[player.TeamIndex]
		old.DrawerQueue = removeFromQueue(old.DrawerQueue, player.SessionID)
	}
	player.TeamIndex = -1
	player.Role = state.RoleSpectator
}

// GetNextDrawer pops the front of a team's queue and pushes it to the tail,
// round-robin. Returns "" if the queue is empty.
func GetNextDrawer(g *state.GameState, teamIndex int) string {
	if teamIndex < 0 || teamIndex >= len(g.Teams) {
		return ""
	}
	team := g.Teams[teamIndex]
	if len(team.DrawerQueue) == 0 {
		return ""
	}
	next := team.DrawerQueue[0]
	team.DrawerQueue = append(team.DrawerQueue[1:], next)
	return next
}

// AssignRoles sets every player's role for teams mode: drawer for the chosen
// sessionId, guesser for teammates, opponent for other teams, spectator for
// the unassigned.
func AssignRoles(g *state.GameState, drawerSessionID string, activeTeamIndex int) {
	for _, p := range g.Players {
		switch {
		case p.SessionID == drawerSessionID:
			p.Role = state.RoleDrawer
		case p.TeamIndex < 0:
			p.Role = state.RoleSpectator
		case p.TeamIndex == activeTeamIndex:
			p.Role = state.RoleGuesser
		default:
			p.Role = state.RoleOpponent
		}
	}
}

// InitFFA clears the teams array and installs a single pseudo-team (the FFA
// pool) at index 0; every connected player is enrolled.
func InitFFA(g *state.GameState) {
	pool := &state.Team{Name: "Everyone", DrawerQueue: make([]string, 0)}
	for _, p := range g.ConnectedPlayers() {
		p.TeamIndex = 0
		pool.DrawerQueue = append(pool.DrawerQueue, p.SessionID)
	}
	g.Teams = []*state.Team{pool}
	g.FFAPool = pool.DrawerQueue
}

// AssignFFARoles sets drawer for the one sessionId, guesser for everyone
// else in the pool, spectator otherwise.
func AssignFFARoles(g *state.GameState, drawerSessionID string) {
	pool := map[string]bool{}
	if len(g.Teams) > 0 {
		for _, id := range g.Teams[0].DrawerQueue {
			pool[id] = true
		}
	}
	for id := range g.PlayerScores {
		pool[id] = true
	}
	for _, p := range g.Players {
		switch {
		case p.SessionID == drawerSessionID:
			p.Role = state.RoleDrawer
		case pool[p.SessionID] && p.TeamIndex == 0:
			p.Role = state.RoleGuesser
		default:
			p.Role = state.RoleSpectator
		}
	}
}

// GetNextFFADrawer is round-robin on the pool queue (teams[0]).
func GetNextFFADrawer(g *state.GameState) string {
	if len(g.Teams) == 0 {
		return ""
	}
	id := GetNextDrawer(g, 0)
	g.FFAPool = g.Teams[0].DrawerQueue
	return id
}

// GetSuddenDeathDrawer scans the pool in queue order for the first
// connected sessionId not in tiedIds; falls back to tiedIds[0].
func GetSuddenDeathDrawer(g *state.GameState, tiedIds []string) string {
	tied := map[string]bool{}
	for _, id := range tiedIds {
		tied[id] = true
	}
	if len(g.Teams) > 0 {
		for _, id := range g.Teams[0].DrawerQueue {
			if tied[id] {
				continue
			}
			if p, ok := g.Players[id]; ok && p.IsConnected {
				return id
			}
		}
	}
	if len(tiedIds) > 0 {
		return tiedIds[0]
	}
	return ""
}

// CanStartGame returns ok/reason: teams mode needs at least two teams with
// >=1 queued player each; FFA needs at least two connected players.
func CanStartGame(g *state.GameState) (bool, string) {
	if g.Settings.GameMode == state.ModeFFA {
		if len(g.ConnectedPlayers()) < 2 {
			return false, "need at least 2 connected players"
		}
		return true, ""
	}

	readyTeams := 0
	for _, t := range g.Teams {
		if len(t.DrawerQueue) > 0 {
			readyTeams++
		}
	}
	if readyTeams < 2 {
		return false, "need at least 2 teams with a player each"
	}
	return true, ""
}

// HandleDisconnect flips isConnected off. Queue membership is preserved
// through the grace window.
func HandleDisconnect(player *state.Player) {
	player.IsConnected = false
}

// HandleReconnect flips isConnected back on.
func HandleReconnect(player *state.Player) {
	player.IsConnected = true
}
