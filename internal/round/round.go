// Package round implements the Round Controller: the phase state machine
// that starts games, offers word choices, runs the drawing/hint timers,
// arbitrates guesses and drives rounds through to game-over or sudden death.
// Every correct guess is worth one flat point regardless of how quickly it
// landed; team play draws from a per-team queue, free-for-all play from a
// single pool held as teams[0].
//
// The controller never references the Room directly: it is handed a small
// Broadcaster for outbound messages and a Timers handle for cancellable
// scheduling at construction, which keeps it testable without a live
// transport.
package round

import (
	"math/rand"
	"time"

	"github.com/shiblyc-four/party-games/internal/roster"
	"github.com/shiblyc-four/party-games/internal/score"
	"github.com/shiblyc-four/party-games/internal/state"
	"github.com/shiblyc-four/party-games/internal/wordbank"
)

// Broadcaster is the outbound message surface a Room provides to the
// controller: direct (single-client) and broadcast (all/all-but-one) sends,
// plus ClearCanvas, which both notifies clients and resets the Room's own
// server-side stroke history -- the controller must never hold stroke data
// itself, so clearing it is always delegated back through this interface.
type Broadcaster interface {
	BroadcastAll(msgType string, data any)
	BroadcastExcept(exclude string, msgType string, data any)
	SendDirect(sessionID string, msgType string, data any)
	ClearCanvas()
}

// Timers is a keyed, cancellable scheduler. Arming a key cancels any prior
// timer under the same key before scheduling the new one. fn always runs on
// the room's serial event loop, never directly on the timer goroutine --
// see internal/room/timers.go.
type Timers interface {
	Arm(key string, d time.Duration, fn func())
	Cancel(key string)
	CancelAll()
}

// Timer keys under which the controller arms its timers; arming a key again
// replaces the timer previously armed under it.
const (
	TimerWordSelect = "word-select"
	TimerTick       = "tick"
	TimerHint       = "hint"
	TimerRoundEnd   = "round-end"
)

// Controller is the per-room round engine. It holds the in-progress hint
// state and the word choices last offered to the drawer -- both are
// round-local bookkeeping that never belongs on the replicated GameState.
type Controller struct {
	bus    Broadcaster
	timers Timers

	hint           *wordbank.Hint
	currentChoices []string
}

func New(bus Broadcaster, timers Timers) *Controller {
	return &Controller{bus: bus, timers: timers}
}

// StartGame resets round/score bookkeeping for a fresh game and begins the
// first round.
func (c *Controller) StartGame(g *state.GameState) {
	g.CurrentRound = 0
	g.ActiveTeamIndex = 0
	g.WinningTeamIndex = -1
	g.IsSuddenDeath = false
	g.WinnerSessionIDs = nil

	if g.Settings.GameMode == state.ModeTeams {
		score.ResetTeamScores(g)
	} else {
		score.ResetPlayerScores(g)
		roster.InitFFA(g)
	}

	c.StartNextRound(g)
}

// StartNextRound cancels pending timers, clears the canvas and advances to
// word-select for the next drawer.
func (c *Controller) StartNextRound(g *state.GameState) {
	c.timers.CancelAll()
	c.bus.ClearCanvas()

	g.Guesses = nil
	g.WordHint = ""
	g.SetCurrentWord("")
	g.CurrentRound++

	var drawer string
	if g.Settings.GameMode == state.ModeTeams {
		if len(g.Teams) == 0 {
			return
		}
		n := len(g.Teams)
		for i := 0; i < n; i++ {
			if len(g.Teams[g.ActiveTeamIndex].DrawerQueue) > 0 {
				break
			}
			g.ActiveTeamIndex = (g.ActiveTeamIndex + 1) % n
		}
		drawer = roster.GetNextDrawer(g, g.ActiveTeamIndex)
		if drawer == "" {
			return
		}
		roster.AssignRoles(g, drawer, g.ActiveTeamIndex)
	} else {
		drawer = roster.GetNextFFADrawer(g)
		if drawer == "" {
			return
		}
		roster.AssignFFARoles(g, drawer)
	}
	g.CurrentDrawer = drawer

	choices := wordbank.Choices(g.Settings.WordCategory, 3)
	c.currentChoices = choices
	c.bus.SendDirect(drawer, "wordChoices", map[string]any{"words": choices})
	g.Phase = state.PhaseWordSelect

	c.armAutoPick(g, choices)
}

func (c *Controller) armAutoPick(g *state.GameState, choices []string) {
	if len(choices) == 0 {
		return
	}
	c.timers.Arm(TimerWordSelect, state.WordSelectTimeout, func() {
		if g.Phase != state.PhaseWordSelect || g.CurrentWord() != "" {
			return
		}
		c.applySelectedWord(g, choices[rand.Intn(len(choices))])
	})
}

// SelectWord handles the drawer's explicit word choice. Phase and identity
// guards are also enforced by the Room's dispatch table; the redundant
// check here keeps the controller safe to call directly from tests.
func (c *Controller) SelectWord(g *state.GameState, sessionID string, index int) {
	if g.Phase != state.PhaseWordSelect || sessionID != g.CurrentDrawer {
		return
	}
	if index < 0 || index >= len(c.currentChoices) {
		return
	}
	c.applySelectedWord(g, c.currentChoices[index])
}

func (c *Controller) applySelectedWord(g *state.GameState, word string) {
	c.timers.Cancel(TimerWordSelect)
	c.currentChoices = nil

	g.SetCurrentWord(word)
	c.hint = wordbank.NewHint(word)
	g.WordHint = c.hint.Render()
	g.TimeRemaining = g.Settings.DrawTime
	g.Phase = state.PhaseDrawing

	c.bus.SendDirect(g.CurrentDrawer, "secretWord", map[string]any{"word": word})

	c.armTick(g)
	c.armHint(g)
}

func (c *Controller) armTick(g *state.GameState) {
	c.timers.Arm(TimerTick, time.Second, func() {
		if g.Phase != state.PhaseDrawing {
			return
		}
		g.TimeRemaining--
		if g.TimeRemaining <= 0 {
			c.EndRound(g, false)
			return
		}
		c.armTick(g)
	})
}

func (c *Controller) armHint(g *state.GameState) {
	c.timers.Arm(TimerHint, state.HintRevealInterval, func() {
		if g.Phase != state.PhaseDrawing {
			return
		}
		if c.hint != nil && c.hint.RevealRandomLetter() {
			g.WordHint = c.hint.Render()
			c.bus.BroadcastAll("wordHint", map[string]any{"hint": g.WordHint})
		}
		c.armHint(g)
	})
}

// ProcessGuess normalizes and arbitrates one guess. The secret word is
// broadcast only once a guess is correct: in the correctGuess payload sent
// here and in the roundResult that EndRound sends; an incorrect guess
// reveals nothing.
func (c *Controller) ProcessGuess(g *state.GameState, playerID, nickname, text string) {
	correct := wordbank.Matches(text, g.CurrentWord())

	entry := state.GuessEntry{
		PlayerID:  playerID,
		Nickname:  nickname,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
		IsCorrect: correct,
	}
	if correct {
		entry.Text = "✓ Correct!"
	}
	g.Guesses = append(g.Guesses, entry)

	if !correct {
		return
	}

	switch {
	case g.Settings.GameMode == state.ModeTeams:
		score.AwardPoint(g, g.ActiveTeamIndex)
		c.bus.BroadcastAll("correctGuess", map[string]any{"playerId": playerID, "nickname": nickname, "word": g.CurrentWord()})
		c.EndRound(g, true)
	case g.IsSuddenDeath:
		c.bus.BroadcastAll("correctGuess", map[string]any{"playerId": playerID, "nickname": nickname, "word": g.CurrentWord()})
		c.EndSuddenDeathWin(g, playerID)
	default:
		score.AwardPlayerPoint(g, playerID)
		c.bus.BroadcastAll("correctGuess", map[string]any{"playerId": playerID, "nickname": nickname, "word": g.CurrentWord()})
		c.EndRound(g, true)
	}
}

// EndRound cancels the drawing timers, reveals the word and schedules the
// next transition after the round-end delay.
func (c *Controller) EndRound(g *state.GameState, wasCorrect bool) {
	c.timers.Cancel(TimerTick)
	c.timers.Cancel(TimerHint)
	g.Phase = state.PhaseRoundEnd

	word := g.CurrentWord()
	c.bus.BroadcastAll("roundResult", roundResultPayload(g, word, wasCorrect))

	if g.Settings.GameMode == state.ModeTeams {
		if winner := score.CheckWinCondition(g); winner >= 0 {
			c.timers.Arm(TimerRoundEnd, state.RoundEndDelay, func() {
				g.WinningTeamIndex = winner
				g.Phase = state.PhaseGameOver
			})
			return
		}
		if len(g.Teams) > 0 {
			g.ActiveTeamIndex = (g.ActiveTeamIndex + 1) % len(g.Teams)
		}
		c.timers.Arm(TimerRoundEnd, state.RoundEndDelay, func() {
			c.StartNextRound(g)
		})
		return
	}

	winners := score.CheckFFAWinCondition(g)
	switch len(winners) {
	case 0:
		c.timers.Arm(TimerRoundEnd, state.RoundEndDelay, func() {
			c.StartNextRound(g)
		})
	case 1:
		c.timers.Arm(TimerRoundEnd, state.RoundEndDelay, func() {
			g.WinnerSessionIDs = winners
			g.Phase = state.PhaseGameOver
		})
	default:
		c.timers.Arm(TimerRoundEnd, state.RoundEndDelay, func() {
			c.StartSuddenDeath(g, winners)
		})
	}
}

// StartSuddenDeath begins the FFA tie-breaker round.
func (c *Controller) StartSuddenDeath(g *state.GameState, tiedIds []string) {
	g.IsSuddenDeath = true
	g.WinnerSessionIDs = tiedIds
	g.Guesses = nil
	g.WordHint = ""
	g.SetCurrentWord("")

	drawer := roster.GetSuddenDeathDrawer(g, tiedIds)
	g.CurrentDrawer = drawer

	tied := make(map[string]bool, len(tiedIds))
	for _, id := range tiedIds {
		tied[id] = true
	}
	for _, p := range g.Players {
		switch {
		case p.SessionID == drawer:
			p.Role = state.RoleDrawer
		case tied[p.SessionID]:
			p.Role = state.RoleGuesser
		default:
			p.Role = state.RoleSpectator
		}
	}

	choices := wordbank.Choices(g.Settings.WordCategory, 3)
	c.currentChoices = choices
	c.bus.SendDirect(drawer, "wordChoices", map[string]any{"words": choices})
	g.Phase = state.PhaseWordSelect

	c.armAutoPick(g, choices)
}

// EndSuddenDeathWin ends the game immediately in favor of sessionID.
func (c *Controller) EndSuddenDeathWin(g *state.GameState, sessionID string) {
	c.timers.CancelAll()
	g.IsSuddenDeath = false
	g.WinnerSessionIDs = []string{sessionID}
	g.Phase = state.PhaseGameOver
}

// Reset clears the controller's round-local bookkeeping, used by the Room's
// playAgain handler alongside resetting GameState itself.
func (c *Controller) Reset(g *state.GameState) {
	c.timers.CancelAll()
	c.hint = nil
	c.currentChoices = nil
}

func roundResultPayload(g *state.GameState, word string, wasCorrect bool) map[string]any {
	payload := map[string]any{"word": word, "wasCorrect": wasCorrect}
	if g.Settings.GameMode == state.ModeTeams && g.ActiveTeamIndex >= 0 && g.ActiveTeamIndex < len(g.Teams) {
		payload["teamIndex"] = g.ActiveTeamIndex
		payload["teamName"] = g.Teams[g.ActiveTeamIndex].Name
	}
	return payload
}
