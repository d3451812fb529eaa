package room

import (
	"encoding/json"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shiblyc-four/party-games/internal/history"
	"github.com/shiblyc-four/party-games/internal/roster"
	"github.com/shiblyc-four/party-games/internal/round"
	"github.com/shiblyc-four/party-games/internal/state"
	"github.com/shiblyc-four/party-games/internal/wordbank"
)

// Conn is the minimal write surface a transport connection must offer. It
// is satisfied directly by internal/transport's gorilla/websocket wrapper;
// keeping it as an interface here (rather than importing gorilla/websocket)
// is what lets internal/room stay transport-agnostic and unit-testable.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

type client struct {
	sessionID string
	conn      Conn
}

const disconnectTimerPrefix = "disconnect:"

// Room is one game's serial event loop. Every field below is touched only
// from the goroutine running loop -- external callers (the transport layer)
// only ever call the Handle* methods, which enqueue a closure rather than
// mutating state directly.
type Room struct {
	Code string

	game       *state.GameState
	controller *round.Controller
	timers     *timerManager

	clients map[string]*client
	strokes []state.DrawStroke

	recorder         history.Recorder
	gameOverRecorded bool
	startedAt        time.Time

	inbox   chan func()
	stop    chan struct{}
	stopped sync.Once

	onEmpty func(code string)
}

func newRoom(code string, recorder history.Recorder, onEmpty func(string)) *Room {
	r := &Room{
		Code:    code,
		game:    state.NewGameState(code),
		clients: make(map[string]*client),
		inbox:   make(chan func(), 64),
		stop:    make(chan struct{}),
		recorder: recorder,
		onEmpty:  onEmpty,
	}
	r.timers = newTimerManager(r.Enqueue)
	r.controller = round.New(r, r.timers)
	return r
}

func (r *Room) start() {
	go r.loop()
}

func (r *Room) loop() {
	for {
		select {
		case fn := <-r.inbox:
			fn()
		case <-r.stop:
			return
		}
	}
}

// Enqueue schedules fn to run on the room's serial loop. Safe to call from
// any goroutine, including timer callbacks and transport read pumps.
func (r *Room) Enqueue(fn func()) {
	select {
	case r.inbox <- fn:
	case <-r.stop:
	}
}

func (r *Room) dispose() {
	r.stopped.Do(func() {
		close(r.stop)
		for _, c := range r.clients {
			c.conn.Close()
		}
		if r.onEmpty != nil {
			r.onEmpty(r.Code)
		}
	})
}

// isJoinable round-trips into the room's serial loop to read a consistent
// snapshot of phase and client count. If the room disposes concurrently,
// Enqueue's own closure is dropped on the <-r.stop branch and never runs --
// so the result receive below must have a matching <-r.stop fallback, or a
// caller holding a lock across this call (Directory.Joinable) would block
// forever.
func (r *Room) isJoinable() bool {
	result := make(chan bool, 1)
	r.Enqueue(func() {
		joinable := (r.game.Phase == state.PhaseModeSelect || r.game.Phase == state.PhaseLobby) &&
			len(r.clients) < state.MaxClientsPerRoom
		result <- joinable
	})
	select {
	case joinable := <-result:
		return joinable
	case <-r.stop:
		return false
	}
}

// ---------------------------------------------------------------------
// Broadcaster (round.Broadcaster)
// ---------------------------------------------------------------------

func (r *Room) BroadcastAll(msgType string, data any) {
	env := outEnvelope{Type: msgType, Data: data}
	for id, c := range r.clients {
		if err := c.conn.WriteJSON(env); err != nil {
			log.Printf("[Room %s] broadcast to %s failed: %v", r.Code, id, err)
		}
	}
}

func (r *Room) BroadcastExcept(exclude string, msgType string, data any) {
	env := outEnvelope{Type: msgType, Data: data}
	for id, c := range r.clients {
		if id == exclude {
			continue
		}
		if err := c.conn.WriteJSON(env); err != nil {
			log.Printf("[Room %s] broadcast to %s failed: %v", r.Code, id, err)
		}
	}
}

func (r *Room) SendDirect(sessionID string, msgType string, data any) {
	c, ok := r.clients[sessionID]
	if !ok {
		return
	}
	if err := c.conn.WriteJSON(outEnvelope{Type: msgType, Data: data}); err != nil {
		log.Printf("[Room %s] direct send to %s failed: %v", r.Code, sessionID, err)
	}
}

func (r *Room) sendError(sessionID, message string) {
	r.SendDirect(sessionID, OutError, map[string]any{"message": message})
}

// ---------------------------------------------------------------------
// Join / leave / reconnect
// ---------------------------------------------------------------------

// HandleJoin registers a connection under sessionID, replaying any
// in-progress canvas and resuming a disconnected player's seat when the
// nickname matches -- sessionID is transport-assigned and changes across
// reconnects, so nickname is the only stable identity a rejoining client
// can present.
func (r *Room) HandleJoin(sessionID string, conn Conn, nickname string) {
	r.Enqueue(func() {
		if len(r.clients) >= state.MaxClientsPerRoom {
			conn.WriteJSON(outEnvelope{Type: OutError, Data: map[string]any{"message": "room is full"}})
			conn.Close()
			return
		}

		nickname = clampNickname(nickname)
		r.clients[sessionID] = &client{sessionID: sessionID, conn: conn}

		if reconnected := r.remapReconnect(sessionID, nickname); reconnected != "" {
			r.timers.Cancel(disconnectTimerPrefix + reconnected)
			log.Printf("[Room %s] %s reconnected as %s", r.Code, nickname, sessionID)
		} else {
			r.addNewPlayer(sessionID, nickname)
		}

		r.game.LastActivityAt = time.Now()

		r.SendDirect(sessionID, OutWelcome, map[string]any{
			"sessionId": sessionID,
			"state":     r.game.Public(),
			"strokes":   r.strokes,
		})
		r.BroadcastExcept(sessionID, OutPlayerJoined, r.game.Public())
	})
}

// remapReconnect looks for a disconnected player under the same nickname
// and moves its record onto the new sessionID, fixing up every place a
// stale sessionId could be cached. Returns the old sessionId if a remap
// happened, else "".
func (r *Room) remapReconnect(newSessionID, nickname string) string {
	for oldID, p := range r.game.Players {
		if p.IsConnected || p.Nickname != nickname {
			continue
		}

		delete(r.game.Players, oldID)
		p.SessionID = newSessionID
		p.IsConnected = true
		r.game.Players[newSessionID] = p

		for _, t := range r.game.Teams {
			for i, id := range t.DrawerQueue {
				if id == oldID {
					t.DrawerQueue[i] = newSessionID
				}
			}
		}
		if score, ok := r.game.PlayerScores[oldID]; ok {
			delete(r.game.PlayerScores, oldID)
			r.game.PlayerScores[newSessionID] = score
		}
		if r.game.CurrentDrawer == oldID {
			r.game.CurrentDrawer = newSessionID
		}
		for i, id := range r.game.WinnerSessionIDs {
			if id == oldID {
				r.game.WinnerSessionIDs[i] = newSessionID
			}
		}
		return oldID
	}
	return ""
}

func (r *Room) addNewPlayer(sessionID, nickname string) {
	isHost := len(r.game.Players) == 0
	p := &state.Player{
		SessionID:   sessionID,
		Nickname:    nickname,
		AvatarColor: state.AvatarPalette[len(r.game.Players)%len(state.AvatarPalette)],
		TeamIndex:   -1,
		Role:        state.RoleSpectator,
		IsHost:      isHost,
		IsConnected: true,
		JoinedAt:    time.Now(),
	}
	r.game.Players[sessionID] = p
}

// HandleDisconnect marks a player disconnected, reassigns host if needed,
// and arms the reconnect-grace timer that permanently evicts the seat. If no
// client is connected once that eviction has run, the room is disposed.
func (r *Room) HandleDisconnect(sessionID string) {
	r.Enqueue(func() {
		delete(r.clients, sessionID)

		p, ok := r.game.Players[sessionID]
		if !ok {
			return
		}
		roster.HandleDisconnect(p)

		if p.IsHost {
			r.reassignHost(sessionID)
		}

		r.BroadcastAll(OutPlayerLeft, r.game.Public())

		r.timers.Arm(disconnectTimerPrefix+sessionID, state.ReconnectGrace, func() {
			r.evict(sessionID)
			if len(r.clients) == 0 {
				r.dispose()
			}
		})
	})
}

func (r *Room) reassignHost(leavingID string) {
	var candidates []*state.Player
	for id, p := range r.game.Players {
		if id != leavingID && p.IsConnected {
			candidates = append(candidates, p)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].JoinedAt.Before(candidates[j].JoinedAt) })
	if len(candidates) > 0 {
		candidates[0].IsHost = true
	}
}

// evict permanently removes a player who never reconnected within the
// grace window, ending the round early if they were drawing.
func (r *Room) evict(sessionID string) {
	p, ok := r.game.Players[sessionID]
	if !ok || p.IsConnected {
		return
	}

	wasDrawer := r.game.CurrentDrawer == sessionID
	delete(r.game.Players, sessionID)
	for _, t := range r.game.Teams {
		for i, id := range t.DrawerQueue {
			if id == sessionID {
				t.DrawerQueue = append(t.DrawerQueue[:i], t.DrawerQueue[i+1:]...)
				break
			}
		}
	}
	delete(r.game.PlayerScores, sessionID)

	if wasDrawer && r.game.Phase == state.PhaseDrawing {
		r.controller.EndRound(r.game, false)
	}

	r.BroadcastAll(OutPlayerLeft, r.game.Public())
	r.maybeRecordGameOver()
}

func clampNickname(nickname string) string {
	if nickname == "" {
		nickname = "Guest"
	}
	if len(nickname) > state.MaxNicknameLen {
		nickname = nickname[:state.MaxNicknameLen]
	}
	return nickname
}

// ---------------------------------------------------------------------
// Message dispatch
// ---------------------------------------------------------------------

// HandleMessage decodes and dispatches one client message. Guard ordering
// throughout is phase, then identity, then payload validation, then apply.
func (r *Room) HandleMessage(sessionID string, env Envelope) {
	r.Enqueue(func() {
		r.game.LastActivityAt = time.Now()

		p, ok := r.game.Players[sessionID]
		if !ok {
			return
		}

		switch env.Type {
		case InSetGameMode:
			r.handleSetGameMode(p, env.Data)
		case InJoinTeam:
			r.handleJoinTeam(p, env.Data)
		case InSpectate:
			r.handleSpectate(p)
		case InStartGame:
			r.handleStartGame(p, env.Data)
		case InSelectWord:
			r.handleSelectWord(p, env.Data)
		case InDraw:
			r.handleDraw(p, env.Data)
		case InClearCanvas:
			r.handleClearCanvas(p)
		case InUndo:
			r.handleUndo(p)
		case InGuess:
			r.handleGuess(p, env.Data)
		case InChat:
			r.handleChat(p, env.Data)
		case InPlayAgain:
			r.handlePlayAgain(p)
		default:
			r.sendError(sessionID, "unknown message type")
		}

		r.maybeRecordGameOver()
	})
}

func (r *Room) handleSetGameMode(p *state.Player, raw json.RawMessage) {
	if r.game.Phase != state.PhaseModeSelect || !p.IsHost {
		return
	}
	var payload setGameModePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		r.sendError(p.SessionID, "malformed setGameMode")
		return
	}
	if payload.WordCategory != "" {
		if err := wordbank.ValidateCategory(payload.WordCategory); err != nil {
			r.sendError(p.SessionID, err.Error())
			return
		}
	}

	settings := mergeSettings(state.DefaultSettings(), payload)
	r.game.Settings = settings

	if settings.GameMode == state.ModeTeams {
		teamCount := payload.TeamCount
		if teamCount < 2 {
			teamCount = 2
		}
		roster.InitTeams(r.game, teamCount)
		for _, pl := range r.game.Players {
			pl.TeamIndex = -1
			pl.Role = state.RoleSpectator
		}
	} else {
		r.game.Teams = nil
	}

	r.game.Phase = state.PhaseLobby
	r.BroadcastAll(OutStateSync, r.game.Public())
}

// mergeSettings applies every non-zero field of payload onto base, leaving
// fields the payload omits untouched. Shared by handleSetGameMode (base is
// always DefaultSettings) and handleStartGame (base is the lobby's current
// settings, since startGame's payload is optional and partial).
func mergeSettings(base state.Settings, payload setGameModePayload) state.Settings {
	settings := base
	if payload.GameMode == string(state.ModeFFA) {
		settings.GameMode = state.ModeFFA
	} else if payload.GameMode == string(state.ModeTeams) {
		settings.GameMode = state.ModeTeams
	}
	if payload.WinMode == string(state.WinRounds) {
		settings.WinMode = state.WinRounds
	} else if payload.WinMode == string(state.WinPoints) {
		settings.WinMode = state.WinPoints
	}
	if payload.TargetScore > 0 {
		settings.TargetScore = payload.TargetScore
	}
	if payload.TotalRounds > 0 {
		settings.TotalRounds = payload.TotalRounds
	}
	if payload.DrawTime >= state.DrawTimeMin && payload.DrawTime <= state.DrawTimeMax {
		settings.DrawTime = payload.DrawTime
	}
	if payload.WordCategory != "" {
		settings.WordCategory = payload.WordCategory
	}
	return settings
}

func (r *Room) handleJoinTeam(p *state.Player, raw json.RawMessage) {
	if r.game.Phase != state.PhaseLobby || r.game.Settings.GameMode != state.ModeTeams {
		return
	}
	var payload joinTeamPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		r.sendError(p.SessionID, "malformed joinTeam")
		return
	}
	if err := roster.JoinTeam(r.game, p, payload.TeamIndex); err != nil {
		r.sendError(p.SessionID, err.Error())
		return
	}
	r.BroadcastAll(OutStateSync, r.game.Public())
}

func (r *Room) handleSpectate(p *state.Player) {
	if r.game.Phase != state.PhaseLobby {
		return
	}
	roster.SetSpectator(r.game, p)
	r.BroadcastAll(OutStateSync, r.game.Public())
}

func (r *Room) handleStartGame(p *state.Player, raw json.RawMessage) {
	if r.game.Phase != state.PhaseLobby || !p.IsHost {
		return
	}
	if len(raw) > 0 {
		var payload startGamePayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			r.sendError(p.SessionID, "malformed startGame")
			return
		}
		if payload.Settings != nil {
			if payload.Settings.WordCategory != "" {
				if err := wordbank.ValidateCategory(payload.Settings.WordCategory); err != nil {
					r.sendError(p.SessionID, err.Error())
					return
				}
			}
			r.game.Settings = mergeSettings(r.game.Settings, *payload.Settings)
		}
	}
	if ok, reason := roster.CanStartGame(r.game); !ok {
		r.sendError(p.SessionID, reason)
		return
	}
	r.timers.Arm("start-game", state.StartGameDelay, func() {
		r.controller.StartGame(r.game)
		r.BroadcastAll(OutStateSync, r.game.Public())
	})
}

func (r *Room) handleSelectWord(p *state.Player, raw json.RawMessage) {
	if r.game.Phase != state.PhaseWordSelect || p.SessionID != r.game.CurrentDrawer {
		return
	}
	var payload selectWordPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		r.sendError(p.SessionID, "malformed selectWord")
		return
	}
	r.controller.SelectWord(r.game, p.SessionID, payload.Index)
	r.BroadcastAll(OutStateSync, r.game.Public())
}

func (r *Room) handleDraw(p *state.Player, raw json.RawMessage) {
	if r.game.Phase != state.PhaseDrawing || p.SessionID != r.game.CurrentDrawer {
		return
	}
	var payload drawPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	if !validStroke(payload.Stroke) {
		return
	}
	r.strokes = append(r.strokes, payload.Stroke)
	r.BroadcastExcept(p.SessionID, OutDraw, payload.Stroke)
}

func validStroke(s state.DrawStroke) bool {
	if len(s.Points) == 0 || s.Color == "" || s.Width <= 0 {
		return false
	}
	for _, pt := range s.Points {
		if pt.X < 0 || pt.X > 1 || pt.Y < 0 || pt.Y > 1 {
			return false
		}
	}
	return true
}

func (r *Room) handleClearCanvas(p *state.Player) {
	if r.game.Phase != state.PhaseDrawing || p.SessionID != r.game.CurrentDrawer {
		return
	}
	r.ClearCanvas()
}

// ClearCanvas resets the Room's server-side stroke history and tells every
// client to clear their canvas. Called both for an explicit clearCanvas
// message from the drawer and by the round controller at the start of every
// round, so stroke history never survives across a round boundary.
func (r *Room) ClearCanvas() {
	r.strokes = nil
	r.BroadcastAll(OutClearCanvas, nil)
}

func (r *Room) handleUndo(p *state.Player) {
	if r.game.Phase != state.PhaseDrawing || p.SessionID != r.game.CurrentDrawer {
		return
	}
	if len(r.strokes) == 0 {
		return
	}
	r.strokes = r.strokes[:len(r.strokes)-1]
	r.BroadcastAll(OutUndo, nil)
}

func (r *Room) handleGuess(p *state.Player, raw json.RawMessage) {
	if r.game.Phase != state.PhaseDrawing || p.Role != state.RoleGuesser {
		r.sendError(p.SessionID, "only a guesser during drawing may guess")
		return
	}
	var payload guessPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		return
	}
	r.controller.ProcessGuess(r.game, p.SessionID, p.Nickname, payload.Text)
	r.BroadcastAll(OutStateSync, r.game.Public())
}

func (r *Room) handleChat(p *state.Player, raw json.RawMessage) {
	if r.game.Phase == state.PhaseDrawing && p.Role == state.RoleGuesser {
		r.sendError(p.SessionID, "guessers cannot use chat while drawing is in progress")
		return
	}
	var payload chatPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		return
	}
	entry := state.ChatEntry{
		PlayerID:  p.SessionID,
		Nickname:  p.Nickname,
		Text:      payload.Text,
		Timestamp: time.Now().UnixMilli(),
	}
	r.game.ChatMessages = append(r.game.ChatMessages, entry)
	if len(r.game.ChatMessages) > state.MaxChatMessages {
		drop := len(r.game.ChatMessages) - state.TrimmedChatTarget
		r.game.ChatMessages = append([]state.ChatEntry(nil), r.game.ChatMessages[drop:]...)
	}
	r.BroadcastAll(OutChat, entry)
}

func (r *Room) handlePlayAgain(p *state.Player) {
	if r.game.Phase != state.PhaseGameOver || !p.IsHost {
		return
	}
	r.controller.Reset(r.game)
	r.strokes = nil
	r.gameOverRecorded = false
	r.game.Phase = state.PhaseModeSelect
	r.game.WinningTeamIndex = -1
	r.game.WinnerSessionIDs = nil
	r.game.IsSuddenDeath = false
	for _, pl := range r.game.Players {
		pl.TeamIndex = -1
		pl.Role = state.RoleSpectator
	}
	r.BroadcastAll(OutStateSync, r.game.Public())
}

// maybeRecordGameOver hands a best-effort summary to the history recorder
// the first time a game reaches game-over; it never blocks or gates the
// transition itself (history is enrichment, not authoritative state).
func (r *Room) maybeRecordGameOver() {
	if r.game.Phase != state.PhaseGameOver || r.gameOverRecorded {
		return
	}
	r.gameOverRecorded = true

	summary := history.GameSummary{
		RoomCode:     r.Code,
		GameMode:     string(r.game.Settings.GameMode),
		WinMode:      string(r.game.Settings.WinMode),
		StartedAt:    r.game.CreatedAt,
		EndedAt:      time.Now(),
		RoundsPlayed: r.game.CurrentRound,
	}
	for _, p := range r.game.Players {
		score := r.game.PlayerScores[p.SessionID]
		if r.game.Settings.GameMode == state.ModeTeams && p.TeamIndex >= 0 && p.TeamIndex < len(r.game.Teams) {
			score = r.game.Teams[p.TeamIndex].Score
		}
		summary.Players = append(summary.Players, history.PlayerResult{SessionID: p.SessionID, Nickname: p.Nickname, Score: score})
	}
	for _, id := range r.game.WinnerSessionIDs {
		if p, ok := r.game.Players[id]; ok {
			summary.Winners = append(summary.Winners, history.PlayerResult{SessionID: id, Nickname: p.Nickname, Score: r.game.PlayerScores[id]})
		}
	}
	if r.game.Settings.GameMode == state.ModeTeams && r.game.WinningTeamIndex >= 0 && r.game.WinningTeamIndex < len(r.game.Teams) {
		t := r.game.Teams[r.game.WinningTeamIndex]
		summary.Winners = append(summary.Winners, history.PlayerResult{SessionID: t.Name, Nickname: t.Name, Score: t.Score})
	}

	r.recorder.RecordGame(summary)
}
