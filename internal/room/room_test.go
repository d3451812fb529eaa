package room

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiblyc-four/party-games/internal/history"
	"github.com/shiblyc-four/party-games/internal/state"
)

// fakeConn records every WriteJSON call instead of touching a socket.
type fakeConn struct {
	mu     sync.Mutex
	sent   []outEnvelope
	closed bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	env, ok := v.(outEnvelope)
	if !ok {
		return nil
	}
	c.sent = append(c.sent, env)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) last() (outEnvelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return outEnvelope{}, false
	}
	return c.sent[len(c.sent)-1], true
}

func (c *fakeConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, e := range c.sent {
		out[i] = e.Type
	}
	return out
}

func newTestRoom(t *testing.T) *Room {
	t.Helper()
	r := newRoom("ABCDE", history.NoopRecorder{}, nil)
	r.start()
	t.Cleanup(r.dispose)
	return r
}

// flush blocks until every closure already enqueued ahead of it has run,
// exploiting the inbox's strict FIFO ordering -- the same trick the room's
// own isJoinable uses to make an async call synchronous for tests.
func flush(r *Room) {
	done := make(chan struct{})
	r.Enqueue(func() { close(done) })
	<-done
}

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestHandleJoinFirstPlayerBecomesHostAndReceivesWelcome(t *testing.T) {
	r := newTestRoom(t)
	conn := &fakeConn{}

	r.HandleJoin("s1", conn, "Ann")
	flush(r)

	welcome, ok := conn.last()
	require.True(t, ok)
	assert.Equal(t, OutWelcome, welcome.Type)
	assert.True(t, r.game.Players["s1"].IsHost)
}

func TestHandleJoinSecondPlayerIsNotHostAndFirstSeesJoinedBroadcast(t *testing.T) {
	r := newTestRoom(t)
	first, second := &fakeConn{}, &fakeConn{}

	r.HandleJoin("s1", first, "Ann")
	flush(r)
	r.HandleJoin("s2", second, "Bo")
	flush(r)

	assert.False(t, r.game.Players["s2"].IsHost)
	assert.Contains(t, first.types(), OutPlayerJoined)
}

func TestHandleDisconnectThenReconnectByNicknameRestoresSeat(t *testing.T) {
	r := newTestRoom(t)
	conn := &fakeConn{}
	r.HandleJoin("s1", conn, "Ann")
	flush(r)
	require.True(t, r.game.Players["s1"].IsHost)

	r.HandleDisconnect("s1")
	flush(r)
	assert.False(t, r.game.Players["s1"].IsConnected)

	reconnConn := &fakeConn{}
	r.HandleJoin("s1-new", reconnConn, "Ann")
	flush(r)

	_, stillThere := r.game.Players["s1"]
	assert.False(t, stillThere)
	p, ok := r.game.Players["s1-new"]
	require.True(t, ok)
	assert.True(t, p.IsConnected)
	assert.True(t, p.IsHost)
}

func TestHandleSetGameModeByNonHostIsIgnored(t *testing.T) {
	r := newTestRoom(t)
	host, guest := &fakeConn{}, &fakeConn{}
	r.HandleJoin("s1", host, "Ann")
	flush(r)
	r.HandleJoin("s2", guest, "Bo")
	flush(r)

	r.HandleMessage("s2", Envelope{Type: InSetGameMode, Data: rawJSON(t, setGameModePayload{GameMode: "ffa"})})
	flush(r)

	assert.Equal(t, state.PhaseModeSelect, r.game.Phase)
}

func TestHandleSetGameModeTransitionsToLobby(t *testing.T) {
	r := newTestRoom(t)
	host := &fakeConn{}
	r.HandleJoin("s1", host, "Ann")
	flush(r)

	r.HandleMessage("s1", Envelope{Type: InSetGameMode, Data: rawJSON(t, setGameModePayload{GameMode: "ffa"})})
	flush(r)

	assert.Equal(t, state.PhaseLobby, r.game.Phase)
	assert.Equal(t, state.ModeFFA, r.game.Settings.GameMode)
	assert.Contains(t, host.types(), OutStateSync)
}

func TestHandleDrawRejectsInvalidStrokeButAcceptsValid(t *testing.T) {
	r := newTestRoom(t)
	drawer, guesser := &fakeConn{}, &fakeConn{}
	r.HandleJoin("s1", drawer, "Ann")
	flush(r)
	r.HandleJoin("s2", guesser, "Bo")
	flush(r)

	r.game.Phase = state.PhaseDrawing
	r.game.CurrentDrawer = "s1"

	invalid := drawPayload{Stroke: state.DrawStroke{Points: nil, Color: "#fff", Width: 2}}
	r.HandleMessage("s1", Envelope{Type: InDraw, Data: rawJSON(t, invalid)})
	flush(r)
	assert.Empty(t, r.strokes)

	valid := drawPayload{Stroke: state.DrawStroke{
		Points: []state.Point{{X: 0.1, Y: 0.2}, {X: 0.3, Y: 0.4}},
		Color:  "#fff",
		Width:  2,
		Tool:   state.ToolPen,
	}}
	r.HandleMessage("s1", Envelope{Type: InDraw, Data: rawJSON(t, valid)})
	flush(r)

	require.Len(t, r.strokes, 1)
	assert.Contains(t, guesser.types(), OutDraw)
}

func TestClearCanvasResetsStrokeHistoryAndBroadcasts(t *testing.T) {
	r := newTestRoom(t)
	conn := &fakeConn{}
	r.HandleJoin("s1", conn, "Ann")
	flush(r)

	r.strokes = []state.DrawStroke{{
		Points: []state.Point{{X: 0.1, Y: 0.1}},
		Color:  "#fff",
		Width:  2,
	}}

	done := make(chan struct{})
	r.Enqueue(func() { r.ClearCanvas(); close(done) })
	<-done

	assert.Empty(t, r.strokes)
	assert.Contains(t, conn.types(), OutClearCanvas)
}

func TestHandleDrawIgnoredFromNonDrawer(t *testing.T) {
	r := newTestRoom(t)
	drawer, other := &fakeConn{}, &fakeConn{}
	r.HandleJoin("s1", drawer, "Ann")
	flush(r)
	r.HandleJoin("s2", other, "Bo")
	flush(r)

	r.game.Phase = state.PhaseDrawing
	r.game.CurrentDrawer = "s1"

	valid := drawPayload{Stroke: state.DrawStroke{
		Points: []state.Point{{X: 0.1, Y: 0.2}},
		Color:  "#fff",
		Width:  2,
	}}
	r.HandleMessage("s2", Envelope{Type: InDraw, Data: rawJSON(t, valid)})
	flush(r)

	assert.Empty(t, r.strokes)
}

func TestHandleChatTrimsHistoryPastLimit(t *testing.T) {
	r := newTestRoom(t)
	conn := &fakeConn{}
	r.HandleJoin("s1", conn, "Ann")
	flush(r)

	for i := 0; i < state.MaxChatMessages+5; i++ {
		r.HandleMessage("s1", Envelope{Type: InChat, Data: rawJSON(t, chatPayload{Text: "hi"})})
	}
	flush(r)

	// The 101st message trims the log to the last TrimmedChatTarget entries;
	// the remaining 4 messages are appended after that.
	assert.Len(t, r.game.ChatMessages, state.TrimmedChatTarget+4)
}

func TestHandleStartGameTransitionsToWordSelectAfterDelay(t *testing.T) {
	r := newTestRoom(t)
	host, other := &fakeConn{}, &fakeConn{}
	r.HandleJoin("s1", host, "Ann")
	flush(r)
	r.HandleJoin("s2", other, "Bo")
	flush(r)

	r.HandleMessage("s1", Envelope{Type: InSetGameMode, Data: rawJSON(t, setGameModePayload{GameMode: "ffa"})})
	flush(r)

	r.HandleMessage("s1", Envelope{Type: InStartGame})
	flush(r)

	require.Eventually(t, func() bool {
		done := make(chan state.Phase, 1)
		r.Enqueue(func() { done <- r.game.Phase })
		return <-done == state.PhaseWordSelect
	}, time.Second, 10*time.Millisecond)
}
