// Package transport is the WebSocket accept loop and per-connection
// read/write pump: gorilla/websocket upgrade, query-param session bootstrap,
// and a dedicated read-pump goroutine dispatching on a generic envelope's
// Type field. Writes go through a mutex around gorilla's Conn.WriteJSON,
// since gorilla explicitly disallows concurrent writers on one connection.
package transport

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shiblyc-four/party-games/internal/ratelimit"
	"github.com/shiblyc-four/party-games/internal/room"
)

const (
	pingInterval = 10 * time.Second
	pongWait     = pingInterval * 6
	writeWait    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConn adapts *websocket.Conn to room.Conn, serializing writes with a
// mutex (gorilla/websocket: "Connections support one concurrent reader and
// one concurrent writer").
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(v)
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}

// Directory is the subset of room.Directory the handler needs.
type Directory interface {
	Get(code string) (*room.Room, bool)
}

// ServeWS upgrades the request and wires the connection into the named
// room, then runs the read pump until the client disconnects. roomCode and
// nickname come from the URL and query string.
func ServeWS(dir Directory, w http.ResponseWriter, r *http.Request, roomCode, sessionID, nickname string) {
	rm, ok := dir.Get(roomCode)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[transport] upgrade failed: %v", err)
		return
	}

	wc := &wsConn{conn: conn}
	rm.HandleJoin(sessionID, wc, nickname)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	stop := make(chan struct{})
	go pingLoop(wc, stop)

	defer func() {
		close(stop)
		conn.Close()
		rm.HandleDisconnect(sessionID)
	}()

	limiter := ratelimit.NewConnection()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[transport] read error for %s in room %s: %v", sessionID, roomCode, err)
			return
		}

		var env room.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("[transport] malformed envelope from %s: %v", sessionID, err)
			continue
		}
		if !allowed(limiter, env.Type) {
			if env.Type == room.InGuess || env.Type == room.InChat {
				_ = wc.WriteJSON(map[string]any{"type": room.OutError, "data": map[string]any{"message": "rate limit exceeded"}})
			}
			continue
		}
		rm.HandleMessage(sessionID, env)
	}
}

func allowed(limiter *ratelimit.Connection, msgType string) bool {
	switch msgType {
	case room.InDraw, room.InUndo, room.InClearCanvas:
		return limiter.AllowDraw()
	case room.InGuess, room.InChat:
		return limiter.AllowGuessOrChat()
	default:
		return true
	}
}

func pingLoop(wc *wsConn, stop chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			wc.mu.Lock()
			wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := wc.conn.WriteMessage(websocket.PingMessage, nil)
			wc.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
