// Package httpapi is the HTTP surface: health, room creation/listing, a
// room-code QR endpoint and the WebSocket upgrade route, served behind
// gorilla/mux and rs/cors.
package httpapi

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/shiblyc-four/party-games/internal/room"
	"github.com/shiblyc-four/party-games/internal/transport"
)

// Response is a timed JSON envelope wrapping the room creation and listing
// handlers' payloads; /health and the QR code endpoint write theirs directly.
type Response struct {
	StatusCode    int   `json:"statusCode"`
	RespStartTime int64 `json:"respStartTime"`
	RespEndTime   int64 `json:"respEndTime"`
	NetRespTime   int64 `json:"netRespTimeMs"`
	Data          any   `json:"data,omitempty"`
}

type Server struct {
	directory *room.Directory
	clientURL string
}

func NewServer(directory *room.Directory, clientURL string) *Server {
	return &Server{directory: directory, clientURL: clientURL}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.healthHandler)
	r.HandleFunc("/rooms", s.createRoomHandler).Methods(http.MethodPost)
	r.HandleFunc("/rooms", s.listJoinableHandler).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{code}/qrcode", s.qrCodeHandler)
	r.HandleFunc("/ws/{code}", s.wsHandler)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	})
	return c.Handler(r)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "timestamp": time.Now().UnixMilli()})
}

// createRoomHandler allocates a fresh room and returns its code.
func (s *Server) createRoomHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now().UnixMilli()
	rm := s.directory.Create()

	resp := Response{StatusCode: http.StatusOK, RespStartTime: start, Data: map[string]string{"roomCode": rm.Code}}
	resp.RespEndTime = time.Now().UnixMilli()
	resp.NetRespTime = resp.RespEndTime - resp.RespStartTime
	writeJSON(w, http.StatusOK, resp)
}

// listJoinableHandler mirrors GetRoomToJoin, generalized to the full set of
// joinable rooms rather than just the first one found.
func (s *Server) listJoinableHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now().UnixMilli()
	codes := s.directory.Joinable()

	resp := Response{StatusCode: http.StatusOK, RespStartTime: start, Data: codes}
	if len(codes) == 0 {
		resp.StatusCode = http.StatusNotFound
	}
	resp.RespEndTime = time.Now().UnixMilli()
	resp.NetRespTime = resp.RespEndTime - resp.RespStartTime
	writeJSON(w, resp.StatusCode, resp)
}

func (s *Server) qrCodeHandler(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if _, ok := s.directory.Get(code); !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	joinURL := s.origins()[0] + "/join/" + code
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		log.Printf("[httpapi] qrcode encode failed for room %s: %v", code, err)
		http.Error(w, "failed to render qr code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(png); err != nil {
		log.Printf("[httpapi] qrcode write failed for room %s: %v", code, err)
	}
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	nickname := r.URL.Query().Get("nickname")
	sessionID := uuid.NewString()

	transport.ServeWS(s.directory, w, r, code, sessionID, nickname)
}

// origins splits the comma-separated CLIENT_URL allow-list.
func (s *Server) origins() []string {
	origins := strings.Split(s.clientURL, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
