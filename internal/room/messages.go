package room

import (
	"encoding/json"

	"github.com/shiblyc-four/party-games/internal/state"
)

// Envelope is the generic inbound JSON frame: a type tag plus a raw payload,
// so the dispatch table below can defer decoding until the type is known.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// outEnvelope is the outbound counterpart; Data is any since every outbound
// payload is already a concrete Go value by the time it is sent.
type outEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Incoming message types.
const (
	InSetGameMode = "setGameMode"
	InJoinTeam    = "joinTeam"
	InSpectate    = "spectate"
	InStartGame   = "startGame"
	InSelectWord  = "selectWord"
	InDraw        = "draw"
	InClearCanvas = "clearCanvas"
	InUndo        = "undo"
	InGuess       = "guess"
	InChat        = "chat"
	InPlayAgain   = "playAgain"
)

// Outgoing message types.
const (
	OutWelcome      = "welcome"
	OutPlayerJoined = "playerJoined"
	OutPlayerLeft   = "playerLeft"
	OutStateSync    = "stateSync"
	OutWordChoices  = "wordChoices"
	OutSecretWord   = "secretWord"
	OutWordHint     = "wordHint"
	OutCorrectGuess = "correctGuess"
	OutRoundResult  = "roundResult"
	OutClearCanvas  = "clearCanvas"
	OutDraw         = "draw"
	OutUndo         = "undo"
	OutChat         = "chat"
	OutError        = "error"
)

type setGameModePayload struct {
	GameMode     string `json:"gameMode"`
	WinMode      string `json:"winMode"`
	TargetScore  int    `json:"targetScore"`
	TotalRounds  int    `json:"totalRounds"`
	DrawTime     int    `json:"drawTime"`
	WordCategory string `json:"wordCategory"`
	TeamCount    int    `json:"teamCount"`
}

// startGamePayload carries an optional partial settings override; any field
// left zero in Settings falls through to whatever the lobby already has.
type startGamePayload struct {
	Settings *setGameModePayload `json:"settings"`
}

type joinTeamPayload struct {
	TeamIndex int `json:"teamIndex"`
}

type selectWordPayload struct {
	Index int `json:"wordIndex"`
}

type guessPayload struct {
	Text string `json:"text"`
}

type chatPayload struct {
	Text string `json:"text"`
}

type drawPayload struct {
	Stroke state.DrawStroke `json:"stroke"`
}
