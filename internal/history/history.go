// Package history is a post-game, best-effort score recorder. It never
// participates in authoritative gameplay: a room finishes a game, hands the
// Recorder a GameSummary and moves on, whether or not the write ever lands.
package history

import (
	"log"
	"time"
)

// GameSummary is one completed game, independent of the live GameState.
type GameSummary struct {
	RoomCode    string
	GameMode    string
	WinMode     string
	StartedAt   time.Time
	EndedAt     time.Time
	RoundsPlayed int
	Winners     []PlayerResult
	Players     []PlayerResult
}

type PlayerResult struct {
	SessionID string
	Nickname  string
	Score     int
}

// Recorder persists a finished game's summary. Implementations must not
// block the caller for long; Postgres writes run on a buffered queue.
type Recorder interface {
	RecordGame(summary GameSummary)
	Close()
}

// NoopRecorder discards every summary. room.NewDirectory falls back to it
// when given a nil Recorder -- history recording is optional enrichment,
// never load-bearing.
type NoopRecorder struct{}

func (NoopRecorder) RecordGame(GameSummary) {}
func (NoopRecorder) Close()                 {}

// LoggingRecorder is a fallback used when no database is configured but
// operators still want a record of completed games: one log line per game.
type LoggingRecorder struct{}

func (LoggingRecorder) RecordGame(s GameSummary) {
	log.Printf("[history] room=%s mode=%s rounds=%d players=%d winners=%d duration=%s",
		s.RoomCode, s.GameMode, s.RoundsPlayed, len(s.Players), len(s.Winners), s.EndedAt.Sub(s.StartedAt))
}

func (LoggingRecorder) Close() {}

var _ Recorder = NoopRecorder{}
var _ Recorder = LoggingRecorder{}

// PostgresRecorder is implemented in postgres.go and kept behind the same
// Recorder interface so internal/room never imports pgx directly.
