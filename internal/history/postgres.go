package history

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRecorder drains a buffered jobs channel into Postgres from a fixed
// pool of workers, the same decoupled-write shape as the worker-pool example
// in the retrieved pack: callers never wait on the database, and a full
// queue sheds load rather than blocking the room's event loop.
type PostgresRecorder struct {
	pool    *pgxpool.Pool
	jobs    chan GameSummary
	done    chan struct{}
	workers int
}

const (
	queueDepth     = 256
	defaultWorkers = 4
	writeTimeout   = 5 * time.Second
)

func NewPostgresRecorder(pool *pgxpool.Pool) *PostgresRecorder {
	r := &PostgresRecorder{
		pool:    pool,
		jobs:    make(chan GameSummary, queueDepth),
		done:    make(chan struct{}),
		workers: defaultWorkers,
	}
	for i := 0; i < r.workers; i++ {
		go r.worker(i)
	}
	return r
}

// EnsureSchema creates the games table if absent. Safe to call repeatedly.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS completed_games (
			id            BIGSERIAL PRIMARY KEY,
			room_code     TEXT NOT NULL,
			game_mode     TEXT NOT NULL,
			win_mode      TEXT NOT NULL,
			started_at    TIMESTAMPTZ NOT NULL,
			ended_at      TIMESTAMPTZ NOT NULL,
			rounds_played INT NOT NULL,
			winners       JSONB NOT NULL,
			players       JSONB NOT NULL,
			recorded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err
}

// RecordGame enqueues the summary; it never blocks the caller beyond a full
// queue, in which case the summary is dropped and logged (history is
// best-effort enrichment, never part of the game's authoritative state).
func (r *PostgresRecorder) RecordGame(summary GameSummary) {
	select {
	case r.jobs <- summary:
	default:
		log.Printf("[history] queue full, dropping summary for room %s", summary.RoomCode)
	}
}

func (r *PostgresRecorder) Close() {
	close(r.done)
}

func (r *PostgresRecorder) worker(id int) {
	for {
		select {
		case <-r.done:
			// Write whatever was queued before Close, then stop.
			for {
				select {
				case s := <-r.jobs:
					r.write(s)
				default:
					return
				}
			}
		case s := <-r.jobs:
			r.write(s)
		}
	}
}

func (r *PostgresRecorder) write(s GameSummary) {
	winners, err := json.Marshal(s.Winners)
	if err != nil {
		log.Printf("[history] marshal winners failed for room %s: %v", s.RoomCode, err)
		return
	}
	players, err := json.Marshal(s.Players)
	if err != nil {
		log.Printf("[history] marshal players failed for room %s: %v", s.RoomCode, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err = r.pool.Exec(ctx, `
		INSERT INTO completed_games
			(room_code, game_mode, win_mode, started_at, ended_at, rounds_played, winners, players)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.RoomCode, s.GameMode, s.WinMode, s.StartedAt, s.EndedAt, s.RoundsPlayed, winners, players)
	if err != nil {
		log.Printf("[history] insert failed for room %s: %v", s.RoomCode, err)
	}
}

var _ Recorder = (*PostgresRecorder)(nil)
