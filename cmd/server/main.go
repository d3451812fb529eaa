// Command server boots the HTTP + WebSocket party-game server: config,
// optional Postgres history pool, room directory, HTTP server.
package main

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiblyc-four/party-games/internal/config"
	"github.com/shiblyc-four/party-games/internal/history"
	"github.com/shiblyc-four/party-games/internal/httpapi"
	"github.com/shiblyc-four/party-games/internal/room"
)

func main() {
	log.SetFlags(0)

	cfg := &config.Config{}
	cmd := config.NewCommand(cfg, run)
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.Config) error {
	recorder := buildRecorder(cfg)
	defer recorder.Close()

	directory := room.NewDirectory(recorder)
	srv := httpapi.NewServer(directory, cfg.ClientURL)

	addr := cfg.Bind + ":" + strconv.Itoa(cfg.Port)
	log.Printf("listening on %s (client origin %s)", addr, cfg.ClientURL)
	return http.ListenAndServe(addr, srv.Handler())
}

func buildRecorder(cfg *config.Config) history.Recorder {
	if cfg.HistoryDatabaseURL == "" {
		return history.LoggingRecorder{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.HistoryDatabaseURL)
	if err != nil {
		log.Printf("history: failed to connect (%v), falling back to log-only recording", err)
		return history.LoggingRecorder{}
	}
	if err := history.EnsureSchema(ctx, pool); err != nil {
		log.Printf("history: failed to ensure schema (%v), falling back to log-only recording", err)
		pool.Close()
		return history.LoggingRecorder{}
	}
	return history.NewPostgresRecorder(pool)
}
