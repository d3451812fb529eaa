package history

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/testcontainers/testcontainers-go/wait"
)

// This test exercises PostgresRecorder end to end against a real Postgres
// container rather than a mock, so a schema or query mistake shows up here
// instead of in production.
func TestPostgresRecorderWritesCompletedGame(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a real Postgres container")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("partygames"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, EnsureSchema(ctx, pool))

	rec := NewPostgresRecorder(pool)
	rec.RecordGame(GameSummary{
		RoomCode:     "ABCDE",
		GameMode:     "ffa",
		WinMode:      "points",
		StartedAt:    time.Now().Add(-time.Minute),
		EndedAt:      time.Now(),
		RoundsPlayed: 4,
		Winners:      []PlayerResult{{SessionID: "p1", Nickname: "Ann", Score: 5}},
		Players: []PlayerResult{
			{SessionID: "p1", Nickname: "Ann", Score: 5},
			{SessionID: "p2", Nickname: "Bo", Score: 3},
		},
	})
	rec.Close()

	require.Eventually(t, func() bool {
		var count int
		row := pool.QueryRow(ctx, `SELECT count(*) FROM completed_games WHERE room_code = $1`, "ABCDE")
		if err := row.Scan(&count); err != nil {
			return false
		}
		return count == 1
	}, 5*time.Second, 100*time.Millisecond)
}
