// Package config builds the server's cobra command and binds its flags to
// environment variables via viper, directly grounded in the "Seednode
// partybox" example's config.go (another party-game server in the
// reference pack): a flat Config struct, pflag normalization that folds
// underscores/dashes together, and a post-parse validate() the RunE checks
// before serving. joho/godotenv (already a teacher dependency) loads a
// local .env file first so the same flags/env vars work in development.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/shiblyc-four/party-games/internal/state"
)

type Config struct {
	Bind               string
	Port               int
	ClientURL          string
	MaxPlayersPerRoom  int
	DrawTimeMin        int
	DrawTimeMax        int
	HistoryDatabaseURL string
	Verbose            bool
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.MaxPlayersPerRoom < 2 || c.MaxPlayersPerRoom > state.MaxClientsPerRoom {
		return fmt.Errorf("max-players-per-room must be between 2 and %d", state.MaxClientsPerRoom)
	}
	if c.DrawTimeMin < state.DrawTimeMin || c.DrawTimeMax > state.DrawTimeMax || c.DrawTimeMin > c.DrawTimeMax {
		return errors.New("draw-time-min/draw-time-max out of the server's supported range")
	}
	return nil
}

// NewCommand builds the root cobra command. run is invoked once flags,
// env vars and .env have all been reconciled into cfg.
func NewCommand(cfg *Config, run func(*Config) error) *cobra.Command {
	_ = godotenv.Load() // dev convenience; absence is not an error

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "party-games-server",
		Short:         "Real-time room-based drawing and guessing party game server",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 3001, "port to listen on (env: PORT)")
	fs.StringVar(&cfg.ClientURL, "client-url", "http://localhost:5173", "comma-separated origins allowed to connect (env: CLIENT_URL)")
	fs.IntVar(&cfg.MaxPlayersPerRoom, "max-players-per-room", state.MaxClientsPerRoom, "maximum clients per room; only range-checked at startup, rooms always enforce the built-in limit (env: MAX_PLAYERS_PER_ROOM)")
	fs.IntVar(&cfg.DrawTimeMin, "draw-time-min", state.DrawTimeMin, "lowest drawTime setting, in seconds; only range-checked at startup, rooms always enforce the built-in range (env: DRAW_TIME_MIN)")
	fs.IntVar(&cfg.DrawTimeMax, "draw-time-max", state.DrawTimeMax, "highest drawTime setting, in seconds; only range-checked at startup, rooms always enforce the built-in range (env: DRAW_TIME_MAX)")
	fs.StringVar(&cfg.HistoryDatabaseURL, "history-database-url", "", "Postgres DSN for the completed-game history recorder; omit to only log completed games (env: HISTORY_DATABASE_URL)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "accepted for compatibility; has no effect on output (env: VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	return cmd
}
