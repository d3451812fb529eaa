// Package ratelimit throttles per-connection inbound traffic so one noisy
// client (a runaway drawing loop, a guess-spam bot) cannot starve a room's
// serial event loop. No repo in the reference pack reaches for
// golang.org/x/time/rate directly, so this package is grounded on the
// library's own token-bucket API rather than an in-pack usage example.
package ratelimit

import (
	"golang.org/x/time/rate"
)

// Limits are generous enough not to interfere with normal play: a drawer
// can stream many points per second, while guessers/chatters are capped
// closer to human typing speed.
const (
	DrawEventsPerSecond  = 40
	DrawBurst            = 80
	GuessEventsPerSecond = 5
	GuessBurst           = 10
)

// Connection buckets one client's draw traffic separately from its
// guess/chat traffic, since a legitimate drawer produces far more events
// per second than a legitimate guesser.
type Connection struct {
	draw  *rate.Limiter
	guess *rate.Limiter
}

func NewConnection() *Connection {
	return &Connection{
		draw:  rate.NewLimiter(rate.Limit(DrawEventsPerSecond), DrawBurst),
		guess: rate.NewLimiter(rate.Limit(GuessEventsPerSecond), GuessBurst),
	}
}

// AllowDraw reports whether a draw/undo/clearCanvas event may proceed.
func (c *Connection) AllowDraw() bool { return c.draw.Allow() }

// AllowGuessOrChat reports whether a guess/chat event may proceed.
func (c *Connection) AllowGuessOrChat() bool { return c.guess.Allow() }
