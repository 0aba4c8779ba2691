package control

import (
	"context"
	"time"

	"tgwatch/internal/monitor"
)

// Config governs access and reply behavior.
type Config struct {
	// AdminIDs are always authorized.
	AdminIDs []int64
	// Password opens a session for non-admin users via "/start <password>".
	// Empty disables password access entirely.
	Password string
	// SessionTTL bounds a password session (default 12h).
	SessionTTL time.Duration
	// RecentDefault is the /recent page size when no count is given
	// (default 5, max 20).
	RecentDefault int
}

func (c Config) withDefaults() Config {
	if c.SessionTTL <= 0 {
		c.SessionTTL = 12 * time.Hour
	}
	if c.RecentDefault <= 0 {
		c.RecentDefault = 5
	}
	return c
}

// StatusSource is the engine view the /status command reads.
type StatusSource interface {
	Status() monitor.Status
}

// HandlerFunc handles one parsed command.
type HandlerFunc func(ctx context.Context, req *Request) (string, error)

// Middleware wraps a handler.
type Middleware func(next HandlerFunc) HandlerFunc

// Request is one inbound command with its parsed pieces.
type Request struct {
	ChatID   int64
	FromID   int64
	Username string
	Command  string
	Args     []string
	// ArgText is everything after the command, untokenized. Keyword lists
	// keep their commas this way.
	ArgText string
}

// Command describes one registered operator command.
type Command struct {
	Name        string
	Description string
	Usage       string
	Handle      HandlerFunc
}
