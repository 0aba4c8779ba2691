package monitor

import "time"

// Config controls the polling cadence and budgets.
//
// All zero values fall back to the defaults below, which mirror a cautious
// single-account deployment.
type Config struct {
	// Interval between cycles (default 60s).
	Interval time.Duration
	// ChatPause between chats within one cycle (default 2s).
	ChatPause time.Duration
	// PageSize bounds a single fetch (default 50).
	PageSize int
	// ErrorCooldown after a cycle-level failure (default 30s).
	ErrorCooldown time.Duration
	// RatePerMin is the account-level API call budget (default 30).
	RatePerMin int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 60 * time.Second
	}
	if c.ChatPause <= 0 {
		c.ChatPause = 2 * time.Second
	}
	if c.PageSize <= 0 {
		c.PageSize = 50
	}
	if c.ErrorCooldown <= 0 {
		c.ErrorCooldown = 30 * time.Second
	}
	if c.RatePerMin <= 0 {
		c.RatePerMin = 30
	}
	return c
}

type State string

const (
	StateStopped  State = "stopped"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Status is a point-in-time snapshot for the control surface.
type Status struct {
	State     State
	Chats     int
	Keywords  int
	Interval  time.Duration
	Cycles    uint64
	Matches   uint64
	LastCycle time.Time
}
