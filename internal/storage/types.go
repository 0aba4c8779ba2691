package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (json snapshot + jsonl journal)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Retention   time.Duration // found-message retention; 0 means 30 days
}

const defaultRetention = 30 * 24 * time.Hour

func (c Config) retention() time.Duration {
	if c.Retention <= 0 {
		return defaultRetention
	}
	return c.Retention
}

// MatchRecord is a persisted found message.
// Keep it compact and schema-stable; timestamps serialize as RFC 3339.
type MatchRecord struct {
	ChatHandle string    `json:"chat_handle"`
	ChatTitle  string    `json:"chat_title,omitempty"`
	ChatLink   string    `json:"chat_link,omitempty"`
	MessageID  int       `json:"message_id"`
	SenderID   int64     `json:"sender_id,omitempty"`
	Text       string    `json:"text"`
	Keywords   []string  `json:"keywords"`
	At         time.Time `json:"at"`
}
