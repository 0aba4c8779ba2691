package watch

import (
	"time"

	"tgwatch/internal/source"
)

// Chat is a monitored chat and its polling checkpoint.
//
// Handle is the registry's primary key (unique, bare username without "@").
// Watermark marks the boundary below which messages are considered already
// processed; it is monotonically non-decreasing.
type Chat struct {
	ID        int64       `json:"id"`
	Title     string      `json:"title"`
	Handle    string      `json:"handle"`
	Link      string      `json:"link"`
	Kind      source.Kind `json:"kind"`
	AddedAt   time.Time   `json:"added_at"`
	Watermark time.Time   `json:"watermark"`
}

// MatchEvent is one qualifying message paired with the keywords it matched.
// It is built once per message per polling pass and never mutated.
type MatchEvent struct {
	Chat      Chat
	Text      string
	MessageID int
	Time      time.Time
	SenderID  int64
	Keywords  []string
}

// Checkpointer persists registry and keyword state across restarts.
// Implementations must tolerate being called from multiple goroutines.
type Checkpointer interface {
	SaveChats(chats []Chat) error
	SaveKeywords(words []string) error
}
