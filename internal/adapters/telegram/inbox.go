package telegram

import (
	"sort"
	"sync"
	"time"

	"tgwatch/internal/source"
)

// inbox buffers messages observed on monitored chats until the polling
// engine drains them. Bounded per chat; oldest entries are dropped first.
type inbox struct {
	mu      sync.Mutex
	byChat  map[int64][]source.Message
	perChat int
}

func newInbox(perChat int) *inbox {
	return &inbox{byChat: map[int64][]source.Message{}, perChat: perChat}
}

func (b *inbox) add(chatID int64, m source.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := append(b.byChat[chatID], m)
	if len(msgs) > b.perChat {
		msgs = msgs[len(msgs)-b.perChat:]
	}
	b.byChat[chatID] = msgs
}

// since returns messages with a timestamp strictly after the given time,
// oldest first, at most limit entries.
func (b *inbox) since(chatID int64, since time.Time, limit int) []source.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []source.Message
	for _, m := range b.byChat[chatID] {
		if m.Time.After(since) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
