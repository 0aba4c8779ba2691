package sink

import (
	"context"

	"tgwatch/internal/storage"
	"tgwatch/internal/watch"
)

// CounterMatches is the global found-messages counter key.
const CounterMatches = "messages_found"

// Store persists matches and bumps the stats counters.
type Store struct {
	st storage.Store
}

func NewStore(st storage.Store) *Store {
	return &Store{st: st}
}

func (s *Store) Name() string { return "store" }

func (s *Store) Handle(ctx context.Context, ev watch.MatchEvent) error {
	err := s.st.SaveMatch(ctx, storage.MatchRecord{
		ChatHandle: ev.Chat.Handle,
		ChatTitle:  ev.Chat.Title,
		ChatLink:   ev.Chat.Link,
		MessageID:  ev.MessageID,
		SenderID:   ev.SenderID,
		Text:       ev.Text,
		Keywords:   ev.Keywords,
		At:         ev.Time,
	})
	if err != nil {
		return err
	}

	// Counters are best-effort; the record itself is already durable.
	_, _ = s.st.Incr(ctx, CounterMatches, 1)
	_, _ = s.st.Incr(ctx, "messages_from_"+ev.Chat.Handle, 1)
	return nil
}
