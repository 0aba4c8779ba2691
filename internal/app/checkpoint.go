package app

import (
	"context"
	"encoding/json"
	"time"

	"tgwatch/internal/storage"
	"tgwatch/internal/watch"
)

const (
	keyChats    = "chats"
	keyKeywords = "keywords"
)

const checkpointTimeout = 5 * time.Second

// storeCheckpoint persists watch state as JSON values in the store's
// key-value space. It satisfies watch.Checkpointer; a nil store disables
// persistence without special-casing the callers.
type storeCheckpoint struct {
	store storage.Store
}

func (c *storeCheckpoint) SaveChats(chats []watch.Chat) error {
	return c.save(keyChats, chats)
}

func (c *storeCheckpoint) SaveKeywords(words []string) error {
	return c.save(keyKeywords, words)
}

func (c *storeCheckpoint) save(key string, v any) error {
	if c == nil || c.store == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), checkpointTimeout)
	defer cancel()
	return c.store.Set(ctx, key, string(b))
}

// LoadChats returns the persisted chat set, or nil when absent.
func (c *storeCheckpoint) LoadChats(ctx context.Context) ([]watch.Chat, error) {
	if c == nil || c.store == nil {
		return nil, nil
	}
	raw, ok, err := c.store.Get(ctx, keyChats)
	if err != nil || !ok {
		return nil, err
	}
	var chats []watch.Chat
	if err := json.Unmarshal([]byte(raw), &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// LoadKeywords returns the persisted keyword set, or nil when absent.
func (c *storeCheckpoint) LoadKeywords(ctx context.Context) ([]string, error) {
	if c == nil || c.store == nil {
		return nil, nil
	}
	raw, ok, err := c.store.Get(ctx, keyKeywords)
	if err != nil || !ok {
		return nil, err
	}
	var words []string
	if err := json.Unmarshal([]byte(raw), &words); err != nil {
		return nil, err
	}
	return words, nil
}
