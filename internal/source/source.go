package source

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies a resolved Telegram entity.
type Kind string

const (
	KindUser    Kind = "user"
	KindGroup   Kind = "group"
	KindChannel Kind = "channel"
	KindUnknown Kind = "unknown"
)

// Entity is a resolved chat/channel/user handle.
type Entity struct {
	ID     int64
	Handle string
	Title  string
	Kind   Kind
}

// Message is a single message fetched from a monitored entity.
type Message struct {
	ID       int
	Text     string
	Time     time.Time
	SenderID int64
}

// ErrResolution indicates the platform could not resolve a handle to an
// entity (unknown username, private chat, deleted account, ...).
var ErrResolution = errors.New("entity resolution failed")

// FloodError is the platform's mandatory-pause signal.
//
// Callers MUST NOT retry the failed call before RetryAfter has elapsed.
// The polling engine sleeps the mandated duration and abandons the chat for
// the current cycle.
type FloodError struct {
	RetryAfter time.Duration
}

func (e *FloodError) Error() string {
	return fmt.Sprintf("flood control: retry after %s", e.RetryAfter)
}

// AsFlood unwraps err into a FloodError, if it is one.
func AsFlood(err error) (*FloodError, bool) {
	var fe *FloodError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// Client is the remote messaging capability the monitor depends on.
//
// FetchSince returns messages with a timestamp strictly after since, oldest
// first, at most limit entries. Both methods may fail with *FloodError; any
// other error is reported unchanged.
type Client interface {
	Resolve(ctx context.Context, handle string) (Entity, error)
	FetchSince(ctx context.Context, entity Entity, since time.Time, limit int) ([]Message, error)
}
