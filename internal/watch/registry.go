package watch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"tgwatch/internal/source"
	logx "tgwatch/pkg/logx"
)

var (
	// ErrInvalidLink means the supplied chat link matched no recognized shape.
	ErrInvalidLink = errors.New("invalid chat link format")
	// ErrCapacity means the registry is at its configured maximum.
	ErrCapacity = errors.New("chat limit reached")
)

// ResolutionError wraps a failed handle resolution with the handle involved.
type ResolutionError struct {
	Handle string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Handle, e.Err)
}
func (e *ResolutionError) Unwrap() error { return e.Err }

var linkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`t\.me/([a-zA-Z0-9_]+)`),
	regexp.MustCompile(`telegram\.me/([a-zA-Z0-9_]+)`),
	regexp.MustCompile(`@([a-zA-Z0-9_]+)`),
}

var bareHandle = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ResolveLink extracts the bare username from a chat link.
// Recognized shapes: t.me/<h>, telegram.me/<h>, @<h>, and a bare handle.
func ResolveLink(link string) (string, error) {
	link = strings.TrimSpace(link)
	for _, p := range linkPatterns {
		if m := p.FindStringSubmatch(link); m != nil {
			return m[1], nil
		}
	}
	if bareHandle.MatchString(link) {
		return link, nil
	}
	return "", ErrInvalidLink
}

// RegistryConfig bounds the registry.
type RegistryConfig struct {
	MaxChats int           // default 15
	Grace    time.Duration // watermark backdate on add; default 5m
}

func (c RegistryConfig) withDefaults() RegistryConfig {
	if c.MaxChats <= 0 {
		c.MaxChats = 15
	}
	if c.Grace <= 0 {
		c.Grace = 5 * time.Minute
	}
	return c
}

// Registry owns the set of monitored chats, keyed by handle.
//
// All methods are safe for concurrent use. List() returns snapshot copies;
// callers must not assume a snapshot reflects later mutations.
type Registry struct {
	cfg    RegistryConfig
	client source.Client
	cp     Checkpointer
	log    logx.Logger

	mu    sync.Mutex
	chats map[string]Chat

	now func() time.Time
}

func NewRegistry(cfg RegistryConfig, client source.Client, cp Checkpointer, log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{
		cfg:    cfg.withDefaults(),
		client: client,
		cp:     cp,
		log:    log,
		chats:  map[string]Chat{},
		now:    time.Now,
	}
}

// Add resolves link and inserts the chat with its watermark backdated by the
// grace window, so near-simultaneous messages are not missed.
//
// Re-adding an existing handle overwrites it (last write wins).
// Errors: ErrInvalidLink, ErrCapacity, *ResolutionError.
func (r *Registry) Add(ctx context.Context, link string) (Chat, error) {
	handle, err := ResolveLink(link)
	if err != nil {
		return Chat{}, err
	}

	// Capacity check happens before the remote call so an operator gets a
	// fast answer when the registry is full.
	r.mu.Lock()
	_, exists := r.chats[handle]
	full := !exists && len(r.chats) >= r.cfg.MaxChats
	r.mu.Unlock()
	if full {
		return Chat{}, ErrCapacity
	}

	ent, err := r.client.Resolve(ctx, handle)
	if err != nil {
		return Chat{}, &ResolutionError{Handle: handle, Err: err}
	}

	now := r.now()
	chat := Chat{
		ID:        ent.ID,
		Title:     ent.Title,
		Handle:    handle,
		Link:      link,
		Kind:      ent.Kind,
		AddedAt:   now,
		Watermark: now.Add(-r.cfg.Grace),
	}

	r.mu.Lock()
	// Re-check capacity: another Add may have raced the resolve call.
	if _, ok := r.chats[handle]; !ok && len(r.chats) >= r.cfg.MaxChats {
		r.mu.Unlock()
		return Chat{}, ErrCapacity
	}
	r.chats[handle] = chat
	r.mu.Unlock()

	r.checkpoint()
	r.log.Info("chat added",
		logx.String("handle", handle),
		logx.String("title", chat.Title),
		logx.String("kind", string(chat.Kind)),
	)
	return chat, nil
}

// Remove deletes the chat behind link. Returns false when absent.
func (r *Registry) Remove(link string) bool {
	handle, err := ResolveLink(link)
	if err != nil {
		return false
	}

	r.mu.Lock()
	_, ok := r.chats[handle]
	if ok {
		delete(r.chats, handle)
	}
	r.mu.Unlock()

	if ok {
		r.checkpoint()
		r.log.Info("chat removed", logx.String("handle", handle))
	}
	return ok
}

// List returns an immutable snapshot sorted by added-at (oldest first, handle
// as tiebreaker) so polling order is stable across cycles.
func (r *Registry) List() []Chat {
	r.mu.Lock()
	out := make([]Chat, 0, len(r.chats))
	for _, c := range r.chats {
		out = append(out, c)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.Before(out[j].AddedAt)
		}
		return out[i].Handle < out[j].Handle
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chats)
}

// AdvanceWatermark moves the chat's watermark forward to at.
// It never moves it backwards and is a no-op for removed chats.
func (r *Registry) AdvanceWatermark(handle string, at time.Time) {
	r.mu.Lock()
	c, ok := r.chats[handle]
	if !ok || !at.After(c.Watermark) {
		r.mu.Unlock()
		return
	}
	c.Watermark = at
	r.chats[handle] = c
	r.mu.Unlock()

	r.checkpoint()
}

// Hydrate installs persisted chats without re-persisting them.
func (r *Registry) Hydrate(chats []Chat) {
	r.mu.Lock()
	for _, c := range chats {
		if c.Handle == "" {
			continue
		}
		r.chats[c.Handle] = c
	}
	n := len(r.chats)
	r.mu.Unlock()
	r.log.Info("registry hydrated", logx.Int("chats", n))
}

func (r *Registry) checkpoint() {
	if r.cp == nil {
		return
	}
	if err := r.cp.SaveChats(r.List()); err != nil {
		r.log.Warn("registry checkpoint failed", logx.Err(err))
	}
}
