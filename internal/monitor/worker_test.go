package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"tgwatch/internal/sink"
	"tgwatch/internal/source"
	"tgwatch/internal/watch"
	logx "tgwatch/pkg/logx"
)

// fakeSource serves canned messages per handle and can fail per handle.
type fakeSource struct {
	mu       sync.Mutex
	messages map[string][]source.Message
	errs     map[string]error
	fetches  []string
}

func (f *fakeSource) Resolve(_ context.Context, handle string) (source.Entity, error) {
	return source.Entity{ID: 1, Handle: handle, Title: handle, Kind: source.KindGroup}, nil
}

func (f *fakeSource) FetchSince(_ context.Context, ent source.Entity, since time.Time, limit int) ([]source.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, ent.Handle)
	if err := f.errs[ent.Handle]; err != nil {
		return nil, err
	}
	var out []source.Message
	for _, m := range f.messages[ent.Handle] {
		if m.Time.After(since) {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type captureSink struct {
	mu     sync.Mutex
	events []watch.MatchEvent
}

func (c *captureSink) Name() string { return "capture" }

func (c *captureSink) Handle(_ context.Context, ev watch.MatchEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *captureSink) all() []watch.MatchEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]watch.MatchEvent(nil), c.events...)
}

type harness struct {
	engine *Engine
	src    *fakeSource
	cap    *captureSink
	reg    *watch.Registry
	kws    *watch.Keywords
	slept  []time.Duration
}

func newHarness(t *testing.T, keywords []string, handles ...string) *harness {
	t.Helper()

	src := &fakeSource{messages: map[string][]source.Message{}, errs: map[string]error{}}
	reg := watch.NewRegistry(watch.RegistryConfig{}, src, nil, logx.Nop())
	for _, h := range handles {
		if _, err := reg.Add(context.Background(), "@"+h); err != nil {
			t.Fatalf("add %q: %v", h, err)
		}
	}

	kws := watch.NewKeywords(nil, logx.Nop())
	kws.Set(keywords)

	cs := &captureSink{}
	eng := New(Config{}, src, reg, kws, sink.NewDispatcher(logx.Nop(), cs), logx.Nop())

	h := &harness{engine: eng, src: src, cap: cs, reg: reg, kws: kws}
	eng.sleep = func(_ context.Context, d time.Duration) error {
		h.slept = append(h.slept, d)
		return nil
	}
	eng.guard.sleep = eng.sleep
	eng.limiter = rate.NewLimiter(rate.Inf, 1)
	return h
}

func msgAt(id int, text string, at time.Time) source.Message {
	return source.Message{ID: id, Text: text, Time: at, SenderID: 42}
}

func TestCycleMatchesAndAdvancesWatermark(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"btc", "crypto"}, "markets")
	now := time.Now()
	h.src.messages["markets"] = []source.Message{
		msgAt(1, "good morning", now.Add(-time.Minute)),
		msgAt(2, "BTC just broke out, the whole crypto board is green", now.Add(-30*time.Second)),
		msgAt(3, "", now.Add(-10*time.Second)),
	}

	if err := h.engine.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	events := h.cap.all()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.MessageID != 2 {
		t.Errorf("message id = %d, want 2", ev.MessageID)
	}
	if len(ev.Keywords) != 2 || ev.Keywords[0] != "btc" || ev.Keywords[1] != "crypto" {
		t.Errorf("keywords = %v, want [btc crypto]", ev.Keywords)
	}

	// Second cycle must not re-deliver: the watermark moved past the fetch.
	if err := h.engine.cycle(context.Background()); err != nil {
		t.Fatalf("cycle 2: %v", err)
	}
	if got := len(h.cap.all()); got != 1 {
		t.Errorf("events after second cycle = %d, want 1 (no re-delivery)", got)
	}
}

func TestCycleSkipsMessagesAtOrBeforeWatermark(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"alert"}, "ops")
	wm := h.reg.List()[0].Watermark
	h.src.messages["ops"] = []source.Message{
		msgAt(1, "old alert", wm.Add(-time.Hour)),
		msgAt(2, "boundary alert", wm), // exactly at the watermark: excluded
		msgAt(3, "fresh alert", wm.Add(time.Second)),
	}

	if err := h.engine.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	events := h.cap.all()
	if len(events) != 1 || events[0].MessageID != 3 {
		t.Fatalf("events = %+v, want only message 3", events)
	}
}

func TestFloodAbandonsChatWithoutBlockingOthers(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"deploy"}, "first", "second")
	now := time.Now()
	h.src.errs["first"] = &source.FloodError{RetryAfter: 45 * time.Second}
	h.src.messages["second"] = []source.Message{
		msgAt(7, "deploy finished", now),
	}

	wmBefore := h.reg.List()[0].Watermark
	if err := h.engine.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	// The second chat was still polled and its match delivered.
	events := h.cap.all()
	if len(events) != 1 || events[0].Chat.Handle != "second" {
		t.Fatalf("events = %+v, want one event from second", events)
	}

	// The flooded chat's watermark did not move.
	for _, c := range h.reg.List() {
		if c.Handle == "first" && !c.Watermark.Equal(wmBefore) {
			t.Errorf("flooded chat watermark moved: %v -> %v", wmBefore, c.Watermark)
		}
	}

	// The mandated wait was actually slept.
	var sleptFlood bool
	for _, d := range h.slept {
		if d == 45*time.Second {
			sleptFlood = true
		}
	}
	if !sleptFlood {
		t.Errorf("mandated flood wait not slept; slept = %v", h.slept)
	}
}

func TestTransientErrorAdvancesWatermark(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"x"}, "shaky")
	h.src.errs["shaky"] = errors.New("connection reset")

	wmBefore := h.reg.List()[0].Watermark
	if err := h.engine.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	wmAfter := h.reg.List()[0].Watermark
	if !wmAfter.After(wmBefore) {
		t.Errorf("watermark did not advance past a transient failure: %v -> %v", wmBefore, wmAfter)
	}
}

func TestEmptyFetchStillAdvancesWatermark(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"x"}, "quiet")
	wmBefore := h.reg.List()[0].Watermark

	if err := h.engine.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	wmAfter := h.reg.List()[0].Watermark
	if !wmAfter.After(wmBefore) {
		t.Errorf("watermark did not advance on an empty fetch: %v -> %v", wmBefore, wmAfter)
	}
}

func TestCycleSkipsWithoutChats(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"x"})
	if err := h.engine.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(h.src.fetches) != 0 {
		t.Errorf("fetches = %v, want none with an empty registry", h.src.fetches)
	}
}

func TestEmptyKeywordSetStillAdvancesWatermark(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, "quietwords")
	h.src.messages["quietwords"] = []source.Message{
		msgAt(1, "btc going up", time.Now()),
	}

	wmBefore := h.reg.List()[0].Watermark
	if err := h.engine.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	// The chat was fetched and its watermark moved even with nothing to
	// match against.
	if len(h.src.fetches) != 1 {
		t.Fatalf("fetches = %v, want the chat polled", h.src.fetches)
	}
	if wmAfter := h.reg.List()[0].Watermark; !wmAfter.After(wmBefore) {
		t.Fatalf("watermark frozen without keywords: %v -> %v", wmBefore, wmAfter)
	}
	if got := len(h.cap.all()); got != 0 {
		t.Fatalf("events = %d, want 0 without keywords", got)
	}

	// Setting keywords afterwards must not resurface the old message.
	h.kws.Set([]string{"btc"})
	if err := h.engine.cycle(context.Background()); err != nil {
		t.Fatalf("cycle 2: %v", err)
	}
	if got := len(h.cap.all()); got != 0 {
		t.Fatalf("events = %d, message from the keywordless period dispatched retroactively", got)
	}
}

func TestChatPauseBetweenChats(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"x"}, "a", "b", "c")
	if err := h.engine.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	var pauses int
	for _, d := range h.slept {
		if d == h.engine.cfg.ChatPause {
			pauses++
		}
	}
	if pauses != 2 {
		t.Errorf("chat pauses = %d, want 2 for 3 chats", pauses)
	}
}

func TestCycleSafeRecoversPanic(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"x"}, "a")
	h.engine.client = panicSource{}

	err := h.engine.cycleSafe(context.Background())
	if err == nil {
		t.Fatal("cycleSafe returned nil after a panic")
	}
}

type panicSource struct{}

func (panicSource) Resolve(context.Context, string) (source.Entity, error) {
	return source.Entity{}, nil
}

func (panicSource) FetchSince(context.Context, source.Entity, time.Time, int) ([]source.Message, error) {
	panic("boom")
}
