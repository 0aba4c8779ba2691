package sink

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tgwatch/internal/source"
	"tgwatch/internal/watch"
	logx "tgwatch/pkg/logx"
)

type recordingSink struct {
	name   string
	err    error
	panics bool
	got    []watch.MatchEvent
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Handle(ctx context.Context, ev watch.MatchEvent) error {
	if r.panics {
		panic("sink exploded")
	}
	r.got = append(r.got, ev)
	return r.err
}

func testEvent() watch.MatchEvent {
	return watch.MatchEvent{
		Chat:      watch.Chat{Handle: "cryptonews", Title: "Crypto News", Kind: source.KindChannel},
		Text:      "I sell BTC now",
		MessageID: 42,
		Time:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Keywords:  []string{"btc"},
	}
}

func TestDispatchOrderAndIsolation(t *testing.T) {
	t.Parallel()
	var order []string
	mk := func(name string, err error) Sink {
		return sinkFunc{name: name, fn: func(context.Context, watch.MatchEvent) error {
			order = append(order, name)
			return err
		}}
	}

	d := NewDispatcher(logx.Nop(),
		mk("first", errors.New("boom")),
		mk("second", nil),
		mk("third", nil),
	)
	d.Dispatch(context.Background(), testEvent())

	want := []string{"first", "second", "third"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("dispatch order = %v, want %v", order, want)
	}
}

func TestDispatchSurvivesPanic(t *testing.T) {
	t.Parallel()
	bad := &recordingSink{name: "bad", panics: true}
	good := &recordingSink{name: "good"}

	d := NewDispatcher(logx.Nop(), bad, good)
	d.Dispatch(context.Background(), testEvent())

	if len(good.got) != 1 {
		t.Fatalf("sink after panicking sink received %d events, want 1", len(good.got))
	}
}

type sinkFunc struct {
	name string
	fn   func(context.Context, watch.MatchEvent) error
}

func (s sinkFunc) Name() string { return s.name }
func (s sinkFunc) Handle(ctx context.Context, ev watch.MatchEvent) error {
	return s.fn(ctx, ev)
}

func TestConsoleSinkTruncates(t *testing.T) {
	t.Parallel()
	var out strings.Builder
	c := NewConsole(&out)

	ev := testEvent()
	ev.Text = strings.Repeat("x", 500)
	if err := c.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if !strings.Contains(out.String(), strings.Repeat("x", 200)+"...") {
		t.Fatal("long message was not truncated at 200 runes")
	}
	if !strings.Contains(out.String(), "@cryptonews") {
		t.Fatal("output is missing the chat handle")
	}
}

func TestFormatNotificationEscapes(t *testing.T) {
	t.Parallel()
	ev := testEvent()
	ev.Text = "buy *btc* `now`_cheap_"
	got := formatNotification(ev)
	for _, esc := range []string{"\\*btc\\*", "\\`now\\`", "\\_cheap\\_"} {
		if !strings.Contains(got, esc) {
			t.Fatalf("markdown not escaped, missing %q in:\n%s", esc, got)
		}
	}
	if !strings.Contains(got, "https://t.me/cryptonews") {
		t.Fatal("notification missing chat link")
	}
}
