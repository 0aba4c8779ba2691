package digest

import (
	"context"
	"strings"
	"testing"
	"time"

	"tgwatch/internal/monitor"
	"tgwatch/internal/sink"
	"tgwatch/internal/source"
	"tgwatch/internal/storage"
	"tgwatch/internal/transport"
	"tgwatch/internal/watch"
	logx "tgwatch/pkg/logx"
)

type nopAdapter struct{}

func (nopAdapter) Start(context.Context, chan<- transport.Update) error { return nil }
func (nopAdapter) Stop(context.Context) error                           { return nil }
func (nopAdapter) SendText(context.Context, transport.ChatTarget, string, *transport.SendOptions) (transport.MessageRef, error) {
	return transport.MessageRef{}, nil
}

type fakeClient struct{}

func (fakeClient) Resolve(_ context.Context, h string) (source.Entity, error) {
	return source.Entity{Handle: h}, nil
}

func (fakeClient) FetchSince(context.Context, source.Entity, time.Time, int) ([]source.Message, error) {
	return nil, nil
}

func TestRenderWithCounters(t *testing.T) {
	t.Parallel()

	st, err := storage.Open(storage.Config{Driver: "file", Path: t.TempDir() + "/d"}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := st.Incr(ctx, "messages_found", 1); err != nil {
			t.Fatalf("incr: %v", err)
		}
	}
	if _, err := st.Incr(ctx, "messages_from_golang", 2); err != nil {
		t.Fatalf("incr: %v", err)
	}
	if _, err := st.Incr(ctx, "messages_from_rustlang", 1); err != nil {
		t.Fatalf("incr: %v", err)
	}

	reg := watch.NewRegistry(watch.RegistryConfig{}, fakeClient{}, nil, logx.Nop())
	kws := watch.NewKeywords(nil, logx.Nop())
	eng := monitor.New(monitor.Config{}, fakeClient{}, reg, kws, sink.NewDispatcher(logx.Nop()), logx.Nop())

	s := New(Config{Enabled: true, ChatID: 1}, nopAdapter{}, eng, st, logx.Nop())
	out := s.Render(ctx)

	if !strings.Contains(out, "Found all-time: 3") {
		t.Errorf("digest missing total:\n%s", out)
	}
	// Busiest chat listed first.
	gi := strings.Index(out, "@golang: 2")
	ri := strings.Index(out, "@rustlang: 1")
	if gi < 0 || ri < 0 || gi > ri {
		t.Errorf("per-chat ordering wrong:\n%s", out)
	}
}

func TestStartDisabled(t *testing.T) {
	t.Parallel()

	s := New(Config{}, nopAdapter{}, nil, nil, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("disabled start: %v", err)
	}
	s.Stop()
}

func TestStartBadSpec(t *testing.T) {
	t.Parallel()

	s := New(Config{Enabled: true, ChatID: 1, Spec: "not a cron line at all ever"}, nopAdapter{}, nil, nil, logx.Nop())
	defer s.Stop()
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("bad cron spec accepted")
	}
}
