package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "tgwatch/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "store")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestFileStoreKV(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := st.Get(ctx, "keywords"); err != nil || ok {
		t.Fatalf("Get on empty store = (%v, %v), want (false, nil)", ok, err)
	}
	if err := st.Set(ctx, "keywords", `["btc"]`); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	v, ok, err := st.Get(ctx, "keywords")
	if err != nil || !ok || v != `["btc"]` {
		t.Fatalf("Get = (%q, %v, %v)", v, ok, err)
	}
}

func TestFileStoreCounters(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if v, err := st.Incr(ctx, "messages_found", 1); err != nil || v != 1 {
		t.Fatalf("Incr = (%d, %v), want (1, nil)", v, err)
	}
	if v, err := st.Incr(ctx, "messages_found", 2); err != nil || v != 3 {
		t.Fatalf("Incr = (%d, %v), want (3, nil)", v, err)
	}

	all, err := st.Counters(ctx)
	if err != nil {
		t.Fatalf("Counters error: %v", err)
	}
	if all["messages_found"] != 3 {
		t.Fatalf("Counters = %v", all)
	}
}

func TestFileStoreMatchesRoundtrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "store")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	ctx := context.Background()

	base := time.Now().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		err := st.SaveMatch(ctx, MatchRecord{
			ChatHandle: "cryptonews",
			Text:       "I sell BTC now",
			MessageID:  100 + i,
			Keywords:   []string{"btc"},
			At:         base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("SaveMatch error: %v", err)
		}
	}

	recent, err := st.RecentMatches(ctx, 2)
	if err != nil {
		t.Fatalf("RecentMatches error: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("RecentMatches len = %d, want 2", len(recent))
	}
	if recent[0].MessageID != 102 || recent[1].MessageID != 101 {
		t.Fatalf("RecentMatches order wrong: %d, %d", recent[0].MessageID, recent[1].MessageID)
	}
	_ = st.Close()

	// Reopen: matches survive via the journal.
	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer st2.Close()
	recent, err = st2.RecentMatches(ctx, 10)
	if err != nil {
		t.Fatalf("RecentMatches after reopen error: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("RecentMatches after reopen len = %d, want 3", len(recent))
	}
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: ""}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("Open disabled = (%v, %v), want (nil, nil)", st, err)
	}
	if _, err := Open(Config{Driver: "bogus"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
