package telegram

import (
	"testing"
	"time"

	"tgwatch/internal/source"
)

func TestInboxSince(t *testing.T) {
	t.Parallel()
	b := newInbox(10)
	base := time.Now()

	for i := 0; i < 5; i++ {
		b.add(7, source.Message{ID: i, Text: "m", Time: base.Add(time.Duration(i) * time.Second)})
	}

	got := b.since(7, base.Add(1*time.Second), 0)
	if len(got) != 3 {
		t.Fatalf("since len = %d, want 3 (strictly after)", len(got))
	}
	if got[0].ID != 2 || got[2].ID != 4 {
		t.Fatalf("since order wrong: first=%d last=%d", got[0].ID, got[2].ID)
	}

	if got := b.since(7, base.Add(1*time.Second), 2); len(got) != 2 || got[1].ID != 3 {
		t.Fatalf("limit not applied from oldest: %+v", got)
	}

	if got := b.since(999, base, 0); len(got) != 0 {
		t.Fatalf("unknown chat returned %d messages", len(got))
	}
}

func TestInboxBound(t *testing.T) {
	t.Parallel()
	b := newInbox(3)
	base := time.Now()
	for i := 0; i < 6; i++ {
		b.add(1, source.Message{ID: i, Time: base.Add(time.Duration(i) * time.Second)})
	}
	got := b.since(1, base.Add(-time.Hour), 0)
	if len(got) != 3 || got[0].ID != 3 {
		t.Fatalf("inbox not bounded to newest entries: %+v", got)
	}
}
