package sink

import (
	"context"
	"fmt"
	"io"
	"strings"

	"tgwatch/internal/watch"
)

const consoleTextLimit = 200

// Console prints a human-readable notification block per match.
type Console struct {
	w io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Handle(ctx context.Context, ev watch.MatchEvent) error {
	_ = ctx
	text := truncate(ev.Text, consoleTextLimit)

	var b strings.Builder
	b.WriteString("\n" + strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "Keyword match in %s (@%s)\n", ev.Chat.Title, ev.Chat.Handle)
	fmt.Fprintf(&b, "Link:     https://t.me/%s\n", ev.Chat.Handle)
	fmt.Fprintf(&b, "Message:  %s\n", text)
	fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(ev.Keywords, ", "))
	fmt.Fprintf(&b, "Time:     %s\n", ev.Time.Format("02.01.2006 15:04:05"))
	b.WriteString(strings.Repeat("=", 50) + "\n")

	_, err := io.WriteString(c.w, b.String())
	return err
}

func truncate(s string, maxN int) string {
	if maxN <= 0 || len(s) <= maxN {
		return s
	}
	// Cut on a rune boundary.
	runes := []rune(s)
	if len(runes) <= maxN {
		return s
	}
	return string(runes[:maxN]) + "..."
}
