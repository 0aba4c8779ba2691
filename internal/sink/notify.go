package sink

import (
	"context"
	"fmt"
	"strings"

	kit "tgwatch/internal/transport"
	"tgwatch/internal/watch"
)

const notifyTextLimit = 300

// Notify forwards matches to the operator via the platform transport
// (admin chat plus an optional shared notification chat).
type Notify struct {
	adapter kit.Adapter
	targets []kit.ChatTarget
}

func NewNotify(adapter kit.Adapter, targets ...kit.ChatTarget) *Notify {
	kept := make([]kit.ChatTarget, 0, len(targets))
	for _, t := range targets {
		if t.ChatID != 0 {
			kept = append(kept, t)
		}
	}
	return &Notify{adapter: adapter, targets: kept}
}

func (n *Notify) Name() string { return "telegram" }

func (n *Notify) Handle(ctx context.Context, ev watch.MatchEvent) error {
	text := formatNotification(ev)
	opt := &kit.SendOptions{ParseMode: "Markdown", DisablePreview: true}

	var firstErr error
	for _, to := range n.targets {
		if _, err := n.adapter.SendText(ctx, to, text, opt); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("send to %d: %w", to.ChatID, err)
		}
	}
	return firstErr
}

func formatNotification(ev watch.MatchEvent) string {
	text := truncate(ev.Text, notifyTextLimit)
	text = escapeMarkdown(text)

	var b strings.Builder
	b.WriteString("🔔 *Keyword match!*\n\n")
	fmt.Fprintf(&b, "📢 *Chat:* %s\n", ev.Chat.Title)
	fmt.Fprintf(&b, "🆔 *Link:* https://t.me/%s\n", ev.Chat.Handle)
	fmt.Fprintf(&b, "✉️ *Message:*\n```\n%s\n```\n", text)
	fmt.Fprintf(&b, "🔍 *Keywords:* %s\n", strings.Join(ev.Keywords, ", "))
	fmt.Fprintf(&b, "⏰ *Time:* %s", ev.Time.Format("02.01.2006 15:04:05"))
	return b.String()
}

func escapeMarkdown(s string) string {
	r := strings.NewReplacer("`", "\\`", "*", "\\*", "_", "\\_")
	return r.Replace(s)
}
