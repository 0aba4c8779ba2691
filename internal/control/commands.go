package control

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"tgwatch/internal/source"
	"tgwatch/internal/watch"
	logx "tgwatch/pkg/logx"
)

func (s *Service) registerAll() {
	s.register(Command{
		Name:        "start",
		Description: "Authenticate and show the greeting",
		Usage:       "/start <password>",
		Handle:      s.cmdStart,
	})
	s.register(Command{
		Name:        "help",
		Description: "List available commands",
		Handle:      s.cmdHelp,
	})
	s.register(Command{
		Name:        "addchat",
		Description: "Start monitoring a chat",
		Usage:       "/addchat <link or @handle>",
		Handle:      s.cmdAddChat,
	})
	s.register(Command{
		Name:        "removechat",
		Description: "Stop monitoring a chat",
		Usage:       "/removechat <link or @handle>",
		Handle:      s.cmdRemoveChat,
	})
	s.register(Command{
		Name:        "listchats",
		Description: "Show monitored chats",
		Handle:      s.cmdListChats,
	})
	s.register(Command{
		Name:        "keywords",
		Description: "Show the keyword set",
		Handle:      s.cmdKeywords,
	})
	s.register(Command{
		Name:        "setkeywords",
		Description: "Replace the keyword set",
		Usage:       "/setkeywords word1, word2, ...",
		Handle:      s.cmdSetKeywords,
	})
	s.register(Command{
		Name:        "status",
		Description: "Show monitoring status and counters",
		Handle:      s.cmdStatus,
	})
	s.register(Command{
		Name:        "recent",
		Description: "Show recently found messages",
		Usage:       "/recent [count]",
		Handle:      s.cmdRecent,
	})
}

func (s *Service) cmdStart(_ context.Context, req *Request) (string, error) {
	if s.authorized(req.FromID) {
		return "Monitoring bot ready. Send /help for commands.", nil
	}
	if s.cfg.Password != "" && len(req.Args) > 0 && req.Args[0] == s.cfg.Password {
		s.openSession(req.FromID)
		s.log.Info("session opened",
			logx.Int64("user", req.FromID),
			logx.String("name", req.Username),
		)
		return "Access granted. Send /help for commands.", nil
	}
	if s.cfg.Password == "" {
		return "This bot is restricted to its admins.", nil
	}
	return "Send /start <password> to authenticate.", nil
}

func (s *Service) cmdHelp(_ context.Context, _ *Request) (string, error) {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, name := range s.commandNames() {
		c := s.commands[name]
		usage := c.Usage
		if usage == "" {
			usage = "/" + c.Name
		}
		fmt.Fprintf(&b, "%s — %s\n", usage, c.Description)
	}
	return b.String(), nil
}

func (s *Service) cmdAddChat(ctx context.Context, req *Request) (string, error) {
	if req.ArgText == "" {
		return "Usage: /addchat <link or @handle>", nil
	}

	chat, err := s.deps.Registry.Add(ctx, req.ArgText)
	switch {
	case err == nil:
		return fmt.Sprintf("Now monitoring %s (@%s), %s.", chat.Title, chat.Handle, chat.Kind), nil
	case errors.Is(err, watch.ErrInvalidLink):
		return "That does not look like a chat link. Try t.me/name or @name.", nil
	case errors.Is(err, watch.ErrCapacity):
		return fmt.Sprintf("Chat limit reached (%d). Remove one first with /removechat.", s.deps.Registry.Len()), nil
	case errors.Is(err, source.ErrResolution):
		return "Could not find that chat. Check the link and that the bot can see it.", nil
	default:
		return "", err
	}
}

func (s *Service) cmdRemoveChat(_ context.Context, req *Request) (string, error) {
	if req.ArgText == "" {
		return "Usage: /removechat <link or @handle>", nil
	}
	if !s.deps.Registry.Remove(req.ArgText) {
		return "That chat is not being monitored.", nil
	}
	return "Removed.", nil
}

func (s *Service) cmdListChats(_ context.Context, _ *Request) (string, error) {
	chats := s.deps.Registry.List()
	if len(chats) == 0 {
		return "No chats monitored yet. Add one with /addchat.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Monitored chats (%d):\n", len(chats))
	for i, c := range chats {
		fmt.Fprintf(&b, "%d. %s (@%s) — since %s\n",
			i+1, c.Title, c.Handle, c.AddedAt.Format("2006-01-02 15:04"))
	}
	return b.String(), nil
}

func (s *Service) cmdKeywords(_ context.Context, _ *Request) (string, error) {
	words := s.deps.Keywords.Snapshot()
	if len(words) == 0 {
		return "No keywords set. Use /setkeywords word1, word2, ...", nil
	}
	return "Keywords: " + strings.Join(words, ", "), nil
}

func (s *Service) cmdSetKeywords(_ context.Context, req *Request) (string, error) {
	if req.ArgText == "" {
		return "Usage: /setkeywords word1, word2, ...", nil
	}
	// Validate before touching the live set: a bad list must not wipe the
	// keywords monitoring currently runs on.
	words := watch.Normalize(splitKeywords(req.ArgText))
	if len(words) == 0 {
		return "No usable keywords in that list.", nil
	}
	norm := s.deps.Keywords.Set(words)
	return fmt.Sprintf("Keyword set replaced (%d): %s", len(norm), strings.Join(norm, ", ")), nil
}

func (s *Service) cmdStatus(ctx context.Context, _ *Request) (string, error) {
	st := s.deps.Engine.Status()

	var b strings.Builder
	fmt.Fprintf(&b, "State: %s\n", st.State)
	fmt.Fprintf(&b, "Chats: %d, keywords: %d\n", st.Chats, st.Keywords)
	fmt.Fprintf(&b, "Poll interval: %s\n", st.Interval)
	fmt.Fprintf(&b, "Cycles: %d, matches this run: %d\n", st.Cycles, st.Matches)
	if !st.LastCycle.IsZero() {
		fmt.Fprintf(&b, "Last cycle: %s\n", st.LastCycle.Format("2006-01-02 15:04:05"))
	}

	if s.deps.Store != nil {
		counters, err := s.deps.Store.Counters(ctx)
		if err != nil {
			s.log.Warn("counters read failed", logx.Err(err))
		} else if len(counters) > 0 {
			b.WriteString("Totals:\n")
			keys := make([]string, 0, len(counters))
			for k := range counters {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, "  %s: %d\n", k, counters[k])
			}
		}
	}
	return b.String(), nil
}

func (s *Service) cmdRecent(ctx context.Context, req *Request) (string, error) {
	if s.deps.Store == nil {
		return "Persistence is disabled; no history available.", nil
	}

	limit := s.cfg.RecentDefault
	if len(req.Args) > 0 {
		n, err := strconv.Atoi(req.Args[0])
		if err != nil || n <= 0 {
			return "Usage: /recent [count]", nil
		}
		limit = n
	}
	if limit > 20 {
		limit = 20
	}

	matches, err := s.deps.Store.RecentMatches(ctx, limit)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "Nothing found yet.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Last %d matches:\n", len(matches))
	for _, m := range matches {
		text := m.Text
		if r := []rune(text); len(r) > 120 {
			text = string(r[:120]) + "..."
		}
		fmt.Fprintf(&b, "[%s] @%s (%s): %s\n",
			m.At.Format("01-02 15:04"), m.ChatHandle, strings.Join(m.Keywords, ", "), text)
	}
	return b.String(), nil
}

// splitKeywords accepts comma-separated lists and falls back to whitespace
// when no comma is present.
func splitKeywords(s string) []string {
	var parts []string
	if strings.Contains(s, ",") {
		parts = strings.Split(s, ",")
	} else {
		parts = strings.Fields(s)
	}
	return parts
}
