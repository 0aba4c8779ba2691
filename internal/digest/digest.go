// Package digest sends a scheduled summary of the day's findings to the
// admin chat: total matches, per-chat counters, and the monitor state.
package digest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tgwatch/internal/monitor"
	"tgwatch/internal/storage"
	"tgwatch/internal/transport"
	logx "tgwatch/pkg/logx"
)

type Config struct {
	Enabled bool
	// Spec is a cron expression or @every descriptor (default "0 9 * * *").
	Spec string
	// Timezone is an IANA TZ name; empty means local time.
	Timezone string
	// ChatID receives the digest.
	ChatID int64
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Spec) == "" {
		c.Spec = "0 9 * * *"
	}
	return c
}

type Service struct {
	cfg     Config
	log     logx.Logger
	adapter transport.Adapter
	engine  *monitor.Engine
	store   storage.Store

	parser cron.Parser

	mu sync.Mutex
	c  *cron.Cron
}

func New(cfg Config, adapter transport.Adapter, engine *monitor.Engine, store storage.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg.withDefaults(),
		log:     log.With(logx.String("comp", "digest")),
		adapter: adapter,
		engine:  engine,
		store:   store,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled || s.cfg.ChatID == 0 {
		return nil
	}

	loc := time.Local
	if tz := strings.TrimSpace(s.cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("digest timezone %q: %w", tz, err)
		}
		loc = l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	_, err := c.AddFunc(s.cfg.Spec, func() { s.send(ctx) })
	if err != nil {
		return fmt.Errorf("digest schedule %q: %w", s.cfg.Spec, err)
	}
	c.Start()
	s.c = c

	s.log.Info("digest scheduled",
		logx.String("spec", s.cfg.Spec),
		logx.Int64("chat", s.cfg.ChatID),
	)
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

func (s *Service) send(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	text := s.Render(cctx)
	if _, err := s.adapter.SendText(cctx, transport.ChatTarget{ChatID: s.cfg.ChatID}, text, nil); err != nil {
		s.log.Warn("digest send failed", logx.Err(err))
		return
	}
	s.log.Info("digest sent")
}

// Render builds the digest body from the engine snapshot and store counters.
func (s *Service) Render(ctx context.Context) string {
	st := s.engine.Status()

	var b strings.Builder
	b.WriteString("Daily monitoring digest\n")
	fmt.Fprintf(&b, "State: %s, chats: %d, keywords: %d\n", st.State, st.Chats, st.Keywords)
	fmt.Fprintf(&b, "Cycles this run: %d, matches this run: %d\n", st.Cycles, st.Matches)

	if s.store == nil {
		return b.String()
	}
	counters, err := s.store.Counters(ctx)
	if err != nil {
		s.log.Warn("digest counters read failed", logx.Err(err))
		return b.String()
	}
	if total, ok := counters["messages_found"]; ok {
		fmt.Fprintf(&b, "Found all-time: %d\n", total)
	}

	type kv struct {
		name  string
		count int64
	}
	var perChat []kv
	for k, v := range counters {
		if handle, ok := strings.CutPrefix(k, "messages_from_"); ok {
			perChat = append(perChat, kv{handle, v})
		}
	}
	if len(perChat) > 0 {
		sort.Slice(perChat, func(i, j int) bool {
			if perChat[i].count != perChat[j].count {
				return perChat[i].count > perChat[j].count
			}
			return perChat[i].name < perChat[j].name
		})
		b.WriteString("By chat:\n")
		for _, e := range perChat {
			fmt.Fprintf(&b, "  @%s: %d\n", e.name, e.count)
		}
	}
	return b.String()
}
