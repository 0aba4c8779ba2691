package control

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"tgwatch/internal/storage"
	"tgwatch/internal/transport"
	"tgwatch/internal/watch"
	logx "tgwatch/pkg/logx"
)

// Deps are the collaborators the command handlers act on. Store may be nil
// when persistence is disabled; the affected commands degrade gracefully.
type Deps struct {
	Adapter  transport.Adapter
	Registry *watch.Registry
	Keywords *watch.Keywords
	Engine   StatusSource
	Store    storage.Store
}

type Service struct {
	cfg  Config
	deps Deps
	log  logx.Logger

	commands map[string]Command
	order    []string

	mu       sync.Mutex
	sessions map[int64]time.Time

	now func() time.Time
}

func New(cfg Config, deps Deps, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:      cfg.withDefaults(),
		deps:     deps,
		log:      log.With(logx.String("comp", "control")),
		commands: map[string]Command{},
		sessions: map[int64]time.Time{},
		now:      time.Now,
	}
	s.registerAll()
	return s
}

func (s *Service) register(c Command) {
	s.commands[c.Name] = c
	s.order = append(s.order, c.Name)
}

// Run consumes updates until ctx ends or in closes.
func (s *Service) Run(ctx context.Context, in <-chan transport.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-in:
			if !ok {
				return
			}
			if up.Kind != transport.UpdateMessage || up.Message == nil || up.Message.IsGroup {
				continue
			}
			s.handleMessage(ctx, *up.Message)
		}
	}
}

func (s *Service) handleMessage(ctx context.Context, m transport.Message) {
	req, ok := parse(m)
	if !ok {
		return
	}

	reply, err := s.dispatch(ctx, req)
	if err != nil {
		s.log.Warn("command failed",
			logx.String("command", req.Command),
			logx.Int64("from", req.FromID),
			logx.Err(err),
		)
		if reply == "" {
			reply = "Something went wrong: " + err.Error()
		}
	}
	if reply == "" {
		return
	}
	s.reply(ctx, req.ChatID, reply)
}

func (s *Service) dispatch(ctx context.Context, req *Request) (string, error) {
	// /start handles its own auth (it carries the password).
	if req.Command == "start" {
		return s.cmdStart(ctx, req)
	}

	cmd, ok := s.commands[req.Command]
	if !ok {
		return "Unknown command. Send /help for the list.", nil
	}

	h := chain(cmd.Handle,
		s.mwRecover(),
		s.mwAuth(),
		s.mwLog(),
	)
	return h(ctx, req)
}

func (s *Service) reply(ctx context.Context, chatID int64, text string) {
	_, err := s.deps.Adapter.SendText(ctx, transport.ChatTarget{ChatID: chatID}, text, nil)
	if err != nil {
		s.log.Warn("reply failed", logx.Int64("chat", chatID), logx.Err(err))
	}
}

// ---- parsing ----

// parse splits "/cmd arg arg" into a Request. Non-command text is ignored.
// A "/cmd@BotName" suffix is stripped so commands work in multi-bot chats.
func parse(m transport.Message) (*Request, bool) {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return nil, false
	}
	fields := strings.Fields(text)
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	name = strings.ToLower(name)
	if name == "" {
		return nil, false
	}

	argText := strings.TrimSpace(strings.TrimPrefix(text, fields[0]))
	return &Request{
		ChatID:   m.ChatID,
		FromID:   m.FromID,
		Username: m.FromUsername,
		Command:  name,
		Args:     fields[1:],
		ArgText:  argText,
	}, true
}

// ---- middleware ----

func chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func (s *Service) mwRecover() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (out string, err error) {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in command",
						logx.String("command", req.Command),
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())),
					)
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

func (s *Service) mwAuth() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (string, error) {
			if !s.authorized(req.FromID) {
				s.log.Warn("unauthorized command",
					logx.String("command", req.Command),
					logx.Int64("from", req.FromID),
					logx.String("user", req.Username),
				)
				return "Not authorized. Send /start <password> first.", nil
			}
			return next(ctx, req)
		}
	}
}

func (s *Service) mwLog() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (string, error) {
			start := time.Now()
			out, err := next(ctx, req)
			s.log.Debug("command handled",
				logx.String("command", req.Command),
				logx.Int64("from", req.FromID),
				logx.Duration("dur", time.Since(start)),
				logx.Err(err),
			)
			return out, err
		}
	}
}

// ---- auth ----

func (s *Service) authorized(userID int64) bool {
	for _, id := range s.cfg.AdminIDs {
		if id == userID {
			return true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.sessions[userID]
	if !ok {
		return false
	}
	if s.now().After(exp) {
		delete(s.sessions, userID)
		return false
	}
	return true
}

func (s *Service) openSession(userID int64) {
	s.mu.Lock()
	s.sessions[userID] = s.now().Add(s.cfg.SessionTTL)
	s.mu.Unlock()
}

// commandNames returns the names for /help in registration order.
func (s *Service) commandNames() []string {
	return append([]string(nil), s.order...)
}
