package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"tgwatch/internal/sink"
	"tgwatch/internal/source"
	"tgwatch/internal/watch"
	logx "tgwatch/pkg/logx"
)

type Engine struct {
	cfg    Config
	log    logx.Logger
	client source.Client
	reg    *watch.Registry
	kws    *watch.Keywords
	disp   *sink.Dispatcher

	guard   *Guard
	limiter *rate.Limiter

	// sleep and now are injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	cycles    atomic.Uint64
	matches   atomic.Uint64
	lastCycle atomic.Int64 // unix milli
}

func New(cfg Config, client source.Client, reg *watch.Registry, kws *watch.Keywords, disp *sink.Dispatcher, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:     cfg,
		log:     log,
		client:  client,
		reg:     reg,
		kws:     kws,
		disp:    disp,
		guard:   NewGuard(log),
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RatePerMin)/60.0), 1),
		sleep:   sleepCtx,
		now:     time.Now,
		state:   StateStopped,
	}
}

// Start launches the polling loop. It is a no-op when already running.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.state != StateStopped {
		e.mu.Unlock()
		return
	}
	rctx, cancel := context.WithCancel(ctx)
	e.state = StateRunning
	e.cancel = cancel
	e.done = make(chan struct{})
	done := e.done
	e.mu.Unlock()

	go func() {
		defer close(done)
		e.run(rctx)
		e.mu.Lock()
		e.state = StateStopped
		e.mu.Unlock()
	}()

	e.log.Info("monitoring started",
		logx.Duration("interval", e.cfg.Interval),
		logx.Int("page_size", e.cfg.PageSize),
		logx.Int("rate_per_min", e.cfg.RatePerMin),
	)
}

// Stop requests a halt and waits for the loop to reach a chat/cycle
// boundary (or for ctx to give up waiting). The in-flight per-chat fetch is
// never truncated mid-chat.
func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	e.state = StateStopping
	cancel := e.cancel
	done := e.done
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
		e.log.Info("monitoring stopped")
	case <-ctx.Done():
		e.log.Warn("monitor stop wait cancelled", logx.Err(ctx.Err()))
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Status() Status {
	var last time.Time
	if ms := e.lastCycle.Load(); ms != 0 {
		last = time.UnixMilli(ms)
	}
	return Status{
		State:     e.State(),
		Chats:     e.reg.Len(),
		Keywords:  e.kws.Len(),
		Interval:  e.cfg.Interval,
		Cycles:    e.cycles.Load(),
		Matches:   e.matches.Load(),
		LastCycle: last,
	}
}
