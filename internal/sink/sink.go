// Package sink fans matched messages out to registered consumers.
//
// Sinks are registered once at startup and invoked in registration order.
// A failing or panicking sink is logged and isolated: it never prevents the
// next sink, the next message, or the polling cycle from proceeding.
package sink

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"tgwatch/internal/watch"
	logx "tgwatch/pkg/logx"
)

// Sink consumes match events. Handle is called at least once per qualifying
// match and must be safe for sequential reuse.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev watch.MatchEvent) error
}

type Dispatcher struct {
	log   logx.Logger
	sinks []Sink
}

func NewDispatcher(log logx.Logger, sinks ...Sink) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{log: log, sinks: append([]Sink(nil), sinks...)}
}

func (d *Dispatcher) Len() int { return len(d.sinks) }

// Dispatch invokes every sink in order. Per-sink failures are logged and do
// not propagate.
func (d *Dispatcher) Dispatch(ctx context.Context, ev watch.MatchEvent) {
	for _, s := range d.sinks {
		start := time.Now()
		if err := d.handleOne(ctx, s, ev); err != nil {
			d.log.Warn("sink failed",
				logx.String("sink", s.Name()),
				logx.String("chat", ev.Chat.Handle),
				logx.Int("message_id", ev.MessageID),
				logx.Duration("dur", time.Since(start)),
				logx.Err(err),
			)
		}
	}
}

func (d *Dispatcher) handleOne(ctx context.Context, s Sink, ev watch.MatchEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("panic in sink",
				logx.String("sink", s.Name()),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Handle(ctx, ev)
}
