package monitor

import (
	"context"
	"time"

	"tgwatch/internal/source"
	logx "tgwatch/pkg/logx"
)

// Guard wraps a single remote call with the platform's flood-control
// protocol: when the call reports a mandated wait, Guard sleeps it before
// returning. It never retries on its own and never swallows unrelated
// errors; the caller decides whether to retry this pass or defer to the
// next cycle.
type Guard struct {
	log   logx.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

func NewGuard(log logx.Logger) *Guard {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Guard{log: log, sleep: sleepCtx}
}

// Do invokes fn. On a flood signal it sleeps the mandated duration, then
// returns the original *source.FloodError so the caller can abandon the
// operation for the current cycle. Any other error passes through unchanged.
func (g *Guard) Do(ctx context.Context, op string, fn func() error) error {
	err := fn()
	fe, ok := source.AsFlood(err)
	if !ok {
		return err
	}

	g.log.Warn("flood control; sleeping mandated wait",
		logx.String("op", op),
		logx.Duration("wait", fe.RetryAfter),
	)
	if serr := g.sleep(ctx, fe.RetryAfter); serr != nil {
		return serr
	}
	return err
}

// sleepCtx sleeps d, returning early with ctx.Err() on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
