package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"

	"tgwatch/internal/source"
	"tgwatch/internal/watch"
	logx "tgwatch/pkg/logx"
)

func (e *Engine) run(ctx context.Context) {
	for {
		pause := e.cfg.Interval
		if err := e.cycleSafe(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			e.log.Error("cycle failed; cooling down",
				logx.Duration("cooldown", e.cfg.ErrorCooldown),
				logx.Err(err),
			)
			pause = e.cfg.ErrorCooldown
		}

		if err := e.sleep(ctx, pause); err != nil {
			return
		}
	}
}

// cycleSafe runs one cycle and converts a panic into an error so one bad
// pass never takes the whole loop down.
func (e *Engine) cycleSafe(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("panic in polling cycle",
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	return e.cycle(ctx)
}

// cycle polls every registered chat once, sequentially and in stable order.
// A flood signal or a transient error on one chat never blocks the rest of
// the pass; cancellation is honored at chat boundaries only.
//
// An empty keyword set still polls every chat: watermarks must keep moving,
// otherwise messages from a keywordless period would be dispatched
// retroactively once keywords are set.
func (e *Engine) cycle(ctx context.Context) error {
	chats := e.reg.List()
	keywords := e.kws.Snapshot()

	log := e.log.With(logx.String("cycle", uuid.NewString()[:8]))

	if len(chats) == 0 {
		log.Debug("cycle skipped", logx.Int("chats", 0))
		return ctx.Err()
	}

	start := e.now()
	var matched int
	for i, chat := range chats {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i > 0 {
			if err := e.sleep(ctx, e.cfg.ChatPause); err != nil {
				return err
			}
		}
		matched += e.pollChat(ctx, log, chat, keywords)
	}

	e.cycles.Add(1)
	e.lastCycle.Store(e.now().UnixMilli())
	log.Debug("cycle complete",
		logx.Int("chats", len(chats)),
		logx.Int("matched", matched),
		logx.Duration("dur", e.now().Sub(start)),
	)
	return ctx.Err()
}

// pollChat fetches messages newer than the chat's watermark, dispatches
// matches, and advances the watermark.
//
// The watermark moves to the moment the fetch began: on success (whether or
// not anything matched) and on a transient error, so a noisy chat cannot be
// re-scanned forever. On a flood signal the watermark stays put and the
// chat is retried next cycle from the same point.
func (e *Engine) pollChat(ctx context.Context, log logx.Logger, chat watch.Chat, keywords []string) int {
	log = log.With(logx.String("chat", chat.Handle))

	fetchStart := e.now()
	if err := e.limiter.Wait(ctx); err != nil {
		return 0
	}

	ent := source.Entity{ID: chat.ID, Handle: chat.Handle, Title: chat.Title, Kind: chat.Kind}

	var msgs []source.Message
	err := e.guard.Do(ctx, "fetch:"+chat.Handle, func() error {
		var ferr error
		msgs, ferr = e.client.FetchSince(ctx, ent, chat.Watermark, e.cfg.PageSize)
		return ferr
	})
	if err != nil {
		if _, flood := source.AsFlood(err); flood {
			// Mandated wait already served by the guard; abandon the chat
			// for this cycle without touching the watermark.
			log.Warn("chat abandoned for this cycle (flood control)")
			return 0
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0
		}
		log.Warn("fetch failed; skipping chat", logx.Err(err))
		e.reg.AdvanceWatermark(chat.Handle, fetchStart)
		return 0
	}

	matched := 0
	for _, m := range msgs {
		if m.Text == "" || !m.Time.After(chat.Watermark) {
			continue
		}
		hits := watch.Match(m.Text, keywords)
		if len(hits) == 0 {
			continue
		}
		matched++
		e.matches.Add(1)
		e.disp.Dispatch(ctx, watch.MatchEvent{
			Chat:      chat,
			Text:      m.Text,
			MessageID: m.ID,
			Time:      m.Time,
			SenderID:  m.SenderID,
			Keywords:  hits,
		})
	}

	e.reg.AdvanceWatermark(chat.Handle, fetchStart)
	if len(msgs) > 0 {
		log.Debug("chat polled",
			logx.Int("fetched", len(msgs)),
			logx.Int("matched", matched),
		)
	}
	return matched
}
