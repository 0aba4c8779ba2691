package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	"tgwatch/internal/source"
)

// srcMessage aliases source.Message so the inbox does not repeat the shape.
type srcMessage = source.Message

// Resolve implements source.Client via getChat.
func (a *Adapter) Resolve(ctx context.Context, handle string) (source.Entity, error) {
	_ = ctx // telebot's HTTP client owns the timeout
	chat, err := a.bot.ChatByUsername("@" + handle)
	if err != nil {
		return source.Entity{}, mapResolveError(handle, err)
	}
	title := chat.Title
	if title == "" {
		title = chat.FirstName
	}
	if title == "" {
		title = handle
	}
	return source.Entity{
		ID:     chat.ID,
		Handle: handle,
		Title:  title,
		Kind:   kindOf(chat.Type),
	}, nil
}

// FetchSince implements source.Client from the adapter's live inbox.
// Messages with a timestamp strictly after since are returned oldest first.
func (a *Adapter) FetchSince(ctx context.Context, entity source.Entity, since time.Time, limit int) ([]source.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.inbox.since(entity.ID, since, limit), nil
}

func kindOf(t tele.ChatType) source.Kind {
	switch t {
	case tele.ChatPrivate:
		return source.KindUser
	case tele.ChatGroup, tele.ChatSuperGroup:
		return source.KindGroup
	case tele.ChatChannel, tele.ChatChannelPrivate:
		return source.KindChannel
	default:
		return source.KindUnknown
	}
}

// mapError translates telebot errors into the source taxonomy.
// Flood control becomes *source.FloodError; everything else passes through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var fe tele.FloodError
	if errors.As(err, &fe) {
		return &source.FloodError{RetryAfter: time.Duration(fe.RetryAfter) * time.Second}
	}
	return err
}

func mapResolveError(handle string, err error) error {
	err = mapError(err)
	var fe *source.FloodError
	if errors.As(err, &fe) {
		return err
	}
	if errors.Is(err, tele.ErrChatNotFound) || errors.Is(err, tele.ErrUserIsDeactivated) {
		return fmt.Errorf("%w: %s", source.ErrResolution, handle)
	}
	// Unknown platform error: still a resolution failure from the caller's
	// point of view, but keep the original cause in the chain.
	return fmt.Errorf("%w: %s: %v", source.ErrResolution, handle, err)
}
