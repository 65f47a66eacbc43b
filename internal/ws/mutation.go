package ws

import (
	"context"

	"github.com/sarthak03dot/Chat-App/internal/domain"
	"github.com/sarthak03dot/Chat-App/internal/event"
)

// markRead notifies the sender's and reader's rooms, only when the flag
// actually flipped.
func (e *Engine) markRead(ctx context.Context, s Subscriber, ev *event.MarkRead) error {
	if err := sameUser(s, ev.ReaderID, "readerId"); err != nil {
		return err
	}
	out, err := e.messages.MarkRead(ctx, ev.MessageID, s.UserID())
	if err != nil {
		return err
	}
	if !out.Changed {
		return nil
	}
	e.hub.Publish(event.MessageRead(out.Message.ID, s.UserID()),
		domain.UserRoom(out.Message.SenderID),
		domain.UserRoom(s.UserID()),
	)
	return nil
}

func (e *Engine) toggleReaction(ctx context.Context, s Subscriber, ev *event.AddReaction) error {
	if err := sameUser(s, ev.UserID, "userId"); err != nil {
		return err
	}
	out, err := e.messages.ToggleReaction(ctx, ev.MessageID, s.UserID(), ev.Emoji)
	if err != nil {
		return err
	}
	e.publishUpdate(out)
	return nil
}

// deleteMessage tells only the requester about a hide, and every original
// room about a tombstone, followed by the redacted message.
func (e *Engine) deleteMessage(ctx context.Context, s Subscriber, ev *event.DeleteMessage) error {
	out, err := e.messages.Delete(ctx, ev.MessageID, s.UserID(), ev.Mode)
	if err != nil {
		return err
	}
	if !out.Changed {
		return nil
	}
	deleted := event.MessageDeleted(out.Message.ID, ev.Mode, s.UserID())
	if ev.Mode == domain.DeleteForMe {
		e.hub.Publish(deleted, domain.UserRoom(s.UserID()))
		return nil
	}
	rooms := out.Message.Rooms()
	e.hub.Publish(deleted, rooms...)
	e.hub.Publish(event.MessageUpdated(out.View), rooms...)
	return nil
}

func (e *Engine) editMessage(ctx context.Context, s Subscriber, ev *event.EditMessage) error {
	out, err := e.messages.Edit(ctx, ev.MessageID, s.UserID(), ev.Content)
	if err != nil {
		return err
	}
	e.publishUpdate(out)
	return nil
}
