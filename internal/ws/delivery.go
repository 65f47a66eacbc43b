package ws

import (
	"context"

	"github.com/sarthak03dot/Chat-App/internal/event"
	"github.com/sarthak03dot/Chat-App/internal/service"
)

const blockedReason = "recipient is not accepting messages from you"

// send persists a message and fans it out. Private messages go to the
// recipient's room and are echoed to the sender's room; group messages go
// to the group room, which holds the sender's connections too. A blocked
// message reaches only the sender's room, and the originating connection
// also gets a deliveryError.
func (e *Engine) send(ctx context.Context, s Subscriber, ev *event.SendMessage) error {
	if err := sameUser(s, ev.Sender, "sender"); err != nil {
		return err
	}
	out, err := e.messages.Send(ctx, service.SendInput{
		SenderID:    s.UserID(),
		RecipientID: ev.Recipient,
		GroupID:     ev.Group,
		Content:     ev.Content,
		Attachment:  ev.Attachment,
		ReplyTo:     ev.ReplyTo,
	})
	if err != nil {
		return err
	}

	n := e.hub.Publish(event.MessageReceived(out.View), out.Message.Rooms()...)
	if out.Blocked {
		if e.metrics != nil {
			e.metrics.Blocked.Inc()
		}
		e.log.Info("delivery_blocked", "user", s.UserID(), "recipient", ev.Recipient, "message", out.Message.ID)
		s.Send(event.DeliveryError(blockedReason, out.Message.ID))
		return nil
	}
	e.log.Debug("message_delivered", "user", s.UserID(), "message", out.Message.ID, "conns", n)
	return nil
}

// publishUpdate re-publishes a full hydrated message to its rooms. Rooms
// leaves out the recipient of a suppressed message.
func (e *Engine) publishUpdate(out *service.Outcome) {
	e.hub.Publish(event.MessageUpdated(out.View), out.Message.Rooms()...)
}
