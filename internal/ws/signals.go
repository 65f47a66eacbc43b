package ws

import (
	"github.com/sarthak03dot/Chat-App/internal/domain"
	"github.com/sarthak03dot/Chat-App/internal/event"
)

// typing relays a typing or stopTyping signal straight to the target room.
// Nothing is stored and repeated signals are never collapsed. A group
// signal requires the connection to be subscribed to the group room, which
// is checked against the hub rather than the store.
func (e *Engine) typing(s Subscriber, ev *event.TypingSignal) error {
	if err := sameUser(s, ev.Sender, "sender"); err != nil {
		return err
	}
	if ev.Group != "" {
		room := domain.GroupRoom(ev.Group)
		if !e.hub.InRoom(s.ID(), room) {
			return domain.Forbidden("not a member of this group")
		}
		e.hub.PublishExcept(event.TypingStatus(s.UserID(), ev.Group, ev.Active), s.ID(), room)
		return nil
	}
	if ev.Recipient == s.UserID() {
		return nil
	}
	e.hub.Publish(event.TypingStatus(s.UserID(), "", ev.Active), domain.UserRoom(ev.Recipient))
	return nil
}
