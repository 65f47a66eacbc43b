package ws

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sarthak03dot/Chat-App/internal/domain"
	"github.com/sarthak03dot/Chat-App/internal/event"
	"github.com/sarthak03dot/Chat-App/internal/service"
)

// Engine routes decoded client frames to the message service and fans the
// results out through the hub.
type Engine struct {
	hub      *Hub
	presence *Presence
	messages *service.MessageService
	groups   domain.GroupRepository
	log      *slog.Logger
	metrics  *Metrics
}

func NewEngine(
	hub *Hub,
	presence *Presence,
	messages *service.MessageService,
	groups domain.GroupRepository,
	log *slog.Logger,
	metrics *Metrics,
) *Engine {
	return &Engine{
		hub:      hub,
		presence: presence,
		messages: messages,
		groups:   groups,
		log:      log,
		metrics:  metrics,
	}
}

var _ service.MembershipNotifier = (*Engine)(nil)

// Connect registers s, subscribes it to its personal room and the rooms of
// every group its user belongs to, then marks the user online.
func (e *Engine) Connect(ctx context.Context, s Subscriber) error {
	// Register before reading memberships so that a MemberAdded landing
	// between the read and Subscribe still finds this connection.
	fresh := e.hub.Register(s)
	rooms, err := e.roomsFor(ctx, s.UserID())
	if err != nil {
		if fresh {
			e.hub.Unregister(s.ID())
		}
		return err
	}
	e.hub.Subscribe(s.ID(), rooms...)
	if !fresh {
		return nil
	}
	e.presence.Connect(ctx, s.UserID())
	e.log.Info("ws_connected", "user", s.UserID(), "conn", s.ID(), "rooms", len(rooms))
	return nil
}

// Disconnect drops every subscription of s and, for the user's last
// connection, marks them offline. It runs on its own context since the
// connection's context is already gone.
func (e *Engine) Disconnect(s Subscriber) {
	if !e.hub.Unregister(s.ID()) {
		return
	}
	e.presence.Disconnect(context.Background(), s.UserID())
	e.log.Info("ws_disconnected", "user", s.UserID(), "conn", s.ID())
}

// Handle processes one inbound frame from s. Failures are answered to s
// only.
func (e *Engine) Handle(ctx context.Context, s Subscriber, in event.Inbound) {
	if e.metrics != nil {
		e.metrics.InboundEvents.WithLabelValues(string(in.Type())).Inc()
	}

	var err error
	switch ev := in.(type) {
	case *event.Join:
		err = e.join(ctx, s, ev)
	case *event.SendMessage:
		err = e.send(ctx, s, ev)
	case *event.TypingSignal:
		err = e.typing(s, ev)
	case *event.MarkRead:
		err = e.markRead(ctx, s, ev)
	case *event.AddReaction:
		err = e.toggleReaction(ctx, s, ev)
	case *event.DeleteMessage:
		err = e.deleteMessage(ctx, s, ev)
	case *event.EditMessage:
		err = e.editMessage(ctx, s, ev)
	default:
		err = domain.Invalid("unsupported event %q", in.Type())
	}
	if err != nil {
		e.Reject(s, in.Type(), err)
	}
}

// Reject answers a failed frame with an error frame to its origin. Store
// failure details stay in the log.
func (e *Engine) Reject(s Subscriber, source event.Type, err error) {
	kind := domain.KindOf(err)
	if e.metrics != nil {
		e.metrics.RejectedEvents.WithLabelValues(string(kind)).Inc()
	}
	if kind == domain.KindStore {
		e.log.Error("ws_event_failed", "user", s.UserID(), "conn", s.ID(), "event", source, "error", err)
		err = errInternal
	} else {
		e.log.Debug("ws_event_rejected", "user", s.UserID(), "event", source, "kind", kind, "error", err)
	}
	s.Send(event.Error(source, err))
}

// errInternal replaces store failures in error frames; it classifies as a
// store failure itself.
var errInternal = errors.New("internal error, please retry")

// join re-synchronises the connection's rooms. Presence is only counted the
// first time a connection registers.
func (e *Engine) join(ctx context.Context, s Subscriber, ev *event.Join) error {
	if err := sameUser(s, ev.UserID, "userId"); err != nil {
		return err
	}
	return e.Connect(ctx, s)
}

// MemberAdded subscribes every live connection of userID to the group room.
func (e *Engine) MemberAdded(ctx context.Context, g *domain.Group, userID string) {
	added := e.hub.SubscribeUser(userID, domain.GroupRoom(g.ID))
	for _, s := range added {
		s.Send(event.GroupJoined(g.ID, g.Name))
	}
	if len(added) > 0 {
		e.log.Debug("group_subscribed", "group", g.ID, "user", userID, "conns", len(added))
	}
}

// GroupDeleted empties the group room and tells its former subscribers.
func (e *Engine) GroupDeleted(ctx context.Context, g *domain.Group) {
	removed := e.hub.UnsubscribeRoom(domain.GroupRoom(g.ID))
	for _, s := range removed {
		s.Send(event.GroupDeleted(g.ID))
	}
	e.log.Info("group_deleted", "group", g.ID, "conns", len(removed))
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (e *Engine) roomsFor(ctx context.Context, userID string) ([]string, error) {
	groups, err := e.groups.ListForUser(ctx, userID)
	if err != nil {
		return nil, domain.StoreFailure("list groups", err)
	}
	rooms := make([]string, 0, len(groups)+1)
	rooms = append(rooms, domain.UserRoom(userID))
	for _, g := range groups {
		rooms = append(rooms, domain.GroupRoom(g.ID))
	}
	return rooms, nil
}

// sameUser rejects payload identity fields naming someone other than the
// connection's user. Empty fields default to the connection.
func sameUser(s Subscriber, claimed, field string) error {
	if claimed != "" && claimed != s.UserID() {
		return domain.Forbidden("%s does not match the authenticated user", field)
	}
	return nil
}
