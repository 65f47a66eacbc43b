package ws

import (
	"sync"

	"github.com/sarthak03dot/Chat-App/internal/event"
)

// Subscriber is one live connection. Send must not block: it either queues
// the frame or reports false.
type Subscriber interface {
	ID() string
	UserID() string
	Send(ev event.Outbound) bool
}

// Hub is the room membership registry. Every connection is an independent
// subscriber, so a user with several tabs receives each frame once per tab.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]Subscriber            // connID -> subscriber
	rooms  map[string]map[string]Subscriber // room -> connID -> subscriber
	joined map[string]map[string]struct{}   // connID -> rooms

	metrics *Metrics
}

func NewHub(metrics *Metrics) *Hub {
	return &Hub{
		subs:    make(map[string]Subscriber),
		rooms:   make(map[string]map[string]Subscriber),
		joined:  make(map[string]map[string]struct{}),
		metrics: metrics,
	}
}

// Register adds a subscriber without any rooms. It reports false if the
// connection was already registered.
func (h *Hub) Register(s Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[s.ID()]; ok {
		return false
	}
	h.subs[s.ID()] = s
	h.joined[s.ID()] = make(map[string]struct{})
	if h.metrics != nil {
		h.metrics.Connections.Inc()
	}
	return true
}

// Registered reports whether connID is live.
func (h *Hub) Registered(connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[connID]
	return ok
}

// Subscribe adds a registered connection to rooms.
func (h *Hub) Subscribe(connID string, rooms ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.subs[connID]
	if !ok {
		return
	}
	for _, room := range rooms {
		h.addLocked(s, room)
	}
}

// SubscribeUser adds every live connection of userID to room and returns
// the connections that were not subscribed before.
func (h *Hub) SubscribeUser(userID, room string) []Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	var added []Subscriber
	for _, s := range h.subs {
		if s.UserID() != userID {
			continue
		}
		if h.addLocked(s, room) {
			added = append(added, s)
		}
	}
	return added
}

// UnsubscribeRoom empties room and returns the connections removed from it.
func (h *Hub) UnsubscribeRoom(room string) []Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[room]
	removed := make([]Subscriber, 0, len(members))
	for connID, s := range members {
		delete(h.joined[connID], room)
		removed = append(removed, s)
	}
	delete(h.rooms, room)
	return removed
}

// Unregister removes the connection from every room it joined. It reports
// false if the connection was not registered.
func (h *Hub) Unregister(connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[connID]; !ok {
		return false
	}
	for room := range h.joined[connID] {
		h.removeLocked(connID, room)
	}
	delete(h.joined, connID)
	delete(h.subs, connID)
	if h.metrics != nil {
		h.metrics.Connections.Dec()
	}
	return true
}

// Rooms lists the rooms connID is subscribed to.
func (h *Hub) Rooms(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make([]string, 0, len(h.joined[connID]))
	for room := range h.joined[connID] {
		rooms = append(rooms, room)
	}
	return rooms
}

// InRoom reports whether connID is subscribed to room.
func (h *Hub) InRoom(connID, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][connID]
	return ok
}

// Publish delivers ev to every connection subscribed to any of rooms. A
// connection in several of the rooms gets the frame once. Returns the
// number of connections the frame was queued for.
func (h *Hub) Publish(ev event.Outbound, rooms ...string) int {
	return h.PublishExcept(ev, "", rooms...)
}

// PublishExcept is Publish skipping the connection exceptConnID.
func (h *Hub) PublishExcept(ev event.Outbound, exceptConnID string, rooms ...string) int {
	targets := h.collect(exceptConnID, rooms)
	return h.deliver(ev, targets)
}

// Broadcast delivers ev to every live connection.
func (h *Hub) Broadcast(ev event.Outbound) int {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	return h.deliver(ev, targets)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (h *Hub) collect(exceptConnID string, rooms []string) []Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]struct{})
	var targets []Subscriber
	for _, room := range rooms {
		for connID, s := range h.rooms[room] {
			if connID == exceptConnID {
				continue
			}
			if _, dup := seen[connID]; dup {
				continue
			}
			seen[connID] = struct{}{}
			targets = append(targets, s)
		}
	}
	return targets
}

// deliver runs outside the lock; Send only enqueues.
func (h *Hub) deliver(ev event.Outbound, targets []Subscriber) int {
	n := 0
	for _, s := range targets {
		if s.Send(ev) {
			n++
		} else if h.metrics != nil {
			h.metrics.Dropped.Inc()
		}
	}
	if h.metrics != nil {
		h.metrics.Frames.Add(float64(n))
	}
	return n
}

func (h *Hub) addLocked(s Subscriber, room string) bool {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]Subscriber)
		h.rooms[room] = members
	}
	if _, ok := members[s.ID()]; ok {
		return false
	}
	members[s.ID()] = s
	h.joined[s.ID()][room] = struct{}{}
	return true
}

func (h *Hub) removeLocked(connID, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.joined[connID], room)
}
