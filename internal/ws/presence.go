package ws

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sarthak03dot/Chat-App/internal/domain"
	"github.com/sarthak03dot/Chat-App/internal/event"
)

// Broadcaster delivers a frame to every live connection.
type Broadcaster interface {
	Broadcast(ev event.Outbound) int
}

// Presence counts open connections per user. Only the 0->1 and 1->0
// transitions touch the store and produce a presenceChanged frame.
type Presence struct {
	users   domain.UserRepository
	out     Broadcaster
	log     *slog.Logger
	metrics *Metrics

	mu      sync.Mutex
	entries map[string]*presenceEntry
}

// presenceEntry serialises transitions of one user so a store write and its
// broadcast are never reordered against the opposite transition.
type presenceEntry struct {
	mu    sync.Mutex
	count int
}

func NewPresence(users domain.UserRepository, out Broadcaster, log *slog.Logger, metrics *Metrics) *Presence {
	return &Presence{
		users:   users,
		out:     out,
		log:     log,
		metrics: metrics,
		entries: make(map[string]*presenceEntry),
	}
}

// Entries are never removed, so concurrent Connect and Disconnect calls for
// one user always count on the same entry.
func (p *Presence) entry(userID string) *presenceEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[userID]
	if !ok {
		e = &presenceEntry{}
		p.entries[userID] = e
	}
	return e
}

// Connect records a new connection for userID and reports whether the user
// just came online.
func (p *Presence) Connect(ctx context.Context, userID string) bool {
	e := p.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.count++
	if e.count != 1 {
		return false
	}
	p.transition(ctx, userID, true)
	return true
}

// Disconnect records a closed connection and reports whether the user went
// offline. Extra calls beyond the open count are ignored.
func (p *Presence) Disconnect(ctx context.Context, userID string) bool {
	e := p.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.count == 0 {
		return false
	}
	e.count--
	if e.count != 0 {
		return false
	}
	p.transition(ctx, userID, false)
	return true
}

// Online reports whether userID has at least one open connection.
func (p *Presence) Online(userID string) bool {
	return p.Connections(userID) > 0
}

// Connections returns the number of open connections of userID. Unknown
// users are not added to the table.
func (p *Presence) Connections(userID string) int {
	p.mu.Lock()
	e, ok := p.entries[userID]
	p.mu.Unlock()
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

func (p *Presence) tracked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// transition persists the flag best-effort and always broadcasts.
func (p *Presence) transition(ctx context.Context, userID string, online bool) {
	if err := p.users.SetOnline(ctx, userID, online); err != nil {
		p.log.Warn("presence_store_failed", "user", userID, "online", online, "error", err)
	}
	if p.metrics != nil {
		if online {
			p.metrics.OnlineUsers.Inc()
		} else {
			p.metrics.OnlineUsers.Dec()
		}
	}
	p.out.Broadcast(event.PresenceChanged(userID, online))
	p.log.Debug("presence_changed", "user", userID, "online", online)
}
