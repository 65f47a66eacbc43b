package domain

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetMany(ctx context.Context, ids []string) (map[string]*User, error)
	List(ctx context.Context) ([]*User, error)
	SetOnline(ctx context.Context, id string, online bool) error
	ResetOnline(ctx context.Context) error
	Block(ctx context.Context, userID, blockedID string) error
	Unblock(ctx context.Context, userID, blockedID string) error
	IsBlocked(ctx context.Context, ownerID, otherID string) (bool, error)
}

// GroupRepository defines persistence operations for groups and membership.
type GroupRepository interface {
	Create(ctx context.Context, g *Group) error
	GetByID(ctx context.Context, id string) (*Group, error)
	ListForUser(ctx context.Context, userID string) ([]*Group, error)
	ListAll(ctx context.Context) ([]*Group, error)
	// AddMember reports false when userID already was a member.
	AddMember(ctx context.Context, groupID, userID string) (bool, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// MessageRepository defines persistence operations for messages. Every
// mutation is expressed as a conditional or set-level update applied by the
// store, never as a read-modify-write of a cached document.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	GetMany(ctx context.Context, ids []string) (map[string]*Message, error)
	// MarkRead reports whether the flag transitioned from false to true.
	MarkRead(ctx context.Context, id string) (bool, error)
	// ToggleReaction removes the (user, emoji) pair if present, inserts it
	// otherwise, and reports whether it is present afterwards.
	ToggleReaction(ctx context.Context, id, userID, emoji string) (bool, error)
	Hide(ctx context.Context, id, userID string) error
	// Tombstone reports whether the message transitioned to deleted.
	Tombstone(ctx context.Context, id string) (bool, error)
	UpdateContent(ctx context.Context, id, content string) error
	ListDirect(ctx context.Context, viewerID, otherID string, limit int) ([]*Message, error)
	ListGroup(ctx context.Context, groupID, viewerID string, limit int) ([]*Message, error)
	// Recent returns the newest message viewerID can see in each of their
	// conversations, newest conversation first.
	Recent(ctx context.Context, viewerID string, limit int) ([]*Message, error)
	DeleteDirect(ctx context.Context, userA, userB string) (int64, error)
	DeleteGroup(ctx context.Context, groupID string) (int64, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
