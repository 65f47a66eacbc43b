package domain

import "time"

// User represents an application user. Online is owned by the presence
// manager; BlockedUsers lists the ids this user refuses delivery from.
type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Profile      *string   `db:"profile" json:"profile,omitempty"`
	IsOnline     bool      `db:"is_online" json:"online"`
	BlockedUsers []string  `json:"blocked_users,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	LastSeen     time.Time `db:"last_seen" json:"last_seen"`
}

// HasBlocked reports whether u refuses delivery from other.
func (u *User) HasBlocked(other string) bool {
	for _, id := range u.BlockedUsers {
		if id == other {
			return true
		}
	}
	return false
}

// Group is a named set of members sharing one broadcast room.
type Group struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// HasMember reports whether userID belongs to the group.
func (g *Group) HasMember(userID string) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// Reaction is one (user, emoji) pair on a message.
type Reaction struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Emoji     string    `db:"emoji" json:"emoji"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Message is a single chat message. Exactly one of RecipientID and GroupID
// is set. Content is encrypted at rest. Suppressed marks a private message
// sent while the recipient blocked the sender; it exists for the sender only.
type Message struct {
	ID                 string     `db:"id"`
	SenderID           string     `db:"sender_id"`
	RecipientID        *string    `db:"recipient_id"`
	GroupID            *string    `db:"group_id"`
	Content            string     `db:"content"`
	AttachmentURL      *string    `db:"attachment_url"`
	IsRead             bool       `db:"is_read"`
	IsEdited           bool       `db:"is_edited"`
	ReplyToID          *string    `db:"reply_to_id"`
	DeletedForEveryone bool       `db:"deleted_for_everyone"`
	Suppressed         bool       `db:"suppressed"`
	CreatedAt          time.Time  `db:"created_at"`
	Reactions          []Reaction `db:"-"`
	DeletedBy          []string   `db:"-"`
}

// IsPrivate reports whether the message targets a single recipient.
func (m *Message) IsPrivate() bool {
	return m.RecipientID != nil
}

// IsParticipant reports whether userID is the sender or the recipient of a
// private message. The recipient of a suppressed message is not one. Group
// participation needs a membership lookup.
func (m *Message) IsParticipant(userID string) bool {
	if m.SenderID == userID {
		return true
	}
	return !m.Suppressed && m.RecipientID != nil && *m.RecipientID == userID
}

// HiddenFor reports whether userID has deleted the message for themselves.
func (m *Message) HiddenFor(userID string) bool {
	for _, id := range m.DeletedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Rooms returns the rooms a message is delivered to.
func (m *Message) Rooms() []string {
	if m.GroupID != nil {
		return []string{GroupRoom(*m.GroupID)}
	}
	if m.Suppressed {
		return []string{UserRoom(m.SenderID)}
	}
	rooms := []string{UserRoom(*m.RecipientID)}
	if *m.RecipientID != m.SenderID {
		rooms = append(rooms, UserRoom(m.SenderID))
	}
	return rooms
}

// DeleteMode selects between hiding a message for one user and redacting it
// for every viewer.
type DeleteMode string

const (
	DeleteForMe       DeleteMode = "me"
	DeleteForEveryone DeleteMode = "everyone"
)

// Valid reports whether the mode is known.
func (m DeleteMode) Valid() bool {
	return m == DeleteForMe || m == DeleteForEveryone
}

const (
	userRoomPrefix  = "user:"
	groupRoomPrefix = "group:"
)

// UserRoom is the personal inbox room of a user.
func UserRoom(userID string) string {
	return userRoomPrefix + userID
}

// GroupRoom is the shared room of a group.
func GroupRoom(groupID string) string {
	return groupRoomPrefix + groupID
}
