package domain

import "time"

// UserRef is the display identity joined into outbound payloads.
type UserRef struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Profile  *string `json:"profile,omitempty"`
}

// ReactionView is a reaction with its actor resolved.
type ReactionView struct {
	User  UserRef `json:"user"`
	Emoji string  `json:"emoji"`
}

// ReplyView is the quoted message a reply points to.
type ReplyView struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Sender  UserRef `json:"sender"`
	Deleted bool    `json:"deleted"`
}

// MessageView is a hydrated message as delivered to clients.
type MessageView struct {
	ID                 string         `json:"id"`
	Sender             UserRef        `json:"sender"`
	Recipient          *string        `json:"recipient,omitempty"`
	Group              *string        `json:"group,omitempty"`
	Content            string         `json:"content"`
	Attachment         *string        `json:"attachment,omitempty"`
	Read               bool           `json:"read"`
	Edited             bool           `json:"edited"`
	Reactions          []ReactionView `json:"reactions"`
	ReplyTo            *ReplyView     `json:"reply_to,omitempty"`
	DeletedBy          []string       `json:"deleted_by"`
	DeletedForEveryone bool           `json:"deleted_for_everyone"`
	CreatedAt          time.Time      `json:"created_at"`
}

// GroupRef names a group in listings.
type GroupRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RecentChat is one conversation in the recent list: exactly one of User
// and Group is set, along with the newest message the viewer can see.
type RecentChat struct {
	User        *UserRef     `json:"user,omitempty"`
	Group       *GroupRef    `json:"group,omitempty"`
	LastMessage *MessageView `json:"last_message"`
}
