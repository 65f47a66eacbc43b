// Package event defines the frames exchanged with realtime clients. Every
// frame is a tagged variant: {"type": "...", "data": {...}}. Inbound frames
// are decoded into concrete structs and validated before they reach the
// engine; anything malformed is rejected here.
package event

import (
	"encoding/json"
	"strings"

	"github.com/sarthak03dot/Chat-App/internal/domain"
)

// Type discriminates frame variants.
type Type string

// Inbound variants.
const (
	TypeJoin          Type = "join"
	TypeSendMessage   Type = "sendMessage"
	TypeTyping        Type = "typing"
	TypeStopTyping    Type = "stopTyping"
	TypeMarkRead      Type = "markRead"
	TypeAddReaction   Type = "addReaction"
	TypeDeleteMessage Type = "deleteMessage"
	TypeEditMessage   Type = "editMessage"
)

const maxEmojiLength = 32

// Inbound is a decoded client frame.
type Inbound interface {
	Type() Type
	Validate() error
}

// Persisted reports whether handling the frame writes to the store.
func Persisted(in Inbound) bool {
	switch in.Type() {
	case TypeTyping, TypeStopTyping, TypeJoin:
		return false
	default:
		return true
	}
}

// Join asks the engine to (re)subscribe the connection to its rooms.
type Join struct {
	UserID string `json:"userId"`
}

func (Join) Type() Type { return TypeJoin }

func (j Join) Validate() error {
	if j.UserID == "" {
		return domain.Invalid("join requires userId")
	}
	return nil
}

// Target is the exactly-one-of recipient/group addressing shared by sends
// and typing signals.
type Target struct {
	Recipient string `json:"recipient,omitempty"`
	Group     string `json:"group,omitempty"`
}

// Validate enforces that exactly one target is set.
func (t Target) Validate() error {
	switch {
	case t.Recipient != "" && t.Group != "":
		return domain.Invalid("recipient and group are mutually exclusive")
	case t.Recipient == "" && t.Group == "":
		return domain.Invalid("one of recipient or group is required")
	}
	return nil
}

// SendMessage submits a new message.
type SendMessage struct {
	Sender     string `json:"sender,omitempty"`
	Content    string `json:"content,omitempty"`
	Attachment string `json:"attachment,omitempty"`
	ReplyTo    string `json:"replyTo,omitempty"`
	Target
}

func (SendMessage) Type() Type { return TypeSendMessage }

func (s SendMessage) Validate() error {
	if err := s.Target.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(s.Content) == "" && s.Attachment == "" {
		return domain.Invalid("message requires content or attachment")
	}
	return nil
}

// TypingSignal carries both typing and stopTyping; Active tells them apart.
type TypingSignal struct {
	Sender string `json:"sender,omitempty"`
	Target
	Active bool `json:"-"`
}

func (t TypingSignal) Type() Type {
	if t.Active {
		return TypeTyping
	}
	return TypeStopTyping
}

func (t TypingSignal) Validate() error {
	return t.Target.Validate()
}

// MarkRead acknowledges a private message.
type MarkRead struct {
	MessageID string `json:"messageId"`
	ReaderID  string `json:"readerId,omitempty"`
}

func (MarkRead) Type() Type { return TypeMarkRead }

func (m MarkRead) Validate() error {
	if m.MessageID == "" {
		return domain.Invalid("markRead requires messageId")
	}
	return nil
}

// AddReaction toggles a (user, emoji) reaction.
type AddReaction struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId,omitempty"`
	Emoji     string `json:"emoji"`
}

func (AddReaction) Type() Type { return TypeAddReaction }

func (a AddReaction) Validate() error {
	if a.MessageID == "" {
		return domain.Invalid("addReaction requires messageId")
	}
	if a.Emoji == "" || len(a.Emoji) > maxEmojiLength {
		return domain.Invalid("addReaction requires a short emoji")
	}
	return nil
}

// DeleteMessage hides a message for the requester or tombstones it.
type DeleteMessage struct {
	MessageID string            `json:"messageId"`
	Mode      domain.DeleteMode `json:"mode"`
}

func (DeleteMessage) Type() Type { return TypeDeleteMessage }

func (d DeleteMessage) Validate() error {
	if d.MessageID == "" {
		return domain.Invalid("deleteMessage requires messageId")
	}
	if !d.Mode.Valid() {
		return domain.Invalid("deleteMessage mode must be %q or %q", domain.DeleteForMe, domain.DeleteForEveryone)
	}
	return nil
}

// EditMessage replaces the content of a message the requester sent.
type EditMessage struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

func (EditMessage) Type() Type { return TypeEditMessage }

func (e EditMessage) Validate() error {
	if e.MessageID == "" {
		return domain.Invalid("editMessage requires messageId")
	}
	if strings.TrimSpace(e.Content) == "" {
		return domain.Invalid("editMessage requires content")
	}
	return nil
}

type envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode parses a raw frame into its variant and validates it. The returned
// error wraps domain.ErrInvalidInput.
func Decode(raw []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, domain.Invalid("malformed frame: %v", err)
	}

	var in Inbound
	switch env.Type {
	case TypeJoin:
		in = &Join{}
	case TypeSendMessage:
		in = &SendMessage{}
	case TypeTyping:
		in = &TypingSignal{Active: true}
	case TypeStopTyping:
		in = &TypingSignal{}
	case TypeMarkRead:
		in = &MarkRead{}
	case TypeAddReaction:
		in = &AddReaction{}
	case TypeDeleteMessage:
		in = &DeleteMessage{}
	case TypeEditMessage:
		in = &EditMessage{}
	case "":
		return nil, domain.Invalid("frame has no type")
	default:
		return nil, domain.Invalid("unknown event type %q", env.Type)
	}

	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, in); err != nil {
			return nil, domain.Invalid("malformed %s payload: %v", env.Type, err)
		}
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return in, nil
}
