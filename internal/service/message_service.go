package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/sarthak03dot/Chat-App/internal/domain"
	"github.com/sarthak03dot/Chat-App/internal/security"
)

// MessageService persists messages and applies state transitions to them.
// It decides what happened; publishing the result is the caller's job.
type MessageService struct {
	messages  domain.MessageRepository
	users     domain.UserRepository
	groups    domain.GroupRepository
	encryptor *security.Encryptor

	MaxMessageLength int
	HistoryLimit     int
}

func NewMessageService(
	messages domain.MessageRepository,
	users domain.UserRepository,
	groups domain.GroupRepository,
	encryptor *security.Encryptor,
	maxLength, historyLimit int,
) *MessageService {
	return &MessageService{
		messages:         messages,
		users:            users,
		groups:           groups,
		encryptor:        encryptor,
		MaxMessageLength: maxLength,
		HistoryLimit:     historyLimit,
	}
}

// SendInput is a message submission from an authenticated sender.
type SendInput struct {
	SenderID    string
	RecipientID string
	GroupID     string
	Content     string
	Attachment  string
	ReplyTo     string
}

// Outcome is the state of a message after an operation, ready for fan-out.
type Outcome struct {
	Message *domain.Message
	View    *domain.MessageView
	// Changed is false when the operation was a no-op (already read,
	// already tombstoned).
	Changed bool
	// Blocked is set on sends the recipient refuses.
	Blocked bool
}

// Send validates, encrypts and persists a message, then hydrates it. A
// message to a recipient who blocked the sender is still stored, suppressed
// for that recipient for good, and comes back with Blocked set.
func (s *MessageService) Send(ctx context.Context, in SendInput) (*Outcome, error) {
	if (in.RecipientID == "") == (in.GroupID == "") {
		return nil, domain.Invalid("exactly one of recipient or group is required")
	}
	if strings.TrimSpace(in.Content) == "" && in.Attachment == "" {
		return nil, domain.Invalid("message requires content or attachment")
	}
	if err := s.checkLength(in.Content); err != nil {
		return nil, err
	}

	var recipient *domain.User
	if in.RecipientID != "" {
		u, err := s.users.GetByID(ctx, in.RecipientID)
		if err != nil {
			return nil, domain.StoreFailure("get recipient", err)
		}
		recipient = u
	} else {
		if err := s.requireMember(ctx, in.GroupID, in.SenderID); err != nil {
			return nil, err
		}
	}

	if in.ReplyTo != "" {
		parent, err := s.messages.GetByID(ctx, in.ReplyTo)
		if err != nil {
			return nil, domain.StoreFailure("get reply target", err)
		}
		if err := s.canView(ctx, parent, in.SenderID); err != nil {
			return nil, err
		}
	}

	encrypted, err := s.encryptor.Encrypt(in.Content)
	if err != nil {
		return nil, domain.StoreFailure("encrypt content", err)
	}

	msg := &domain.Message{
		SenderID:      in.SenderID,
		RecipientID:   optional(in.RecipientID),
		GroupID:       optional(in.GroupID),
		Content:       encrypted,
		AttachmentURL: optional(in.Attachment),
		ReplyToID:     optional(in.ReplyTo),
		Suppressed:    recipient != nil && recipient.HasBlocked(in.SenderID),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, domain.StoreFailure("create message", err)
	}

	out, err := s.outcome(ctx, msg, true)
	if err != nil {
		return nil, err
	}
	out.Blocked = msg.Suppressed
	return out, nil
}

// MarkRead sets the read flag of a private message. Only the recipient may
// acknowledge it; Changed reports the false-to-true transition.
func (s *MessageService) MarkRead(ctx context.Context, messageID, readerID string) (*Outcome, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, domain.StoreFailure("get message", err)
	}
	if !msg.IsPrivate() {
		return nil, domain.Invalid("read receipts apply to private messages only")
	}
	if !msg.IsParticipant(readerID) || *msg.RecipientID != readerID {
		return nil, domain.Forbidden("only the recipient can mark a message read")
	}
	changed, err := s.messages.MarkRead(ctx, messageID)
	if err != nil {
		return nil, domain.StoreFailure("mark read", err)
	}
	msg.IsRead = true
	return &Outcome{Message: msg, Changed: changed}, nil
}

// ToggleReaction flips the (user, emoji) reaction and returns the full
// updated message.
func (s *MessageService) ToggleReaction(ctx context.Context, messageID, userID, emoji string) (*Outcome, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, domain.StoreFailure("get message", err)
	}
	if err := s.canView(ctx, msg, userID); err != nil {
		return nil, err
	}
	if msg.DeletedForEveryone {
		return nil, domain.ErrMessageDeleted
	}
	if _, err := s.messages.ToggleReaction(ctx, messageID, userID, emoji); err != nil {
		return nil, domain.StoreFailure("toggle reaction", err)
	}
	return s.reload(ctx, messageID, true)
}

// Delete hides the message for requester (DeleteForMe) or tombstones it for
// every viewer (DeleteForEveryone, sender only).
func (s *MessageService) Delete(ctx context.Context, messageID, requester string, mode domain.DeleteMode) (*Outcome, error) {
	if !mode.Valid() {
		return nil, domain.Invalid("unknown delete mode %q", mode)
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, domain.StoreFailure("get message", err)
	}

	switch mode {
	case domain.DeleteForMe:
		if err := s.canView(ctx, msg, requester); err != nil {
			return nil, err
		}
		changed := !msg.HiddenFor(requester)
		if err := s.messages.Hide(ctx, messageID, requester); err != nil {
			return nil, domain.StoreFailure("hide message", err)
		}
		msg.DeletedBy = append(msg.DeletedBy, requester)
		return &Outcome{Message: msg, Changed: changed}, nil
	default:
		if msg.SenderID != requester {
			return nil, domain.Forbidden("only the sender can delete a message for everyone")
		}
		changed, err := s.messages.Tombstone(ctx, messageID)
		if err != nil {
			return nil, domain.StoreFailure("tombstone message", err)
		}
		return s.reload(ctx, messageID, changed)
	}
}

// Edit replaces the content of a message. Tombstoned messages are final.
func (s *MessageService) Edit(ctx context.Context, messageID, requester, content string) (*Outcome, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.Invalid("content must not be empty")
	}
	if err := s.checkLength(content); err != nil {
		return nil, err
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, domain.StoreFailure("get message", err)
	}
	if msg.DeletedForEveryone {
		return nil, domain.ErrMessageDeleted
	}
	if msg.SenderID != requester {
		return nil, domain.Forbidden("only the sender can edit a message")
	}

	encrypted, err := s.encryptor.Encrypt(content)
	if err != nil {
		return nil, domain.StoreFailure("encrypt content", err)
	}
	if err := s.messages.UpdateContent(ctx, messageID, encrypted); err != nil {
		return nil, domain.StoreFailure("update message", err)
	}
	return s.reload(ctx, messageID, true)
}

// DirectHistory returns the conversation between viewer and other, oldest
// first, without messages viewer has hidden.
func (s *MessageService) DirectHistory(ctx context.Context, viewerID, otherID string, limit int) ([]*domain.MessageView, error) {
	if _, err := s.users.GetByID(ctx, otherID); err != nil {
		return nil, domain.StoreFailure("get user", err)
	}
	msgs, err := s.messages.ListDirect(ctx, viewerID, otherID, s.clampLimit(limit))
	if err != nil {
		return nil, domain.StoreFailure("list direct messages", err)
	}
	return s.Hydrate(ctx, msgs)
}

// GroupHistory returns a group's messages for a member.
func (s *MessageService) GroupHistory(ctx context.Context, groupID, viewerID string, limit int) ([]*domain.MessageView, error) {
	if err := s.requireMember(ctx, groupID, viewerID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListGroup(ctx, groupID, viewerID, s.clampLimit(limit))
	if err != nil {
		return nil, domain.StoreFailure("list group messages", err)
	}
	return s.Hydrate(ctx, msgs)
}

// ClearDirect deletes every message between the two users.
func (s *MessageService) ClearDirect(ctx context.Context, viewerID, otherID string) (int64, error) {
	if viewerID == otherID {
		return 0, domain.Invalid("cannot clear a conversation with yourself")
	}
	n, err := s.messages.DeleteDirect(ctx, viewerID, otherID)
	if err != nil {
		return 0, domain.StoreFailure("clear conversation", err)
	}
	return n, nil
}

// Recent lists the viewer's conversations, newest first, each with the
// last message the viewer can see.
func (s *MessageService) Recent(ctx context.Context, viewerID string, limit int) ([]*domain.RecentChat, error) {
	msgs, err := s.messages.Recent(ctx, viewerID, s.clampLimit(limit))
	if err != nil {
		return nil, domain.StoreFailure("list recent conversations", err)
	}
	views, err := s.Hydrate(ctx, msgs)
	if err != nil {
		return nil, err
	}

	var peerIDs []string
	for _, m := range msgs {
		if m.IsPrivate() {
			peerIDs = append(peerIDs, peerOf(m, viewerID))
		}
	}
	peers, err := s.users.GetMany(ctx, peerIDs)
	if err != nil {
		return nil, domain.StoreFailure("load users", err)
	}
	groups, err := s.groups.ListForUser(ctx, viewerID)
	if err != nil {
		return nil, domain.StoreFailure("list groups", err)
	}
	groupNames := make(map[string]string, len(groups))
	for _, g := range groups {
		groupNames[g.ID] = g.Name
	}

	chats := make([]*domain.RecentChat, 0, len(msgs))
	for i, m := range msgs {
		chat := &domain.RecentChat{LastMessage: views[i]}
		if m.IsPrivate() {
			ref := userRef(peerOf(m, viewerID), peers)
			chat.User = &ref
		} else {
			chat.Group = &domain.GroupRef{ID: *m.GroupID, Name: groupNames[*m.GroupID]}
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

// ClearGroup deletes every message of a group. Any member may do it.
func (s *MessageService) ClearGroup(ctx context.Context, groupID, viewerID string) (int64, error) {
	if err := s.requireMember(ctx, groupID, viewerID); err != nil {
		return 0, err
	}
	n, err := s.messages.DeleteGroup(ctx, groupID)
	if err != nil {
		return 0, domain.StoreFailure("clear group messages", err)
	}
	return n, nil
}

// Hydrate decrypts content and joins the display identities of senders,
// reaction actors and quoted messages.
func (s *MessageService) Hydrate(ctx context.Context, msgs []*domain.Message) ([]*domain.MessageView, error) {
	if len(msgs) == 0 {
		return []*domain.MessageView{}, nil
	}

	var replyIDs []string
	for _, m := range msgs {
		if m.ReplyToID != nil {
			replyIDs = append(replyIDs, *m.ReplyToID)
		}
	}
	parents, err := s.messages.GetMany(ctx, replyIDs)
	if err != nil {
		return nil, domain.StoreFailure("load reply targets", err)
	}

	var userIDs []string
	for _, m := range msgs {
		userIDs = append(userIDs, m.SenderID)
		if !m.DeletedForEveryone {
			for _, r := range m.Reactions {
				userIDs = append(userIDs, r.UserID)
			}
		}
	}
	for _, p := range parents {
		userIDs = append(userIDs, p.SenderID)
	}
	users, err := s.users.GetMany(ctx, userIDs)
	if err != nil {
		return nil, domain.StoreFailure("load users", err)
	}

	views := make([]*domain.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, s.view(m, parents, users))
	}
	return views, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (s *MessageService) view(m *domain.Message, parents map[string]*domain.Message, users map[string]*domain.User) *domain.MessageView {
	v := &domain.MessageView{
		ID:                 m.ID,
		Sender:             userRef(m.SenderID, users),
		Recipient:          m.RecipientID,
		Group:              m.GroupID,
		Content:            s.decrypt(m),
		Attachment:         m.AttachmentURL,
		Read:               m.IsRead,
		Edited:             m.IsEdited,
		Reactions:          []domain.ReactionView{},
		DeletedBy:          m.DeletedBy,
		DeletedForEveryone: m.DeletedForEveryone,
		CreatedAt:          m.CreatedAt,
	}
	if v.DeletedBy == nil {
		v.DeletedBy = []string{}
	}
	if m.DeletedForEveryone {
		v.Attachment = nil
	} else {
		for _, r := range m.Reactions {
			v.Reactions = append(v.Reactions, domain.ReactionView{User: userRef(r.UserID, users), Emoji: r.Emoji})
		}
	}
	if m.ReplyToID != nil {
		// A suppressed parent is quoted as deleted: the reply may reach its
		// recipient, the parent never does.
		if p, ok := parents[*m.ReplyToID]; ok && !p.Suppressed {
			v.ReplyTo = &domain.ReplyView{
				ID:      p.ID,
				Content: s.decrypt(p),
				Sender:  userRef(p.SenderID, users),
				Deleted: p.DeletedForEveryone,
			}
		} else {
			v.ReplyTo = &domain.ReplyView{ID: *m.ReplyToID, Deleted: true}
		}
	}
	return v
}

// decrypt falls back to the stored text when it is not valid ciphertext.
func (s *MessageService) decrypt(m *domain.Message) string {
	if m.DeletedForEveryone {
		return ""
	}
	plain, err := s.encryptor.Decrypt(m.Content)
	if err != nil {
		return m.Content
	}
	return plain
}

func peerOf(m *domain.Message, viewerID string) string {
	if m.SenderID == viewerID {
		return *m.RecipientID
	}
	return m.SenderID
}

func userRef(id string, users map[string]*domain.User) domain.UserRef {
	if u, ok := users[id]; ok {
		return domain.UserRef{ID: u.ID, Username: u.Username, Profile: u.Profile}
	}
	return domain.UserRef{ID: id}
}

func (s *MessageService) reload(ctx context.Context, id string, changed bool) (*Outcome, error) {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, domain.StoreFailure("reload message", err)
	}
	return s.outcome(ctx, msg, changed)
}

func (s *MessageService) outcome(ctx context.Context, msg *domain.Message, changed bool) (*Outcome, error) {
	views, err := s.Hydrate(ctx, []*domain.Message{msg})
	if err != nil {
		return nil, err
	}
	return &Outcome{Message: msg, View: views[0], Changed: changed}, nil
}

// canView reports whether userID may see msg: a participant of a private
// message or a current member of its group.
func (s *MessageService) canView(ctx context.Context, msg *domain.Message, userID string) error {
	if msg.IsPrivate() {
		if !msg.IsParticipant(userID) {
			return domain.Forbidden("not a participant of this conversation")
		}
		return nil
	}
	return s.requireMember(ctx, *msg.GroupID, userID)
}

func (s *MessageService) requireMember(ctx context.Context, groupID, userID string) error {
	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return domain.StoreFailure("get group", err)
	}
	ok, err := s.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return domain.StoreFailure("check membership", err)
	}
	if !ok {
		return domain.Forbidden("not a member of this group")
	}
	return nil
}

func (s *MessageService) checkLength(content string) error {
	if s.MaxMessageLength > 0 && utf8.RuneCountInString(content) > s.MaxMessageLength {
		return domain.Invalid("message content exceeds %d characters", s.MaxMessageLength)
	}
	return nil
}

const defaultHistoryLimit = 200

func (s *MessageService) clampLimit(limit int) int {
	ceiling := s.HistoryLimit
	if ceiling <= 0 {
		ceiling = defaultHistoryLimit
	}
	if limit <= 0 || limit > ceiling {
		return ceiling
	}
	return limit
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
