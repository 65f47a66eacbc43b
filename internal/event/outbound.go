package event

import "github.com/sarthak03dot/Chat-App/internal/domain"

// Outbound variants.
const (
	TypePresenceChanged Type = "presenceChanged"
	TypeMessageReceived Type = "messageReceived"
	TypeTypingStatus    Type = "typingStatus"
	TypeMessageRead     Type = "messageRead"
	TypeMessageUpdated  Type = "messageUpdated"
	TypeMessageDeleted  Type = "messageDeleted"
	TypeDeliveryError   Type = "deliveryError"
	TypeGroupJoined     Type = "groupJoined"
	TypeGroupDeleted    Type = "groupDeleted"
	TypeError           Type = "error"
)

// Outbound is a frame published to subscribers.
type Outbound struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

type PresenceChangedData struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

type TypingStatusData struct {
	Sender string `json:"sender"`
	Group  string `json:"group,omitempty"`
	Typing bool   `json:"typing"`
}

type MessageReadData struct {
	MessageID string `json:"messageId"`
	ReaderID  string `json:"readerId"`
}

type MessageDeletedData struct {
	MessageID string            `json:"messageId"`
	Mode      domain.DeleteMode `json:"mode"`
	UserID    string            `json:"userId"`
}

type DeliveryErrorData struct {
	Reason    string `json:"reason"`
	MessageID string `json:"messageId,omitempty"`
}

type GroupData struct {
	GroupID string `json:"groupId"`
	Name    string `json:"name,omitempty"`
}

type ErrorData struct {
	Event   Type        `json:"event,omitempty"`
	Kind    domain.Kind `json:"kind"`
	Message string      `json:"message"`
}

func PresenceChanged(userID string, online bool) Outbound {
	return Outbound{Type: TypePresenceChanged, Data: PresenceChangedData{UserID: userID, Online: online}}
}

func MessageReceived(m *domain.MessageView) Outbound {
	return Outbound{Type: TypeMessageReceived, Data: m}
}

func MessageUpdated(m *domain.MessageView) Outbound {
	return Outbound{Type: TypeMessageUpdated, Data: m}
}

func TypingStatus(sender, group string, typing bool) Outbound {
	return Outbound{Type: TypeTypingStatus, Data: TypingStatusData{Sender: sender, Group: group, Typing: typing}}
}

func MessageRead(messageID, readerID string) Outbound {
	return Outbound{Type: TypeMessageRead, Data: MessageReadData{MessageID: messageID, ReaderID: readerID}}
}

func MessageDeleted(messageID string, mode domain.DeleteMode, userID string) Outbound {
	return Outbound{Type: TypeMessageDeleted, Data: MessageDeletedData{MessageID: messageID, Mode: mode, UserID: userID}}
}

func DeliveryError(reason, messageID string) Outbound {
	return Outbound{Type: TypeDeliveryError, Data: DeliveryErrorData{Reason: reason, MessageID: messageID}}
}

func GroupJoined(groupID, name string) Outbound {
	return Outbound{Type: TypeGroupJoined, Data: GroupData{GroupID: groupID, Name: name}}
}

func GroupDeleted(groupID string) Outbound {
	return Outbound{Type: TypeGroupDeleted, Data: GroupData{GroupID: groupID}}
}

// Error reports a failed inbound frame back to its originating connection.
func Error(source Type, err error) Outbound {
	return Outbound{Type: TypeError, Data: ErrorData{
		Event:   source,
		Kind:    domain.KindOf(err),
		Message: err.Error(),
	}}
}
