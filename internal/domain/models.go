package domain

import "time"

type User struct {
	ID       string     `json:"id" db:"id"`
	Name     string     `json:"name" db:"name"`
	IsOnline bool       `json:"is_online" db:"is_online"`
	LastSeen *time.Time `json:"last_seen,omitempty" db:"last_seen"`
}

type Room struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DirectMessage and GroupMessage are distinct variants: a direct message
// always carries a recipient, a group message always carries a room.
type DirectMessage struct {
	ID          string     `json:"id" db:"id"`
	SenderID    string     `json:"sender_id" db:"sender_id"`
	RecipientID string     `json:"recipient_id" db:"recipient_id"`
	Content     string     `json:"content" db:"content"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	Reactions   []Reaction `json:"reactions"`
}

type GroupMessage struct {
	ID        string     `json:"id" db:"id"`
	SenderID  string     `json:"sender_id" db:"sender_id"`
	RoomID    string     `json:"room_id" db:"room_id"`
	Content   string     `json:"content" db:"content"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	Reactions []Reaction `json:"reactions"`
}

// Reaction keeps the optional message-id pair on the wire; exactly one of
// DirectMessageID/GroupMessageID is set (enforced by the schema).
type Reaction struct {
	ID              string    `json:"id" db:"id"`
	UserID          string    `json:"user_id" db:"user_id"`
	Emoji           string    `json:"emoji" db:"emoji"`
	DirectMessageID *string   `json:"direct_message_id,omitempty" db:"direct_message_id"`
	GroupMessageID  *string   `json:"group_message_id,omitempty" db:"group_message_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

func (r Reaction) Ref() MessageRef {
	if r.GroupMessageID != nil {
		return MessageRef{Kind: GroupKind, MessageID: *r.GroupMessageID}
	}
	return MessageRef{Kind: DirectKind, MessageID: *r.DirectMessageID}
}

type MessageKind string

const (
	DirectKind MessageKind = "direct"
	GroupKind  MessageKind = "group"
)

// MessageRef is the resolved, tagged reference to either message variant.
type MessageRef struct {
	Kind      MessageKind
	MessageID string
}

// ConversationSummary is the inbox projection: one row per distinct DM
// counterparty, annotated with the latest message.
type ConversationSummary struct {
	CounterpartID string    `json:"counterpart_id" db:"counterpart_id"`
	LastContent   string    `json:"last_content" db:"last_content"`
	LastAt        time.Time `json:"last_at" db:"last_at"`
}

type EventType string

const (
	// client -> server
	AuthenticateType   EventType = "authenticate"
	JoinRoomsType      EventType = "join:rooms"
	DirectSendType     EventType = "dm:send"
	GroupSendType      EventType = "group:send"
	ReactionToggleType EventType = "reaction:toggle"
	MessageDeleteType  EventType = "message:delete"
	TypingStartType    EventType = "typing:start"
	TypingStopType     EventType = "typing:stop"

	// server -> client
	DirectConfirmType  EventType = "dm:confirm"
	DirectReceiveType  EventType = "dm:receive"
	GroupReceiveType   EventType = "group:receive"
	ReactionUpdateType EventType = "reaction:update"
	MessageDeletedType EventType = "message:deleted"
	UserTypingType     EventType = "user:typing"
	UserStoppedType    EventType = "user:stopped-typing"
	UserStatusType     EventType = "user:status"
)

const (
	ReactionAdded   = "added"
	ReactionRemoved = "removed"
)
