package service

import (
	"encoding/json"

	"github.com/nearhub/chatd/internal/domain"
)

// Envelope wraps every realtime event in both directions.
type Envelope struct {
	Type domain.EventType `json:"type"`
	Data json.RawMessage  `json:"data,omitempty"`
}

// Requests from clients
type AuthenticatePayload struct {
	UserID string `json:"user_id"`
}

type JoinRoomsPayload struct {
	RoomIDs []string `json:"room_ids"`
}

type DirectSendPayload struct {
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
	TempID      string `json:"temp_id"`
}

type GroupSendPayload struct {
	SenderID string `json:"sender_id"`
	RoomID   string `json:"room_id"`
	Content  string `json:"content"`
	TempID   string `json:"temp_id"`
}

type ReactionTogglePayload struct {
	UserID          string  `json:"user_id"`
	Emoji           string  `json:"emoji"`
	DirectMessageID *string `json:"direct_message_id,omitempty"`
	GroupMessageID  *string `json:"group_message_id,omitempty"`
}

type MessageDeletePayload struct {
	UserID      string             `json:"user_id"`
	MessageID   string             `json:"message_id"`
	MessageType domain.MessageKind `json:"message_type"`
}

// TypingPayload's ConversationID is the room for group chats and the
// counterparty user for DMs.
type TypingPayload struct {
	ConversationID string `json:"conversation_id"`
	IsGroup        bool   `json:"is_group"`
	SenderName     string `json:"sender_name"`
}

// Events for clients
type DirectConfirmEvent struct {
	TempID  string               `json:"temp_id"`
	Message domain.DirectMessage `json:"message"`
}

type DirectReceiveEvent struct {
	Message domain.DirectMessage `json:"message"`
}

type GroupReceiveEvent struct {
	TempID  string              `json:"temp_id,omitempty"`
	Message domain.GroupMessage `json:"message"`
}

type ReactionUpdateEvent struct {
	Action    string          `json:"action"`
	Reaction  domain.Reaction `json:"reaction"`
	MessageID string          `json:"message_id"`
}

type MessageDeletedEvent struct {
	MessageID string `json:"message_id"`
}

// TypingEvent's ConversationID is the room for group chats and the typing
// user's own id for DMs, so the recipient can key the indicator by sender.
type TypingEvent struct {
	ConversationID string `json:"conversation_id"`
	UserName       string `json:"user_name"`
}
