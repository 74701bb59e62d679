package server

import (
	"github.com/nearhub/chatd/internal/domain"
)

type ToggleReactionJSON struct {
	UserID          string  `json:"user_id"`
	Emoji           string  `json:"emoji"`
	DirectMessageID *string `json:"direct_message_id,omitempty"`
	GroupMessageID  *string `json:"group_message_id,omitempty"`
}

type NewRoomJSON struct {
	Name   string `json:"name"`
	UserID string `json:"user_id"`
}

type NewRoomMemberJSON struct {
	UserID string `json:"user_id"`
}

// responses
type DirectMessagesResponse struct {
	Messages []domain.DirectMessage `json:"messages"`
}

type GroupMessagesResponse struct {
	Messages []domain.GroupMessage `json:"messages"`
}

type ConversationsResponse struct {
	Conversations []domain.ConversationSummary `json:"conversations"`
}

type RoomsResponse struct {
	Rooms []domain.Room `json:"rooms"`
}

type ToggleReactionResponse struct {
	Action   string           `json:"action"`
	Reaction *domain.Reaction `json:"reaction"`
}
