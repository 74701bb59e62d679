package service

import (
	"context"
	"time"

	"github.com/nearhub/chatd/internal/domain"
	"github.com/redis/go-redis/v9"
)

type MessageRepoIn interface {
	CreateDirect(ctx context.Context, senderID, recipientID, content string) (*domain.DirectMessage, error)
	CreateGroup(ctx context.Context, senderID, roomID, content string) (*domain.GroupMessage, error)
	GetDirect(ctx context.Context, id string) (*domain.DirectMessage, error)
	GetGroup(ctx context.Context, id string) (*domain.GroupMessage, error)
	DeleteDirect(ctx context.Context, id string) error
	DeleteGroup(ctx context.Context, id string) error

	PaginateDirect(ctx context.Context, userID, otherUserID string, skip, take int) ([]domain.DirectMessage, error)
	PaginateGroup(ctx context.Context, roomID string, skip, take int) ([]domain.GroupMessage, error)
	ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
}

type ReactionRepoIn interface {
	Find(ctx context.Context, userID, emoji string, ref domain.MessageRef) (*domain.Reaction, error)
	Create(ctx context.Context, userID, emoji string, ref domain.MessageRef) (*domain.Reaction, error)
	Delete(ctx context.Context, id string) error
}

type RoomRepoIn interface {
	CreateRoom(ctx context.Context, name, creatorID string) (*domain.Room, error)
	AddMember(ctx context.Context, roomID, userID string) error
	MemberIDs(ctx context.Context, roomID string) ([]string, error)
	UserRoomIDs(ctx context.Context, userID string) ([]string, error)
	UserRooms(ctx context.Context, userID string) ([]domain.Room, error)
}

type PresenceRepoIn interface {
	SetOnline(ctx context.Context, userID string) (*domain.User, error)
	SetOffline(ctx context.Context, userID string, lastSeen time.Time) (*domain.User, error)
}

type ConnectionRepoIn interface {
	Subscribe(ctx context.Context) *redis.PubSub
	Publish(ctx context.Context, channel string, payload []byte) error
}

// BrokerIn delivers an event to a user channel (every connection of that
// user) or a room channel (every joined connection).
type BrokerIn interface {
	EmitToUser(ctx context.Context, userID string, event domain.EventType, payload any)
	EmitToRoom(ctx context.Context, roomID string, event domain.EventType, payload any)
}

type PresenceServiceIn interface {
	Connected(ctx context.Context, userID string)
	Disconnected(ctx context.Context, userID string)
}

// ChatServiceIn is the transport-independent protocol surface, consumed by
// both the websocket loop and the REST handlers.
type ChatServiceIn interface {
	SendDirect(ctx context.Context, in *DirectSendPayload)
	SendGroup(ctx context.Context, in *GroupSendPayload)
	DeleteMessage(ctx context.Context, userID, messageID string, kind domain.MessageKind)
	ToggleReaction(ctx context.Context, userID, emoji string, ref domain.MessageRef) (string, *domain.Reaction, error)
	Typing(ctx context.Context, senderID string, in *TypingPayload, started bool)

	PaginateDirect(ctx context.Context, userID, otherUserID string, skip, take int) ([]domain.DirectMessage, error)
	PaginateGroup(ctx context.Context, roomID string, skip, take int) ([]domain.GroupMessage, error)
	ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error)

	CreateRoom(ctx context.Context, name, creatorID string) (*domain.Room, error)
	AddRoomMember(ctx context.Context, roomID, userID string) error
	UserRooms(ctx context.Context, userID string) ([]domain.Room, error)
}
