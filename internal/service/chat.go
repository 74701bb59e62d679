package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nearhub/chatd/internal/domain"
)

// ChatService implements the message-type-specific operations: send, delete,
// reaction toggle and typing. Realtime callers get no failure signal; errors
// are logged and the expected event simply never arrives.
type ChatService struct {
	msgRepo      MessageRepoIn
	reactionRepo ReactionRepoIn
	roomRepo     RoomRepoIn
	broker       BrokerIn
	toggles      *keyedMutex
}

func NewChatService(msgRepo MessageRepoIn, reactionRepo ReactionRepoIn, roomRepo RoomRepoIn, broker BrokerIn) ChatServiceIn {
	return &ChatService{
		msgRepo:      msgRepo,
		reactionRepo: reactionRepo,
		roomRepo:     roomRepo,
		broker:       broker,
		toggles:      newKeyedMutex(),
	}
}

func (cs *ChatService) SendDirect(ctx context.Context, in *DirectSendPayload) {
	if in.SenderID == "" || in.RecipientID == "" || in.Content == "" {
		slog.Warn("Dropping direct send with missing fields", "sender_id", in.SenderID)
		return
	}

	msg, err := cs.msgRepo.CreateDirect(ctx, in.SenderID, in.RecipientID, in.Content)
	if err != nil {
		slog.Error("Failed to save direct message",
			"sender_id", in.SenderID,
			"recipient_id", in.RecipientID,
			"error", err,
		)
		return
	}

	cs.broker.EmitToUser(ctx, in.SenderID, domain.DirectConfirmType, &DirectConfirmEvent{
		TempID:  in.TempID,
		Message: *msg,
	})

	cs.broker.EmitToUser(ctx, in.RecipientID, domain.DirectReceiveType, &DirectReceiveEvent{
		Message: *msg,
	})
}

func (cs *ChatService) SendGroup(ctx context.Context, in *GroupSendPayload) {
	if in.SenderID == "" || in.RoomID == "" || in.Content == "" {
		slog.Warn("Dropping group send with missing fields", "sender_id", in.SenderID)
		return
	}

	msg, err := cs.msgRepo.CreateGroup(ctx, in.SenderID, in.RoomID, in.Content)
	if err != nil {
		slog.Error("Failed to save group message",
			"sender_id", in.SenderID,
			"room_id", in.RoomID,
			"error", err,
		)
		return
	}

	// The sender reconciles by temp_id, other members ignore it.
	cs.broker.EmitToRoom(ctx, in.RoomID, domain.GroupReceiveType, &GroupReceiveEvent{
		TempID:  in.TempID,
		Message: *msg,
	})
}

// DeleteMessage hard-deletes a message the caller authored. Missing message
// or author mismatch is a silent no-op.
func (cs *ChatService) DeleteMessage(ctx context.Context, userID, messageID string, kind domain.MessageKind) {
	switch kind {
	case domain.DirectKind:
		msg, err := cs.msgRepo.GetDirect(ctx, messageID)
		if err != nil {
			slog.Error("Failed to load direct message for delete", "message_id", messageID, "error", err)
			return
		}
		if msg == nil || msg.SenderID != userID {
			slog.Warn("Ignoring direct delete", "message_id", messageID, "user_id", userID)
			return
		}

		if err := cs.msgRepo.DeleteDirect(ctx, messageID); err != nil {
			slog.Error("Failed to delete direct message", "message_id", messageID, "error", err)
			return
		}

		// Both participants, so the deleting user's other sessions update too.
		event := &MessageDeletedEvent{MessageID: messageID}
		cs.broker.EmitToUser(ctx, msg.SenderID, domain.MessageDeletedType, event)
		cs.broker.EmitToUser(ctx, msg.RecipientID, domain.MessageDeletedType, event)

	case domain.GroupKind:
		msg, err := cs.msgRepo.GetGroup(ctx, messageID)
		if err != nil {
			slog.Error("Failed to load group message for delete", "message_id", messageID, "error", err)
			return
		}
		if msg == nil || msg.SenderID != userID {
			slog.Warn("Ignoring group delete", "message_id", messageID, "user_id", userID)
			return
		}

		if err := cs.msgRepo.DeleteGroup(ctx, messageID); err != nil {
			slog.Error("Failed to delete group message", "message_id", messageID, "error", err)
			return
		}

		cs.broker.EmitToRoom(ctx, msg.RoomID, domain.MessageDeletedType, &MessageDeletedEvent{MessageID: messageID})

	default:
		slog.Warn("Unknown message kind on delete", "kind", kind)
	}
}

// ToggleReaction flips the (user, emoji, message) reaction and broadcasts the
// result to the message's audience. Toggles on the same user and message
// serialize through a keyed lock.
func (cs *ChatService) ToggleReaction(ctx context.Context, userID, emoji string, ref domain.MessageRef) (string, *domain.Reaction, error) {
	if userID == "" || emoji == "" || ref.MessageID == "" {
		return "", nil, domain.ErrInvalidRequest
	}

	unlock := cs.toggles.Lock(fmt.Sprintf("%s/%s", userID, ref.MessageID))
	defer unlock()

	existing, err := cs.reactionRepo.Find(ctx, userID, emoji, ref)
	if err != nil {
		slog.Error("Failed to look up reaction", "message_id", ref.MessageID, "error", err)
		return "", nil, err
	}

	var (
		action   string
		reaction *domain.Reaction
	)

	if existing != nil {
		if err := cs.reactionRepo.Delete(ctx, existing.ID); err != nil {
			slog.Error("Failed to delete reaction", "reaction_id", existing.ID, "error", err)
			return "", nil, err
		}
		action, reaction = domain.ReactionRemoved, existing
	} else {
		reaction, err = cs.reactionRepo.Create(ctx, userID, emoji, ref)
		if err != nil {
			slog.Error("Failed to create reaction", "message_id", ref.MessageID, "error", err)
			return "", nil, err
		}
		action = domain.ReactionAdded
	}

	cs.broadcastReaction(ctx, action, reaction, ref)
	return action, reaction, nil
}

// broadcastReaction resolves the parent message's audience. A concurrently
// deleted parent resolves to no audience and the event is dropped.
func (cs *ChatService) broadcastReaction(ctx context.Context, action string, reaction *domain.Reaction, ref domain.MessageRef) {
	event := &ReactionUpdateEvent{
		Action:    action,
		Reaction:  *reaction,
		MessageID: ref.MessageID,
	}

	switch ref.Kind {
	case domain.GroupKind:
		msg, err := cs.msgRepo.GetGroup(ctx, ref.MessageID)
		if err != nil {
			slog.Error("Failed to resolve group reaction audience", "message_id", ref.MessageID, "error", err)
			return
		}
		if msg == nil {
			slog.Warn("Reaction parent gone, dropping event", "message_id", ref.MessageID)
			return
		}
		cs.broker.EmitToRoom(ctx, msg.RoomID, domain.ReactionUpdateType, event)

	case domain.DirectKind:
		msg, err := cs.msgRepo.GetDirect(ctx, ref.MessageID)
		if err != nil {
			slog.Error("Failed to resolve direct reaction audience", "message_id", ref.MessageID, "error", err)
			return
		}
		if msg == nil {
			slog.Warn("Reaction parent gone, dropping event", "message_id", ref.MessageID)
			return
		}
		cs.broker.EmitToUser(ctx, msg.SenderID, domain.ReactionUpdateType, event)
		cs.broker.EmitToUser(ctx, msg.RecipientID, domain.ReactionUpdateType, event)
	}
}

// Typing is broadcast only, nothing is persisted. For DMs the emitted
// conversation id is the sender's own identity: the recipient keys the
// indicator by who is typing to them.
func (cs *ChatService) Typing(ctx context.Context, senderID string, in *TypingPayload, started bool) {
	if in.ConversationID == "" {
		return
	}

	event := domain.UserTypingType
	if !started {
		event = domain.UserStoppedType
	}

	if in.IsGroup {
		cs.broker.EmitToRoom(ctx, in.ConversationID, event, &TypingEvent{
			ConversationID: in.ConversationID,
			UserName:       in.SenderName,
		})
		return
	}

	cs.broker.EmitToUser(ctx, in.ConversationID, event, &TypingEvent{
		ConversationID: senderID,
		UserName:       in.SenderName,
	})
}

// REST surface

func (cs *ChatService) PaginateDirect(ctx context.Context, userID, otherUserID string, skip, take int) ([]domain.DirectMessage, error) {
	messages, err := cs.msgRepo.PaginateDirect(ctx, userID, otherUserID, skip, take)
	if err != nil {
		slog.Error("Failed to paginate direct messages", "error", err)
		return nil, err
	}
	return messages, nil
}

func (cs *ChatService) PaginateGroup(ctx context.Context, roomID string, skip, take int) ([]domain.GroupMessage, error) {
	messages, err := cs.msgRepo.PaginateGroup(ctx, roomID, skip, take)
	if err != nil {
		slog.Error("Failed to paginate group messages", "error", err)
		return nil, err
	}
	return messages, nil
}

func (cs *ChatService) ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	summaries, err := cs.msgRepo.ListConversations(ctx, userID)
	if err != nil {
		slog.Error("Failed to list conversations", "user_id", userID, "error", err)
		return nil, err
	}
	return summaries, nil
}

func (cs *ChatService) CreateRoom(ctx context.Context, name, creatorID string) (*domain.Room, error) {
	room, err := cs.roomRepo.CreateRoom(ctx, name, creatorID)
	if err != nil {
		slog.Error("Failed to create room", "error", err)
		return nil, err
	}
	return room, nil
}

func (cs *ChatService) AddRoomMember(ctx context.Context, roomID, userID string) error {
	if err := cs.roomRepo.AddMember(ctx, roomID, userID); err != nil {
		slog.Error("Failed to add room member", "room_id", roomID, "user_id", userID, "error", err)
		return err
	}
	return nil
}

func (cs *ChatService) UserRooms(ctx context.Context, userID string) ([]domain.Room, error) {
	rooms, err := cs.roomRepo.UserRooms(ctx, userID)
	if err != nil {
		slog.Error("Failed to get user rooms", "user_id", userID, "error", err)
		return nil, err
	}
	return rooms, nil
}
