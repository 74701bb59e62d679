package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nearhub/chatd/internal/domain"
)

type emit struct {
	channel string
	event   domain.EventType
	payload any
}

type fakeBroker struct {
	mu    sync.Mutex
	emits []emit
}

func (b *fakeBroker) EmitToUser(_ context.Context, userID string, event domain.EventType, payload any) {
	b.record("user:"+userID, event, payload)
}

func (b *fakeBroker) EmitToRoom(_ context.Context, roomID string, event domain.EventType, payload any) {
	b.record("room:"+roomID, event, payload)
}

func (b *fakeBroker) record(channel string, event domain.EventType, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emits = append(b.emits, emit{channel: channel, event: event, payload: payload})
}

func (b *fakeBroker) find(channel string, event domain.EventType) *emit {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.emits {
		if b.emits[i].channel == channel && b.emits[i].event == event {
			return &b.emits[i]
		}
	}
	return nil
}

func (b *fakeBroker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.emits)
}

type fakeMessageRepo struct {
	mu      sync.Mutex
	nextID  int
	direct  map[string]*domain.DirectMessage
	group   map[string]*domain.GroupMessage
	failing bool
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		direct: make(map[string]*domain.DirectMessage),
		group:  make(map[string]*domain.GroupMessage),
	}
}

func (r *fakeMessageRepo) id() string {
	r.nextID++
	return fmt.Sprintf("m%d", r.nextID)
}

func (r *fakeMessageRepo) CreateDirect(_ context.Context, senderID, recipientID, content string) (*domain.DirectMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return nil, errors.New("storage down")
	}
	msg := &domain.DirectMessage{
		ID:          r.id(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   time.Now(),
	}
	r.direct[msg.ID] = msg
	return msg, nil
}

func (r *fakeMessageRepo) CreateGroup(_ context.Context, senderID, roomID, content string) (*domain.GroupMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return nil, errors.New("storage down")
	}
	msg := &domain.GroupMessage{
		ID:        r.id(),
		SenderID:  senderID,
		RoomID:    roomID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	r.group[msg.ID] = msg
	return msg, nil
}

func (r *fakeMessageRepo) GetDirect(_ context.Context, id string) (*domain.DirectMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.direct[id], nil
}

func (r *fakeMessageRepo) GetGroup(_ context.Context, id string) (*domain.GroupMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.group[id], nil
}

func (r *fakeMessageRepo) DeleteDirect(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.direct, id)
	return nil
}

func (r *fakeMessageRepo) DeleteGroup(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.group, id)
	return nil
}

func (r *fakeMessageRepo) PaginateDirect(context.Context, string, string, int, int) ([]domain.DirectMessage, error) {
	return nil, nil
}

func (r *fakeMessageRepo) PaginateGroup(context.Context, string, int, int) ([]domain.GroupMessage, error) {
	return nil, nil
}

func (r *fakeMessageRepo) ListConversations(context.Context, string) ([]domain.ConversationSummary, error) {
	return nil, nil
}

type fakeReactionRepo struct {
	mu        sync.Mutex
	nextID    int
	reactions map[string]*domain.Reaction
}

func newFakeReactionRepo() *fakeReactionRepo {
	return &fakeReactionRepo{reactions: make(map[string]*domain.Reaction)}
}

func reactionKey(userID, emoji string, ref domain.MessageRef) string {
	return fmt.Sprintf("%s/%s/%s/%s", userID, emoji, ref.Kind, ref.MessageID)
}

func (r *fakeReactionRepo) Find(_ context.Context, userID, emoji string, ref domain.MessageRef) (*domain.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reactions[reactionKey(userID, emoji, ref)], nil
}

func (r *fakeReactionRepo) Create(_ context.Context, userID, emoji string, ref domain.MessageRef) (*domain.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	reaction := &domain.Reaction{
		ID:        fmt.Sprintf("r%d", r.nextID),
		UserID:    userID,
		Emoji:     emoji,
		CreatedAt: time.Now(),
	}
	switch ref.Kind {
	case domain.GroupKind:
		id := ref.MessageID
		reaction.GroupMessageID = &id
	default:
		id := ref.MessageID
		reaction.DirectMessageID = &id
	}
	r.reactions[reactionKey(userID, emoji, ref)] = reaction
	return reaction, nil
}

func (r *fakeReactionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, reaction := range r.reactions {
		if reaction.ID == id {
			delete(r.reactions, key)
			return nil
		}
	}
	return nil
}

type fakeRoomRepo struct {
	members map[string][]string
	rooms   map[string][]string // userID -> roomIDs
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{
		members: make(map[string][]string),
		rooms:   make(map[string][]string),
	}
}

func (r *fakeRoomRepo) CreateRoom(_ context.Context, name, creatorID string) (*domain.Room, error) {
	return &domain.Room{ID: "room-" + name, Name: name, CreatedAt: time.Now()}, nil
}

func (r *fakeRoomRepo) AddMember(_ context.Context, roomID, userID string) error {
	r.members[roomID] = append(r.members[roomID], userID)
	return nil
}

func (r *fakeRoomRepo) MemberIDs(_ context.Context, roomID string) ([]string, error) {
	return r.members[roomID], nil
}

func (r *fakeRoomRepo) UserRoomIDs(_ context.Context, userID string) ([]string, error) {
	return r.rooms[userID], nil
}

func (r *fakeRoomRepo) UserRooms(context.Context, string) ([]domain.Room, error) {
	return nil, nil
}

func newTestChat() (*ChatService, *fakeMessageRepo, *fakeReactionRepo, *fakeBroker) {
	msgRepo := newFakeMessageRepo()
	reactionRepo := newFakeReactionRepo()
	roomRepo := newFakeRoomRepo()
	broker := &fakeBroker{}
	chat := NewChatService(msgRepo, reactionRepo, roomRepo, broker).(*ChatService)
	return chat, msgRepo, reactionRepo, broker
}

func TestSendDirectConfirmsSenderAndNotifiesRecipient(t *testing.T) {
	chat, _, _, broker := newTestChat()
	ctx := context.Background()

	chat.SendDirect(ctx, &DirectSendPayload{
		SenderID:    "u1",
		RecipientID: "u2",
		Content:     "hello",
		TempID:      "t1",
	})

	confirm := broker.find("user:u1", domain.DirectConfirmType)
	if confirm == nil {
		t.Fatal("expected dm:confirm on sender channel")
	}
	event := confirm.payload.(*DirectConfirmEvent)
	if event.TempID != "t1" {
		t.Errorf("confirm temp id = %q, want t1", event.TempID)
	}
	if event.Message.Content != "hello" || event.Message.ID == "" {
		t.Errorf("confirm message = %+v", event.Message)
	}

	receive := broker.find("user:u2", domain.DirectReceiveType)
	if receive == nil {
		t.Fatal("expected dm:receive on recipient channel")
	}
	if receive.payload.(*DirectReceiveEvent).Message.ID != event.Message.ID {
		t.Error("recipient got a different message than the sender confirmation")
	}
}

func TestSendDirectRejectsEmptyContent(t *testing.T) {
	chat, msgRepo, _, broker := newTestChat()

	chat.SendDirect(context.Background(), &DirectSendPayload{
		SenderID:    "u1",
		RecipientID: "u2",
		TempID:      "t1",
	})

	if len(msgRepo.direct) != 0 {
		t.Error("empty content must not be persisted")
	}
	if broker.count() != 0 {
		t.Error("empty content must not be broadcast")
	}
}

func TestSendDirectSwallowsPersistenceFailure(t *testing.T) {
	chat, msgRepo, _, broker := newTestChat()
	msgRepo.failing = true

	chat.SendDirect(context.Background(), &DirectSendPayload{
		SenderID:    "u1",
		RecipientID: "u2",
		Content:     "hello",
		TempID:      "t1",
	})

	if broker.count() != 0 {
		t.Error("persistence failure must emit nothing, sender infers it by timeout")
	}
}

func TestSendGroupBroadcastsRoomWithTempID(t *testing.T) {
	chat, _, _, broker := newTestChat()

	chat.SendGroup(context.Background(), &GroupSendPayload{
		SenderID: "A",
		RoomID:   "R1",
		Content:  "hi",
		TempID:   "t1",
	})

	receive := broker.find("room:R1", domain.GroupReceiveType)
	if receive == nil {
		t.Fatal("expected group:receive on room channel")
	}
	event := receive.payload.(*GroupReceiveEvent)
	if event.TempID != "t1" {
		t.Errorf("temp id = %q, want t1", event.TempID)
	}
	if event.Message.SenderID != "A" || event.Message.RoomID != "R1" || event.Message.Content != "hi" {
		t.Errorf("message = %+v", event.Message)
	}
	if broker.count() != 1 {
		t.Errorf("expected a single room broadcast, got %d emits", broker.count())
	}
}

func TestDeleteMessageByNonAuthorIsNoOp(t *testing.T) {
	chat, msgRepo, _, broker := newTestChat()
	ctx := context.Background()

	msg, _ := msgRepo.CreateDirect(ctx, "u1", "u2", "hello")

	chat.DeleteMessage(ctx, "u2", msg.ID, domain.DirectKind)

	if msgRepo.direct[msg.ID] == nil {
		t.Error("non-author delete must not mutate state")
	}
	if broker.count() != 0 {
		t.Error("non-author delete must not emit message:deleted")
	}
}

func TestDeleteDirectNotifiesBothParticipants(t *testing.T) {
	chat, msgRepo, _, broker := newTestChat()
	ctx := context.Background()

	msg, _ := msgRepo.CreateDirect(ctx, "u1", "u2", "hello")

	chat.DeleteMessage(ctx, "u1", msg.ID, domain.DirectKind)

	if msgRepo.direct[msg.ID] != nil {
		t.Error("message should be hard-deleted")
	}
	for _, channel := range []string{"user:u1", "user:u2"} {
		deleted := broker.find(channel, domain.MessageDeletedType)
		if deleted == nil {
			t.Fatalf("expected message:deleted on %s", channel)
		}
		if deleted.payload.(*MessageDeletedEvent).MessageID != msg.ID {
			t.Errorf("wrong message id on %s", channel)
		}
	}
}

func TestDeleteMissingMessageIsNoOp(t *testing.T) {
	chat, _, _, broker := newTestChat()

	chat.DeleteMessage(context.Background(), "u1", "nope", domain.GroupKind)

	if broker.count() != 0 {
		t.Error("deleting a missing message must emit nothing")
	}
}

func TestToggleReactionAlternates(t *testing.T) {
	chat, msgRepo, _, _ := newTestChat()
	ctx := context.Background()

	msg, _ := msgRepo.CreateGroup(ctx, "u1", "R1", "hi")
	ref := domain.MessageRef{Kind: domain.GroupKind, MessageID: msg.ID}

	want := []string{domain.ReactionAdded, domain.ReactionRemoved, domain.ReactionAdded}
	for i, expected := range want {
		action, reaction, err := chat.ToggleReaction(ctx, "u2", "👍", ref)
		if err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
		if action != expected {
			t.Errorf("toggle %d action = %q, want %q", i, action, expected)
		}
		if reaction == nil || reaction.UserID != "u2" || reaction.Emoji != "👍" {
			t.Errorf("toggle %d reaction = %+v", i, reaction)
		}
	}
}

func TestToggleDistinctEmojisCoexist(t *testing.T) {
	chat, msgRepo, reactionRepo, _ := newTestChat()
	ctx := context.Background()

	msg, _ := msgRepo.CreateGroup(ctx, "u1", "R1", "hi")
	ref := domain.MessageRef{Kind: domain.GroupKind, MessageID: msg.ID}

	chat.ToggleReaction(ctx, "u2", "👍", ref)
	chat.ToggleReaction(ctx, "u2", "🎉", ref)

	if len(reactionRepo.reactions) != 2 {
		t.Errorf("expected two distinct reactions, got %d", len(reactionRepo.reactions))
	}
}

func TestToggleReactionDirectAudienceIsBothParticipants(t *testing.T) {
	chat, msgRepo, _, broker := newTestChat()
	ctx := context.Background()

	msg, _ := msgRepo.CreateDirect(ctx, "u1", "u2", "hello")
	ref := domain.MessageRef{Kind: domain.DirectKind, MessageID: msg.ID}

	if _, _, err := chat.ToggleReaction(ctx, "u2", "❤️", ref); err != nil {
		t.Fatal(err)
	}

	for _, channel := range []string{"user:u1", "user:u2"} {
		update := broker.find(channel, domain.ReactionUpdateType)
		if update == nil {
			t.Fatalf("expected reaction:update on %s", channel)
		}
		event := update.payload.(*ReactionUpdateEvent)
		if event.Action != domain.ReactionAdded || event.MessageID != msg.ID {
			t.Errorf("event on %s = %+v", channel, event)
		}
	}
	if broker.count() != 2 {
		t.Errorf("DM reaction must not reach any room, got %d emits", broker.count())
	}
}

func TestToggleReactionParentDeletedDropsBroadcast(t *testing.T) {
	chat, _, _, broker := newTestChat()
	ctx := context.Background()

	// Parent was never stored: same shape as a concurrent hard delete
	// between the reaction mutation and audience resolution.
	ref := domain.MessageRef{Kind: domain.GroupKind, MessageID: "gone"}

	action, _, err := chat.ToggleReaction(ctx, "u2", "👍", ref)
	if err != nil {
		t.Fatal(err)
	}
	if action != domain.ReactionAdded {
		t.Errorf("action = %q, want added", action)
	}
	if broker.count() != 0 {
		t.Error("event must be dropped when the parent message is gone")
	}
}

func TestConcurrentTogglesStaySerialized(t *testing.T) {
	chat, msgRepo, reactionRepo, _ := newTestChat()
	ctx := context.Background()

	msg, _ := msgRepo.CreateGroup(ctx, "u1", "R1", "hi")
	ref := domain.MessageRef{Kind: domain.GroupKind, MessageID: msg.ID}

	const rounds = 10
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chat.ToggleReaction(ctx, "u2", "👍", ref)
		}()
	}
	wg.Wait()

	// An even number of toggles always lands back on "absent".
	if len(reactionRepo.reactions) != 0 {
		t.Errorf("expected no reaction after %d toggles, got %d", rounds, len(reactionRepo.reactions))
	}
}

func TestTypingGroupGoesToRoom(t *testing.T) {
	chat, _, _, broker := newTestChat()

	chat.Typing(context.Background(), "u1", &TypingPayload{
		ConversationID: "R1",
		IsGroup:        true,
		SenderName:     "Ana",
	}, true)

	typing := broker.find("room:R1", domain.UserTypingType)
	if typing == nil {
		t.Fatal("expected user:typing on room channel")
	}
	event := typing.payload.(*TypingEvent)
	if event.ConversationID != "R1" || event.UserName != "Ana" {
		t.Errorf("event = %+v", event)
	}
}

func TestTypingDirectIsKeyedBySenderIdentity(t *testing.T) {
	chat, _, _, broker := newTestChat()

	chat.Typing(context.Background(), "u1", &TypingPayload{
		ConversationID: "u2",
		IsGroup:        false,
		SenderName:     "Ana",
	}, false)

	typing := broker.find("user:u2", domain.UserStoppedType)
	if typing == nil {
		t.Fatal("expected user:stopped-typing on recipient channel")
	}
	if typing.payload.(*TypingEvent).ConversationID != "u1" {
		t.Error("DM typing indicator must be keyed by the sender's id")
	}
}
