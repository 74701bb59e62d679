package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nearhub/chatd/internal/domain"
)

func userChannel(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

func roomChannel(roomID string) string {
	return fmt.Sprintf("room:%s", roomID)
}

// Broker routes events onto the pub/sub fabric. Delivery is best-effort:
// publish failures are logged and otherwise swallowed.
type Broker struct {
	connRepo ConnectionRepoIn
}

func NewBroker(connRepo ConnectionRepoIn) *Broker {
	return &Broker{connRepo: connRepo}
}

func (b *Broker) EmitToUser(ctx context.Context, userID string, event domain.EventType, payload any) {
	b.emit(ctx, userChannel(userID), event, payload)
}

func (b *Broker) EmitToRoom(ctx context.Context, roomID string, event domain.EventType, payload any) {
	b.emit(ctx, roomChannel(roomID), event, payload)
}

func (b *Broker) emit(ctx context.Context, channel string, event domain.EventType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal event payload", "event", event, "error", err)
		return
	}

	envelope, err := json.Marshal(&Envelope{Type: event, Data: data})
	if err != nil {
		slog.Error("Failed to marshal envelope", "event", event, "error", err)
		return
	}

	if err := b.connRepo.Publish(ctx, channel, envelope); err != nil {
		slog.Error("Failed to publish event", "channel", channel, "event", event, "error", err)
	}
}
