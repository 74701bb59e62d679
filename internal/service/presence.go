package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/nearhub/chatd/internal/domain"
)

// PresenceService owns the online/offline transitions. The connection layer
// calls Connected on a user's first connection and Disconnected once the
// last one drops; in-between connects and disconnects never reach here.
type PresenceService struct {
	presenceRepo PresenceRepoIn
	roomRepo     RoomRepoIn
	broker       BrokerIn
}

func NewPresenceService(presenceRepo PresenceRepoIn, roomRepo RoomRepoIn, broker BrokerIn) PresenceServiceIn {
	return &PresenceService{
		presenceRepo: presenceRepo,
		roomRepo:     roomRepo,
		broker:       broker,
	}
}

func (ps *PresenceService) Connected(ctx context.Context, userID string) {
	user, err := ps.presenceRepo.SetOnline(ctx, userID)
	if err != nil {
		slog.Error("Failed to set user online", "user_id", userID, "error", err)
		return
	}

	ps.broadcastStatus(ctx, user)
}

func (ps *PresenceService) Disconnected(ctx context.Context, userID string) {
	user, err := ps.presenceRepo.SetOffline(ctx, userID, time.Now())
	if err != nil {
		slog.Error("Failed to set user offline", "user_id", userID, "error", err)
		return
	}

	ps.broadcastStatus(ctx, user)
}

// broadcastStatus notifies every room the user belongs to, membership
// resolved at transition time.
func (ps *PresenceService) broadcastStatus(ctx context.Context, user *domain.User) {
	roomIDs, err := ps.roomRepo.UserRoomIDs(ctx, user.ID)
	if err != nil {
		slog.Error("Failed to resolve rooms for presence broadcast", "user_id", user.ID, "error", err)
		return
	}

	for _, roomID := range roomIDs {
		ps.broker.EmitToRoom(ctx, roomID, domain.UserStatusType, user)
	}
}
