package service

import (
	"context"
	"testing"
	"time"

	"github.com/nearhub/chatd/internal/domain"
)

type fakePresenceRepo struct {
	users map[string]*domain.User
}

func newFakePresenceRepo() *fakePresenceRepo {
	return &fakePresenceRepo{users: make(map[string]*domain.User)}
}

func (r *fakePresenceRepo) SetOnline(_ context.Context, userID string) (*domain.User, error) {
	user, ok := r.users[userID]
	if !ok {
		user = &domain.User{ID: userID, Name: userID}
		r.users[userID] = user
	}
	user.IsOnline = true
	return user, nil
}

func (r *fakePresenceRepo) SetOffline(_ context.Context, userID string, lastSeen time.Time) (*domain.User, error) {
	user, ok := r.users[userID]
	if !ok {
		user = &domain.User{ID: userID, Name: userID}
		r.users[userID] = user
	}
	user.IsOnline = false
	user.LastSeen = &lastSeen
	return user, nil
}

func TestDisconnectedBroadcastsOfflineToEveryRoom(t *testing.T) {
	presenceRepo := newFakePresenceRepo()
	roomRepo := newFakeRoomRepo()
	broker := &fakeBroker{}
	presence := NewPresenceService(presenceRepo, roomRepo, broker)

	roomRepo.rooms["u1"] = []string{"R1", "R2"}
	presence.Connected(context.Background(), "u1")
	broker.emits = nil

	presence.Disconnected(context.Background(), "u1")

	if broker.count() != 2 {
		t.Fatalf("expected one user:status per room, got %d emits", broker.count())
	}
	for _, channel := range []string{"room:R1", "room:R2"} {
		status := broker.find(channel, domain.UserStatusType)
		if status == nil {
			t.Fatalf("expected user:status on %s", channel)
		}
		user := status.payload.(*domain.User)
		if user.IsOnline {
			t.Errorf("user should be offline on %s", channel)
		}
		if user.LastSeen == nil {
			t.Errorf("last_seen should be set on %s", channel)
		}
	}
}

func TestConnectedBroadcastsOnlineWithoutTouchingLastSeen(t *testing.T) {
	presenceRepo := newFakePresenceRepo()
	roomRepo := newFakeRoomRepo()
	broker := &fakeBroker{}
	presence := NewPresenceService(presenceRepo, roomRepo, broker)

	roomRepo.rooms["u1"] = []string{"R1"}

	presence.Connected(context.Background(), "u1")

	status := broker.find("room:R1", domain.UserStatusType)
	if status == nil {
		t.Fatal("expected user:status broadcast")
	}
	user := status.payload.(*domain.User)
	if !user.IsOnline {
		t.Error("user should be online after connect")
	}
	if user.LastSeen != nil {
		t.Error("connect must not set last_seen")
	}
}

func TestRegistryCountsConnectionsPerUser(t *testing.T) {
	registry := NewRegistry()
	tab := &Client{}
	phone := &Client{}

	if n := registry.Register("u1", tab); n != 1 {
		t.Errorf("first connection count = %d, want 1", n)
	}
	if n := registry.Register("u1", phone); n != 2 {
		t.Errorf("second connection count = %d, want 2", n)
	}

	// Closing one tab must not look like a full disconnect.
	if n := registry.Unregister("u1", tab); n != 1 {
		t.Errorf("after first unregister count = %d, want 1", n)
	}
	if n := registry.Unregister("u1", phone); n != 0 {
		t.Errorf("after last unregister count = %d, want 0", n)
	}
	if n := registry.Connections("u1"); n != 0 {
		t.Errorf("connections after full disconnect = %d, want 0", n)
	}
}

func TestRegistryUnregisterUnknownClient(t *testing.T) {
	registry := NewRegistry()

	if n := registry.Unregister("ghost", &Client{}); n != 0 {
		t.Errorf("unregister of unknown user = %d, want 0", n)
	}
}
