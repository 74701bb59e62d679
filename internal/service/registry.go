package service

import (
	"log/slog"
	"sync"
)

// Registry tracks which connections are bound to which user. It is owned by
// the server process and injected where needed; a user may hold several
// connections (tabs, devices) at once.
type Registry struct {
	mu      sync.Mutex
	clients map[string]map[*Client]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]map[*Client]struct{}),
	}
}

// Register binds a client to a user and returns the number of connections
// that user now holds.
func (r *Registry) Register(userID string, client *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.clients[userID]
	if !ok {
		set = make(map[*Client]struct{})
		r.clients[userID] = set
	}
	set[client] = struct{}{}

	slog.Info("User connected", "user_id", userID, "connections", len(set))
	return len(set)
}

// Unregister removes a client binding and returns the number of connections
// the user still holds; zero means the user has fully disconnected.
func (r *Registry) Unregister(userID string, client *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.clients[userID]
	if !ok {
		return 0
	}

	delete(set, client)
	if len(set) == 0 {
		delete(r.clients, userID)
	}

	slog.Info("User disconnected", "user_id", userID, "connections", len(set))
	return len(set)
}

// Connections reports how many connections a user currently holds.
func (r *Registry) Connections(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients[userID])
}
