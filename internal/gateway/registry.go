package gateway

import (
	"sync"

	"github.com/rfglabs/deathroll/internal/model"
)

// Registry tracks live websocket connections keyed by user. A user may
// hold several connections (multiple tabs); presence flips on the first
// add and the last remove.
type Registry struct {
	mu      sync.RWMutex
	clients map[model.UserID]map[*Client]struct{}
}

// NewRegistry creates an empty connection registry
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[model.UserID]map[*Client]struct{}),
	}
}

// Add registers a client and reports whether it is the user's first
// live connection.
func (r *Registry) Add(client *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.clients[client.userID]
	if !ok {
		set = make(map[*Client]struct{})
		r.clients[client.userID] = set
	}
	set[client] = struct{}{}
	return len(set) == 1
}

// Remove unregisters a client and reports whether it was the user's
// last live connection.
func (r *Registry) Remove(client *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.clients[client.userID]
	if !ok {
		return false
	}
	if _, present := set[client]; !present {
		return false
	}
	delete(set, client)
	if len(set) == 0 {
		delete(r.clients, client.userID)
		return true
	}
	return false
}

// Connections returns the number of live connections for a user.
func (r *Registry) Connections(userID model.UserID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients[userID])
}

// Users returns the number of distinct connected users.
func (r *Registry) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
