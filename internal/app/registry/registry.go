package registry

import (
	"dmchat/internal/core/contracts"
	"sort"

	"github.com/samber/lo"
)

// Registry is the in-memory connection table. It keeps a forward index
// (user -> client) and a reverse index (client -> user) so a closing
// socket resolves to its user in O(1). It holds no lock: every call
// must come from the Loop goroutine.
type Registry struct {
	clients map[string]contracts.Client // user_id → client
	owners  map[contracts.Client]string // client → user_id
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]contracts.Client),
		owners:  make(map[contracts.Client]string),
	}
}

// Register binds userID to c. When c was bound to another user, that
// user goes offline and is returned as displaced.
func (r *Registry) Register(userID string, c contracts.Client) (displaced string, ok bool) {
	// a client is bound to at most one user id
	if prev, bound := r.owners[c]; bound && prev != userID {
		delete(r.clients, prev)
		displaced, ok = prev, true
	}
	// the superseded client is orphaned; its later disconnect must not
	// unbind the new one
	if old, ok := r.clients[userID]; ok && old != c {
		delete(r.owners, old)
	}
	r.clients[userID] = c
	r.owners[c] = userID
	return displaced, ok
}

func (r *Registry) Lookup(userID string) (contracts.Client, bool) {
	c, ok := r.clients[userID]
	return c, ok
}

func (r *Registry) RemoveByClient(c contracts.Client) (string, bool) {
	userID, ok := r.owners[c]
	if !ok {
		return "", false
	}
	delete(r.owners, c)
	delete(r.clients, userID)
	return userID, true
}

func (r *Registry) RemoveByUser(userID string) (contracts.Client, bool) {
	c, ok := r.clients[userID]
	if !ok {
		return nil, false
	}
	delete(r.clients, userID)
	delete(r.owners, c)
	return c, true
}

func (r *Registry) OnlineIDs() []string {
	ids := lo.Keys(r.clients)
	sort.Strings(ids)
	return ids
}

func (r *Registry) Clients() []contracts.Client {
	return lo.Values(r.clients)
}

var _ contracts.Registry = (*Registry)(nil)
