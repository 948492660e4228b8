package ws

import (
	"sort"
	"sync"
)

// Sender is the minimal capability the registry and the fanout path need
// from a live connection: push one event, best-effort.
type Sender interface {
	SendEvent(Event) error
}

// Registry maps a user id to its single live connection. It is injected
// into the gateway and the chat service so a distributed implementation
// (e.g. backed by a shared pub/sub layer) can replace the in-memory one
// without touching callers.
type Registry interface {
	// Register stores the connection for a user, returning the displaced
	// previous connection if one existed (last connection wins).
	Register(userID string, s Sender) (prev Sender)

	// Unregister removes the user's entry only if it still points at the
	// given connection. This guards the reconnect race: a delayed
	// disconnect of an old connection must not evict the entry a newer
	// connection just registered. Returns whether an entry was removed.
	Unregister(userID string, s Sender) bool

	// Lookup returns the user's live connection, if any. Absence is not
	// an error; it simply means the user is offline.
	Lookup(userID string) (Sender, bool)

	// ActiveUserIDs returns the ids of all currently-connected users.
	ActiveUserIDs() []string
}

// MemoryRegistry is the single-process Registry implementation, a mutex-
// guarded map. Connect and disconnect handlers are its only writers.
type MemoryRegistry struct {
	mu    sync.RWMutex
	conns map[string]Sender
}

// NewMemoryRegistry returns an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{conns: make(map[string]Sender)}
}

func (r *MemoryRegistry) Register(userID string, s Sender) Sender {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.conns[userID]
	r.conns[userID] = s
	return prev
}

func (r *MemoryRegistry) Unregister(userID string, s Sender) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[userID] != s {
		return false
	}
	delete(r.conns, userID)
	return true
}

func (r *MemoryRegistry) Lookup(userID string) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.conns[userID]
	return s, ok
}

func (r *MemoryRegistry) ActiveUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.conns))
	for userID := range r.conns {
		ids = append(ids, userID)
	}
	sort.Strings(ids)
	return ids
}
