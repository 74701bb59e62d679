package service

import "sync"

// keyedMutex serializes work per key. Reaction toggles lock on
// (user, message) so two back-to-back toggles cannot both observe "absent".
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{
		entries: make(map[string]*lockEntry),
	}
}

// Lock blocks until the key is held and returns the matching unlock.
func (km *keyedMutex) Lock(key string) func() {
	km.mu.Lock()
	entry, ok := km.entries[key]
	if !ok {
		entry = &lockEntry{}
		km.entries[key] = entry
	}
	entry.refs++
	km.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		km.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(km.entries, key)
		}
		km.mu.Unlock()
	}
}
