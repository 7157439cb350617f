// Package pairing lets independently computed short- and long-window
// artifacts find each other under an (identity, dataset fingerprint) key
// and runs the cross-lens orchestrator once both halves are present.
package pairing

import (
	"encoding/hex"
	"sync"

	"golang.org/x/crypto/blake2b"

	"observer/internal/crosslens"
	"observer/internal/distribution"
)

const (
	// AnonymousIdentity stands in for an empty identity.
	AnonymousIdentity = "anonymous"

	// Separator joins identity and fingerprint in Key.String.
	Separator = "::"
)

// Key addresses one cache entry.
type Key struct {
	Identity    string
	Fingerprint string
}

// NewKey builds a key, substituting AnonymousIdentity for an empty identity.
func NewKey(identity, fingerprint string) Key {
	return Key{Identity: normalizeIdentity(identity), Fingerprint: fingerprint}
}

func normalizeIdentity(identity string) string {
	if identity == "" {
		return AnonymousIdentity
	}
	return identity
}

func (k Key) String() string {
	return normalizeIdentity(k.Identity) + Separator + k.Fingerprint
}

// Digest is a short blake2b hash of the key, safe to write to logs.
func (k Key) Digest() string {
	sum := blake2b.Sum256([]byte(k.String()))
	return hex.EncodeToString(sum[:8])
}

// Slot is one horizon's half of an entry: the artifact plus the source
// entries its distribution can be recomputed from.
type Slot struct {
	Artifact crosslens.Artifact
	Entries  []distribution.Entry
}

// Entry holds at most one slot per horizon.
type Entry struct {
	Short *Slot
	Long  *Slot
}

// Slot returns the slot for h, or nil.
func (e Entry) Slot(h crosslens.Horizon) *Slot {
	switch h {
	case crosslens.HorizonShort:
		return e.Short
	case crosslens.HorizonLong:
		return e.Long
	}
	return nil
}

func (e *Entry) set(h crosslens.Horizon, s *Slot) {
	switch h {
	case crosslens.HorizonShort:
		e.Short = s
	case crosslens.HorizonLong:
		e.Long = s
	}
}

// Store is the backing map of a Cache. Implementations must be safe for
// concurrent use; the Cache serializes its own read-modify-write sequences.
type Store interface {
	Get(key Key) (Entry, bool)
	Put(key Key, e Entry)
	// ClearByIdentity removes every entry of identity and returns how
	// many were removed.
	ClearByIdentity(identity string) int
	Clear()
	Len() int
}

// MemoryStore is a process-lifetime Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]Entry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[Key]Entry)}
}

func (m *MemoryStore) Get(key Key) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok
}

func (m *MemoryStore) Put(key Key, e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
}

func (m *MemoryStore) ClearByIdentity(identity string) int {
	identity = normalizeIdentity(identity)

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.entries {
		if normalizeIdentity(k.Identity) == identity {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[Key]Entry)
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
