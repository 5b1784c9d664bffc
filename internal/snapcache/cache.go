package snapcache

import (
	"context"
	"sync"

	"github.com/specialistvlad/quire/internal/ctxlog"
	"github.com/specialistvlad/quire/internal/frame"
)

// Cache stores converged snapshots by document hash.
type Cache interface {
	// Load returns the snapshot stored under key, or nil when there is
	// none. Unreadable entries are logged and treated as missing.
	Load(ctx context.Context, key string) (*frame.Snapshot, error)
	// Store saves snap under key, replacing any previous entry.
	Store(ctx context.Context, key string, snap *frame.Snapshot) error
	// Close releases resources.
	Close() error
}

// decodeEntry decodes a stored entry. Failures are logged and reported as
// a miss.
func decodeEntry(ctx context.Context, key string, data []byte) *frame.Snapshot {
	snap, err := Decode(data)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Ignoring unreadable cached snapshot.", "key", key, "error", err)
		return nil
	}
	return snap
}

// Memory is an in-memory cache. Entries are kept encoded so that a hit
// returns an independent copy.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

// Load retrieves a snapshot by key.
func (m *Memory) Load(ctx context.Context, key string) (*frame.Snapshot, error) {
	m.mu.RLock()
	data, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decodeEntry(ctx, key, data), nil
}

// Store saves a snapshot by key.
func (m *Memory) Store(ctx context.Context, key string, snap *frame.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = data
	return nil
}

// Put stores raw entry bytes. It exists for tests exercising unreadable
// entries.
func (m *Memory) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = data
}

// Close is a no-op for the memory cache.
func (m *Memory) Close() error {
	return nil
}
