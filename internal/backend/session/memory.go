package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Values are stored encoded so a
// loaded session never aliases one held by another request.
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal crop session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	m.entries[s.MemeID] = &memoryEntry{value: data, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, memeID string) (*Session, error) {
	m.mu.RLock()
	entry, exists := m.entries[memeID]
	m.mu.RUnlock()

	if !exists || m.now().After(entry.expiresAt) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, memeID)
	}
	var s Session
	if err := json.Unmarshal(entry.value, &s); err != nil {
		return nil, fmt.Errorf("unmarshal crop session: %w", err)
	}
	return &s, nil
}

func (m *MemoryStore) Update(ctx context.Context, memeID string, fn func(s *Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.entries[memeID]
	if !exists || m.now().After(entry.expiresAt) {
		return fmt.Errorf("%w: %s", ErrNotFound, memeID)
	}
	var s Session
	if err := json.Unmarshal(entry.value, &s); err != nil {
		return fmt.Errorf("unmarshal crop session: %w", err)
	}
	if err := fn(&s); err != nil {
		return err
	}
	data, err := json.Marshal(&s)
	if err != nil {
		return fmt.Errorf("marshal crop session: %w", err)
	}
	m.entries[memeID] = &memoryEntry{value: data, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, memeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, memeID)
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*memoryEntry)
	return nil
}

// sweep drops expired entries. Callers hold the write lock.
func (m *MemoryStore) sweep() {
	now := m.now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}
