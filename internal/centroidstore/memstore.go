package centroidstore

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/aman-cerp/federated-retrieval/internal/retrieval"
)

// MemStore is an in-process Store backed by a map and mutex. Suitable for
// tests and single-process deployments; does not survive restarts.
type MemStore struct {
	mu    sync.RWMutex
	data  map[Key]retrieval.Centroid
	order []Key // insertion order, for stable Scan pagination
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[Key]retrieval.Centroid)}
}

func (m *MemStore) Get(_ context.Context, key Key) (*retrieval.Centroid, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := c
	return &out, true, nil
}

func (m *MemStore) Put(_ context.Context, key Key, c retrieval.Centroid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[key]; !exists {
		m.order = append(m.order, key)
	}
	m.data[key] = c
	return nil
}

func (m *MemStore) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Scan paginates over keys in stable insertion order. cursor is the decimal
// string offset into that order; an empty nextCursor means scan complete.
func (m *MemStore) Scan(_ context.Context, cursor string, batch int) ([]Key, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", err
		}
		offset = n
	}
	if batch <= 0 {
		batch = len(m.order)
	}
	if offset >= len(m.order) {
		return nil, "", nil
	}

	end := offset + batch
	if end > len(m.order) {
		end = len(m.order)
	}
	keys := append([]Key(nil), m.order[offset:end]...)

	nextCursor := ""
	if end < len(m.order) {
		nextCursor = strconv.Itoa(end)
	}
	return keys, nextCursor, nil
}

func (m *MemStore) Close() error { return nil }

// Keys returns every stored key sorted by tenant then tag, for test assertions.
func (m *MemStore) Keys() []Key {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Key, len(m.order))
	copy(out, m.order)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tenant != out[j].Tenant {
			return out[i].Tenant < out[j].Tenant
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}
