package records

import (
	"slices"
	"strings"
)

// Backend is the key/value layer records are kept in. Keys are full record
// names. Get returns ErrNotFound for a missing key, as does Delete.
type Backend interface {
	Set(key string, value []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
	// Keys returns every key starting with prefix, in ascending order.
	Keys(prefix string) ([]string, error)
	Close() error
}

// MemoryBackend keeps records in a map. It is the default for tests and for
// devices without a filesystem.
type MemoryBackend struct {
	store map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{store: make(map[string][]byte)}
}

func (m *MemoryBackend) Set(key string, value []byte) error {
	m.store[key] = slices.Clone(value)
	return nil
}

func (m *MemoryBackend) Get(key string) ([]byte, error) {
	v, ok := m.store[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *MemoryBackend) Delete(key string) error {
	if _, ok := m.store[key]; !ok {
		return ErrNotFound
	}
	delete(m.store, key)
	return nil
}

func (m *MemoryBackend) Keys(prefix string) ([]string, error) {
	keys := make([]string, 0, len(m.store))
	for k := range m.store {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (m *MemoryBackend) Close() error {
	return nil
}
