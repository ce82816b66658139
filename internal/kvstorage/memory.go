package kvstorage

import (
	"maps"
	"sync"
)

// MemoryFactory keeps partitions in process memory. Flushed contents survive
// for the lifetime of the factory, so a second storage created for the same
// name observes them after Load.
type MemoryFactory struct {
	mu         sync.Mutex
	partitions map[string]map[string][]byte
}

// NewMemoryFactory returns an empty MemoryFactory.
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{partitions: make(map[string]map[string][]byte)}
}

func (f *MemoryFactory) CreateStorage(name string) (Storage, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return &memoryStorage{factory: f, name: name, index: make(map[string][]byte)}, nil
}

func (f *MemoryFactory) snapshot(name string) map[string][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.partitions[name])
}

func (f *MemoryFactory) store(name string, entries map[string][]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partitions[name] = entries
}

type memoryStorage struct {
	factory *MemoryFactory
	name    string
	index   map[string][]byte
	closed  bool
}

func (s *memoryStorage) Load() error {
	if s.closed {
		return ErrClosed
	}
	s.index = s.factory.snapshot(s.name)
	if s.index == nil {
		s.index = make(map[string][]byte)
	}
	return nil
}

func (s *memoryStorage) Insert(key string, value []byte) bool {
	if s.closed || key == "" {
		return false
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.index[key] = v
	return true
}

func (s *memoryStorage) Find(key string) ([]byte, bool) {
	v, ok := s.index[key]
	return v, ok
}

func (s *memoryStorage) Len() int {
	return len(s.index)
}

func (s *memoryStorage) Flush() error {
	if s.closed {
		return ErrClosed
	}
	s.factory.store(s.name, maps.Clone(s.index))
	return nil
}

func (s *memoryStorage) Close() error {
	s.closed = true
	s.index = nil
	return nil
}
