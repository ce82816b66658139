package kvstorage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/samcharles93/kernelhal/internal/logger"
)

// FileStorageFactory stores each partition in its own file under a root
// directory: root/name.
type FileStorageFactory struct {
	root string
	log  logger.Logger
}

// FileOption configures a FileStorageFactory.
type FileOption func(*FileStorageFactory)

// WithLogger sets the logger handed to every storage the factory creates.
func WithLogger(l logger.Logger) FileOption {
	return func(f *FileStorageFactory) {
		f.log = l
	}
}

// NewFileStorageFactory returns a factory rooted at root. The directory is
// created on the first Flush.
func NewFileStorageFactory(root string, opts ...FileOption) *FileStorageFactory {
	f := &FileStorageFactory{root: root, log: logger.Nop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Root returns the directory partitions are stored in.
func (f *FileStorageFactory) Root() string {
	return f.root
}

// CreateStorage returns an unloaded storage for the partition. Each
// instance manages its own persistence independently of the factory.
func (f *FileStorageFactory) CreateStorage(name string) (Storage, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return &FileStorage{
		path:  filepath.Join(f.root, name),
		log:   logger.Component(f.log, "kvstorage").With("partition", name),
		index: make(map[string][]byte),
	}, nil
}

// Partitions lists the partition files present under the root.
func (f *FileStorageFactory) Partitions() ([]string, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// FileStorage is the Storage returned by FileStorageFactory.
type FileStorage struct {
	path string
	log  logger.Logger

	index      map[string][]byte
	generation uuid.UUID
	dirty      bool
	closed     bool

	// mapping backs the values decoded by the last Load.
	mapping []byte
	mmapped bool
}

// Path returns the partition file.
func (s *FileStorage) Path() string {
	return s.path
}

func (s *FileStorage) Load() error {
	if s.closed {
		return ErrClosed
	}
	data, mmapped, err := mapFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if rerr := s.release(); rerr != nil {
				return rerr
			}
			s.index = make(map[string][]byte)
			s.generation = uuid.Nil
			s.dirty = false
			s.log.Debug("partition not found, starting empty", "path", s.path)
			return nil
		}
		return fmt.Errorf("kvstorage: load %s: %w", s.path, err)
	}

	p, err := decodePartition(data)
	if err != nil {
		if mmapped {
			_ = unmapFile(data)
		}
		return fmt.Errorf("load %s: %w", s.path, err)
	}

	if err := s.release(); err != nil {
		if mmapped {
			_ = unmapFile(data)
		}
		return err
	}
	s.mapping = data
	s.mmapped = mmapped
	s.index = p.entries
	s.generation = p.generation
	s.dirty = false
	s.log.Debug("partition loaded", "entries", len(p.entries), "bytes", len(data), "mmap", mmapped)
	return nil
}

func (s *FileStorage) Insert(key string, value []byte) bool {
	if s.closed || key == "" {
		return false
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.index[key] = v
	s.dirty = true
	return true
}

func (s *FileStorage) Find(key string) ([]byte, bool) {
	v, ok := s.index[key]
	return v, ok
}

// Flush writes the index to a temporary file and renames it over the
// partition file. A storage with no changes since the last Load or Flush is
// not rewritten.
func (s *FileStorage) Flush() error {
	if s.closed {
		return ErrClosed
	}
	if !s.dirty {
		return nil
	}

	gen, err := uuid.NewRandom()
	if err != nil {
		return fmt.Errorf("kvstorage: flush %s: %w", s.path, err)
	}
	payload := encodePartition(gen, s.index)

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("kvstorage: flush %s: %w", s.path, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("kvstorage: flush %s: %w", s.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("kvstorage: flush %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("kvstorage: flush %s: %w", s.path, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("kvstorage: flush %s: %w", s.path, err)
	}

	s.generation = gen
	s.dirty = false
	s.log.Debug("partition flushed", "entries", len(s.index), "bytes", len(payload), "generation", gen)
	return nil
}

func (s *FileStorage) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.index = nil
	return s.release()
}

// Keys returns the keys in the in-memory index, sorted.
func (s *FileStorage) Keys() []string {
	keys := make([]string, 0, len(s.index))
	for k := range s.index {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of entries in the in-memory index.
func (s *FileStorage) Len() int {
	return len(s.index)
}

// Generation identifies the last loaded or flushed file contents.
// uuid.Nil means the partition has never been persisted.
func (s *FileStorage) Generation() uuid.UUID {
	return s.generation
}

// Dirty reports whether Insert was called since the last Load or Flush.
func (s *FileStorage) Dirty() bool {
	return s.dirty
}

// release drops the previous mapping. Values still aliasing it are
// invalid afterwards, so callers replace the index at the same time.
func (s *FileStorage) release() error {
	data, mmapped := s.mapping, s.mmapped
	s.mapping, s.mmapped = nil, false
	if mmapped && data != nil {
		if err := unmapFile(data); err != nil {
			return fmt.Errorf("kvstorage: unmap %s: %w", s.path, err)
		}
	}
	return nil
}
