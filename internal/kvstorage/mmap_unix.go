//go:build unix

package kvstorage

import (
	"os"

	"golang.org/x/sys/unix"
)

// mapFile maps path read-only. When mmap is unavailable it falls back to
// reading the whole file; the bool reports which path was taken.
func mapFile(path string) ([]byte, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, false, err
	}
	size := stat.Size()
	if size <= 0 || size > int64(int(^uint(0)>>1)) {
		data, err := os.ReadFile(path)
		return data, false, err
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		return data, true, nil
	}
	data, err = os.ReadFile(path)
	return data, false, err
}

func unmapFile(data []byte) error {
	return unix.Munmap(data)
}
