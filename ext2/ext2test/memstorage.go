// Package ext2test provides test-only helpers shared across the ext2
// package's tests: an in-memory backend.Storage so tests can build and
// inspect crafted images without touching a real file.
package ext2test

import (
	"fmt"
	"sync"
)

// MemStorage is an in-memory backend.Storage backed by a growable byte
// slice, modeled on diskfs's testhelper.FileImpl closures-over-a-buffer
// pattern but exposing the buffer directly since tests need to both seed
// and inspect it.
type MemStorage struct {
	mu   sync.Mutex
	Data []byte
}

// NewMemStorage returns a zero-filled in-memory image of the given size.
func NewMemStorage(size int) *MemStorage {
	return &MemStorage{Data: make([]byte, size)}
}

func (m *MemStorage) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 || int(off) > len(m.Data) {
		return 0, fmt.Errorf("ext2test: read offset %d out of range (size %d)", off, len(m.Data))
	}
	n := copy(p, m.Data[off:])
	if n < len(p) {
		return n, fmt.Errorf("ext2test: short read at offset %d: got %d of %d bytes", off, n, len(p))
	}
	return n, nil
}

func (m *MemStorage) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	end := int(off) + len(p)
	if end > len(m.Data) {
		grown := make([]byte, end)
		copy(grown, m.Data)
		m.Data = grown
	}
	n := copy(m.Data[off:end], p)
	return n, nil
}

func (m *MemStorage) Close() error { return nil }
