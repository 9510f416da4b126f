// Package file implements backend.Storage over an *os.File.
package file

import (
	"errors"
	"fmt"
	"os"

	"github.com/Revenant35/ext2-filesystem/backend"
)

type osBackend struct {
	f        *os.File
	readOnly bool
}

var _ backend.Storage = (*osBackend)(nil)

// OpenFromPath opens an existing ext2 image for reading, and for writing
// unless readOnly is set. The image must already exist.
func OpenFromPath(pathName string, readOnly bool) (backend.Storage, error) {
	if pathName == "" {
		return nil, errors.New("must pass a path to the image file")
	}
	if _, err := os.Stat(pathName); os.IsNotExist(err) {
		return nil, fmt.Errorf("image file %s does not exist", pathName)
	}

	mode := os.O_RDONLY
	if !readOnly {
		mode = os.O_RDWR
	}

	f, err := os.OpenFile(pathName, mode, 0o600)
	if err != nil {
		return nil, fmt.Errorf("could not open image %s: %w", pathName, err)
	}

	return &osBackend{f: f, readOnly: readOnly}, nil
}

// CreateFromPath creates a new zero-filled image of the given size in bytes.
// The path must not already exist.
func CreateFromPath(pathName string, size int64) (backend.Storage, error) {
	if pathName == "" {
		return nil, errors.New("must pass a path to the image file")
	}
	if size <= 0 {
		return nil, errors.New("must pass a valid positive image size")
	}

	f, err := os.OpenFile(pathName, os.O_RDWR|os.O_EXCL|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("could not create image %s: %w", pathName, err)
	}
	if err := f.Truncate(size); err != nil {
		return nil, fmt.Errorf("could not size image %s to %d bytes: %w", pathName, size, err)
	}

	return &osBackend{f: f, readOnly: false}, nil
}

func (b *osBackend) ReadAt(p []byte, off int64) (int, error) {
	return b.f.ReadAt(p, off)
}

func (b *osBackend) WriteAt(p []byte, off int64) (int, error) {
	if b.readOnly {
		return 0, backend.ErrNotSuitable
	}
	return b.f.WriteAt(p, off)
}

func (b *osBackend) Close() error {
	return b.f.Close()
}
