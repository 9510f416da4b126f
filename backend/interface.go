// Package backend abstracts positioned byte access to an ext2 image,
// independent of any ext2 semantics.
package backend

import (
	"errors"
	"io"
)

// ErrNotSuitable is returned when a backend does not support an operation,
// for example a write on a read-only-opened image.
var ErrNotSuitable = errors.New("backend does not support this operation")

// Storage is an open ext2 image: a file or block device addressed by
// absolute byte offset. Every codec in this module reads or writes a single
// bounded record through Storage rather than holding a mutable seek cursor,
// so two unrelated operations (e.g. reading two different inodes) never
// race on shared position state.
type Storage interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
}
