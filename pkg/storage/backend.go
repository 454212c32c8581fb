package storage

import (
	"errors"
)

var (
	ErrInvalidOffset = errors.New("invalid page offset")
	ErrInvalidSize   = errors.New("invalid file size")
	ErrBackendClosed = errors.New("storage backend is closed")
)

// Backend is the page-addressable byte store underneath a collection's
// document tree and its index trees. A BufferPool caches pages read
// from and written through a Backend; callers never see raw offsets
// themselves.
type Backend interface {
	// ReadAt reads len(buf) bytes of page data at the given byte offset.
	ReadAt(buf []byte, offset int64) (int, error)

	// WriteAt writes len(buf) bytes of page data at the given byte offset.
	WriteAt(buf []byte, offset int64) (int, error)

	// Sync flushes written pages to durable storage.
	Sync() error

	// Size returns the current backend size in bytes.
	Size() int64

	// Truncate resizes the backend, discarding pages beyond size.
	Truncate(size int64) error

	// Close releases the backend's underlying resources.
	Close() error
}
