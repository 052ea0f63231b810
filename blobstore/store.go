// Package blobstore abstracts where dataset files live. Datasets are
// immutable once built, so the interface is read-oriented: a store opens
// named blobs, a blob supports random reads and optionally zero-copy access.
//
// Local datasets are memory-mapped; remote datasets (see the minio
// subpackage) are staged to a local cache file by the dataset engine before
// mapping.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist. Implementations
// should return an error satisfying errors.Is(err, ErrNotFound).
var ErrNotFound = os.ErrNotExist

// BlobStore opens immutable data blobs by name.
type BlobStore interface {
	Open(ctx context.Context, name string) (Blob, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the blob length in bytes.
	Size() int64
}

// Mappable is an optional interface for Blobs whose contents are already
// resident in memory. Bytes is zero-copy; the slice is valid until Close.
type Mappable interface {
	Bytes() ([]byte, error)
}

// Writable is an optional interface for stores that can persist blobs.
// The dataset builder uses it when writing through a store.
type Writable interface {
	Put(ctx context.Context, name string, data []byte) error
}
