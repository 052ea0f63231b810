package dataset

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/triplekit/tripod/blobstore"
	"github.com/triplekit/tripod/engine"
	"github.com/triplekit/tripod/internal/mmap"
)

// Engine implements engine.Engine for the tripod dataset format.
//
// Blobs that expose their bytes directly (local mmap, in-memory stores) are
// parsed in place. Anything else, such as remote object storage, is staged to a
// local cache file first and mapped from there: the format relies on random
// access, and one sequential fetch beats per-lookup range requests.
type Engine struct {
	store    blobstore.BlobStore
	cacheDir string
	verify   bool
}

// EngineOptions configures New.
type EngineOptions struct {
	// Store resolves dataset paths. Defaults to the local filesystem.
	Store blobstore.BlobStore

	// CacheDir receives staged copies of remote blobs. Defaults to the
	// system temp directory.
	CacheDir string

	// VerifyChecksum controls whole-file CRC verification at map time.
	// Enabled by default; disable for very large trusted datasets.
	VerifyChecksum bool
}

// New creates a dataset Engine.
func New(optFns ...func(o *EngineOptions)) *Engine {
	opts := EngineOptions{
		Store:          blobstore.NewLocal(""),
		CacheDir:       os.TempDir(),
		VerifyChecksum: true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{store: opts.Store, cacheDir: opts.CacheDir, verify: opts.VerifyChecksum}
}

// Map implements engine.Engine.
func (e *Engine) Map(path string) (engine.Dataset, error) {
	blob, err := e.store.Open(context.Background(), path)
	if err != nil {
		return nil, fmt.Errorf("dataset: opening %s: %w", path, err)
	}

	if m, ok := blob.(blobstore.Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			blob.Close()
			return nil, err
		}
		ds, err := newDataset(data, e.verify, blob.Close)
		if err != nil {
			blob.Close()
			return nil, err
		}
		return ds, nil
	}
	return e.mapStaged(path, blob)
}

// mapStaged copies a remote blob to the cache directory and maps the copy.
// The staged file is unlinked when the dataset is closed.
func (e *Engine) mapStaged(path string, blob blobstore.Blob) (engine.Dataset, error) {
	defer blob.Close()

	tmp, err := os.CreateTemp(e.cacheDir, "tpd-stage-*")
	if err != nil {
		return nil, err
	}
	staged := tmp.Name()
	fail := func(err error) (engine.Dataset, error) {
		tmp.Close()
		os.Remove(staged)
		return nil, err
	}

	src := io.NewSectionReader(blob, 0, blob.Size())
	if _, err := io.Copy(tmp, src); err != nil {
		return fail(fmt.Errorf("dataset: staging %s: %w", path, err))
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}

	m, err := mmap.Open(staged)
	if err != nil {
		os.Remove(staged)
		return nil, err
	}
	// The staged copy is consumed the same way a local file is: scattered
	// binary-search reads.
	if err := m.Advise(mmap.AccessRandom); err != nil {
		m.Close()
		os.Remove(staged)
		return nil, err
	}

	ds, err := newDataset(m.Bytes(), e.verify, func() error {
		err := m.Close()
		if rmErr := os.Remove(staged); err == nil {
			err = rmErr
		}
		return err
	})
	if err != nil {
		m.Close()
		os.Remove(staged)
		return nil, err
	}
	return ds, nil
}

var _ engine.Engine = (*Engine)(nil)
