package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/triplekit/tripod/internal/mmap"
)

// Local implements BlobStore over the local filesystem. Blobs are opened
// with mmap, which suits the random-access lookups of indexed datasets.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at dir. An empty root resolves
// names as ordinary paths.
func NewLocal(root string) *Local {
	return &Local{root: root}
}

// Open maps the named file into memory, hinted for random access: indexed
// datasets are binary-searched, not scanned.
func (s *Local) Open(_ context.Context, name string) (Blob, error) {
	m, err := mmap.Open(filepath.Join(s.root, name))
	if err != nil {
		return nil, err
	}
	if err := m.Advise(mmap.AccessRandom); err != nil {
		m.Close()
		return nil, err
	}
	return &localBlob{m: m}, nil
}

// Put writes a blob atomically via temp file and rename.
func (s *Local) Put(_ context.Context, name string, data []byte) error {
	path := filepath.Join(s.root, name)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tpd-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

type localBlob struct {
	m *mmap.Mapping
}

func (b *localBlob) ReadAt(p []byte, off int64) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	data := b.m.Bytes()
	if off < 0 || off >= int64(len(data)) {
		return 0, io.EOF
	}
	n = copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *localBlob) Close() error { return b.m.Close() }

func (b *localBlob) Size() int64 { return int64(b.m.Size()) }

func (b *localBlob) Bytes() ([]byte, error) { return b.m.Bytes(), nil }
