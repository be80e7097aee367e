// Package blobstore implements the content-addressed blob store backing
// the gateway. Blobs are written atomically using temp files, named by
// their CIDv1 (raw codec, sha2-256), and tracked in a SQLite index.
package blobstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/avelinot/peerdrop"
)

// Store provides content-addressed blob operations over a sandboxed
// directory root. Safe for concurrent use: writes land under unique
// temp names and renames to a content-derived name are idempotent.
type Store struct {
	root  *os.Root
	index *index
}

// Open attaches a store to the given root directory and opens its
// SQLite index at indexDSN, creating the schema if needed.
func Open(ctx context.Context, root *os.Root, indexDSN string) (*Store, error) {
	idx, err := openIndex(ctx, indexDSN)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return &Store{root: root, index: idx}, nil
}

// Close releases the index database. Blob files need no teardown.
func (s *Store) Close() error {
	return s.index.Close()
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Ingest stores the full contents of r as a single raw blob. The blob
// is hashed while being spooled to a temp file, then renamed to its
// CID. Re-ingesting identical bytes returns the same descriptor and
// leaves the existing blob untouched.
func (s *Store) Ingest(ctx context.Context, r io.Reader) (peerdrop.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return peerdrop.Descriptor{}, err
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return peerdrop.Descriptor{}, fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(t.Name()); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	h := sha256.New()
	w := io.MultiWriter(h, t)

	size, err := io.Copy(w, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return peerdrop.Descriptor{}, fmt.Errorf("could not copy blob contents: %w", err)
	}

	if err = t.Sync(); err != nil {
		return peerdrop.Descriptor{}, fmt.Errorf("could not sync written blob: %w", err)
	}

	sum, err := multihash.Encode(h.Sum(nil), multihash.SHA2_256)
	if err != nil {
		return peerdrop.Descriptor{}, fmt.Errorf("could not encode multihash: %w", err)
	}
	hash := cid.NewCidV1(cid.Raw, multihash.Multihash(sum)).String()

	if _, statErr := s.root.Stat(hash); statErr == nil {
		// Already stored under this hash; the temp copy is discarded by
		// the deferred cleanup.
		if idxErr := s.index.put(ctx, hash, size); idxErr != nil {
			return peerdrop.Descriptor{}, fmt.Errorf("could not index blob %s: %w", hash, idxErr)
		}
		return peerdrop.Descriptor{Hash: hash, Format: peerdrop.FormatRaw}, nil
	}

	if renameErr := s.root.Rename(tmpFile, hash); renameErr != nil {
		return peerdrop.Descriptor{}, fmt.Errorf("failed to rename blob: %w", renameErr)
	}
	success = true

	if idxErr := s.index.put(ctx, hash, size); idxErr != nil {
		return peerdrop.Descriptor{}, fmt.Errorf("could not index blob %s: %w", hash, idxErr)
	}

	return peerdrop.Descriptor{Hash: hash, Format: peerdrop.FormatRaw}, nil
}

// Open returns a reader over the blob with the given hash and its size.
// Returns peerdrop.ErrNotFound if the blob is not stored.
func (s *Store) Open(ctx context.Context, hash string) (io.ReadSeekCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	info, err := s.root.Stat(hash)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, peerdrop.ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to stat blob: %w", err)
	}

	f, err := s.root.Open(hash)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, peerdrop.ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to open blob: %w", err)
	}

	return f, info.Size(), nil
}

// Has reports whether a blob with the given hash is stored.
func (s *Store) Has(ctx context.Context, hash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := s.root.Stat(hash)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat blob: %w", err)
	}
	return true, nil
}

// List returns index entries for all stored blobs, oldest first.
func (s *Store) List(ctx context.Context) ([]peerdrop.BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.index.list(ctx)
}

func tmpFileName() string {
	return fmt.Sprintf(".t%s", uuid.New().String())
}
